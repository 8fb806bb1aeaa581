/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package coordinator

import "errors"

var (
	// ErrUnsupportedEncoding is returned for frames no decoder understands.
	ErrUnsupportedEncoding = errors.New("unsupported frame encoding")
	// ErrShortFrame is returned when a raw frame holds fewer bytes than its size implies.
	ErrShortFrame = errors.New("frame data shorter than its dimensions")

	errNoNodes = errors.New("no nodes configured")
)
