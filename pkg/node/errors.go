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

package node

import "errors"

var (
	errInvalidListenAddr = errors.New("invalid listen address")
	errInvalidFormat     = errors.New("capture format needs a width, height and fourcc")
	errSnapDeadline      = errors.New("no frame before the snapshot deadline")
	errUnknownRequest    = errors.New("unknown request")
)
