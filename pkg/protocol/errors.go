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

package protocol

import "errors"

var (
	// ErrMalformedRecord is returned for records that do not decode.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrRecordTooLarge is returned when a length prefix exceeds the allowed size.
	ErrRecordTooLarge = errors.New("record too large")
	// ErrUnexpectedKind is returned when a record of the wrong message kind arrives.
	ErrUnexpectedKind = errors.New("unexpected message kind")
)
