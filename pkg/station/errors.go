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
package station

import "errors"

var (
	// ErrUnknownPurpose is returned for snapshot requests that are neither
	// calibration nor capture.
	ErrUnknownPurpose = errors.New("unknown snapshot purpose")

	// ErrUnknownStream is returned for operations on a stream that is not live.
	ErrUnknownStream = errors.New("unknown stream")

	errNodesRequired     = errors.New("at least one node is required")
	errOutputDirRequired = errors.New("output_dir is required")
	errInvalidCamera     = errors.New("camera hfov, width and height must be positive")
	errInvalidListenAddr = errors.New("invalid listen address")
)
