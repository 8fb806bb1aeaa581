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

package capture

import "errors"

var (
	// ErrTimedOut means no buffer became ready within the poll timeout. Callers may retry.
	ErrTimedOut = errors.New("timed out waiting for a capture buffer")
	// ErrDeviceGone wraps the driver error reported once a device has been unplugged.
	ErrDeviceGone = errors.New("capture device is gone")
	// ErrInvariantViolation marks buffer or queue states that must never happen.
	ErrInvariantViolation = errors.New("capture invariant violated")
	// ErrBufferNotOwned is returned for views into a buffer the kernel currently owns.
	ErrBufferNotOwned = errors.New("buffer is owned by the kernel")
	// ErrBufferIndex is returned for an index outside the allocated arena.
	ErrBufferIndex = errors.New("buffer index out of range")
	// ErrNoBuffers means the driver granted zero buffers.
	ErrNoBuffers = errors.New("driver granted no capture buffers")
	// ErrStreamState is returned when an operation does not fit the stream's state.
	ErrStreamState = errors.New("invalid capture stream state")
	// ErrUnsupported is returned on platforms without V4L2.
	ErrUnsupported = errors.New("video capture is not supported on this platform")

	errArenaInUse = errors.New("arena already holds buffers")
)

// IsDeviceGone reports whether err means the device was physically removed.
func IsDeviceGone(err error) bool {
	return errors.Is(err, ErrDeviceGone)
}
