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

// Package capture drives memory-mapped V4L2 capture queues.
package capture

import (
	"time"

	"github.com/carverauto/orbit/pkg/models"
)

//go:generate mockgen -destination=mock_driver.go -package=capture github.com/carverauto/orbit/pkg/capture Driver

// Driver issues the buffer queue requests for one open device. Errors caused
// by a removed device must wrap ErrDeviceGone.
type Driver interface {
	RequestBuffers(count uint32) (uint32, error)
	QueryBuffer(index uint32) (BufferLocation, error)
	Map(loc BufferLocation) ([]byte, error)
	Unmap(region []byte) error
	Enqueue(index uint32) error
	Dequeue() (BufferInfo, error)
	// WaitReady blocks until a buffer can be dequeued or timeout passes.
	WaitReady(timeout time.Duration) (bool, error)
	StreamOn() error
	StreamOff() error
}

// BufferLocation is where the driver exposes a buffer for mmap.
type BufferLocation struct {
	Offset uint32
	Length uint32
}

// BufferInfo describes a dequeued buffer. Timestamp is relative to the
// monotonic clock epoch.
type BufferInfo struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
	Sequence  uint32
	Timestamp time.Duration
}

// Format is a negotiated frame size and pixel encoding.
type Format struct {
	Width    uint32        `json:"width"`
	Height   uint32        `json:"height"`
	Encoding models.FourCC `json:"fourcc"`
}

// Metadata is what the kernel reported alongside a frame.
type Metadata struct {
	BytesUsed uint32
	Flags     uint32
	Sequence  uint32
	Timestamp time.Duration
}

// Frame is a view into a dequeued buffer. Data is only valid until the next
// call to Next or Close on the stream that produced it.
type Frame struct {
	Index uint32
	Data  []byte
	Metadata
}
