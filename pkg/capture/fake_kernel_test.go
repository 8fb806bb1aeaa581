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

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	errBusy        = errors.New("device or resource busy")
	errDoubleQueue = errors.New("buffer queued twice")
	errQueueEmpty  = errors.New("no buffer queued")
)

const fakeBufferSize = 64

// fakeKernel models a V4L2 mmap queue: buffers cycle FIFO between the queued
// list and user code.
type fakeKernel struct {
	maxBuffers uint32
	buffers    [][]byte
	queued     []uint32
	streaming  bool

	// frames left to produce; negative means unlimited.
	frames   int
	sequence uint32
	clock    time.Duration

	requests  []uint32
	dequeued  []uint32
	unmapped  int
	streamOns int

	requestErr error
	freeErr    error
	unmapErr   error
	streamErr  error
	offErr     error
}

func newFakeKernel(maxBuffers uint32) *fakeKernel {
	return &fakeKernel{maxBuffers: maxBuffers, frames: -1}
}

func (k *fakeKernel) RequestBuffers(count uint32) (uint32, error) {
	k.requests = append(k.requests, count)

	if count == 0 {
		k.buffers = nil
		k.queued = nil

		return 0, k.freeErr
	}

	if k.requestErr != nil {
		return 0, k.requestErr
	}

	granted := min(count, k.maxBuffers)
	k.buffers = make([][]byte, granted)

	for i := range k.buffers {
		k.buffers[i] = make([]byte, fakeBufferSize)
	}

	return granted, nil
}

func (k *fakeKernel) QueryBuffer(index uint32) (BufferLocation, error) {
	if int(index) >= len(k.buffers) {
		return BufferLocation{}, fmt.Errorf("query %d: %w", index, ErrBufferIndex)
	}

	return BufferLocation{Offset: index * fakeBufferSize, Length: fakeBufferSize}, nil
}

func (k *fakeKernel) Map(loc BufferLocation) ([]byte, error) {
	return k.buffers[loc.Offset/fakeBufferSize], nil
}

func (k *fakeKernel) Unmap([]byte) error {
	k.unmapped++

	return k.unmapErr
}

func (k *fakeKernel) Enqueue(index uint32) error {
	if slices.Contains(k.queued, index) {
		return errDoubleQueue
	}

	k.queued = append(k.queued, index)

	return nil
}

func (k *fakeKernel) WaitReady(time.Duration) (bool, error) {
	return k.streaming && len(k.queued) > 0 && k.frames != 0, nil
}

func (k *fakeKernel) Dequeue() (BufferInfo, error) {
	if len(k.queued) == 0 {
		return BufferInfo{}, errQueueEmpty
	}

	index := k.queued[0]
	k.queued = k.queued[1:]
	k.dequeued = append(k.dequeued, index)

	if k.frames > 0 {
		k.frames--
	}

	k.sequence++
	k.clock += 33 * time.Millisecond

	payload := fmt.Appendf(nil, "frame-%d", k.sequence)
	copy(k.buffers[index], payload)

	return BufferInfo{
		Index:     index,
		BytesUsed: uint32(len(payload)),
		Sequence:  k.sequence,
		Timestamp: k.clock,
	}, nil
}

func (k *fakeKernel) StreamOn() error {
	k.streamOns++

	if k.streamErr != nil {
		return k.streamErr
	}

	k.streaming = true

	return nil
}

func (k *fakeKernel) StreamOff() error {
	k.streaming = false
	k.queued = nil

	return k.offErr
}
