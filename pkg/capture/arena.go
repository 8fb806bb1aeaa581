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

import "fmt"

type ownership uint8

const (
	ownedByKernel ownership = iota
	ownedByUser
)

type region struct {
	data  []byte
	owner ownership
}

// Arena owns the memory-mapped buffers of one device queue. Each buffer is
// tagged with its current owner; views are only handed out for buffers user
// code holds, never for ones the kernel may be writing into.
type Arena struct {
	driver    Driver
	regions   []region
	requested bool
}

// NewArena returns an empty arena bound to driver.
func NewArena(driver Driver) *Arena {
	return &Arena{driver: driver}
}

// Allocate asks the driver for count buffers, maps every granted buffer and
// queues it, so all buffers start in kernel ownership. It returns the number
// granted, which may be lower than count.
func (a *Arena) Allocate(count uint32) (uint32, error) {
	if a.requested || len(a.regions) > 0 {
		return 0, errArenaInUse
	}

	granted, err := a.driver.RequestBuffers(count)
	if err != nil {
		return 0, fmt.Errorf("request %d buffers: %w", count, err)
	}

	a.requested = true

	if granted == 0 {
		return 0, ErrNoBuffers
	}

	a.regions = make([]region, 0, granted)

	for index := uint32(0); index < granted; index++ {
		loc, err := a.driver.QueryBuffer(index)
		if err != nil {
			return 0, fmt.Errorf("query buffer %d: %w", index, err)
		}

		data, err := a.driver.Map(loc)
		if err != nil {
			return 0, fmt.Errorf("map buffer %d: %w", index, err)
		}

		a.regions = append(a.regions, region{data: data, owner: ownedByUser})

		if err := a.enqueue(index); err != nil {
			return 0, err
		}
	}

	return granted, nil
}

// Len is the number of mapped buffers.
func (a *Arena) Len() int {
	return len(a.regions)
}

// UserOwned counts the buffers currently held by user code.
func (a *Arena) UserOwned() int {
	n := 0

	for i := range a.regions {
		if a.regions[i].owner == ownedByUser {
			n++
		}
	}

	return n
}

// View returns the mapped memory of a buffer user code currently holds. The
// slice must not be written to or retained past the buffer's next enqueue.
func (a *Arena) View(index uint32) ([]byte, error) {
	if int(index) >= len(a.regions) {
		return nil, fmt.Errorf("%w: %d of %d", ErrBufferIndex, index, len(a.regions))
	}

	r := &a.regions[index]
	if r.owner != ownedByUser {
		return nil, fmt.Errorf("%w: %d", ErrBufferNotOwned, index)
	}

	return r.data, nil
}

func (a *Arena) enqueue(index uint32) error {
	if int(index) >= len(a.regions) {
		return fmt.Errorf("%w: %d of %d", ErrBufferIndex, index, len(a.regions))
	}

	r := &a.regions[index]
	if r.owner != ownedByUser {
		return fmt.Errorf("%w: buffer %d queued twice", ErrInvariantViolation, index)
	}

	if err := a.driver.Enqueue(index); err != nil {
		return fmt.Errorf("queue buffer %d: %w", index, err)
	}

	r.owner = ownedByKernel

	return nil
}

func (a *Arena) dequeue() (BufferInfo, error) {
	info, err := a.driver.Dequeue()
	if err != nil {
		return BufferInfo{}, fmt.Errorf("dequeue buffer: %w", err)
	}

	if int(info.Index) >= len(a.regions) {
		return BufferInfo{}, fmt.Errorf("%w: driver returned buffer %d of %d",
			ErrInvariantViolation, info.Index, len(a.regions))
	}

	r := &a.regions[info.Index]
	if r.owner != ownedByKernel {
		return BufferInfo{}, fmt.Errorf("%w: buffer %d dequeued twice", ErrInvariantViolation, info.Index)
	}

	r.owner = ownedByUser

	return info, nil
}

// reclaim marks every buffer user owned. Only valid after stream-off, which
// makes the driver drop all queued buffers.
func (a *Arena) reclaim() {
	for i := range a.regions {
		a.regions[i].owner = ownedByUser
	}
}

// Release unmaps every buffer and asks the driver to free the queue. Calling it
// on an empty arena does nothing. Errors from a removed device are ignored
// since the kernel has already discarded the memory.
func (a *Arena) Release() error {
	for i := range a.regions {
		r := &a.regions[i]
		if r.data == nil {
			continue
		}

		if err := a.driver.Unmap(r.data); err != nil && !IsDeviceGone(err) {
			return fmt.Errorf("unmap buffer %d: %w", i, err)
		}

		r.data = nil
	}

	a.regions = nil

	if !a.requested {
		return nil
	}

	if _, err := a.driver.RequestBuffers(0); err != nil && !IsDeviceGone(err) {
		return fmt.Errorf("free buffers: %w", err)
	}

	a.requested = false

	return nil
}
