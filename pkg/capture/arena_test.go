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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocateQueuesEveryBuffer(t *testing.T) {
	kernel := newFakeKernel(4)
	arena := NewArena(kernel)

	granted, err := arena.Allocate(3)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), granted)
	assert.Equal(t, 3, arena.Len())
	assert.Equal(t, 0, arena.UserOwned())
	assert.Equal(t, []uint32{0, 1, 2}, kernel.queued)

	_, err = arena.View(1)
	require.ErrorIs(t, err, ErrBufferNotOwned)

	_, err = arena.View(3)
	require.ErrorIs(t, err, ErrBufferIndex)
}

func TestArenaAllocateUsesGrantedCount(t *testing.T) {
	kernel := newFakeKernel(2)
	arena := NewArena(kernel)

	granted, err := arena.Allocate(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), granted)
	assert.Equal(t, 2, arena.Len())
}

func TestArenaAllocateTwice(t *testing.T) {
	arena := NewArena(newFakeKernel(2))

	_, err := arena.Allocate(1)
	require.NoError(t, err)

	_, err = arena.Allocate(1)
	require.ErrorIs(t, err, errArenaInUse)
}

func TestArenaAllocateBusyDevice(t *testing.T) {
	kernel := newFakeKernel(2)
	kernel.requestErr = errBusy

	arena := NewArena(kernel)

	_, err := arena.Allocate(1)
	require.ErrorIs(t, err, errBusy)

	// Nothing was granted, so there is nothing to free.
	require.NoError(t, arena.Release())
	assert.Equal(t, []uint32{1}, kernel.requests)
}

func TestArenaViewAfterDequeue(t *testing.T) {
	kernel := newFakeKernel(2)
	kernel.streaming = true

	arena := NewArena(kernel)

	_, err := arena.Allocate(2)
	require.NoError(t, err)

	info, err := arena.dequeue()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), info.Index)
	assert.Equal(t, 1, arena.UserOwned())

	view, err := arena.View(info.Index)
	require.NoError(t, err)
	assert.Equal(t, "frame-1", string(view[:info.BytesUsed]))

	require.NoError(t, arena.enqueue(info.Index))

	_, err = arena.View(info.Index)
	require.ErrorIs(t, err, ErrBufferNotOwned)

	err = arena.enqueue(info.Index)
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestArenaReleaseIsIdempotent(t *testing.T) {
	kernel := newFakeKernel(3)
	arena := NewArena(kernel)

	_, err := arena.Allocate(3)
	require.NoError(t, err)

	require.NoError(t, arena.Release())
	assert.Equal(t, 3, kernel.unmapped)
	assert.Equal(t, []uint32{3, 0}, kernel.requests)
	assert.Equal(t, 0, arena.Len())

	require.NoError(t, arena.Release())
	assert.Equal(t, 3, kernel.unmapped)
	assert.Equal(t, []uint32{3, 0}, kernel.requests)
}

func TestArenaReleaseOnEmptyArena(t *testing.T) {
	kernel := newFakeKernel(3)

	require.NoError(t, NewArena(kernel).Release())
	assert.Empty(t, kernel.requests)
	assert.Zero(t, kernel.unmapped)
}

func TestArenaReleaseToleratesRemovedDevice(t *testing.T) {
	kernel := newFakeKernel(2)
	arena := NewArena(kernel)

	_, err := arena.Allocate(2)
	require.NoError(t, err)

	kernel.unmapErr = ErrDeviceGone
	kernel.freeErr = ErrDeviceGone

	require.NoError(t, arena.Release())
}

func TestArenaReleaseReportsOtherErrors(t *testing.T) {
	kernel := newFakeKernel(2)
	arena := NewArena(kernel)

	_, err := arena.Allocate(2)
	require.NoError(t, err)

	kernel.freeErr = errBusy

	require.ErrorIs(t, arena.Release(), errBusy)
}
