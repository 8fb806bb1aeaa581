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
	"time"
)

// DefaultPollTimeout bounds every wait for a ready buffer.
const DefaultPollTimeout = time.Second

// State is the lifecycle position of a capture stream.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithPollTimeout overrides DefaultPollTimeout.
func WithPollTimeout(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.pollTimeout = d
		}
	}
}

// Stream is an allocated, not yet started capture queue.
type Stream struct {
	driver      Driver
	arena       *Arena
	buffers     uint32
	state       State
	pollTimeout time.Duration
}

// WithBuffers allocates up to count buffers on driver and queues them all.
// The stream uses however many buffers the driver granted.
func WithBuffers(driver Driver, count uint32, opts ...StreamOption) (*Stream, error) {
	arena := NewArena(driver)

	granted, err := arena.Allocate(count)
	if err != nil {
		if releaseErr := arena.Release(); releaseErr != nil {
			return nil, errors.Join(err, releaseErr)
		}

		return nil, err
	}

	s := &Stream{
		driver:      driver,
		arena:       arena,
		buffers:     granted,
		state:       StateIdle,
		pollTimeout: DefaultPollTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Buffers is the number of buffers the driver granted.
func (s *Stream) Buffers() uint32 {
	return s.buffers
}

// State reports the current lifecycle state.
func (s *Stream) State() State {
	return s.state
}

// Start turns streaming on. On failure the buffers are released and the
// stream cannot be started again.
func (s *Stream) Start() (*ActiveStream, error) {
	if s.state != StateIdle {
		return nil, fmt.Errorf("%w: start from %s", ErrStreamState, s.state)
	}

	if err := s.driver.StreamOn(); err != nil {
		s.state = StateStopped

		if releaseErr := s.arena.Release(); releaseErr != nil {
			return nil, errors.Join(fmt.Errorf("stream on: %w", err), releaseErr)
		}

		return nil, fmt.Errorf("stream on: %w", err)
	}

	s.state = StateRunning

	return &ActiveStream{stream: s}, nil
}

// Close releases the buffers of a stream that was never started. It is a
// no-op once the stream has been started.
func (s *Stream) Close() error {
	if s.state != StateIdle {
		return nil
	}

	s.state = StateStopped

	return s.arena.Release()
}

// ActiveStream hands out frames from a running queue. At most one buffer is
// held by the caller at a time: it goes back to the kernel at the start of the
// following Next. An ActiveStream is not safe for concurrent use.
type ActiveStream struct {
	stream *Stream
	held   bool
	index  uint32
}

// State reports the underlying stream state.
func (a *ActiveStream) State() State {
	return a.stream.state
}

// Buffers is the number of buffers cycling through the queue.
func (a *ActiveStream) Buffers() uint32 {
	return a.stream.buffers
}

// Next requeues the previously returned buffer, waits for the next one and
// returns a view into it. ErrTimedOut is returned when nothing arrives within
// the poll timeout; the stream stays usable.
func (a *ActiveStream) Next() (Frame, error) {
	s := a.stream
	if s.state != StateRunning {
		return Frame{}, fmt.Errorf("%w: next on %s stream", ErrStreamState, s.state)
	}

	if a.held {
		if err := s.arena.enqueue(a.index); err != nil {
			return Frame{}, err
		}

		a.held = false
	}

	ready, err := s.driver.WaitReady(s.pollTimeout)
	if err != nil {
		return Frame{}, fmt.Errorf("wait for buffer: %w", err)
	}

	if !ready {
		return Frame{}, ErrTimedOut
	}

	info, err := s.arena.dequeue()
	if err != nil {
		return Frame{}, err
	}

	a.held = true
	a.index = info.Index

	view, err := s.arena.View(info.Index)
	if err != nil {
		panic(fmt.Errorf("%w: %w", ErrInvariantViolation, err))
	}

	used := min(int(info.BytesUsed), len(view))

	return Frame{
		Index: info.Index,
		Data:  view[:used:used],
		Metadata: Metadata{
			BytesUsed: info.BytesUsed,
			Flags:     info.Flags,
			Sequence:  info.Sequence,
			Timestamp: info.Timestamp,
		},
	}, nil
}

// Close turns streaming off and releases every buffer. A removed device is
// tolerated; any other teardown failure means the queue is in an unknown
// state and panics with ErrInvariantViolation. Close is idempotent.
func (a *ActiveStream) Close() error {
	s := a.stream
	if s.state == StateStopped {
		return nil
	}

	s.state = StateStopped
	a.held = false

	if err := s.driver.StreamOff(); err != nil && !IsDeviceGone(err) {
		panic(fmt.Errorf("%w: stream off: %w", ErrInvariantViolation, err))
	}

	s.arena.reclaim()

	if err := s.arena.Release(); err != nil {
		panic(fmt.Errorf("%w: %w", ErrInvariantViolation, err))
	}

	return nil
}
