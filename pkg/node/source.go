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

//go:generate mockgen -destination=mock_node.go -package=node github.com/carverauto/orbit/pkg/node FrameSource,Opener,DeviceRegistry

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/orbit/pkg/capture"
	"github.com/carverauto/orbit/pkg/devices"
	"github.com/carverauto/orbit/pkg/models"
)

// FrameSource yields frames from one running device stream. Frames are
// detached copies, safe to keep after the next call.
type FrameSource interface {
	Next() (models.CapturedFrame, error)
	Close() error
}

// OpenRequest describes the stream a worker wants from a device.
type OpenRequest struct {
	Handle      devices.Handle
	DeviceID    models.DeviceID
	Format      capture.Format
	Buffers     uint32
	PollTimeout time.Duration
}

// Opener starts capture streams.
type Opener interface {
	Open(req OpenRequest) (FrameSource, error)
}

// DeviceRegistry is the part of devices.Registry the server needs.
type DeviceRegistry interface {
	Devices() ([]devices.Entry, error)
	Added() ([]devices.Entry, error)
	Removed() []devices.Entry
}

// CaptureOpener opens V4L2 devices and stamps frames with UTC capture times.
type CaptureOpener struct{}

// Open negotiates req.Format, maps req.Buffers buffers and starts streaming.
func (CaptureOpener) Open(req OpenRequest) (FrameSource, error) {
	dev, err := capture.Open(req.Handle.Path, req.Format)
	if err != nil {
		return nil, err
	}

	stream, err := dev.Stream(req.Buffers, capture.WithPollTimeout(req.PollTimeout))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("start %s: %w", req.Handle, err), dev.Close())
	}

	return &deviceSource{
		id:     req.DeviceID,
		format: dev.Format(),
		boot:   capture.BootTime(),
		dev:    dev,
		stream: stream,
	}, nil
}

type deviceSource struct {
	id     models.DeviceID
	format capture.Format
	boot   time.Time
	dev    *capture.Device
	stream *capture.ActiveStream
}

func (s *deviceSource) Next() (models.CapturedFrame, error) {
	frame, err := s.stream.Next()
	if err != nil {
		return models.CapturedFrame{}, err
	}

	return models.NewCapturedFrame(
		s.id,
		s.format.Width,
		s.format.Height,
		s.format.Encoding,
		s.boot.Add(frame.Timestamp),
		frame.Data,
	), nil
}

// Close stops the stream before closing the device node; the order matters
// because the mapped buffers belong to the open file.
func (s *deviceSource) Close() error {
	if err := s.stream.Close(); err != nil {
		return err
	}

	return s.dev.Close()
}
