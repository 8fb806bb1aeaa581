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

// Package protocol implements the framed request/response exchange between
// the station and capture nodes.
//
// Every message is a record: a four byte big-endian length followed by a
// protobuf-wire body. A frame record is immediately followed by the raw
// encoded image, whose length the record announces.
package protocol

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/carverauto/orbit/pkg/models"
)

// DefaultPort is the TCP port nodes listen on.
const DefaultPort = 2000

// RequestKind selects what a connection is used for.
type RequestKind uint8

const (
	// RequestStream asks for a continuous multiplexed preview stream.
	RequestStream RequestKind = 1
	// RequestSnap asks for one still per device nearest to a target time.
	RequestSnap RequestKind = 2
)

func (k RequestKind) String() string {
	switch k {
	case RequestStream:
		return "stream"
	case RequestSnap:
		return "snap"
	default:
		return fmt.Sprintf("RequestKind(%d)", uint8(k))
	}
}

// Request is the single message a station sends on a fresh connection.
// Target is only meaningful for RequestSnap.
type Request struct {
	Kind   RequestKind
	Target time.Time
}

// StreamRequest builds a streaming request.
func StreamRequest() Request {
	return Request{Kind: RequestStream}
}

// SnapRequest builds a snapshot request for the given wall-clock instant.
func SnapRequest(target time.Time) Request {
	return Request{Kind: RequestSnap, Target: target.UTC()}
}

// ResponseKind tags node to station records.
type ResponseKind uint8

const (
	// ResponseStop reports that a device stream ended.
	ResponseStop ResponseKind = 1
	// ResponseFrame carries one captured frame.
	ResponseFrame ResponseKind = 2
	// ResponseSnap heads a snapshot reply with the number of stills.
	ResponseSnap ResponseKind = 3
)

// StreamResponse is one message on a streaming connection. Frame is only
// set for ResponseFrame; DeviceID is set for both kinds.
type StreamResponse struct {
	Kind     ResponseKind
	DeviceID models.DeviceID
	Frame    models.CapturedFrame
}

// StopResponse announces that the stream for id has ended.
func StopResponse(id models.DeviceID) StreamResponse {
	return StreamResponse{Kind: ResponseStop, DeviceID: id}
}

// FrameResponse wraps a frame for the streaming connection.
func FrameResponse(frame models.CapturedFrame) StreamResponse {
	return StreamResponse{Kind: ResponseFrame, DeviceID: frame.DeviceID, Frame: frame}
}

// SnapResponse is the full reply to a snapshot request.
type SnapResponse struct {
	Stills []models.CapturedFrame
}

// WriteRequest encodes req onto w.
func WriteRequest(w io.Writer, req Request) error {
	b := newRecord(uint64(req.Kind))

	switch req.Kind {
	case RequestStream:
	case RequestSnap:
		b = appendTimeFields(b, req.Target)
	default:
		return fmt.Errorf("%w: request %s", ErrUnexpectedKind, req.Kind)
	}

	b, err := finishRecord(b)
	if err != nil {
		return err
	}

	_, err = w.Write(b)

	return err
}

// ReadRequest decodes one request from r.
func ReadRequest(r io.Reader) (Request, error) {
	rec, err := readRecord(r)
	if err != nil {
		return Request{}, err
	}

	switch RequestKind(rec.kind) {
	case RequestStream:
		return StreamRequest(), nil
	case RequestSnap:
		target, err := rec.time()
		if err != nil {
			return Request{}, err
		}

		return Request{Kind: RequestSnap, Target: target}, nil
	default:
		return Request{}, fmt.Errorf("%w: request kind %d", ErrUnexpectedKind, rec.kind)
	}
}

// WriteStreamResponse encodes resp onto w. Frame payloads are written after
// their record without being copied.
func WriteStreamResponse(w io.Writer, resp StreamResponse) error {
	switch resp.Kind {
	case ResponseStop:
		b := appendVarintField(newRecord(uint64(ResponseStop)), fieldDeviceID, uint64(resp.DeviceID))

		b, err := finishRecord(b)
		if err != nil {
			return err
		}

		_, err = w.Write(b)

		return err
	case ResponseFrame:
		return writeFrame(w, resp.Frame)
	case ResponseSnap:
		return fmt.Errorf("%w: %d on stream connection", ErrUnexpectedKind, resp.Kind)
	default:
		return fmt.Errorf("%w: response kind %d", ErrUnexpectedKind, resp.Kind)
	}
}

// ReadStreamResponse decodes one stop or frame message from r.
func ReadStreamResponse(r io.Reader) (StreamResponse, error) {
	rec, err := readRecord(r)
	if err != nil {
		return StreamResponse{}, err
	}

	switch ResponseKind(rec.kind) {
	case ResponseStop:
		id, err := rec.deviceIDValue()
		if err != nil {
			return StreamResponse{}, err
		}

		return StopResponse(id), nil
	case ResponseFrame:
		frame, err := readFramePayload(r, &rec)
		if err != nil {
			return StreamResponse{}, err
		}

		return FrameResponse(frame), nil
	case ResponseSnap:
		return StreamResponse{}, fmt.Errorf("%w: snap header on stream connection", ErrUnexpectedKind)
	default:
		return StreamResponse{}, fmt.Errorf("%w: response kind %d", ErrUnexpectedKind, rec.kind)
	}
}

// WriteSnapResponse writes the count header and then each still.
func WriteSnapResponse(w io.Writer, resp SnapResponse) error {
	b := appendVarintField(newRecord(uint64(ResponseSnap)), fieldCount, uint64(len(resp.Stills)))

	b, err := finishRecord(b)
	if err != nil {
		return err
	}

	if _, err := w.Write(b); err != nil {
		return err
	}

	for i := range resp.Stills {
		if err := writeFrame(w, resp.Stills[i]); err != nil {
			return fmt.Errorf("still %d: %w", i, err)
		}
	}

	return nil
}

// ReadSnapResponse reads a complete snapshot reply from r.
func ReadSnapResponse(r io.Reader) (SnapResponse, error) {
	rec, err := readRecord(r)
	if err != nil {
		return SnapResponse{}, err
	}

	if ResponseKind(rec.kind) != ResponseSnap {
		return SnapResponse{}, fmt.Errorf("%w: expected snap header, got %d", ErrUnexpectedKind, rec.kind)
	}

	// Each still costs at least one length prefix, which bounds how much a
	// hostile count can make us allocate up front.
	capacity := min(rec.count, MaxRecordSize)
	stills := make([]models.CapturedFrame, 0, capacity)

	for i := uint64(0); i < rec.count; i++ {
		still, err := readRecord(r)
		if err != nil {
			return SnapResponse{}, fmt.Errorf("still %d: %w", i, err)
		}

		if ResponseKind(still.kind) != ResponseFrame {
			return SnapResponse{}, fmt.Errorf("%w: still %d has kind %d", ErrUnexpectedKind, i, still.kind)
		}

		frame, err := readFramePayload(r, &still)
		if err != nil {
			return SnapResponse{}, fmt.Errorf("still %d: %w", i, err)
		}

		stills = append(stills, frame)
	}

	return SnapResponse{Stills: stills}, nil
}

func writeFrame(w io.Writer, frame models.CapturedFrame) error {
	if len(frame.Data) > MaxFrameSize {
		return fmt.Errorf("%w: frame of %d bytes", ErrRecordTooLarge, len(frame.Data))
	}

	b := newRecord(uint64(ResponseFrame))
	b = appendVarintField(b, fieldDeviceID, uint64(frame.DeviceID))
	b = appendVarintField(b, fieldWidth, uint64(frame.Width))
	b = appendVarintField(b, fieldHeight, uint64(frame.Height))
	b = appendBytesField(b, fieldEncoding, frame.Encoding[:])
	b = appendTimeFields(b, frame.CapturedAt)
	b = appendVarintField(b, fieldFrameLen, uint64(len(frame.Data)))

	b, err := finishRecord(b)
	if err != nil {
		return err
	}

	bufs := net.Buffers{b, frame.Data}
	_, err = bufs.WriteTo(w)

	return err
}

func readFramePayload(r io.Reader, rec *record) (models.CapturedFrame, error) {
	id, err := rec.deviceIDValue()
	if err != nil {
		return models.CapturedFrame{}, err
	}

	width, err := checkUint32("width", rec.width)
	if err != nil {
		return models.CapturedFrame{}, err
	}

	height, err := checkUint32("height", rec.height)
	if err != nil {
		return models.CapturedFrame{}, err
	}

	var encoding models.FourCC
	if len(rec.encoding) != len(encoding) {
		return models.CapturedFrame{}, fmt.Errorf("%w: encoding of %d bytes", ErrMalformedRecord, len(rec.encoding))
	}

	copy(encoding[:], rec.encoding)

	capturedAt, err := rec.time()
	if err != nil {
		return models.CapturedFrame{}, err
	}

	if rec.frameLen > MaxFrameSize {
		return models.CapturedFrame{}, fmt.Errorf("%w: frame of %d bytes", ErrRecordTooLarge, rec.frameLen)
	}

	data := make([]byte, rec.frameLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return models.CapturedFrame{}, fmt.Errorf("read frame payload: %w", err)
	}

	return models.CapturedFrame{
		DeviceID:   id,
		Width:      width,
		Height:     height,
		Encoding:   encoding,
		CapturedAt: capturedAt,
		Data:       data,
	}, nil
}
