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

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/carverauto/orbit/pkg/models"
)

func testFrame(id models.DeviceID, payload string) models.CapturedFrame {
	return models.CapturedFrame{
		DeviceID:   id,
		Width:      300,
		Height:     144,
		Encoding:   models.FourCCMJPG,
		CapturedAt: time.Date(2025, 6, 1, 10, 30, 15, 123456789, time.UTC),
		Data:       []byte(payload),
	}
}

func TestRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "stream", req: StreamRequest()},
		{name: "snap", req: SnapRequest(time.Date(2025, 6, 1, 10, 30, 0, 500_000_000, time.UTC))},
		{name: "snap before epoch", req: SnapRequest(time.Date(1969, 12, 31, 23, 59, 59, 1, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			require.NoError(t, WriteRequest(&buf, tt.req))

			got, err := ReadRequest(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.req.Kind, got.Kind)
			assert.True(t, tt.req.Target.Equal(got.Target), "want %v got %v", tt.req.Target, got.Target)
			assert.Zero(t, buf.Len())
		})
	}
}

func TestStreamResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteStreamResponse(&buf, FrameResponse(testFrame(3, "jpeg-bytes"))))
	require.NoError(t, WriteStreamResponse(&buf, StopResponse(3)))
	require.NoError(t, WriteStreamResponse(&buf, FrameResponse(testFrame(7, ""))))

	first, err := ReadStreamResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, ResponseFrame, first.Kind)
	assert.Equal(t, testFrame(3, "jpeg-bytes"), first.Frame)

	second, err := ReadStreamResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, StopResponse(3), second)

	third, err := ReadStreamResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceID(7), third.DeviceID)
	assert.Empty(t, third.Frame.Data)

	_, err = ReadStreamResponse(&buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestSnapResponseRoundTrip(t *testing.T) {
	want := SnapResponse{Stills: []models.CapturedFrame{testFrame(1, "a"), testFrame(2, "bb")}}

	var buf bytes.Buffer

	require.NoError(t, WriteSnapResponse(&buf, want))

	got, err := ReadSnapResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSnapResponseEmpty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteSnapResponse(&buf, SnapResponse{}))

	got, err := ReadSnapResponse(&buf)
	require.NoError(t, err)
	assert.Empty(t, got.Stills)
}

func TestSnapResponseTruncated(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteSnapResponse(&buf, SnapResponse{Stills: []models.CapturedFrame{testFrame(1, "abcdef")}}))

	truncated := buf.Bytes()[:buf.Len()-3]

	_, err := ReadSnapResponse(bytes.NewReader(truncated))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadRejectsOversizeRecord(t *testing.T) {
	var prefix [4]byte

	binary.BigEndian.PutUint32(prefix[:], MaxRecordSize+1)

	_, err := ReadStreamResponse(bytes.NewReader(prefix[:]))
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestReadRejectsOversizeFrame(t *testing.T) {
	b := newRecord(uint64(ResponseFrame))
	b = appendVarintField(b, fieldDeviceID, 1)
	b = appendBytesField(b, fieldEncoding, []byte("MJPG"))
	b = appendVarintField(b, fieldFrameLen, MaxFrameSize+1)

	b, err := finishRecord(b)
	require.NoError(t, err)

	_, err = ReadStreamResponse(bytes.NewReader(b))
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestReadRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want error
	}{
		{
			name: "truncated varint",
			body: []byte{byte(fieldKind << 3), 0x80},
			want: ErrMalformedRecord,
		},
		{
			name: "short encoding",
			body: appendBytesField(appendVarintField(nil, fieldKind, uint64(ResponseFrame)), fieldEncoding, []byte("MJ")),
			want: ErrMalformedRecord,
		},
		{
			name: "nanos out of range",
			body: appendVarintField(appendBytesField(appendVarintField(nil, fieldKind, uint64(ResponseFrame)),
				fieldEncoding, []byte("MJPG")), fieldNanos, uint64(time.Second)),
			want: ErrMalformedRecord,
		},
		{
			name: "device id overflow",
			body: appendVarintField(appendVarintField(nil, fieldKind, uint64(ResponseStop)), fieldDeviceID, 1<<40),
			want: ErrMalformedRecord,
		},
		{
			name: "unknown kind",
			body: appendVarintField(nil, fieldKind, 42),
			want: ErrUnexpectedKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prefix [4]byte

			binary.BigEndian.PutUint32(prefix[:], uint32(len(tt.body)))

			_, err := ReadStreamResponse(bytes.NewReader(append(prefix[:], tt.body...)))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	body := appendVarintField(nil, fieldKind, uint64(ResponseStop))
	body = appendBytesField(body, 42, []byte("future"))
	body = protowire.AppendTag(body, 43, protowire.Fixed64Type)
	body = protowire.AppendFixed64(body, 7)
	body = appendVarintField(body, fieldDeviceID, 9)

	var prefix [4]byte

	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))

	got, err := ReadStreamResponse(bytes.NewReader(append(prefix[:], body...)))
	require.NoError(t, err)
	assert.Equal(t, StopResponse(9), got)
}

func TestSnapHeaderRejectedOnStream(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteSnapResponse(&buf, SnapResponse{}))

	_, err := ReadStreamResponse(&buf)
	require.ErrorIs(t, err, ErrUnexpectedKind)
	require.ErrorIs(t, WriteStreamResponse(io.Discard, StreamResponse{Kind: ResponseSnap}), ErrUnexpectedKind)
}

func TestWriteRejectsOversizeFrame(t *testing.T) {
	frame := testFrame(1, "")
	frame.Data = make([]byte, MaxFrameSize+1)

	require.ErrorIs(t, WriteStreamResponse(io.Discard, FrameResponse(frame)), ErrRecordTooLarge)
}

func TestOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() { _ = ln.Close() }()

	done := make(chan error, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err

			return
		}

		defer func() { _ = conn.Close() }()

		req, err := ReadRequest(conn)
		if err != nil {
			done <- err

			return
		}

		frame := testFrame(5, "still")
		frame.CapturedAt = req.Target

		done <- WriteSnapResponse(conn, SnapResponse{Stills: []models.CapturedFrame{frame}})
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	target := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, WriteRequest(conn, SnapRequest(target)))

	resp, err := ReadSnapResponse(conn)
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.Len(t, resp.Stills, 1)
	assert.True(t, resp.Stills[0].CapturedAt.Equal(target))
	assert.Equal(t, []byte("still"), resp.Stills[0].Data)
}
