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
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/carverauto/orbit/pkg/models"
)

const (
	lengthPrefixSize = 4

	// MaxRecordSize bounds a metadata record; frames travel outside records.
	MaxRecordSize = 64 << 10
	// MaxFrameSize bounds a raw frame payload.
	MaxFrameSize = 64 << 20
)

// Field numbers of the record body. Every record carries fieldKind.
const (
	fieldKind     protowire.Number = 1
	fieldDeviceID protowire.Number = 2
	fieldWidth    protowire.Number = 3
	fieldHeight   protowire.Number = 4
	fieldEncoding protowire.Number = 5
	fieldSeconds  protowire.Number = 6
	fieldNanos    protowire.Number = 7
	fieldFrameLen protowire.Number = 8
	fieldCount    protowire.Number = 9
)

// record is the decoded form of any record body. Absent fields stay zero.
type record struct {
	kind     uint64
	deviceID uint64
	width    uint64
	height   uint64
	encoding []byte
	seconds  int64
	nanos    uint64
	frameLen uint64
	count    uint64
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)

	return protowire.AppendVarint(b, v)
}

func appendTimeFields(b []byte, t time.Time) []byte {
	b = appendVarintField(b, fieldSeconds, protowire.EncodeZigZag(t.Unix()))

	return appendVarintField(b, fieldNanos, uint64(t.Nanosecond()))
}

func (r *record) time() (time.Time, error) {
	if r.nanos >= uint64(time.Second) {
		return time.Time{}, fmt.Errorf("%w: nanos %d out of range", ErrMalformedRecord, r.nanos)
	}

	return time.Unix(r.seconds, int64(r.nanos)).UTC(), nil
}

// newRecord starts a record body with its kind field, leaving room for the
// length prefix so the whole record goes out in one write.
func newRecord(kind uint64) []byte {
	b := make([]byte, lengthPrefixSize, 64)

	return appendVarintField(b, fieldKind, kind)
}

// finishRecord fills in the length prefix of a record built with newRecord.
func finishRecord(b []byte) ([]byte, error) {
	size := len(b) - lengthPrefixSize
	if size > MaxRecordSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, size)
	}

	binary.BigEndian.PutUint32(b, uint32(size))

	return b, nil
}

func readRecord(r io.Reader) (record, error) {
	var prefix [lengthPrefixSize]byte

	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return record{}, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxRecordSize {
		return record{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return record{}, fmt.Errorf("read record body: %w", err)
	}

	return parseRecord(body)
}

func parseRecord(b []byte) (record, error) {
	var rec record

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return record{}, fmt.Errorf("%w: %w", ErrMalformedRecord, protowire.ParseError(n))
		}

		b = b[n:]

		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return record{}, fmt.Errorf("%w: field %d: %w", ErrMalformedRecord, num, protowire.ParseError(n))
			}

			rec.setVarint(num, v)

			b = b[n:]
		case typ == protowire.BytesType && num == fieldEncoding:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return record{}, fmt.Errorf("%w: field %d: %w", ErrMalformedRecord, num, protowire.ParseError(n))
			}

			rec.encoding = append([]byte(nil), v...)

			b = b[n:]
		default:
			// Unknown fields are skipped so newer peers can add some.
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return record{}, fmt.Errorf("%w: field %d: %w", ErrMalformedRecord, num, protowire.ParseError(n))
			}

			b = b[n:]
		}
	}

	return rec, nil
}

func (r *record) setVarint(num protowire.Number, v uint64) {
	switch num {
	case fieldKind:
		r.kind = v
	case fieldDeviceID:
		r.deviceID = v
	case fieldWidth:
		r.width = v
	case fieldHeight:
		r.height = v
	case fieldSeconds:
		r.seconds = protowire.DecodeZigZag(v)
	case fieldNanos:
		r.nanos = v
	case fieldFrameLen:
		r.frameLen = v
	case fieldCount:
		r.count = v
	}
}

func checkUint32(name string, v uint64) (uint32, error) {
	if v > 1<<32-1 {
		return 0, fmt.Errorf("%w: %s %d overflows uint32", ErrMalformedRecord, name, v)
	}

	return uint32(v), nil
}

func (r *record) deviceIDValue() (models.DeviceID, error) {
	id, err := checkUint32("device_id", r.deviceID)

	return models.DeviceID(id), err
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, v)
}
