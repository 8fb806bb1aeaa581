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

// Package models holds the value types shared by nodes and the station.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errInvalidFourCC = errors.New("fourcc must be exactly four bytes")

// DeviceID identifies a capture device for the lifetime of one node process.
// Zero is never assigned.
type DeviceID uint32

// FourCC is a four byte pixel encoding tag such as "MJPG".
type FourCC [4]byte

var (
	FourCCMJPG = FourCC{'M', 'J', 'P', 'G'}
	FourCCJPEG = FourCC{'J', 'P', 'E', 'G'}
	FourCCYUYV = FourCC{'Y', 'U', 'Y', 'V'}
)

// ParseFourCC converts a four character string into a FourCC.
func ParseFourCC(s string) (FourCC, error) {
	var f FourCC

	if len(s) != len(f) {
		return f, fmt.Errorf("%w: %q", errInvalidFourCC, s)
	}

	copy(f[:], s)

	return f, nil
}

// FourCCFromUint32 decodes the little-endian packing V4L2 uses for pixel formats.
func FourCCFromUint32(v uint32) FourCC {
	return FourCC{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// Uint32 packs f the way V4L2 expects pixel formats.
func (f FourCC) Uint32() uint32 {
	return uint32(f[0]) | uint32(f[1])<<8 | uint32(f[2])<<16 | uint32(f[3])<<24
}

func (f FourCC) String() string {
	return string(f[:])
}

func (f FourCC) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *FourCC) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	parsed, err := ParseFourCC(s)
	if err != nil {
		return err
	}

	*f = parsed

	return nil
}

// StreamSource names one camera feed across the fleet.
type StreamSource struct {
	Node     string   `json:"node"`
	DeviceID DeviceID `json:"device_id"`
}

func (s StreamSource) String() string {
	return fmt.Sprintf("%s/%d", s.Node, s.DeviceID)
}

// CapturedFrame is one encoded image taken from a device. It is treated as
// immutable once built; use NewCapturedFrame to detach it from capture memory.
type CapturedFrame struct {
	DeviceID   DeviceID  `json:"device_id"`
	Width      uint32    `json:"width"`
	Height     uint32    `json:"height"`
	Encoding   FourCC    `json:"encoding"`
	CapturedAt time.Time `json:"captured_at"`
	Data       []byte    `json:"-"`
}

// NewCapturedFrame copies data so the frame outlives the buffer it was read from.
func NewCapturedFrame(id DeviceID, width, height uint32, encoding FourCC, capturedAt time.Time, data []byte) CapturedFrame {
	return CapturedFrame{
		DeviceID:   id,
		Width:      width,
		Height:     height,
		Encoding:   encoding,
		CapturedAt: capturedAt.UTC(),
		Data:       append([]byte(nil), data...),
	}
}

// SourcedFrame pairs a frame with the node it came from.
type SourcedFrame struct {
	Source StreamSource
	Frame  CapturedFrame
}
