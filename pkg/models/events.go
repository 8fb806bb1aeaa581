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

package models

import "time"

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// StillSummary describes one still of a completed snapshot round without its payload.
type StillSummary struct {
	Source     StreamSource `json:"source"`
	Width      uint32       `json:"width"`
	Height     uint32       `json:"height"`
	Encoding   FourCC       `json:"encoding"`
	CapturedAt time.Time    `json:"captured_at"`
	Bytes      int          `json:"bytes"`
}

// SnapshotRoundEventData is published when every node has answered a snapshot request.
type SnapshotRoundEventData struct {
	Round     uint32         `json:"round"`
	Purpose   string         `json:"purpose"`
	Target    time.Time      `json:"target"`
	Nodes     int            `json:"nodes"`
	Stills    []StillSummary `json:"stills"`
	OutputDir string         `json:"output_dir,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// StreamAdjustment is the derived correction for one stream, in radians.
type StreamAdjustment struct {
	Source StreamSource `json:"source"`
	Roll   float64      `json:"roll"`
	Pitch  float64      `json:"pitch"`
}

// CalibrationEventData is published after a calibration round is folded in.
type CalibrationEventData struct {
	Round       uint32             `json:"round"`
	Detected    int                `json:"detected"`
	MeanRoll    float64            `json:"mean_roll"`
	MeanPitch   float64            `json:"mean_pitch"`
	Events      int                `json:"events"`
	CropFactor  float64            `json:"crop_factor"`
	Adjustments []StreamAdjustment `json:"adjustments"`
	Timestamp   time.Time          `json:"timestamp"`
}
