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

package coordinator

import (
	"image"
	"time"

	"github.com/carverauto/orbit/pkg/models"
)

// Message is what the client reports to the station. It is one of
// StreamDeregistered, NewPreviewImage or SnapshotRoundCompleted.
type Message interface {
	isMessage()
}

// StreamDeregistered reports that a stream stopped producing frames.
type StreamDeregistered struct {
	Source models.StreamSource
}

// NewPreviewImage carries a decoded preview frame.
type NewPreviewImage struct {
	Source models.StreamSource
	Image  image.Image
	Frame  models.CapturedFrame
}

// NodeStills are the stills one node returned for a round.
type NodeStills struct {
	Node   string
	Stills []models.CapturedFrame
}

// SnapshotRoundCompleted is emitted once every node answered, or failed to,
// a snapshot request. Nodes that failed are absent from Stills.
type SnapshotRoundCompleted struct {
	Round  uint32
	Target time.Time
	Stills []NodeStills
}

func (StreamDeregistered) isMessage()     {}
func (NewPreviewImage) isMessage()        {}
func (SnapshotRoundCompleted) isMessage() {}

// Count is the total number of stills in the round.
func (r SnapshotRoundCompleted) Count() int {
	n := 0
	for _, ns := range r.Stills {
		n += len(ns.Stills)
	}

	return n
}

// Sourced flattens the round into frames tagged with their stream.
func (r SnapshotRoundCompleted) Sourced() []models.SourcedFrame {
	out := make([]models.SourcedFrame, 0, r.Count())

	for _, ns := range r.Stills {
		for _, still := range ns.Stills {
			out = append(out, models.SourcedFrame{
				Source: models.StreamSource{Node: ns.Node, DeviceID: still.DeviceID},
				Frame:  still,
			})
		}
	}

	return out
}
