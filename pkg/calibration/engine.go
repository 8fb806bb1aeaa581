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

// Package calibration derives per-camera roll and pitch corrections from
// fiducial markers seen in calibration snapshot rounds.
//
// Each round becomes an Event: the pose of every stream that saw a marker
// plus the round's mean roll and pitch. A stream's Adjustment is its
// deviation from the round mean, averaged over every round it took part in
// and weighted by how many streams took part. A rig that is tilted as a
// whole is therefore left alone; only the cameras' misalignment relative to
// each other is corrected.
package calibration

import (
	"cmp"
	"context"
	"image"
	"maps"
	"slices"
	"sync"

	"golang.org/x/image/draw"

	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
)

// Event is the outcome of one calibration round.
type Event struct {
	Round uint32
	Poses map[models.StreamSource]Pose
	Roll  Averager
	Pitch Averager
}

// Adjustment is the correction for one stream, in radians.
type Adjustment struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// IsZero reports whether the adjustment changes nothing.
func (a Adjustment) IsZero() bool {
	return a.Roll == 0 && a.Pitch == 0
}

// weightedSum accumulates one stream's weighted deviations.
type weightedSum struct {
	roll   float64
	pitch  float64
	weight float64
}

func (w *weightedSum) adjustment() Adjustment {
	if w == nil || w.weight == 0 {
		return Adjustment{}
	}

	return Adjustment{Roll: w.roll / w.weight, Pitch: w.pitch / w.weight}
}

// Config wires an Engine.
type Config struct {
	Camera     CameraParameters
	MarkerSize float64
	Estimator  PoseEstimator
	Decoder    Decoder
}

// Engine accumulates events and serves adjustments. It is safe for
// concurrent use.
type Engine struct {
	camera     CameraParameters
	markerSize float64
	estimator  PoseEstimator
	decoder    Decoder
	logger     logger.Logger

	mu     sync.RWMutex
	events []Event
	sums   map[models.StreamSource]*weightedSum
}

// NewEngine returns an engine without history. Zero camera parameters and
// marker size fall back to SQ11 and DefaultMarkerSize.
func NewEngine(cfg Config, log logger.Logger) *Engine {
	if cfg.Camera == (CameraParameters{}) {
		cfg.Camera = SQ11
	}

	if cfg.MarkerSize <= 0 {
		cfg.MarkerSize = DefaultMarkerSize
	}

	return &Engine{
		camera:     cfg.Camera,
		markerSize: cfg.MarkerSize,
		estimator:  cfg.Estimator,
		decoder:    cfg.Decoder,
		logger:     log,
		sums:       make(map[models.StreamSource]*weightedSum),
	}
}

// Camera returns the parameters the engine was built with.
func (e *Engine) Camera() CameraParameters {
	return e.camera
}

// Calibrate runs marker detection on every still of a round and returns the
// resulting event without adding it. Stills that cannot be decoded or show
// no marker are left out. Only a cancelled ctx is an error.
func (e *Engine) Calibrate(ctx context.Context, round uint32, stills []models.SourcedFrame) (Event, error) {
	event := Event{Round: round, Poses: make(map[models.StreamSource]Pose, len(stills))}
	params := DetectParams{MarkerSize: e.markerSize, FocalLength: e.camera.FocalLength()}

	for _, still := range stills {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		if _, seen := event.Poses[still.Source]; seen {
			continue
		}

		log := e.logger.With().Uint32("round", round).Str("stream", still.Source.String()).Logger()

		img, err := e.decoder.Decode(still.Frame)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable still")

			continue
		}

		poses, err := e.estimator.Detect(ctx, toGray(img), params)
		if err != nil {
			if ctx.Err() != nil {
				return Event{}, ctx.Err()
			}

			log.Warn().Err(err).Msg("Marker detection failed")

			continue
		}

		if len(poses) == 0 {
			log.Info().Msg("No marker in still")

			continue
		}

		pose := poses[0]
		event.Poses[still.Source] = pose
		event.Roll.Add(pose.Roll)
		event.Pitch.Add(pose.Pitch)

		log.Debug().Float64("roll", pose.Roll).Float64("pitch", pose.Pitch).Msg("Marker detected")
	}

	return event, nil
}

// AddEvent folds an event into the history. Events must be added in the
// order their rounds completed.
func (e *Engine) AddEvent(event Event) {
	weight := float64(len(event.Poses))
	meanRoll, meanPitch := event.Roll.Mean(), event.Pitch.Mean()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = append(e.events, event)

	for src, pose := range event.Poses {
		sum, ok := e.sums[src]
		if !ok {
			sum = &weightedSum{}
			e.sums[src] = sum
		}

		sum.roll += weight * (pose.Roll - meanRoll)
		sum.pitch += weight * (pose.Pitch - meanPitch)
		sum.weight += weight
	}
}

// Adjustment returns the correction for src; zero when src never saw a marker.
func (e *Engine) Adjustment(src models.StreamSource) Adjustment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sums[src].adjustment()
}

// Adjustments returns the correction of every stream seen in any event.
func (e *Engine) Adjustments() map[models.StreamSource]Adjustment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[models.StreamSource]Adjustment, len(e.sums))
	for src, sum := range e.sums {
		out[src] = sum.adjustment()
	}

	return out
}

// Sources lists the calibrated streams in node then device order.
func (e *Engine) Sources() []models.StreamSource {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return slices.SortedFunc(maps.Keys(e.sums), func(a, b models.StreamSource) int {
		return cmp.Or(cmp.Compare(a.Node, b.Node), cmp.Compare(a.DeviceID, b.DeviceID))
	})
}

// CropFactor is the scale every roll-corrected stream can be cropped to so
// that all of them share one rectangle without empty corners. It is 1 until
// some stream has a non-zero adjustment.
func (e *Engine) CropFactor() float64 {
	aspect := e.camera.AspectRatio()

	e.mu.RLock()
	defer e.mu.RUnlock()

	factor := 1.0

	for _, sum := range e.sums {
		adj := sum.adjustment()
		if adj.IsZero() {
			continue
		}

		factor = min(factor, CropScale(aspect, adj.Roll))
	}

	return factor
}

// Events returns a copy of the history in the order it was added.
func (e *Engine) Events() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return slices.Clone(e.events)
}

// toGray converts img to 8-bit luma, reusing it when it already is.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	return gray
}
