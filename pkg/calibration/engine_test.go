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

package calibration

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
)

const epsilon = 1e-12

var (
	errDetector     = errors.New("detector crashed")
	errCorruptStill = errors.New("corrupt still")
)

func deg(d float64) float64 {
	return d * math.Pi / 180
}

func src(node string, id models.DeviceID) models.StreamSource {
	return models.StreamSource{Node: node, DeviceID: id}
}

func event(round uint32, poses map[models.StreamSource]Pose) Event {
	ev := Event{Round: round, Poses: poses}
	for _, p := range poses {
		ev.Roll.Add(p.Roll)
		ev.Pitch.Add(p.Pitch)
	}

	return ev
}

// recompute is the full-history definition the engine's running sums must match.
func recompute(events []Event, s models.StreamSource) Adjustment {
	var roll, pitch, weight float64

	for _, ev := range events {
		pose, ok := ev.Poses[s]
		if !ok {
			continue
		}

		w := float64(len(ev.Poses))
		roll += w * (pose.Roll - ev.Roll.Mean())
		pitch += w * (pose.Pitch - ev.Pitch.Mean())
		weight += w
	}

	if weight == 0 {
		return Adjustment{}
	}

	return Adjustment{Roll: roll / weight, Pitch: pitch / weight}
}

func TestAverager(t *testing.T) {
	var a Averager

	assert.Zero(t, a.Mean())

	a.Add(1)
	a.Add(2)

	var b Averager

	b.Add(6)

	assert.InDelta(t, 1.5, a.Mean(), epsilon)
	assert.Equal(t, 2, a.Count())

	m := a.Merge(b)
	assert.InDelta(t, 3, m.Mean(), epsilon)
	assert.Equal(t, 3, m.Count())
}

func TestEngineWithoutEvents(t *testing.T) {
	e := NewEngine(Config{}, logger.NewTestLogger())

	assert.Equal(t, Adjustment{}, e.Adjustment(src("a:2000", 1)))
	assert.InDelta(t, 1, e.CropFactor(), epsilon)
	assert.Empty(t, e.Adjustments())
	assert.Empty(t, e.Events())
}

func TestEngineSymmetricRoll(t *testing.T) {
	a, b := src("a:2000", 1), src("b:2000", 1)

	e := NewEngine(Config{}, logger.NewTestLogger())
	e.AddEvent(event(0, map[models.StreamSource]Pose{
		a: {Roll: deg(5)},
		b: {Roll: deg(-5)},
	}))

	assert.InDelta(t, deg(5), e.Adjustment(a).Roll, epsilon)
	assert.InDelta(t, deg(-5), e.Adjustment(b).Roll, epsilon)
	assert.InDelta(t, 0, e.Adjustment(a).Pitch, epsilon)

	want := CropScale(720.0/1280.0, deg(5))
	assert.InDelta(t, want, e.CropFactor(), epsilon)
	assert.Less(t, e.CropFactor(), 1.0)
}

func TestEngineTiltedRigIsNotCorrected(t *testing.T) {
	a, b := src("a:2000", 1), src("a:2000", 2)

	e := NewEngine(Config{}, logger.NewTestLogger())
	e.AddEvent(event(0, map[models.StreamSource]Pose{
		a: {Roll: deg(10), Pitch: deg(3)},
		b: {Roll: deg(10), Pitch: deg(3)},
	}))

	assert.InDelta(t, 0, e.Adjustment(a).Roll, epsilon)
	assert.InDelta(t, 0, e.Adjustment(b).Pitch, epsilon)
	assert.InDelta(t, 1, e.CropFactor(), epsilon)
}

func TestEngineMatchesFullRecompute(t *testing.T) {
	a, b, c := src("a:2000", 1), src("b:2000", 1), src("c:2000", 4)

	events := []Event{
		event(0, map[models.StreamSource]Pose{a: {Roll: 0.02, Pitch: -0.01}, b: {Roll: -0.03, Pitch: 0.04}}),
		event(1, map[models.StreamSource]Pose{a: {Roll: 0.01}, b: {Roll: -0.02}, c: {Roll: 0.05, Pitch: 0.02}}),
		event(2, map[models.StreamSource]Pose{c: {Roll: 0.04, Pitch: 0.01}}),
		event(3, map[models.StreamSource]Pose{}),
	}

	e := NewEngine(Config{}, logger.NewTestLogger())

	for i, ev := range events {
		e.AddEvent(ev)

		for _, s := range []models.StreamSource{a, b, c} {
			want := recompute(events[:i+1], s)
			got := e.Adjustment(s)

			assert.InDelta(t, want.Roll, got.Roll, 1e-9, "roll of %s after %d events", s, i+1)
			assert.InDelta(t, want.Pitch, got.Pitch, 1e-9, "pitch of %s after %d events", s, i+1)
		}
	}

	assert.Len(t, e.Events(), len(events))
	assert.Equal(t, []models.StreamSource{a, b, c}, e.Sources())
}

func TestEngineReplayIsIdempotent(t *testing.T) {
	a, b := src("a:2000", 1), src("b:2000", 2)
	events := []Event{
		event(0, map[models.StreamSource]Pose{a: {Roll: 0.1, Pitch: 0.2}, b: {Roll: -0.1}}),
		event(1, map[models.StreamSource]Pose{a: {Roll: 0.05}, b: {Roll: -0.07, Pitch: 0.01}}),
	}

	first := NewEngine(Config{}, logger.NewTestLogger())
	for _, ev := range events {
		first.AddEvent(ev)
	}

	replayed := NewEngine(Config{}, logger.NewTestLogger())
	for _, ev := range first.Events() {
		replayed.AddEvent(ev)
	}

	assert.Equal(t, first.Adjustments(), replayed.Adjustments())
	assert.InDelta(t, first.CropFactor(), replayed.CropFactor(), epsilon)
}

func TestCalibrateOmitsFailedStills(t *testing.T) {
	ctrl := gomock.NewController(t)

	decoder := NewMockDecoder(ctrl)
	estimator := NewMockPoseEstimator(ctrl)

	frame := func(id models.DeviceID) models.CapturedFrame {
		return models.CapturedFrame{DeviceID: id, Width: 4, Height: 2, Encoding: models.FourCCMJPG, Data: []byte{byte(id)}}
	}

	stills := []models.SourcedFrame{
		{Source: src("a:2000", 1), Frame: frame(1)},
		{Source: src("a:2000", 2), Frame: frame(2)},
		{Source: src("b:2000", 1), Frame: frame(3)},
		{Source: src("b:2000", 2), Frame: frame(4)},
		{Source: src("c:2000", 1), Frame: frame(5)},
	}

	rgba := image.NewRGBA(image.Rect(0, 0, 4, 2))
	rgba.Set(0, 0, color.White)

	decoder.EXPECT().Decode(gomock.Any()).DoAndReturn(func(f models.CapturedFrame) (image.Image, error) {
		if f.Data[0] == 2 {
			return nil, errCorruptStill
		}

		return rgba, nil
	}).Times(5)

	calls := 0
	estimator.EXPECT().Detect(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, img *image.Gray, params DetectParams) ([]Pose, error) {
			assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
			assert.Equal(t, uint8(255), img.GrayAt(0, 0).Y)
			assert.InDelta(t, SQ11.FocalLength(), params.FocalLength, epsilon)
			assert.InDelta(t, DefaultMarkerSize, params.MarkerSize, epsilon)

			calls++

			switch calls {
			case 1:
				return []Pose{{Roll: 0.1, Pitch: 0.3}, {Roll: 9, Pitch: 9}}, nil
			case 2:
				return nil, errDetector
			case 3:
				return nil, nil
			default:
				return []Pose{{Roll: -0.1, Pitch: 0.1}}, nil
			}
		}).Times(4)

	e := NewEngine(Config{Estimator: estimator, Decoder: decoder}, logger.NewTestLogger())

	ev, err := e.Calibrate(context.Background(), 7, stills)
	require.NoError(t, err)

	assert.Equal(t, uint32(7), ev.Round)
	assert.Equal(t, map[models.StreamSource]Pose{
		src("a:2000", 1): {Roll: 0.1, Pitch: 0.3},
		src("c:2000", 1): {Roll: -0.1, Pitch: 0.1},
	}, ev.Poses)
	assert.InDelta(t, 0, ev.Roll.Mean(), epsilon)
	assert.InDelta(t, 0.2, ev.Pitch.Mean(), epsilon)
	assert.Empty(t, e.Events(), "calibrate does not add the event")
}

func TestCalibrateStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(Config{}, logger.NewTestLogger())

	_, err := e.Calibrate(ctx, 1, []models.SourcedFrame{{Source: src("a:2000", 1)}})
	require.ErrorIs(t, err, context.Canceled)
}
