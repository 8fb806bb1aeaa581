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
// Package station is the coordinator application: it consumes the
// coordinator client's messages, runs calibration and capture rounds,
// publishes their results and serves the control API and preview feed.
package station

import (
	"bytes"
	"cmp"
	"context"
	"image/jpeg"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/orbit/pkg/calibration"
	"github.com/carverauto/orbit/pkg/coordinator"
	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
	"github.com/carverauto/orbit/pkg/panorama"
)

//go:generate mockgen -destination=mock_station.go -package=station github.com/carverauto/orbit/pkg/station Publisher

const (
	roundQueue     = 8
	roundHistory   = 32
	previewQuality = 80
)

// Purpose says what a snapshot round is for.
type Purpose string

const (
	PurposeCapture     Purpose = "capture"
	PurposeCalibration Purpose = "calibration"
)

// ParsePurpose accepts "capture" and "calibration"; empty means capture.
func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(s) {
	case "", PurposeCapture:
		return PurposeCapture, nil
	case PurposeCalibration:
		return PurposeCalibration, nil
	default:
		return "", ErrUnknownPurpose
	}
}

// Coordinator is the part of coordinator.Client the station drives.
type Coordinator interface {
	Messages() <-chan coordinator.Message
	RequestSnapshot() uint32
}

// Publisher receives round and calibration events; natsutil.EventPublisher implements it.
type Publisher interface {
	PublishSnapshotRound(ctx context.Context, data *models.SnapshotRoundEventData) error
	PublishCalibration(ctx context.Context, data *models.CalibrationEventData) error
}

// StreamInfo is what the station knows about a live stream. Orientation is
// the turn applied to its stills.
type StreamInfo struct {
	Source      models.StreamSource  `json:"source"`
	Width       uint32               `json:"width"`
	Height      uint32               `json:"height"`
	Encoding    models.FourCC        `json:"encoding"`
	LastFrame   time.Time            `json:"last_frame"`
	Frames      uint64               `json:"frames"`
	Orientation panorama.Orientation `json:"orientation"`
}

// RoundSummary records the outcome of a processed round.
type RoundSummary struct {
	Round       uint32    `json:"round"`
	Purposes    []Purpose `json:"purposes"`
	Target      time.Time `json:"target"`
	Nodes       int       `json:"nodes"`
	Stills      int       `json:"stills"`
	Detected    int       `json:"detected,omitempty"`
	OutputDir   string    `json:"output_dir,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// CalibrationState is the current calibration as served by the API.
type CalibrationState struct {
	Events      int                       `json:"events"`
	CropFactor  float64                   `json:"crop_factor"`
	Adjustments []models.StreamAdjustment `json:"adjustments"`
}

// Station ties the coordinator client to calibration, composition,
// publishing and the preview hub.
type Station struct {
	coord     Coordinator
	engine    *calibration.Engine
	composer  *panorama.Composer
	publisher Publisher
	hub       *Hub
	logger    logger.Logger
	now       func() time.Time

	mu       sync.Mutex
	purposes map[uint32]map[Purpose]struct{}
	streams  map[models.StreamSource]*StreamInfo
	flipped  map[models.StreamSource]struct{}
	rounds   []RoundSummary
}

// NewStation builds a station around a coordinator and a calibration engine.
func NewStation(coord Coordinator, engine *calibration.Engine, log logger.Logger, options ...func(*Station)) *Station {
	s := &Station{
		coord:    coord,
		engine:   engine,
		logger:   log,
		now:      time.Now,
		purposes: make(map[uint32]map[Purpose]struct{}),
		streams:  make(map[models.StreamSource]*StreamInfo),
		flipped:  make(map[models.StreamSource]struct{}),
	}

	for _, o := range options {
		o(s)
	}

	return s
}

// WithComposer enables writing capture rounds to disk.
func WithComposer(c *panorama.Composer) func(*Station) {
	return func(s *Station) {
		s.composer = c
	}
}

// WithPublisher sends round and calibration events to p.
func WithPublisher(p Publisher) func(*Station) {
	return func(s *Station) {
		s.publisher = p
	}
}

// WithHub forwards previews and round notices to preview clients.
func WithHub(h *Hub) func(*Station) {
	return func(s *Station) {
		s.hub = h
	}
}

// RequestSnapshot asks for a snapshot round and returns its id. Requests
// made while a round is pending join it, so one round may carry several
// purposes.
func (s *Station) RequestSnapshot(p Purpose) (uint32, error) {
	if _, err := ParsePurpose(string(p)); err != nil {
		return 0, err
	}

	// Held across the request so the round cannot be processed before its
	// purpose is recorded.
	s.mu.Lock()
	defer s.mu.Unlock()

	round := s.coord.RequestSnapshot()

	set, ok := s.purposes[round]
	if !ok {
		set = make(map[Purpose]struct{}, 1)
		s.purposes[round] = set
	}

	set[p] = struct{}{}

	s.logger.Info().Uint32("round", round).Str("purpose", string(p)).Msg("Snapshot requested")

	return round, nil
}

// Streams lists live streams ordered by source.
func (s *Station) Streams() []StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StreamInfo, 0, len(s.streams))
	for _, info := range s.streams {
		out = append(out, *info)
	}

	slices.SortFunc(out, func(a, b StreamInfo) int {
		return cmp.Or(cmp.Compare(a.Source.Node, b.Source.Node), cmp.Compare(a.Source.DeviceID, b.Source.DeviceID))
	})

	return out
}

// ToggleFlip marks a live stream as mounted upside down, or clears the
// mark, and returns the new state. The mark outlives the stream so a
// camera that reconnects keeps it.
func (s *Station) ToggleFlip(src models.StreamSource) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.streams[src]
	if !ok {
		return false, ErrUnknownStream
	}

	_, flipped := s.flipped[src]
	if flipped {
		delete(s.flipped, src)
	} else {
		s.flipped[src] = struct{}{}
	}

	info.Orientation.Flipped = !flipped

	s.logger.Info().Str("stream", src.String()).Bool("flipped", !flipped).Msg("Stream orientation changed")

	return !flipped, nil
}

// Flipped reports whether src is marked as mounted upside down.
func (s *Station) Flipped(src models.StreamSource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.flipped[src]

	return ok
}

// Rounds returns the most recent processed rounds, oldest first.
func (s *Station) Rounds() []RoundSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RoundSummary, len(s.rounds))
	copy(out, s.rounds)

	return out
}

// Calibration reports the engine's current adjustments.
func (s *Station) Calibration() CalibrationState {
	return CalibrationState{
		Events:      len(s.engine.Events()),
		CropFactor:  s.engine.CropFactor(),
		Adjustments: s.adjustments(),
	}
}

func (s *Station) adjustments() []models.StreamAdjustment {
	sources := s.engine.Sources()
	out := make([]models.StreamAdjustment, 0, len(sources))

	for _, src := range sources {
		a := s.engine.Adjustment(src)
		out = append(out, models.StreamAdjustment{Source: src, Roll: a.Roll, Pitch: a.Pitch})
	}

	return out
}

// Run dispatches coordinator messages until ctx ends or the message
// channel closes. Rounds are processed one at a time, in completion order,
// off the dispatch path so previews keep flowing.
func (s *Station) Run(ctx context.Context) error {
	rounds := make(chan coordinator.SnapshotRoundCompleted, roundQueue)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for r := range rounds {
			s.processRound(ctx, r)
		}
	}()

	defer func() {
		close(rounds)
		wg.Wait()
	}()

	messages := s.coord.Messages()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			switch m := msg.(type) {
			case coordinator.NewPreviewImage:
				s.handlePreview(m)
			case coordinator.StreamDeregistered:
				s.handleDeregistered(m)
			case coordinator.SnapshotRoundCompleted:
				select {
				case rounds <- m:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (s *Station) handlePreview(m coordinator.NewPreviewImage) {
	s.mu.Lock()

	info, ok := s.streams[m.Source]
	if !ok {
		info = &StreamInfo{Source: m.Source}
		s.streams[m.Source] = info

		s.logger.Info().Str("stream", m.Source.String()).Msg("Stream registered")
	}

	_, flipped := s.flipped[m.Source]

	info.Width = m.Frame.Width
	info.Height = m.Frame.Height
	info.Orientation = panorama.OrientationFor(int(m.Frame.Width), int(m.Frame.Height), flipped)
	info.Encoding = m.Frame.Encoding
	info.LastFrame = m.Frame.CapturedAt
	info.Frames++

	s.mu.Unlock()

	if s.hub == nil || s.hub.Clients() == 0 {
		return
	}

	img, err := previewJPEG(m)
	if err != nil {
		s.logger.Warn().Err(err).Str("stream", m.Source.String()).Msg("Failed to encode preview")

		return
	}

	src, at := m.Source, m.Frame.CapturedAt

	s.hub.Broadcast(&PreviewMessage{
		Type:       MessageFrame,
		Stream:     &src,
		CapturedAt: &at,
		Image:      img,
		Timestamp:  s.now().UTC(),
	})
}

// previewJPEG reuses JPEG payloads as they are and encodes anything else.
func previewJPEG(m coordinator.NewPreviewImage) ([]byte, error) {
	if m.Frame.Encoding == models.FourCCMJPG || m.Frame.Encoding == models.FourCCJPEG {
		return m.Frame.Data, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, m.Image, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (s *Station) handleDeregistered(m coordinator.StreamDeregistered) {
	s.mu.Lock()
	delete(s.streams, m.Source)
	s.mu.Unlock()

	s.logger.Info().Str("stream", m.Source.String()).Msg("Stream deregistered")

	if s.hub != nil {
		src := m.Source
		s.hub.Broadcast(&PreviewMessage{Type: MessageDeregistered, Stream: &src, Timestamp: s.now().UTC()})
	}
}

func (s *Station) takePurposes(round uint32) []Purpose {
	s.mu.Lock()
	set := s.purposes[round]
	delete(s.purposes, round)
	s.mu.Unlock()

	if len(set) == 0 {
		return []Purpose{PurposeCapture}
	}

	out := make([]Purpose, 0, len(set))
	for p := range set {
		out = append(out, p)
	}

	slices.Sort(out)

	return out
}

func (s *Station) processRound(ctx context.Context, r coordinator.SnapshotRoundCompleted) {
	purposes := s.takePurposes(r.Round)
	stills := r.Sourced()

	summary := RoundSummary{
		Round:    r.Round,
		Purposes: purposes,
		Target:   r.Target,
		Nodes:    len(r.Stills),
		Stills:   len(stills),
	}

	log := s.logger.With().Uint32("round", r.Round).Logger()

	// Calibration runs first so a capture in the same round uses it.
	if slices.Contains(purposes, PurposeCalibration) {
		summary.Detected = s.calibrate(ctx, r.Round, stills)
	}

	if slices.Contains(purposes, PurposeCapture) && s.composer != nil {
		res, err := s.composer.Compose(ctx, r.Round, r.Target, stills, s.engine, s)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write capture round")
		}

		summary.OutputDir = res.Dir
	}

	summary.CompletedAt = s.now().UTC()

	s.mu.Lock()
	s.rounds = append(s.rounds, summary)
	if len(s.rounds) > roundHistory {
		s.rounds = append([]RoundSummary(nil), s.rounds[len(s.rounds)-roundHistory:]...)
	}
	s.mu.Unlock()

	log.Info().
		Str("purpose", joinPurposes(purposes)).
		Int("nodes", summary.Nodes).
		Int("stills", summary.Stills).
		Msg("Snapshot round processed")

	s.publishRound(ctx, r, &summary)

	if s.hub != nil {
		round := r.Round
		s.hub.Broadcast(&PreviewMessage{
			Type:      MessageRound,
			Round:     &round,
			Purpose:   joinPurposes(purposes),
			Stills:    summary.Stills,
			OutputDir: summary.OutputDir,
			Timestamp: summary.CompletedAt,
		})
	}
}

// calibrate folds a round into the engine and returns how many streams
// showed a marker.
func (s *Station) calibrate(ctx context.Context, round uint32, stills []models.SourcedFrame) int {
	event, err := s.engine.Calibrate(ctx, round, stills)
	if err != nil {
		s.logger.Warn().Err(err).Uint32("round", round).Msg("Calibration abandoned")

		return 0
	}

	if len(event.Poses) == 0 {
		s.logger.Warn().Uint32("round", round).Msg("No marker detected in calibration round")

		return 0
	}

	s.engine.AddEvent(event)

	if s.publisher != nil {
		data := &models.CalibrationEventData{
			Round:       round,
			Detected:    len(event.Poses),
			MeanRoll:    event.Roll.Mean(),
			MeanPitch:   event.Pitch.Mean(),
			Events:      len(s.engine.Events()),
			CropFactor:  s.engine.CropFactor(),
			Adjustments: s.adjustments(),
			Timestamp:   s.now().UTC(),
		}

		if err := s.publisher.PublishCalibration(ctx, data); err != nil {
			s.logger.Warn().Err(err).Uint32("round", round).Msg("Failed to publish calibration event")
		}
	}

	return len(event.Poses)
}

func (s *Station) publishRound(ctx context.Context, r coordinator.SnapshotRoundCompleted, summary *RoundSummary) {
	if s.publisher == nil {
		return
	}

	sourced := r.Sourced()
	stills := make([]models.StillSummary, 0, len(sourced))

	for _, sf := range sourced {
		stills = append(stills, models.StillSummary{
			Source:     sf.Source,
			Width:      sf.Frame.Width,
			Height:     sf.Frame.Height,
			Encoding:   sf.Frame.Encoding,
			CapturedAt: sf.Frame.CapturedAt,
			Bytes:      len(sf.Frame.Data),
		})
	}

	data := &models.SnapshotRoundEventData{
		Round:     r.Round,
		Purpose:   joinPurposes(summary.Purposes),
		Target:    r.Target,
		Nodes:     summary.Nodes,
		Stills:    stills,
		OutputDir: summary.OutputDir,
		Timestamp: summary.CompletedAt,
	}

	if err := s.publisher.PublishSnapshotRound(ctx, data); err != nil {
		s.logger.Warn().Err(err).Uint32("round", r.Round).Msg("Failed to publish snapshot event")
	}
}

func joinPurposes(purposes []Purpose) string {
	parts := make([]string, len(purposes))
	for i, p := range purposes {
		parts[i] = string(p)
	}

	return strings.Join(parts, ",")
}
