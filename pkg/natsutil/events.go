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
// Package natsutil publishes station events to NATS JetStream as CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
)

const (
	// DefaultStream is the JetStream stream that carries station events.
	DefaultStream = "ORBIT_EVENTS"

	SubjectSnapshotCompleted  = "orbit.snapshot.completed"
	SubjectCalibrationUpdated = "orbit.calibration.updated"

	eventSource = "orbit/station"

	typeSnapshotCompleted  = "com.carverauto.orbit.snapshot.completed"
	typeCalibrationUpdated = "com.carverauto.orbit.calibration.updated"
)

var errURLRequired = errors.New("nats url is required")

// Config selects the NATS server and stream used for events.
type Config struct {
	Enabled bool       `json:"enabled"`
	URL     string     `json:"url"`
	Stream  string     `json:"stream"`
	Domain  string     `json:"domain,omitempty"`
	TLS     *TLSConfig `json:"tls,omitempty"`
}

// Validate checks an enabled configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.URL == "" {
		return errURLRequired
	}

	return nil
}

// EventPublisher provides methods for publishing CloudEvents to NATS JetStream.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
	now    func() time.Time
}

// NewEventPublisher creates a new EventPublisher for the specified stream.
func NewEventPublisher(js jetstream.JetStream, streamName string) *EventPublisher {
	return &EventPublisher{
		js:     js,
		stream: streamName,
		now:    time.Now,
	}
}

// PublishSnapshotRound publishes a completed snapshot round.
func (p *EventPublisher) PublishSnapshotRound(ctx context.Context, data *models.SnapshotRoundEventData) error {
	return p.publish(ctx, SubjectSnapshotCompleted, typeSnapshotCompleted, data.Timestamp, data)
}

// PublishCalibration publishes the calibration state after a round is folded in.
func (p *EventPublisher) PublishCalibration(ctx context.Context, data *models.CalibrationEventData) error {
	return p.publish(ctx, SubjectCalibrationUpdated, typeCalibrationUpdated, data.Timestamp, data)
}

func (p *EventPublisher) publish(ctx context.Context, subject, eventType string, at time.Time, data interface{}) error {
	if at.IsZero() {
		at = p.now()
	}

	at = at.UTC()

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &at,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", subject, err)
	}

	if _, err := p.js.Publish(ctx, subject, eventBytes); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", subject, err)
	}

	return nil
}

// Subjects lists every subject the publisher writes to.
func Subjects() []string {
	return []string{SubjectSnapshotCompleted, SubjectCalibrationUpdated}
}

// ConnectWithEventPublisher creates a NATS connection with JetStream, makes sure the
// event stream covers the event subjects and returns an EventPublisher.
func ConnectWithEventPublisher(
	ctx context.Context, cfg *Config, log logger.Logger, extraOpts ...nats.Option,
) (*EventPublisher, *nats.Conn, error) {
	nc, err := Connect(cfg, log, extraOpts...)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := CreateEventPublisher(ctx, nc, cfg.Domain, streamName(cfg), Subjects())
	if err != nil {
		nc.Close()

		return nil, nil, err
	}

	return publisher, nc, nil
}

// Connect dials NATS with the configured TLS material and logging handlers.
func Connect(cfg *Config, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	var opts []nats.Option

	if cfg.TLS != nil {
		tlsConf, err := cfg.TLS.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.Name(eventSource),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// CreateEventPublisher creates an EventPublisher for an existing NATS connection,
// with optional JetStream domain, creating or widening the stream as needed.
func CreateEventPublisher(
	ctx context.Context, nc *nats.Conn, domain, stream string, subjects []string,
) (*EventPublisher, error) {
	var (
		js  jetstream.JetStream
		err error
	)

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}
	} else {
		js, err = jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	if err := ensureStream(ctx, js, stream, subjects); err != nil {
		return nil, err
	}

	return NewEventPublisher(js, stream), nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, name string, subjects []string) error {
	s, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", name, err)
		}

		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: subjects,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	streamCfg := s.CachedInfo().Config
	current := len(streamCfg.Subjects)

	for _, subject := range subjects {
		streamCfg.Subjects = ensureSubjectList(streamCfg.Subjects, subject)
	}

	if len(streamCfg.Subjects) == current {
		return nil
	}

	if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("failed to add subjects to stream %s: %w", name, err)
	}

	return nil
}

func streamName(cfg *Config) string {
	if cfg.Stream == "" {
		return DefaultStream
	}

	return cfg.Stream
}

// ensureSubjectList appends subject unless an existing pattern already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether a NATS subject pattern with "*" and ">"
// wildcards matches subject.
func matchesSubject(pattern, subject string) bool {
	p := strings.Split(pattern, ".")
	s := strings.Split(subject, ".")

	for i, token := range p {
		if token == ">" {
			return len(s) > i
		}

		if i >= len(s) {
			return false
		}

		if token != "*" && token != s[i] {
			return false
		}
	}

	return len(p) == len(s)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
