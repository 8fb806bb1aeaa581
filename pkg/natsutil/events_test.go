package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
)

var errTestFixture = errors.New("fixture error")

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:     "adds subject when list empty",
			subjects: nil,
			subject:  SubjectSnapshotCompleted,
			want:     []string{SubjectSnapshotCompleted},
		},
		{
			name:     "keeps list when wildcard matches",
			subjects: []string{"orbit.snapshot.*"},
			subject:  SubjectSnapshotCompleted,
			want:     []string{"orbit.snapshot.*"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"orbit.>"},
			subject:  SubjectCalibrationUpdated,
			want:     []string{"orbit.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"orbit.snapshot.*"},
			subject:  SubjectCalibrationUpdated,
			want:     []string{"orbit.snapshot.*", SubjectCalibrationUpdated},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, result)
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "orbit.snapshot.completed", "orbit.snapshot.completed", true},
		{"single wildcard", "orbit.*.completed", "orbit.snapshot.completed", true},
		{"greater wildcard", "orbit.>", "orbit.snapshot.completed", true},
		{"greater wildcard needs a token", "orbit.snapshot.>", "orbit.snapshot", false},
		{"no match length", "orbit.*", "orbit.snapshot.completed", false},
		{"no match tokens", "events.poller.*", "orbit.snapshot.completed", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats no stream response", nats.ErrNoStreamResponse, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, (&Config{}).Validate())
	require.ErrorIs(t, (&Config{Enabled: true}).Validate(), errURLRequired)
	require.NoError(t, (&Config{Enabled: true, URL: "nats://127.0.0.1:4222"}).Validate())
}

func TestTLSConfigRequiresAllFiles(t *testing.T) {
	_, err := (&TLSConfig{CAFile: "/tmp/ca.pem"}).Build()
	require.ErrorIs(t, err, ErrTLSFilesRequired)
}

func runJetStream(t *testing.T) *server.Server {
	t.Helper()

	s, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go s.Start()

	if !s.ReadyForConnections(10 * time.Second) {
		s.Shutdown()
		t.Fatal("nats server did not start")
	}

	t.Cleanup(s.Shutdown)

	return s
}

func TestPublishToJetStream(t *testing.T) {
	s := runJetStream(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := &Config{Enabled: true, URL: s.ClientURL()}

	publisher, nc, err := ConnectWithEventPublisher(ctx, cfg, logger.NewTestLogger())
	require.NoError(t, err)

	defer nc.Close()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	src := models.StreamSource{Node: "cam-a:2000", DeviceID: 1}

	require.NoError(t, publisher.PublishSnapshotRound(ctx, &models.SnapshotRoundEventData{
		Round:     4,
		Purpose:   "capture",
		Target:    at,
		Nodes:     2,
		Stills:    []models.StillSummary{{Source: src, Width: 1280, Height: 720, Encoding: models.FourCCMJPG, CapturedAt: at, Bytes: 10}},
		Timestamp: at,
	}))

	require.NoError(t, publisher.PublishCalibration(ctx, &models.CalibrationEventData{
		Round:       5,
		Detected:    1,
		Events:      1,
		CropFactor:  0.9,
		Adjustments: []models.StreamAdjustment{{Source: src, Roll: 0.1}},
	}))

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, DefaultStream)
	require.NoError(t, err)

	msg, err := stream.GetLastMsgForSubject(ctx, SubjectSnapshotCompleted)
	require.NoError(t, err)

	var event struct {
		models.CloudEvent
		Data models.SnapshotRoundEventData `json:"data"`
	}

	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, typeSnapshotCompleted, event.Type)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, uint32(4), event.Data.Round)
	require.Len(t, event.Data.Stills, 1)
	assert.Equal(t, src, event.Data.Stills[0].Source)
	require.NotNil(t, event.Time)
	assert.True(t, event.Time.Equal(at))

	msg, err = stream.GetLastMsgForSubject(ctx, SubjectCalibrationUpdated)
	require.NoError(t, err)

	var calibration struct {
		Type string                      `json:"type"`
		Time *time.Time                  `json:"time"`
		Data models.CalibrationEventData `json:"data"`
	}

	require.NoError(t, json.Unmarshal(msg.Data, &calibration))
	assert.Equal(t, typeCalibrationUpdated, calibration.Type)
	assert.Equal(t, uint32(5), calibration.Data.Round)
	// A zero timestamp is replaced with the publish time.
	require.NotNil(t, calibration.Time)
	assert.False(t, calibration.Time.IsZero())
}

func TestCreateEventPublisherWidensExistingStream(t *testing.T) {
	s := runJetStream(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nc, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)

	defer nc.Close()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{Name: "CUSTOM", Subjects: []string{"orbit.snapshot.*"}})
	require.NoError(t, err)

	_, err = CreateEventPublisher(ctx, nc, "", "CUSTOM", Subjects())
	require.NoError(t, err)

	stream, err := js.Stream(ctx, "CUSTOM")
	require.NoError(t, err)
	assert.Equal(t, []string{"orbit.snapshot.*", SubjectCalibrationUpdated}, stream.CachedInfo().Config.Subjects)
}
