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

// Package coordinator drives the capture nodes from the station side.
//
// The client alternates between two phases. While streaming it holds one
// preview connection per node and reports decoded frames. A snapshot
// request ends the phase: every preview connection is closed, each node is
// asked for stills at a shared target instant, and the collected stills are
// reported as one round before streaming resumes.
package coordinator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
	"github.com/carverauto/orbit/pkg/protocol"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultRetryDelay  = time.Second
	defaultSnapDelay   = 500 * time.Millisecond
	defaultSnapTimeout = 15 * time.Second
	messageBuffer      = 64
)

// Config tunes the client.
type Config struct {
	Nodes []string
	// DialTimeout bounds connection setup.
	DialTimeout time.Duration
	// RetryDelay is the pause before reconnecting a failed preview stream.
	RetryDelay time.Duration
	// SnapDelay is how far in the future the shared snapshot target lies.
	SnapDelay time.Duration
	// SnapTimeout bounds a node's snapshot answer, counted from the target.
	SnapTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c

	if out.DialTimeout <= 0 {
		out.DialTimeout = defaultDialTimeout
	}

	if out.RetryDelay <= 0 {
		out.RetryDelay = defaultRetryDelay
	}

	if out.SnapDelay <= 0 {
		out.SnapDelay = defaultSnapDelay
	}

	if out.SnapTimeout <= 0 {
		out.SnapTimeout = defaultSnapTimeout
	}

	return out
}

// Client connects to every configured node.
type Client struct {
	config   Config
	decoder  Decoder
	logger   logger.Logger
	dialer   net.Dialer
	messages chan Message
	now      func() time.Time

	// epoch counts snapshot requests. Preview workers compare it with the
	// value they started under to know their phase is over.
	epoch atomic.Uint32

	mu      sync.Mutex
	phase   chan struct{}
	pending bool
	round   uint32
}

// NewClient builds a client. A nil decoder selects FrameDecoder.
func NewClient(cfg Config, decoder Decoder, log logger.Logger) (*Client, error) {
	if len(cfg.Nodes) == 0 {
		return nil, errNoNodes
	}

	if decoder == nil {
		decoder = FrameDecoder{}
	}

	cfg = cfg.withDefaults()

	return &Client{
		config:   cfg,
		decoder:  decoder,
		logger:   log,
		dialer:   net.Dialer{Timeout: cfg.DialTimeout},
		messages: make(chan Message, messageBuffer),
		now:      time.Now,
		phase:    make(chan struct{}),
	}, nil
}

// Messages is the stream of client events. It is closed when Run returns.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// RequestSnapshot ends the current streaming phase and returns the round
// the stills will be reported under. Requests made before the round's
// target is fixed share it.
func (c *Client) RequestSnapshot() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending {
		c.pending = true
		c.epoch.Add(1)
		close(c.phase)
	}

	return c.round
}

// currentPhase returns the round being streamed and the channel that
// closes when a snapshot is requested for it.
func (c *Client) currentPhase() (uint32, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.round, c.phase
}

// takeRound closes the round being shuttered to further requests. It runs
// before the snapshot target is fixed, so any request answered with the old
// round was made before the target; later requests get the next round and
// end the next streaming phase at once.
func (c *Client) takeRound() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = false
	c.phase = make(chan struct{})
	c.round = c.epoch.Load()
}

// Run alternates streaming and snapshot phases until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.messages)

	for {
		round, phase := c.currentPhase()

		c.logger.Info().Uint32("round", round).Int("nodes", len(c.config.Nodes)).Msg("Streaming previews")

		var wg sync.WaitGroup

		for _, node := range c.config.Nodes {
			wg.Add(1)

			go func() {
				defer wg.Done()

				c.streamNode(ctx, node, round, phase)
			}()
		}

		wg.Wait()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.takeRound()

		target := c.now().UTC().Add(c.config.SnapDelay)
		stills := c.shutter(ctx, target)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		done := SnapshotRoundCompleted{Round: round, Target: target, Stills: stills}

		c.logger.Info().
			Uint32("round", round).
			Int("nodes", len(stills)).
			Int("stills", done.Count()).
			Msg("Snapshot round completed")

		select {
		case c.messages <- done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) phaseOver(ctx context.Context, round uint32) bool {
	return ctx.Err() != nil || c.epoch.Load() != round
}

func (c *Client) streamNode(ctx context.Context, node string, round uint32, phase <-chan struct{}) {
	log := c.logger.With().Str("node", node).Logger()

	for !c.phaseOver(ctx, round) {
		err := c.streamOnce(ctx, node, round, phase)
		if c.phaseOver(ctx, round) {
			return
		}

		log.Warn().Err(err).Dur("retry_delay", c.config.RetryDelay).Msg("Preview stream lost")

		timer := time.NewTimer(c.config.RetryDelay)

		select {
		case <-timer.C:
		case <-phase:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
		}
	}
}

func (c *Client) streamOnce(ctx context.Context, node string, round uint32, phase <-chan struct{}) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", node)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	// Reads are interrupted by closing the connection once the phase ends.
	finished := make(chan struct{})
	defer close(finished)

	go func() {
		select {
		case <-phase:
		case <-ctx.Done():
		case <-finished:
		}

		_ = conn.Close()
	}()

	if err := protocol.WriteRequest(conn, protocol.StreamRequest()); err != nil {
		return fmt.Errorf("send stream request: %w", err)
	}

	c.logger.Info().Str("node", node).Msg("Preview stream connected")

	live := make(map[models.DeviceID]struct{})

	defer func() {
		if c.phaseOver(ctx, round) {
			return
		}

		for id := range live {
			c.emit(ctx, phase, StreamDeregistered{Source: models.StreamSource{Node: node, DeviceID: id}})
		}
	}()

	r := bufio.NewReader(conn)

	for {
		resp, err := protocol.ReadStreamResponse(r)
		if err != nil {
			if c.phaseOver(ctx, round) {
				return nil
			}

			if errors.Is(err, net.ErrClosed) {
				err = fmt.Errorf("connection closed: %w", err)
			}

			return err
		}

		source := models.StreamSource{Node: node, DeviceID: resp.DeviceID}

		switch resp.Kind {
		case protocol.ResponseStop:
			delete(live, resp.DeviceID)

			c.emit(ctx, phase, StreamDeregistered{Source: source})
		case protocol.ResponseFrame:
			live[resp.DeviceID] = struct{}{}

			img, err := c.decoder.Decode(resp.Frame)
			if err != nil {
				c.logger.Debug().Err(err).Str("stream", source.String()).Msg("Dropping undecodable preview")

				continue
			}

			c.emit(ctx, phase, NewPreviewImage{Source: source, Image: img, Frame: resp.Frame})
		}
	}
}

// emit delivers msg unless the phase or the client ends first.
func (c *Client) emit(ctx context.Context, phase <-chan struct{}, msg Message) {
	select {
	case c.messages <- msg:
	case <-phase:
	case <-ctx.Done():
	}
}

// shutter asks every node for stills at target in parallel. Failed nodes
// are logged and left out; the order of the configured nodes is kept.
func (c *Client) shutter(ctx context.Context, target time.Time) []NodeStills {
	results := make([]*NodeStills, len(c.config.Nodes))

	var wg sync.WaitGroup

	for i, node := range c.config.Nodes {
		wg.Add(1)

		go func() {
			defer wg.Done()

			resp, err := c.snapNode(ctx, node, target)
			if err != nil {
				c.logger.Warn().Err(err).Str("node", node).Msg("Node returned no stills")

				return
			}

			results[i] = &NodeStills{Node: node, Stills: resp.Stills}
		}()
	}

	wg.Wait()

	stills := make([]NodeStills, 0, len(results))

	for _, r := range results {
		if r != nil {
			stills = append(stills, *r)
		}
	}

	return stills
}

func (c *Client) snapNode(ctx context.Context, node string, target time.Time) (protocol.SnapResponse, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", node)
	if err != nil {
		return protocol.SnapResponse{}, fmt.Errorf("dial: %w", err)
	}

	defer func() {
		_ = conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	if err := conn.SetDeadline(target.Add(c.config.SnapTimeout)); err != nil {
		return protocol.SnapResponse{}, err
	}

	if err := protocol.WriteRequest(conn, protocol.SnapRequest(target)); err != nil {
		return protocol.SnapResponse{}, fmt.Errorf("send snap request: %w", err)
	}

	resp, err := protocol.ReadSnapResponse(bufio.NewReader(conn))
	if err != nil {
		return protocol.SnapResponse{}, fmt.Errorf("read snap response: %w", err)
	}

	return resp, nil
}
