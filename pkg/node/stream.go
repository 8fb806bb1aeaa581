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

package node

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/orbit/pkg/capture"
	"github.com/carverauto/orbit/pkg/devices"
	"github.com/carverauto/orbit/pkg/models"
	"github.com/carverauto/orbit/pkg/protocol"
)

// streamSession is the state shared by the device workers of one streaming
// connection. Writes are serialized per message so a record and its payload
// are never interleaved with another device's frame.
type streamSession struct {
	conn         net.Conn
	writeTimeout time.Duration

	mu       sync.Mutex
	stopped  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	workers  sync.WaitGroup
}

func newStreamSession(conn net.Conn, writeTimeout time.Duration) *streamSession {
	return &streamSession{
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// halt asks every worker of the session to finish.
func (ss *streamSession) halt() {
	ss.stopOnce.Do(func() {
		ss.stopped.Store(true)
		close(ss.done)
	})
}

func (ss *streamSession) send(resp protocol.StreamResponse) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if err := ss.conn.SetWriteDeadline(time.Now().Add(ss.writeTimeout)); err != nil {
		ss.halt()

		return err
	}

	if err := protocol.WriteStreamResponse(ss.conn, resp); err != nil {
		// A failed write leaves the connection unusable for every worker.
		ss.halt()

		return err
	}

	return nil
}

func (s *Server) stream(ctx context.Context, conn net.Conn) error {
	ss := newStreamSession(conn, s.config.WriteTimeout.Or(defaultWriteTimeout))

	stop := context.AfterFunc(ctx, ss.halt)
	defer stop()

	// The station never sends anything after the request, so a read only
	// returns once it hangs up.
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)

		_, _ = io.Copy(io.Discard, conn)

		ss.halt()
	}()

	defer func() {
		_ = conn.SetReadDeadline(time.Now())

		<-readerDone
	}()

	entries, err := s.registry.Devices()
	if err != nil {
		ss.halt()

		return err
	}

	s.startWorkers(ss, entries)

	ticker := time.NewTicker(s.config.DeviceCheckInterval.Or(defaultDeviceCheckInterval))
	defer ticker.Stop()

	for !ss.stopped.Load() {
		select {
		case <-ss.done:
		case <-ticker.C:
			added, err := s.registry.Added()
			if err != nil {
				s.logger.Warn().Err(err).Msg("Device refresh failed")

				continue
			}

			for _, e := range s.registry.Removed() {
				s.logger.Info().Uint32("device_id", uint32(e.ID)).Str("device", e.Handle.String()).
					Msg("Device left while streaming")
			}

			s.startWorkers(ss, added)
		}
	}

	ss.workers.Wait()

	return nil
}

func (s *Server) startWorkers(ss *streamSession, entries []devices.Entry) {
	for _, e := range entries {
		ss.workers.Add(1)

		go func() {
			defer ss.workers.Done()

			s.streamDevice(ss, e)
		}()
	}
}

func (s *Server) streamDevice(ss *streamSession, entry devices.Entry) {
	log := s.logger.With().
		Uint32("device_id", uint32(entry.ID)).
		Str("device", entry.Handle.String()).
		Logger()

	src, err := s.opener.Open(OpenRequest{
		Handle:      entry.Handle,
		DeviceID:    entry.ID,
		Format:      s.config.StreamFormat,
		Buffers:     s.config.StreamBuffers,
		PollTimeout: s.config.PollTimeout.Or(capture.DefaultPollTimeout),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to start device stream")
		s.sendStop(ss, entry.ID)

		return
	}

	defer func() {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close device stream")
		}
	}()

	log.Info().Msg("Streaming device")

	for !ss.stopped.Load() {
		frame, err := src.Next()
		if errors.Is(err, capture.ErrTimedOut) {
			continue
		}

		if err != nil {
			log.Warn().Err(err).Msg("Device stream ended")
			s.sendStop(ss, entry.ID)

			return
		}

		if err := ss.send(protocol.FrameResponse(frame)); err != nil {
			log.Debug().Err(err).Msg("Station connection lost")

			return
		}
	}
}

func (s *Server) sendStop(ss *streamSession, id models.DeviceID) {
	if ss.stopped.Load() {
		return
	}

	if err := ss.send(protocol.StopResponse(id)); err != nil {
		s.logger.Debug().Err(err).Uint32("device_id", uint32(id)).Msg("Failed to send stop")
	}
}
