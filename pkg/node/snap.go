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
	"cmp"
	"errors"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/carverauto/orbit/pkg/capture"
	"github.com/carverauto/orbit/pkg/devices"
	"github.com/carverauto/orbit/pkg/models"
	"github.com/carverauto/orbit/pkg/protocol"
)

// snap captures one still per known device, each as close to target as the
// device's frame pacing allows. Devices that fail are left out.
func (s *Server) snap(conn net.Conn, target time.Time) error {
	stills, err := s.collectStills(target)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Device refresh failed, answering with no stills")
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout.Or(defaultWriteTimeout))); err != nil {
		return err
	}

	return protocol.WriteSnapResponse(conn, protocol.SnapResponse{Stills: stills})
}

func (s *Server) collectStills(target time.Time) ([]models.CapturedFrame, error) {
	entries, err := s.registry.Devices()
	if err != nil {
		return nil, err
	}

	deadline := target.Add(s.config.SnapGrace.Or(defaultSnapGrace))

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		stills = make([]models.CapturedFrame, 0, len(entries))
	)

	for _, e := range entries {
		wg.Add(1)

		go func() {
			defer wg.Done()

			frame, err := s.snapDevice(e, target, deadline)
			if err != nil {
				s.logger.Warn().Err(err).
					Uint32("device_id", uint32(e.ID)).
					Str("device", e.Handle.String()).
					Msg("Device produced no still")

				return
			}

			mu.Lock()
			stills = append(stills, frame)
			mu.Unlock()
		}()
	}

	wg.Wait()

	slices.SortFunc(stills, func(a, b models.CapturedFrame) int { return cmp.Compare(a.DeviceID, b.DeviceID) })

	s.logger.Info().
		Time("target", target).
		Int("devices", len(entries)).
		Int("stills", len(stills)).
		Msg("Snapshot collected")

	return stills, nil
}

func (s *Server) snapDevice(entry devices.Entry, target, deadline time.Time) (models.CapturedFrame, error) {
	src, err := s.opener.Open(OpenRequest{
		Handle:      entry.Handle,
		DeviceID:    entry.ID,
		Format:      s.config.SnapFormat,
		Buffers:     1,
		PollTimeout: s.config.PollTimeout.Or(capture.DefaultPollTimeout),
	})
	if err != nil {
		return models.CapturedFrame{}, err
	}

	defer func() {
		if err := src.Close(); err != nil {
			s.logger.Warn().Err(err).Uint32("device_id", uint32(entry.ID)).Msg("Failed to close snapshot stream")
		}
	}()

	return SelectNearest(target, func() (models.CapturedFrame, error) {
		for {
			if s.now().After(deadline) {
				return models.CapturedFrame{}, errSnapDeadline
			}

			frame, err := src.Next()
			if errors.Is(err, capture.ErrTimedOut) {
				continue
			}

			return frame, err
		}
	})
}
