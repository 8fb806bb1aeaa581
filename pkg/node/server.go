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

// Package node serves the capture devices of one host to the station.
//
// The server handles one connection and one request at a time. A stream
// request runs until the station hangs up; a snap request is answered once
// and the connection is closed. Because the loop is sequential a device is
// never streamed and snapped at the same time.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/protocol"
)

// Server is the node capture service.
type Server struct {
	config   *Config
	registry DeviceRegistry
	opener   Opener
	logger   logger.Logger
	now      func() time.Time
}

// NewServer wires a server. cfg is expected to be validated.
func NewServer(cfg *Config, registry DeviceRegistry, opener Opener, log logger.Logger) *Server {
	if opener == nil {
		opener = CaptureOpener{}
	}

	return &Server{
		config:   cfg,
		registry: registry,
		opener:   opener,
		logger:   log,
		now:      time.Now,
	}
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done or accepting fails.
// The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	defer func() {
		_ = ln.Close()
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Node listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("accept: %w", err)
		}

		s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()

	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Debug().Err(err).Str("peer", peer).Msg("Error closing connection")
		}
	}()

	req, err := protocol.ReadRequest(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Warn().Err(err).Str("peer", peer).Msg("Failed to read request")
		}

		return
	}

	s.logger.Info().Str("peer", peer).Str("request", req.Kind.String()).Msg("Request received")

	switch req.Kind {
	case protocol.RequestStream:
		err = s.stream(ctx, conn)
	case protocol.RequestSnap:
		err = s.snap(conn, req.Target)
	default:
		err = fmt.Errorf("%w: %s", errUnknownRequest, req.Kind)
	}

	if err != nil {
		s.logger.Warn().Err(err).Str("peer", peer).Str("request", req.Kind.String()).Msg("Request ended with error")

		return
	}

	s.logger.Info().Str("peer", peer).Str("request", req.Kind.String()).Msg("Request finished")
}
