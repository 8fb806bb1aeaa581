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
package station

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
	"github.com/carverauto/orbit/pkg/version"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	maxRequestBody         = 4096
)

// SnapshotRequest is the body of POST /api/snapshots.
type SnapshotRequest struct {
	Purpose string `json:"purpose"`
}

// SnapshotResponse acknowledges a snapshot request.
type SnapshotResponse struct {
	Round   uint32  `json:"round"`
	Purpose Purpose `json:"purpose"`
}

// FlipResponse reports a stream's orientation after a toggle.
type FlipResponse struct {
	Source  models.StreamSource `json:"source"`
	Flipped bool                `json:"flipped"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// APIServer exposes the station over HTTP.
type APIServer struct {
	router  *mux.Router
	station *Station
	hub     *Hub
	logger  logger.Logger
}

// NewAPIServer creates a new API server instance for st.
func NewAPIServer(st *Station, log logger.Logger, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:  mux.NewRouter(),
		station: st,
		logger:  log,
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithPreviewHub serves hub at /ws/preview.
func WithPreviewHub(h *Hub) func(server *APIServer) {
	return func(server *APIServer) {
		server.hub = h
	}
}

// setupRoutes configures the HTTP routes for the API server.
func (s *APIServer) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/snapshots", s.requestSnapshot).Methods(http.MethodPost)
	api.HandleFunc("/rounds", s.getRounds).Methods(http.MethodGet)
	api.HandleFunc("/calibration", s.getCalibration).Methods(http.MethodGet)
	api.HandleFunc("/streams", s.getStreams).Methods(http.MethodGet)
	api.HandleFunc("/streams/{node}/{device}/flip", s.toggleFlip).Methods(http.MethodPost)
	api.HandleFunc("/version", s.getVersion).Methods(http.MethodGet)

	if s.hub != nil {
		s.router.Handle("/ws/preview", s.hub).Methods(http.MethodGet)
	}
}

// Handler returns the routed handler.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *APIServer) Start(ctx context.Context, addr string) error {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *APIServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Station API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Station API shutdown incomplete")
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

func (s *APIServer) requestSnapshot(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest

	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)

			return
		}
	}

	purpose, err := ParsePurpose(req.Purpose)
	if err != nil {
		writeError(w, err.Error()+": "+req.Purpose, http.StatusBadRequest)

		return
	}

	round, err := s.station.RequestSnapshot(purpose)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, http.StatusAccepted, SnapshotResponse{Round: round, Purpose: purpose})
}

func (s *APIServer) getRounds(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.station.Rounds())
}

func (s *APIServer) getCalibration(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.station.Calibration())
}

func (s *APIServer) getStreams(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.station.Streams())
}

func (s *APIServer) toggleFlip(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := strconv.ParseUint(vars["device"], 10, 32)
	if err != nil {
		writeError(w, "invalid device id: "+vars["device"], http.StatusBadRequest)

		return
	}

	src := models.StreamSource{Node: vars["node"], DeviceID: models.DeviceID(id)}

	flipped, err := s.station.ToggleFlip(src)
	if errors.Is(err, ErrUnknownStream) {
		writeError(w, err.Error()+": "+src.String(), http.StatusNotFound)

		return
	}

	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, http.StatusOK, FlipResponse{Source: src, Flipped: flipped})
}

func (s *APIServer) getVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, version.Get())
}

// writeJSON writes data as a JSON response with the given status.
func (s *APIServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(statusCode)

	errResponse := ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		// Fallback in case encoding fails
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
