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

package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/orbit/pkg/logger"
)

// RunFunc is one attempt at running a long-lived service. It returns when the
// service fails or ctx is cancelled.
type RunFunc func(ctx context.Context) error

// RunWithRestart keeps run alive until ctx is cancelled. Every failure is logged
// and followed by a fixed delay before the next attempt; a nil return is treated
// the same way because a serve loop is not expected to finish on its own.
//
// Panics are not recovered: they signal broken invariants and must take the
// process down.
func RunWithRestart(ctx context.Context, name string, delay time.Duration, log logger.Logger, run RunFunc) error {
	for attempt := 1; ; attempt++ {
		err := run(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		event := log.Error()
		if err == nil {
			event = log.Warn()
		}

		event.Err(err).
			Str("service", name).
			Int("attempt", attempt).
			Dur("restart_delay", delay).
			Msg("Service stopped, restarting")

		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// IsShutdown reports whether err is the result of a requested shutdown.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
