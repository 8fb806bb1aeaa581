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
	"sync/atomic"
	"testing"
	"time"

	"github.com/carverauto/orbit/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errServeFailed = errors.New("serve failed")

func TestRunWithRestartRestartsAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32

	run := func(context.Context) error {
		if attempts.Add(1) == 3 {
			cancel()

			return nil
		}

		return errServeFailed
	}

	err := RunWithRestart(ctx, "node", time.Millisecond, logger.NewTestLogger(), run)

	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsShutdown(err))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRunWithRestartStopsDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var attempts atomic.Int32

	run := func(context.Context) error {
		attempts.Add(1)
		cancel()

		return errServeFailed
	}

	start := time.Now()
	err := RunWithRestart(ctx, "node", time.Hour, logger.NewTestLogger(), run)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Less(t, time.Since(start), time.Minute)
}

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger("station", &logger.Config{Level: "warn"})
	require.NoError(t, err)

	impl, ok := log.(*LoggerImpl)
	require.True(t, ok)
	assert.Equal(t, zerolog.WarnLevel, impl.logger.GetLevel())

	_, err = CreateComponentLogger("station", &logger.Config{Level: "nope"})
	require.Error(t, err)
}
