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
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/orbit/pkg/capture"
	"github.com/carverauto/orbit/pkg/devices"
	"github.com/carverauto/orbit/pkg/models"
)

// fakeSource replays scripted capture times, then either keeps producing
// live frames every interval or times out.
type fakeSource struct {
	id       models.DeviceID
	times    []time.Time
	interval time.Duration
	failAt   int
	failErr  error

	mu     sync.Mutex
	served int
	closed atomic.Bool
}

func (f *fakeSource) Next() (models.CapturedFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failErr != nil && f.served >= f.failAt {
		return models.CapturedFrame{}, f.failErr
	}

	var at time.Time

	switch {
	case f.served < len(f.times):
		at = f.times[f.served]
	case f.interval > 0:
		time.Sleep(f.interval)

		at = time.Now()
	default:
		time.Sleep(time.Millisecond)

		return models.CapturedFrame{}, capture.ErrTimedOut
	}

	f.served++

	return models.NewCapturedFrame(f.id, 300, 144, models.FourCCMJPG, at, []byte{byte(f.id), byte(f.served)}), nil
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)

	return nil
}

type fakeRegistry struct {
	mu      sync.Mutex
	entries []devices.Entry
	pending []devices.Entry
}

func newFakeRegistry(ids ...models.DeviceID) *fakeRegistry {
	r := &fakeRegistry{}
	for _, id := range ids {
		r.add(id)
	}

	return r
}

func (r *fakeRegistry) add(id models.DeviceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := devices.Entry{Handle: devices.Handle{Index: int(id) - 1}, ID: id}
	r.entries = append(r.entries, e)
	r.pending = append(r.pending, e)
}

func (r *fakeRegistry) Devices() ([]devices.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = nil

	return append([]devices.Entry(nil), r.entries...), nil
}

func (r *fakeRegistry) Added() ([]devices.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := r.pending
	r.pending = nil

	return added, nil
}

func (*fakeRegistry) Removed() []devices.Entry {
	return nil
}

type openerFunc func(req OpenRequest) (FrameSource, error)

func (f openerFunc) Open(req OpenRequest) (FrameSource, error) {
	return f(req)
}
