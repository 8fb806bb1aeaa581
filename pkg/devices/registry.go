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

package devices

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
)

// Registry reconciles the present device handles with the ones seen before.
// A handle gets the next DeviceID the first time it passes the probe and
// keeps it while it stays present. Once the handle disappears its ID is
// retired and never handed out again during this process.
type Registry struct {
	mu     sync.Mutex
	lister Lister
	prober Prober
	logger logger.Logger

	lastID   models.DeviceID
	byHandle map[Handle]models.DeviceID
	byID     map[models.DeviceID]Handle
	rejected map[Handle]struct{}

	added   []Entry
	removed []Entry
}

// NewRegistry returns an empty registry. Nothing is listed until the first refresh.
func NewRegistry(lister Lister, prober Prober, log logger.Logger) *Registry {
	return &Registry{
		lister:   lister,
		prober:   prober,
		logger:   log,
		byHandle: make(map[Handle]models.DeviceID),
		byID:     make(map[models.DeviceID]Handle),
		rejected: make(map[Handle]struct{}),
	}
}

// Refresh lists the present handles and applies the difference with the
// known set. Handles that fail the probe are remembered and not probed again
// until they disappear.
func (r *Registry) Refresh() error {
	present, err := r.lister.List()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	slices.SortFunc(present, func(a, b Handle) int {
		return cmp.Or(cmp.Compare(a.Index, b.Index), cmp.Compare(a.Path, b.Path))
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[Handle]struct{}, len(present))
	for _, h := range present {
		seen[h] = struct{}{}
	}

	for h, id := range r.byHandle {
		if _, ok := seen[h]; ok {
			continue
		}

		r.retire(Entry{Handle: h, ID: id})
	}

	for h := range r.rejected {
		if _, ok := seen[h]; !ok {
			delete(r.rejected, h)
		}
	}

	for _, h := range present {
		if _, ok := r.byHandle[h]; ok {
			continue
		}

		if _, ok := r.rejected[h]; ok {
			continue
		}

		if !r.prober.Probe(h) {
			r.rejected[h] = struct{}{}

			r.logger.Debug().Str("device", h.String()).Msg("Ignoring handle without capture formats")

			continue
		}

		r.lastID++
		entry := Entry{Handle: h, ID: r.lastID}

		r.byHandle[h] = entry.ID
		r.byID[entry.ID] = h
		r.added = append(r.added, entry)

		r.logger.Info().
			Str("device", h.String()).
			Uint32("device_id", uint32(entry.ID)).
			Msg("Capture device added")
	}

	return nil
}

func (r *Registry) retire(e Entry) {
	delete(r.byHandle, e.Handle)
	delete(r.byID, e.ID)

	// An arrival nobody has collected yet is simply dropped.
	before := len(r.added)
	r.added = slices.DeleteFunc(r.added, func(a Entry) bool { return a.ID == e.ID })

	if len(r.added) == before {
		r.removed = append(r.removed, e)
	}

	r.logger.Info().
		Str("device", e.Handle.String()).
		Uint32("device_id", uint32(e.ID)).
		Msg("Capture device removed")
}

// Current returns the known devices ordered by ID.
func (r *Registry) Current() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.byID))
	for id, h := range r.byID {
		entries = append(entries, Entry{Handle: h, ID: id})
	}

	slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })

	return entries
}

// Devices refreshes and returns every known device. Pending arrivals are
// marked collected, so a following Added only reports newer devices.
func (r *Registry) Devices() ([]Entry, error) {
	if err := r.Refresh(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.added = nil
	r.mu.Unlock()

	return r.Current(), nil
}

// Added refreshes and returns the devices that arrived since the previous
// call to Added or Devices.
func (r *Registry) Added() ([]Entry, error) {
	if err := r.Refresh(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	added := r.added
	r.added = nil

	return added, nil
}

// Removed returns the devices retired since the previous call.
func (r *Registry) Removed() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.removed
	r.removed = nil

	return removed
}
