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

// Package devices tracks which video capture devices are present on a node.
package devices

//go:generate mockgen -destination=mock_devices.go -package=devices github.com/carverauto/orbit/pkg/devices Lister,Prober

import (
	"fmt"

	"github.com/carverauto/orbit/pkg/models"
)

// Handle is the OS name of a capture device. The same physical camera may
// come back under a different handle after a replug.
type Handle struct {
	Index int
	Path  string
}

func (h Handle) String() string {
	if h.Path != "" {
		return h.Path
	}

	return fmt.Sprintf("video%d", h.Index)
}

// Entry is a known device and the ID assigned to it.
type Entry struct {
	Handle Handle
	ID     models.DeviceID
}

// Lister reports the device handles currently present.
type Lister interface {
	List() ([]Handle, error)
}

// Prober decides whether a handle is a usable capture device.
type Prober interface {
	Probe(handle Handle) bool
}
