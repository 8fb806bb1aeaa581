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
	"github.com/carverauto/orbit/pkg/capture"
	"github.com/carverauto/orbit/pkg/logger"
)

// V4L2Prober accepts handles that open and list at least one capture format.
// Metadata and output nodes that share a camera's sysfs entry fail the format
// enumeration and are filtered out.
type V4L2Prober struct {
	logger logger.Logger
}

func NewV4L2Prober(log logger.Logger) *V4L2Prober {
	return &V4L2Prober{logger: log}
}

func (p *V4L2Prober) Probe(handle Handle) bool {
	dev, err := capture.Open(handle.Path, capture.Format{})
	if err != nil {
		p.logger.Debug().Err(err).Str("device", handle.String()).Msg("Probe open failed")

		return false
	}

	defer func() {
		_ = dev.Close()
	}()

	formats, err := dev.Formats()
	if err != nil {
		p.logger.Debug().Err(err).Str("device", handle.String()).Msg("Probe format enumeration failed")

		return false
	}

	return len(formats) > 0
}
