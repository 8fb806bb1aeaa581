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
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/carverauto/orbit/pkg/capture"
	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
	"github.com/carverauto/orbit/pkg/protocol"
)

const (
	defaultStreamWidth         = 300
	defaultStreamHeight        = 144
	defaultSnapWidth           = 1280
	defaultSnapHeight          = 720
	defaultStreamBuffers       = 1
	defaultDeviceCheckInterval = time.Second
	defaultSnapGrace           = 5 * time.Second
	defaultRestartDelay        = 5 * time.Second
	defaultWriteTimeout        = 10 * time.Second
)

// Config is the capture node configuration.
type Config struct {
	ListenAddr          string          `json:"listen_addr"`
	StreamFormat        capture.Format  `json:"stream_format"`
	SnapFormat          capture.Format  `json:"snap_format"`
	StreamBuffers       uint32          `json:"stream_buffers"`
	DeviceCheckInterval models.Duration `json:"device_check_interval"`
	PollTimeout         models.Duration `json:"poll_timeout"`
	SnapGrace           models.Duration `json:"snap_grace"`
	WriteTimeout        models.Duration `json:"write_timeout"`
	RestartDelay        models.Duration `json:"restart_delay"`
	SysfsRoot           string          `json:"sysfs_root,omitempty"`
	DevRoot             string          `json:"dev_root,omitempty"`
	Logging             *logger.Config  `json:"logging,omitempty"`
}

// DefaultConfig returns a config with every default filled in.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()

	return cfg
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":" + strconv.Itoa(protocol.DefaultPort)
	}

	if c.StreamFormat == (capture.Format{}) {
		c.StreamFormat = capture.Format{Width: defaultStreamWidth, Height: defaultStreamHeight, Encoding: models.FourCCMJPG}
	}

	if c.SnapFormat == (capture.Format{}) {
		c.SnapFormat = capture.Format{Width: defaultSnapWidth, Height: defaultSnapHeight, Encoding: models.FourCCMJPG}
	}

	if c.StreamBuffers == 0 {
		c.StreamBuffers = defaultStreamBuffers
	}

	if c.DeviceCheckInterval <= 0 {
		c.DeviceCheckInterval = models.Duration(defaultDeviceCheckInterval)
	}

	if c.PollTimeout <= 0 {
		c.PollTimeout = models.Duration(capture.DefaultPollTimeout)
	}

	if c.SnapGrace <= 0 {
		c.SnapGrace = models.Duration(defaultSnapGrace)
	}

	if c.WriteTimeout <= 0 {
		c.WriteTimeout = models.Duration(defaultWriteTimeout)
	}

	if c.RestartDelay <= 0 {
		c.RestartDelay = models.Duration(defaultRestartDelay)
	}
}

// Validate implements config.Validator. Unset fields get their defaults.
func (c *Config) Validate() error {
	c.applyDefaults()

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", errInvalidListenAddr, err)
	}

	for name, f := range map[string]capture.Format{"stream_format": c.StreamFormat, "snap_format": c.SnapFormat} {
		if f.Width == 0 || f.Height == 0 || f.Encoding == (models.FourCC{}) {
			return fmt.Errorf("%s: %w", name, errInvalidFormat)
		}
	}

	if c.Logging != nil {
		return c.Logging.Validate()
	}

	return nil
}
