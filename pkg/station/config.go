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
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/carverauto/orbit/pkg/calibration"
	"github.com/carverauto/orbit/pkg/coordinator"
	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
	"github.com/carverauto/orbit/pkg/natsutil"
	"github.com/carverauto/orbit/pkg/protocol"
)

const (
	defaultListenAddr   = ":8090"
	defaultOutputDir    = "/var/lib/orbit/rounds"
	defaultRestartDelay = 5 * time.Second
)

// CameraConfig describes the still geometry. HFOV is in degrees.
type CameraConfig struct {
	HFOV   float64 `json:"hfov"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectorConfig selects the external marker detector.
type DetectorConfig struct {
	Command string          `json:"command"`
	Args    []string        `json:"args"`
	Timeout models.Duration `json:"timeout"`
}

// Config is the station configuration file.
type Config struct {
	Nodes        []string        `json:"nodes"`
	DialTimeout  models.Duration `json:"dial_timeout"`
	RetryDelay   models.Duration `json:"retry_delay"`
	SnapDelay    models.Duration `json:"snap_delay"`
	SnapTimeout  models.Duration `json:"snap_timeout"`
	ListenAddr   string          `json:"listen_addr"`
	OutputDir    string          `json:"output_dir"`
	Camera       CameraConfig    `json:"camera"`
	MarkerSize   float64         `json:"marker_size"`
	Detector     DetectorConfig  `json:"detector"`
	NATS         natsutil.Config `json:"nats"`
	RestartDelay models.Duration `json:"restart_delay"`
	Logging      *logger.Config  `json:"logging"`
}

// DefaultConfig returns a configuration for a single node on localhost
// with SQ11 stills.
func DefaultConfig() *Config {
	return &Config{
		Nodes:      []string{net.JoinHostPort("127.0.0.1", strconv.Itoa(protocol.DefaultPort))},
		ListenAddr: defaultListenAddr,
		OutputDir:  defaultOutputDir,
		Camera: CameraConfig{
			HFOV:   calibration.SQ11.HorizontalFOV * 180 / math.Pi,
			Width:  calibration.SQ11.Width,
			Height: calibration.SQ11.Height,
		},
		MarkerSize: calibration.DefaultMarkerSize,
		NATS:       natsutil.Config{Stream: natsutil.DefaultStream},
	}
}

// Validate fills unset fields with defaults and rejects unusable values.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return errNodesRequired
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidListenAddr, c.ListenAddr, err)
	}

	if c.OutputDir == "" {
		return errOutputDirRequired
	}

	if c.Camera == (CameraConfig{}) {
		c.Camera = DefaultConfig().Camera
	}

	if c.Camera.HFOV <= 0 || c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errInvalidCamera
	}

	if c.MarkerSize <= 0 {
		c.MarkerSize = calibration.DefaultMarkerSize
	}

	if c.NATS.Stream == "" {
		c.NATS.Stream = natsutil.DefaultStream
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	return c.NATS.Validate()
}

// CoordinatorConfig converts the node settings for the coordinator client.
func (c *Config) CoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		Nodes:       c.Nodes,
		DialTimeout: time.Duration(c.DialTimeout),
		RetryDelay:  time.Duration(c.RetryDelay),
		SnapDelay:   time.Duration(c.SnapDelay),
		SnapTimeout: time.Duration(c.SnapTimeout),
	}
}

// CameraParameters converts the camera section to radians.
func (c *Config) CameraParameters() calibration.CameraParameters {
	return calibration.CameraParameters{
		HorizontalFOV: c.Camera.HFOV * math.Pi / 180,
		Width:         c.Camera.Width,
		Height:        c.Camera.Height,
	}
}

// Estimator returns the external marker detector.
func (c *Config) Estimator() calibration.PoseEstimator {
	return &calibration.ExecEstimator{
		Command: c.Detector.Command,
		Args:    c.Detector.Args,
		Timeout: time.Duration(c.Detector.Timeout),
	}
}

// GetRestartDelay is the pause before the coordinator is restarted after a failure.
func (c *Config) GetRestartDelay() time.Duration {
	return c.RestartDelay.Or(defaultRestartDelay)
}
