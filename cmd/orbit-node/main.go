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
// Command orbit-node serves the cameras attached to this host to the station.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/carverauto/orbit/pkg/config"
	"github.com/carverauto/orbit/pkg/devices"
	"github.com/carverauto/orbit/pkg/lifecycle"
	"github.com/carverauto/orbit/pkg/node"
	"github.com/carverauto/orbit/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/orbit/node.json", "Path to node config file")
	flag.Parse()

	ctx, cancel := lifecycle.SignalContext(context.Background())
	defer cancel()

	cfg := node.DefaultConfig()
	if err := config.NewConfig(nil).WithEnvPrefix("ORBIT_NODE_").LoadAndValidate(ctx, *configPath, cfg); err != nil {
		return err
	}

	if err := lifecycle.InitializeLogger(cfg.Logging); err != nil {
		return err
	}

	logger, err := lifecycle.CreateComponentLogger("orbit-node", cfg.Logging)
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", version.GetFullVersion()).
		Str("listen_addr", cfg.ListenAddr).
		Msg("Starting capture node")

	lister := devices.NewSysfsLister()
	if cfg.SysfsRoot != "" {
		lister.Root = cfg.SysfsRoot
	}

	if cfg.DevRoot != "" {
		lister.DevRoot = cfg.DevRoot
	}

	registry := devices.NewRegistry(lister, devices.NewV4L2Prober(lifecycle.Sub(logger, "prober")), lifecycle.Sub(logger, "registry"))
	srv := node.NewServer(cfg, registry, nil, logger)

	err = lifecycle.RunWithRestart(ctx, "node", time.Duration(cfg.RestartDelay), logger, srv.Start)
	if lifecycle.IsShutdown(err) {
		logger.Info().Msg("Capture node stopped")

		return nil
	}

	return err
}
