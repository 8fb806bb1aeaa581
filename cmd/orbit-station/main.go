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
// Command orbit-station coordinates the capture nodes, calibrates the rig
// and writes aligned snapshot rounds.
package main

import (
	"context"
	"flag"
	"log"
	"sync"

	"github.com/carverauto/orbit/pkg/calibration"
	"github.com/carverauto/orbit/pkg/config"
	"github.com/carverauto/orbit/pkg/coordinator"
	"github.com/carverauto/orbit/pkg/lifecycle"
	"github.com/carverauto/orbit/pkg/natsutil"
	"github.com/carverauto/orbit/pkg/panorama"
	"github.com/carverauto/orbit/pkg/station"
	"github.com/carverauto/orbit/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/orbit/station.json", "Path to station config file")
	flag.Parse()

	ctx, cancel := lifecycle.SignalContext(context.Background())
	defer cancel()

	cfg := station.DefaultConfig()
	if err := config.NewConfig(nil).WithEnvPrefix("ORBIT_STATION_").LoadAndValidate(ctx, *configPath, cfg); err != nil {
		return err
	}

	if err := lifecycle.InitializeLogger(cfg.Logging); err != nil {
		return err
	}

	logger, err := lifecycle.CreateComponentLogger("orbit-station", cfg.Logging)
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", version.GetFullVersion()).
		Strs("nodes", cfg.Nodes).
		Str("listen_addr", cfg.ListenAddr).
		Msg("Starting station")

	decoder := coordinator.FrameDecoder{}

	client, err := coordinator.NewClient(cfg.CoordinatorConfig(), decoder, lifecycle.Sub(logger, "coordinator"))
	if err != nil {
		return err
	}

	engine := calibration.NewEngine(calibration.Config{
		Camera:     cfg.CameraParameters(),
		MarkerSize: cfg.MarkerSize,
		Estimator:  cfg.Estimator(),
		Decoder:    decoder,
	}, lifecycle.Sub(logger, "calibration"))

	hub := station.NewHub(lifecycle.Sub(logger, "preview"), nil)

	options := []func(*station.Station){
		station.WithComposer(panorama.NewComposer(cfg.OutputDir, engine.Camera(), decoder, lifecycle.Sub(logger, "panorama"))),
		station.WithHub(hub),
	}

	if cfg.NATS.Enabled {
		publisher, nc, err := natsutil.ConnectWithEventPublisher(ctx, &cfg.NATS, lifecycle.Sub(logger, "nats"))
		if err != nil {
			return err
		}

		defer nc.Close()

		options = append(options, station.WithPublisher(publisher))
	}

	st := station.NewStation(client, engine, logger, options...)
	api := station.NewAPIServer(st, lifecycle.Sub(logger, "api"), station.WithPreviewHub(hub))

	// The client owns the message channel; once it stops, nothing else can
	// make progress, so its exit ends the process.
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()

		if err != nil && !lifecycle.IsShutdown(err) && firstErr == nil {
			firstErr = err
		}
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		defer stop()

		record(client.Run(ctx))
	}()

	go func() {
		defer wg.Done()

		record(st.Run(ctx))
	}()

	go func() {
		defer wg.Done()

		record(lifecycle.RunWithRestart(ctx, "api", cfg.GetRestartDelay(), logger, func(ctx context.Context) error {
			return api.Start(ctx, cfg.ListenAddr)
		}))
	}()

	wg.Wait()

	logger.Info().Msg("Station stopped")

	return firstErr
}
