// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command bridge starts the AerialBridge state synchronization hub.
//
// This is the main entry point for the installation's hub process. It reads
// configuration from environment variables (optionally merged over a YAML
// file) and runs the server until SIGINT/SIGTERM.
//
// # Environment Variables
//
//   - BRIDGE_PORT: HTTP server port (default: 3000)
//   - BRIDGE_CONFIG: optional YAML config file path
//   - BRIDGE_STATIC_DIR: directory with the browser client assets
//   - BRIDGE_OTEL_ENDPOINT: OpenTelemetry collector (tracing off when empty)
//   - BRIDGE_RATE_LIMIT: inbound messages/second per connection (0 = off)
//   - GIN_MODE: gin framework mode (debug/release/test)
//
// # Usage
//
//	# Build
//	go build -o bridge ./cmd/bridge
//
//	# Run
//	BRIDGE_PORT=3000 BRIDGE_STATIC_DIR=./public ./bridge
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AerialBridge/services/bridge"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	svc, err := bridge.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize the bridge: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(svc.Run)
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return svc.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("bridge terminated: %v", err)
	}
	slog.Info("bridge stopped")
}

// loadConfig builds the service config from the optional YAML file with
// environment variables layered on top.
func loadConfig() (bridge.Config, error) {
	cfg := bridge.Config{EnableMetrics: true}

	if path := os.Getenv("BRIDGE_CONFIG"); path != "" {
		loaded, err := bridge.LoadConfigFile(path)
		if err != nil {
			return bridge.Config{}, err
		}
		cfg = loaded
	}

	if port := os.Getenv("BRIDGE_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			slog.Warn("invalid BRIDGE_PORT, using default", "value", port)
		} else {
			cfg.Port = p
		}
	}
	if dir := os.Getenv("BRIDGE_STATIC_DIR"); dir != "" {
		cfg.StaticDir = dir
	}
	if endpoint := os.Getenv("BRIDGE_OTEL_ENDPOINT"); endpoint != "" {
		cfg.OTelEndpoint = endpoint
	}
	if limit := os.Getenv("BRIDGE_RATE_LIMIT"); limit != "" {
		l, err := strconv.ParseFloat(limit, 64)
		if err != nil {
			slog.Warn("invalid BRIDGE_RATE_LIMIT, rate limiting disabled", "value", limit)
		} else {
			cfg.RateLimit = l
		}
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.GinMode = mode
	}

	return cfg, nil
}
