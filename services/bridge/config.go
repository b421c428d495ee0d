// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bridge

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds bridge service configuration.
//
// # Description
//
// Config centralizes all configuration for the bridge. Values can be
// populated from environment variables, a YAML file, or programmatically for
// testing. All fields have sensible defaults; a zero Config starts a working
// hub on the default port.
type Config struct {
	// Port is the HTTP server port. Default: 3000
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// StaticDir serves the browser client assets when set.
	// Example: "./public"
	StaticDir string `yaml:"static_dir"`

	// OTelEndpoint is the OpenTelemetry collector endpoint. Tracing is
	// disabled when empty.
	// Example: "localhost:4317"
	OTelEndpoint string `yaml:"otel_endpoint"`

	// EnableMetrics enables the Prometheus /metrics instrumentation.
	// Default: true
	EnableMetrics bool `yaml:"enable_metrics"`

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	GinMode string `yaml:"gin_mode" validate:"omitempty,oneof=debug release test"`

	// SendBuffer is the per-connection outbound queue depth. A consumer
	// that falls this many deliveries behind starts losing them.
	// Default: 64
	SendBuffer int `yaml:"send_buffer" validate:"gte=0"`

	// RateLimit caps inbound messages per second per connection.
	// 0 disables limiting. Default: 0
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`

	// RateBurst is the token bucket burst when RateLimit is set.
	// Default: 10
	RateBurst int `yaml:"rate_burst" validate:"gte=0"`
}

// applyConfigDefaults fills unset fields. EnableMetrics cannot be
// distinguished from an explicit false at the zero value, so the default is
// applied by the loaders, not here.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = 64
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 10
	}
	return cfg
}

// ValidateConfig checks field domains.
func ValidateConfig(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid bridge config: %w", err)
	}
	return nil
}

// LoadConfigFile reads a YAML config file into a Config. Fields absent from
// the file keep their zero value; callers apply defaults via New.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := Config{EnableMetrics: true}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return cfg, nil
}
