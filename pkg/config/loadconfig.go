// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailpipedev/tailpipe/pkg/base"
	"github.com/tailpipedev/tailpipe/pkg/ds"
)

// LoadConfig builds the effective configuration: defaults, then an optional
// inline JSON config from TAILPIPE_CONFIGJSON, then individual env overrides.
func LoadConfig() (*ds.Config, error) {
	cfg := DefaultConfig()

	if configJson := os.Getenv(base.ConfigJsonEnvName); configJson != "" {
		if err := json.Unmarshal([]byte(configJson), cfg); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", base.ConfigJsonEnvName, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *ds.Config) {
	if v := os.Getenv(base.DomainSocketEnvName); v != "" {
		cfg.DomainSocketPath = v
	}
	if v := os.Getenv(base.TCPAddrEnvName); v != "" {
		cfg.ServerAddr = v
	}
	if os.Getenv(base.DevEnvName) == "1" {
		cfg.Dev = true
	}
}

// IsDisabled reports whether the SDK is disabled via the environment.
func IsDisabled() bool {
	return os.Getenv(base.DisabledEnvName) == "1"
}
