// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"

	"github.com/tailpipedev/tailpipe/pkg/base"
	"github.com/tailpipedev/tailpipe/pkg/ds"
)

// getDefaultConfig returns a default configuration with the specified dev mode
func getDefaultConfig(isDev bool) *ds.Config {
	return &ds.Config{
		DomainSocketPath: base.GetDomainSocketName(isDev),
		ServerAddr:       base.GetTCPAddr(isDev),
		AppName:          "",
		ModuleName:       "",
		Dev:              isDev,
		ConnectOnInit:    true,
		ConsoleConfig: ds.ConsoleConfig{
			WrapStdout: true,
			WrapStderr: true,
			FdTaps:     false,
		},
		ProcStatsConfig: ds.ProcStatsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the default configuration for normal usage
func DefaultConfig() *ds.Config {
	return getDefaultConfig(os.Getenv(base.DevEnvName) == "1")
}

// DefaultConfigForDevelopment returns a configuration for internal tailpipe
// development (separate home dir and ports)
func DefaultConfigForDevelopment() *ds.Config {
	return getDefaultConfig(true)
}
