// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package serverbase holds server-side constants and paths shared by the
// boot, web, and peer layers.
package serverbase

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alexflint/go-filemutex"
	"github.com/tailpipedev/tailpipe/pkg/base"
	"github.com/tailpipedev/tailpipe/pkg/utilfn"
)

// TailpipeVersion is the server version, set from main-tailpipe.go during
// initialization.
var TailpipeVersion = "v0.0.0"

// TailpipeBuildTime is the build timestamp, set from main-tailpipe.go.
var TailpipeBuildTime = ""

const TailpipeLockFile = "tailpipe.lock"
const TailpipeDataDir = "data"

// Default production ports for the server
const ProdWebServerPort = 5105
const ProdWebSocketPort = 5106
const ProdPacketServerPort = 5104

// Development ports for the server
const DevWebServerPort = 6105
const DevWebSocketPort = 6106
const DevPacketServerPort = 6104

// IsDev returns true if the server is running in development mode
func IsDev() bool {
	return os.Getenv(base.DevEnvName) == "1"
}

// GetTailpipeHome returns the appropriate home directory based on mode
func GetTailpipeHome() string {
	if IsDev() {
		return base.DevTailpipeHome
	}
	return base.TailpipeHome
}

// GetDomainSocketName returns the full domain socket path
func GetDomainSocketName() string {
	return GetTailpipeHome() + base.DefaultDomainSocketName
}

// GetWebServerPort returns the appropriate web server port based on mode
func GetWebServerPort() int {
	if IsDev() {
		return DevWebServerPort
	}
	return ProdWebServerPort
}

// GetWebSocketPort returns the appropriate websocket port based on mode
func GetWebSocketPort() int {
	if IsDev() {
		return DevWebSocketPort
	}
	return ProdWebSocketPort
}

// GetPacketServerPort returns the TCP port for SDK packet connections
func GetPacketServerPort() int {
	if IsDev() {
		return DevPacketServerPort
	}
	return ProdPacketServerPort
}

// GetTailpipeDataDir returns the path to the data directory
func GetTailpipeDataDir() string {
	return filepath.Join(GetTailpipeHome(), TailpipeDataDir)
}

func EnsureHomeDir() error {
	homeDir := utilfn.ExpandHomeDir(GetTailpipeHome())
	return os.MkdirAll(homeDir, 0755)
}

func EnsureDataDir() error {
	dataDir := utilfn.ExpandHomeDir(GetTailpipeDataDir())
	return os.MkdirAll(dataDir, 0755)
}

// AcquireTailpipeLock takes the server singleton lock. The returned mutex
// stays held for the life of the process; a second server on the same home
// directory fails here instead of fighting over the domain socket.
func AcquireTailpipeLock() (*filemutex.FileMutex, error) {
	if err := EnsureHomeDir(); err != nil {
		return nil, err
	}
	lockPath := filepath.Join(utilfn.ExpandHomeDir(GetTailpipeHome()), TailpipeLockFile)
	fm, err := filemutex.New(lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file %s: %w", lockPath, err)
	}
	if err := fm.TryLock(); err != nil {
		return nil, fmt.Errorf("another tailpipe server is already running (lock %s): %w", lockPath, err)
	}
	return fm, nil
}
