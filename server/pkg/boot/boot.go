// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package boot wires the collector together: singleton lock, packet servers
// (unix socket + local TCP), and the web/websocket layer.
package boot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/tailpipedev/tailpipe/server/pkg/serverbase"
	"github.com/tailpipedev/tailpipe/server/pkg/web"
)

// RunServer initializes and runs the tailpipe server until interrupted.
func RunServer() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logrus.Infof("received signal: %v", sig)
		cancel()
		signal.Stop(signalChan)
	}()

	if err := serverbase.EnsureHomeDir(); err != nil {
		return fmt.Errorf("cannot create tailpipe home directory (%s): %w", serverbase.GetTailpipeHome(), err)
	}
	if err := serverbase.EnsureDataDir(); err != nil {
		return fmt.Errorf("cannot create tailpipe data directory (%s): %w", serverbase.GetTailpipeDataDir(), err)
	}

	lock, err := serverbase.AcquireTailpipeLock()
	if err != nil {
		return err
	}
	defer lock.Close() // holds the singleton lock for the life of the process

	if err := runDomainSocketServer(); err != nil {
		return fmt.Errorf("error starting domain socket server: %w", err)
	}
	if err := runTCPPacketServer(); err != nil {
		return fmt.Errorf("error starting tcp packet server: %w", err)
	}
	if err := web.RunAllWebServers(); err != nil {
		return fmt.Errorf("error starting web servers: %w", err)
	}

	logrus.Infof("all servers started (version %s)", serverbase.TailpipeVersion)
	<-ctx.Done()
	logrus.Info("shutting down server")
	return nil
}
