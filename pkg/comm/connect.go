// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package comm

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/tailpipedev/tailpipe/pkg/utilfn"
)

const DialTimeout = 2 * time.Second

// Connect attempts to connect to the collector, preferring the domain socket
// and falling back to TCP, then performs the client handshake. A path or
// address of "" or "-" disables that transport.
func Connect(mode string, appRunId string, domainSocketPath string, serverAddr string) (*ConnWrap, error) {
	if domainSocketPath != "" && domainSocketPath != "-" {
		dsPath := utilfn.ExpandHomeDir(domainSocketPath)
		if _, errStat := os.Stat(dsPath); errStat == nil {
			conn, err := net.DialTimeout("unix", dsPath, DialTimeout)
			if err == nil {
				connWrap := MakeConnWrap(conn, dsPath)
				if err := connWrap.ClientHandshake(mode, appRunId); err != nil {
					connWrap.Close()
					return nil, fmt.Errorf("handshake failed with %s: %w", connWrap.PeerName, err)
				}
				return connWrap, nil
			}
		}
	}

	if serverAddr != "" && serverAddr != "-" {
		conn, err := net.DialTimeout("tcp", serverAddr, DialTimeout)
		if err == nil {
			connWrap := MakeConnWrap(conn, serverAddr)
			if err := connWrap.ClientHandshake(mode, appRunId); err != nil {
				connWrap.Close()
				return nil, fmt.Errorf("handshake failed with %s: %w", connWrap.PeerName, err)
			}
			return connWrap, nil
		}
	}

	return nil, fmt.Errorf("failed to connect to domain socket or TCP server")
}
