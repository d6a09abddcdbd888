// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package comm

import (
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"
)

func TestHandshakeSuccess(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	var mode, appRunId string
	var serverErr error
	done := make(chan struct{})
	serverCw := MakeConnWrap(c2, "test-server")
	go func() {
		defer close(done)
		mode, appRunId, serverErr = serverCw.ServerHandshake()
	}()

	clientCw := MakeConnWrap(c1, "test-client")
	if err := clientCw.ClientHandshake(ConnectionModePacket, "run-123"); err != nil {
		t.Fatalf("client handshake failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server handshake did not complete")
	}
	if serverErr != nil {
		t.Fatalf("server handshake failed: %v", serverErr)
	}
	if mode != ConnectionModePacket {
		t.Errorf("expected mode %q, got %q", ConnectionModePacket, mode)
	}
	if appRunId != "run-123" {
		t.Errorf("expected app run id run-123, got %q", appRunId)
	}
}

func TestHandshakeRejectsOldClient(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	var serverErr error
	done := make(chan struct{})
	serverCw := MakeConnWrap(c2, "test-server")
	go func() {
		defer close(done)
		_, _, serverErr = serverCw.ServerHandshake()
	}()

	clientCw := MakeConnWrap(c1, "test-client")
	if _, err := clientCw.ReadLine(); err != nil {
		t.Fatalf("failed to read server version packet: %v", err)
	}
	stale := ClientHandshakePacket{TailpipeSDK: "v0.0.1", Mode: ConnectionModePacket}
	barr, _ := json.Marshal(stale)
	if err := clientCw.WriteLine(string(barr)); err != nil {
		t.Fatalf("failed to send stale handshake: %v", err)
	}
	respLine, err := clientCw.ReadLine()
	if err != nil {
		t.Fatalf("failed to read handshake response: %v", err)
	}
	var resp ServerHandshakeResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(respLine)), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Success {
		t.Error("expected handshake rejection for stale client version")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server handshake did not complete")
	}
	if serverErr == nil {
		t.Error("expected server-side handshake error")
	}
}

func TestHandshakeRejectsUnknownMode(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	done := make(chan struct{})
	serverCw := MakeConnWrap(c2, "test-server")
	go func() {
		defer close(done)
		_, _, _ = serverCw.ServerHandshake()
	}()

	clientCw := MakeConnWrap(c1, "test-client")
	if _, err := clientCw.ReadLine(); err != nil {
		t.Fatalf("failed to read server version packet: %v", err)
	}
	bogus := ClientHandshakePacket{TailpipeSDK: MinClientVersion, Mode: "telemetry"}
	barr, _ := json.Marshal(bogus)
	if err := clientCw.WriteLine(string(barr)); err != nil {
		t.Fatalf("failed to send handshake: %v", err)
	}
	respLine, err := clientCw.ReadLine()
	if err != nil {
		t.Fatalf("failed to read handshake response: %v", err)
	}
	var resp ServerHandshakeResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(respLine)), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Success {
		t.Error("expected handshake rejection for unknown mode")
	}
	<-done
}
