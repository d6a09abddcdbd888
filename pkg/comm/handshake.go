// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package comm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/tailpipedev/tailpipe/pkg/base"
)

// Connection mode constants
const (
	ConnectionModePacket = "packet"
)

const MinClientVersion = "v0.1.0"
const MinServerVersion = "v0.1.0"

// ServerVersion is what the server reports in its handshake; overridden at
// build time on the server side.
var ServerVersion = base.TailpipeSDKVersion

type ServerHandshakePacket struct {
	TailpipeVersion string `json:"tailpipeversion"`
}

type ClientHandshakePacket struct {
	TailpipeSDK string `json:"tailpipesdk"`
	Mode        string `json:"mode"`
	AppRunId    string `json:"apprunid,omitempty"`
}

type ServerHandshakeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// stripPrereleaseInfo returns a new version without prerelease information,
// so dev builds ("v0.2.0-dev.3") pass the same gates as their release.
func stripPrereleaseInfo(v *semver.Version) *semver.Version {
	if v == nil {
		return nil
	}
	cleanVersion, _ := semver.NewVersion(fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch()))
	return cleanVersion
}

// ClientHandshake performs the client side of the handshake: read the server
// version packet, validate compatibility, send our own packet, and check the
// server's response.
func (cw *ConnWrap) ClientHandshake(mode string, appRunId string) error {
	packetLine, err := cw.ReadLine()
	if err != nil {
		return fmt.Errorf("failed to read server handshake packet: %w", err)
	}
	var serverPacket ServerHandshakePacket
	if err := json.Unmarshal([]byte(strings.TrimSpace(packetLine)), &serverPacket); err != nil {
		return fmt.Errorf("invalid server handshake packet format: %w", err)
	}

	serverVersion, err := semver.NewVersion(serverPacket.TailpipeVersion)
	if err != nil {
		return fmt.Errorf("invalid server version format: %s", serverPacket.TailpipeVersion)
	}
	minVersion, _ := semver.NewVersion(MinServerVersion)
	if stripPrereleaseInfo(serverVersion).LessThan(minVersion) {
		return fmt.Errorf("server version %s is below the minimum %s", serverPacket.TailpipeVersion, MinServerVersion)
	}

	clientPacket := ClientHandshakePacket{
		TailpipeSDK: base.TailpipeSDKVersion,
		Mode:        mode,
		AppRunId:    appRunId,
	}
	barr, err := json.Marshal(clientPacket)
	if err != nil {
		return fmt.Errorf("failed to marshal client handshake packet: %w", err)
	}
	if err := cw.WriteLine(string(barr)); err != nil {
		return fmt.Errorf("failed to send client handshake packet: %w", err)
	}

	respLine, err := cw.ReadLine()
	if err != nil {
		return fmt.Errorf("failed to read handshake response: %w", err)
	}
	var resp ServerHandshakeResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(respLine)), &resp); err != nil {
		return fmt.Errorf("invalid handshake response format: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("handshake rejected: %s", resp.Error)
	}
	return nil
}

// ServerHandshake performs the server side of the handshake. Returns the
// client's mode and app run id on success. A failure response is sent to the
// client before returning an error.
func (cw *ConnWrap) ServerHandshake() (string, string, error) {
	serverPacket := ServerHandshakePacket{TailpipeVersion: ServerVersion}
	barr, err := json.Marshal(serverPacket)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal server handshake packet: %w", err)
	}
	if err := cw.WriteLine(string(barr)); err != nil {
		return "", "", fmt.Errorf("failed to send server handshake packet: %w", err)
	}

	packetLine, err := cw.ReadLine()
	if err != nil {
		return "", "", fmt.Errorf("failed to read client handshake packet: %w", err)
	}
	var clientPacket ClientHandshakePacket
	if err := json.Unmarshal([]byte(strings.TrimSpace(packetLine)), &clientPacket); err != nil {
		cw.writeHandshakeError("invalid handshake packet format")
		return "", "", fmt.Errorf("invalid client handshake packet format: %w", err)
	}

	clientVersion, err := semver.NewVersion(clientPacket.TailpipeSDK)
	if err != nil {
		cw.writeHandshakeError("invalid sdk version format")
		return "", "", fmt.Errorf("invalid client version format: %s", clientPacket.TailpipeSDK)
	}
	minVersion, _ := semver.NewVersion(MinClientVersion)
	if stripPrereleaseInfo(clientVersion).LessThan(minVersion) {
		cw.writeHandshakeError(fmt.Sprintf("sdk version %s is below the minimum %s", clientPacket.TailpipeSDK, MinClientVersion))
		return "", "", fmt.Errorf("client version %s is below the minimum %s", clientPacket.TailpipeSDK, MinClientVersion)
	}
	if clientPacket.Mode != ConnectionModePacket {
		cw.writeHandshakeError(fmt.Sprintf("unsupported mode %q", clientPacket.Mode))
		return "", "", fmt.Errorf("unsupported connection mode %q", clientPacket.Mode)
	}

	resp := ServerHandshakeResponse{Success: true}
	respBarr, _ := json.Marshal(resp)
	if err := cw.WriteLine(string(respBarr)); err != nil {
		return "", "", fmt.Errorf("failed to send handshake response: %w", err)
	}
	return clientPacket.Mode, clientPacket.AppRunId, nil
}

func (cw *ConnWrap) writeHandshakeError(msg string) {
	resp := ServerHandshakeResponse{Success: false, Error: msg}
	barr, _ := json.Marshal(resp)
	_ = cw.WriteLine(string(barr))
}
