// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package boot

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tailpipedev/tailpipe/pkg/comm"
	"github.com/tailpipedev/tailpipe/pkg/utilfn"
	"github.com/tailpipedev/tailpipe/server/pkg/apppeer"
	"github.com/tailpipedev/tailpipe/server/pkg/serverbase"
)

// PacketUnmarshalHelper is the envelope for incoming JSON packets.
type PacketUnmarshalHelper struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// handlePacketMode reads newline-delimited JSON packets until the connection
// drops and routes each one to the app run's peer.
func handlePacketMode(connWrap *comm.ConnWrap, appRunId string) {
	peer := apppeer.GetAppRunPeer(appRunId)
	logrus.Infof("packet connection established for app run %s", appRunId)
	defer peer.SetConnectionClosed()

	for {
		line, err := connWrap.ReadLine()
		if err != nil {
			logrus.Debugf("packet connection for app run %s closed: %v", appRunId, err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var pkt PacketUnmarshalHelper
		if err := json.Unmarshal([]byte(line), &pkt); err != nil {
			logrus.Warnf("failed to unmarshal packet from %s: %v", appRunId, err)
			continue
		}
		if err := peer.HandlePacket(pkt.Type, pkt.Data); err != nil {
			logrus.Warnf("error handling %s packet from %s: %v", pkt.Type, appRunId, err)
		}
	}
}

// handlePacketConn performs the handshake and dispatches on the connection
// mode.
func handlePacketConn(conn net.Conn, peerName string) {
	defer conn.Close()

	connWrap := comm.MakeConnWrap(conn, peerName)
	mode, appRunId, err := connWrap.ServerHandshake()
	if err != nil {
		logrus.Warnf("handshake failed from %s: %v", peerName, err)
		return
	}
	switch mode {
	case comm.ConnectionModePacket:
		handlePacketMode(connWrap, appRunId)
	default:
		logrus.Warnf("unsupported connection mode %q from %s", mode, peerName)
	}
}

func acceptLoop(listener net.Listener, listenerName string) {
	defer listener.Close()
	for {
		conn, err := listener.Accept()
		if err != nil {
			logrus.Warnf("%s: failed to accept connection: %v", listenerName, err)
			continue
		}
		go handlePacketConn(conn, listenerName+"-client")
	}
}

func runDomainSocketServer() error {
	socketPath := utilfn.ExpandHomeDir(serverbase.GetDomainSocketName())
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	logrus.Infof("packet server listening on %s", socketPath)
	go acceptLoop(listener, "domain-socket")
	return nil
}

func runTCPPacketServer() error {
	addr := fmt.Sprintf("127.0.0.1:%d", serverbase.GetPacketServerPort())
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	logrus.Infof("packet server listening on tcp %s", addr)
	go acceptLoop(listener, "tcp-packet")
	return nil
}
