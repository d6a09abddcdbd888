// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tailpipedev/tailpipe/pkg/ds"
	"github.com/tailpipedev/tailpipe/server/pkg/apppeer"
	"golang.org/x/exp/maps"
)

const wsReadWaitTimeout = 15 * time.Second
const wsWriteWaitTimeout = 10 * time.Second
const wsPingPeriodTickTime = 10 * time.Second
const wsInitialPingTime = 1 * time.Second

const wsLineChanBufferSize = 100

var connLock = &sync.Mutex{}
var connIdMap = map[string]*websocket.Conn{} // connId => conn

// RunWebSocketServer serves the live-tail websocket endpoint. Blocking.
func RunWebSocketServer(listener net.Listener) {
	gr := mux.NewRouter()
	gr.HandleFunc("/ws", HandleWs)
	server := &http.Server{
		ReadTimeout:    HttpReadTimeout,
		WriteTimeout:   HttpWriteTimeout,
		MaxHeaderBytes: HttpMaxHeaderBytes,
		Handler:        gr,
	}
	server.SetKeepAlivesEnabled(false)
	logrus.Infof("[websocket] running websocket server on %s", listener.Addr())
	if err := server.Serve(listener); err != nil {
		logrus.Errorf("[websocket] server error: %v", err)
	}
}

var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:   4 * 1024,
	WriteBufferSize:  32 * 1024,
	HandshakeTimeout: 1 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// HandleWs upgrades the connection and tails the app run named by
// ?apprunid=, pushing each new log line as a {"type":"logline"} message.
func HandleWs(w http.ResponseWriter, r *http.Request) {
	err := handleWsInternal(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetActiveConnIds returns a snapshot of the live websocket connection ids.
func GetActiveConnIds() []string {
	connLock.Lock()
	defer connLock.Unlock()
	return maps.Keys(connIdMap)
}

func registerConn(connId string, conn *websocket.Conn) {
	connLock.Lock()
	defer connLock.Unlock()
	connIdMap[connId] = conn
}

func unregisterConn(connId string) {
	connLock.Lock()
	defer connLock.Unlock()
	delete(connIdMap, connId)
}

func getMessageType(jmsg map[string]any) string {
	if str, ok := jmsg["type"].(string); ok {
		return str
	}
	return ""
}

func readLoop(conn *websocket.Conn, outputCh chan any, closeCh chan any, connId string) {
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
	defer close(closeCh)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			logrus.Debugf("[websocket] read loop done (%s): %v", connId, err)
			break
		}
		jmsg := map[string]any{}
		if err := json.Unmarshal(message, &jmsg); err != nil {
			logrus.Warnf("[websocket] error unmarshalling json: %v", err)
			break
		}
		conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
		switch getMessageType(jmsg) {
		case "pong":
			// nothing
		case "ping":
			outputCh <- map[string]any{"type": "pong", "stime": time.Now().UnixMilli()}
		}
	}
}

func writePing(conn *websocket.Conn) error {
	pingMessage := map[string]any{"type": "ping", "stime": time.Now().UnixMilli()}
	jsonVal, _ := json.Marshal(pingMessage)
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout))
	return conn.WriteMessage(websocket.TextMessage, jsonVal)
}

func writeLoop(conn *websocket.Conn, outputCh chan any, closeCh chan any, connId string) {
	ticker := time.NewTicker(wsInitialPingTime)
	defer ticker.Stop()
	initialPing := true
	for {
		select {
		case msg := <-outputCh:
			barr, err := json.Marshal(msg)
			if err != nil {
				logrus.Errorf("[websocket] cannot marshal websocket message: %v", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, barr); err != nil {
				conn.Close()
				logrus.Debugf("[websocket] write loop done (%s): %v", connId, err)
				return
			}

		case <-ticker.C:
			if err := writePing(conn); err != nil {
				logrus.Debugf("[websocket] write loop done (%s): %v", connId, err)
				return
			}
			if initialPing {
				initialPing = false
				ticker.Reset(wsPingPeriodTickTime)
			}

		case <-closeCh:
			return
		}
	}
}

// forwardLines drains the peer's line listener channel into the output
// channel until the connection closes.
func forwardLines(lineCh chan ds.LogLine, outputCh chan any, closeCh chan any) {
	for {
		select {
		case line := <-lineCh:
			select {
			case outputCh <- map[string]any{"type": "logline", "data": line}:
			case <-closeCh:
				return
			}
		case <-closeCh:
			return
		}
	}
}

func handleWsInternal(w http.ResponseWriter, r *http.Request) error {
	appRunId := r.URL.Query().Get("apprunid")
	if appRunId == "" {
		return fmt.Errorf("apprunid param is required")
	}
	peer, ok := apppeer.GetAppRunPeerEx(appRunId)
	if !ok {
		return fmt.Errorf("no app run found for id %s", appRunId)
	}

	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %v", err)
	}
	defer conn.Close()

	connId := uuid.New().String()
	outputCh := make(chan any, 100)
	closeCh := make(chan any)
	lineCh := make(chan ds.LogLine, wsLineChanBufferSize)

	logrus.Infof("[websocket] new connection connid:%s apprunid:%s", connId, appRunId)

	registerConn(connId, conn)
	defer unregisterConn(connId)

	peer.AddLineListener(connId, lineCh)
	defer peer.RemoveLineListener(connId)

	wg := &sync.WaitGroup{}
	wg.Add(3)
	go func() {
		defer wg.Done()
		readLoop(conn, outputCh, closeCh, connId)
	}()
	go func() {
		defer wg.Done()
		writeLoop(conn, outputCh, closeCh, connId)
	}()
	go func() {
		defer wg.Done()
		forwardLines(lineCh, outputCh, closeCh)
	}()
	wg.Wait()
	return nil
}
