// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package apppeer tracks the server-side state of each connected (or
// previously connected) application run: its metadata, its log line history,
// and its proc stats history.
package apppeer

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/sirupsen/logrus"
	"github.com/tailpipedev/tailpipe/pkg/ds"
	"github.com/tailpipedev/tailpipe/pkg/utilds"
)

const LogLineBufferSize = 10000
const ProcStatsBufferSize = 600 // 10 minutes of 1-second samples

// Application status constants
const (
	AppStatusRunning      = "running"
	AppStatusDone         = "done"
	AppStatusDisconnected = "disconnected"
)

// AppRunPeer holds everything the server knows about one app run.
type AppRunPeer struct {
	AppRunId string
	Logs     *utilds.CirBuf[ds.LogLine]
	Stats    *utilds.CirBuf[ds.ProcStatsInfo]

	lock        sync.Mutex // guards AppInfo, Status, LastModTime, nextLineNum
	appInfo     *ds.AppInfo
	status      string
	lastModTime int64
	nextLineNum int64

	listeners *utilds.SyncMap[string, chan ds.LogLine]
}

// AppRunInfo is the listing view of a peer, returned by the web layer.
type AppRunInfo struct {
	AppRunId     string            `json:"apprunid"`
	AppName      string            `json:"appname"`
	ModuleName   string            `json:"modulename,omitempty"`
	StartTime    int64             `json:"starttime"`
	IsRunning    bool              `json:"isrunning"`
	Status       string            `json:"status"`
	Pid          int               `json:"pid,omitempty"`
	User         string            `json:"user,omitempty"`
	Hostname     string            `json:"hostname,omitempty"`
	NumLogs      int               `json:"numlogs"`
	TrimmedLines int64             `json:"trimmedlines"`
	LastModTime  int64             `json:"lastmodtime"`
	BuildInfo    *ds.BuildInfoData `json:"buildinfo,omitempty"`
}

var appRunPeers = utilds.MakeSyncMap[string, *AppRunPeer]()

// runIndex orders peers by start time for listing. Keys are
// "%020d|apprunid" so string ordering matches chronological ordering.
var runIndexLock sync.Mutex
var runIndex = treemap.NewWithStringComparator()

func indexKey(startTime int64, appRunId string) string {
	return fmt.Sprintf("%020d|%s", startTime, appRunId)
}

// GetAppRunPeer gets an existing AppRunPeer by ID or creates a new one.
func GetAppRunPeer(appRunId string) *AppRunPeer {
	peer, _ := appRunPeers.GetOrCreate(appRunId, func() *AppRunPeer {
		return &AppRunPeer{
			AppRunId:    appRunId,
			Logs:        utilds.MakeCirBuf[ds.LogLine](LogLineBufferSize),
			Stats:       utilds.MakeCirBuf[ds.ProcStatsInfo](ProcStatsBufferSize),
			status:      AppStatusRunning,
			lastModTime: time.Now().UnixMilli(),
			listeners:   utilds.MakeSyncMap[string, chan ds.LogLine](),
		}
	})
	return peer
}

// GetAppRunPeerEx returns the peer only if it already exists.
func GetAppRunPeerEx(appRunId string) (*AppRunPeer, bool) {
	return appRunPeers.GetEx(appRunId)
}

// GetAllAppRunPeerInfos returns AppRunInfo for all peers with metadata,
// ordered by start time. If since > 0, only peers modified after that
// timestamp are included.
func GetAllAppRunPeerInfos(since int64) []AppRunInfo {
	runIndexLock.Lock()
	it := runIndex.Iterator()
	ordered := make([]*AppRunPeer, 0, runIndex.Size())
	for it.Next() {
		ordered = append(ordered, it.Value().(*AppRunPeer))
	}
	runIndexLock.Unlock()

	appRuns := make([]AppRunInfo, 0, len(ordered))
	for _, peer := range ordered {
		info, ok := peer.GetAppRunInfo()
		if !ok {
			continue
		}
		if since > 0 && info.LastModTime <= since {
			continue
		}
		appRuns = append(appRuns, info)
	}
	return appRuns
}

// HandlePacket processes one packet received from an SDK connection.
func (p *AppRunPeer) HandlePacket(packetType string, packetData json.RawMessage) error {
	p.touch()

	switch packetType {
	case ds.PacketTypeAppInfo:
		var appInfo ds.AppInfo
		if err := json.Unmarshal(packetData, &appInfo); err != nil {
			return fmt.Errorf("failed to unmarshal AppInfo: %w", err)
		}
		p.lock.Lock()
		p.appInfo = &appInfo
		p.status = AppStatusRunning
		p.lock.Unlock()
		runIndexLock.Lock()
		runIndex.Put(indexKey(appInfo.StartTime, p.AppRunId), p)
		runIndexLock.Unlock()
		logrus.Infof("received appinfo for app run %s, app: %s", p.AppRunId, appInfo.AppName)

	case ds.PacketTypeLog:
		var logLine ds.LogLine
		if err := json.Unmarshal(packetData, &logLine); err != nil {
			return fmt.Errorf("failed to unmarshal LogLine: %w", err)
		}
		logLine.Msg = normalizeLineEndings(logLine.Msg)
		p.lock.Lock()
		p.nextLineNum++
		logLine.LineNum = p.nextLineNum
		p.lock.Unlock()
		p.Logs.Write(logLine)
		p.notifyListeners(logLine)

	case ds.PacketTypeProcStats:
		var stats ds.ProcStatsInfo
		if err := json.Unmarshal(packetData, &stats); err != nil {
			return fmt.Errorf("failed to unmarshal ProcStatsInfo: %w", err)
		}
		p.Stats.Write(stats)

	case ds.PacketTypeAppDone:
		p.lock.Lock()
		p.status = AppStatusDone
		p.lock.Unlock()
		logrus.Infof("received appdone for app run %s", p.AppRunId)

	default:
		logrus.Warnf("unknown packet type: %s", packetType)
	}

	return nil
}

// SetConnectionClosed marks the peer as disconnected (unless the app already
// reported a clean shutdown).
func (p *AppRunPeer) SetConnectionClosed() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.status != AppStatusDone {
		p.status = AppStatusDisconnected
		p.lastModTime = time.Now().UnixMilli()
		logrus.Infof("connection closed for app run %s, marked as disconnected", p.AppRunId)
	}
}

// GetAppRunInfo builds the listing view for this peer. Returns false when no
// AppInfo packet has arrived yet.
func (p *AppRunPeer) GetAppRunInfo() (AppRunInfo, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.appInfo == nil {
		return AppRunInfo{}, false
	}
	numLogs := p.Logs.Size()
	trimmed := p.Logs.TotalWritten() - int64(numLogs)
	return AppRunInfo{
		AppRunId:     p.AppRunId,
		AppName:      p.appInfo.AppName,
		ModuleName:   p.appInfo.ModuleName,
		StartTime:    p.appInfo.StartTime,
		IsRunning:    p.status == AppStatusRunning,
		Status:       p.status,
		Pid:          p.appInfo.Pid,
		User:         p.appInfo.User,
		Hostname:     p.appInfo.Hostname,
		NumLogs:      numLogs,
		TrimmedLines: trimmed,
		LastModTime:  p.lastModTime,
		BuildInfo:    p.appInfo.BuildInfo,
	}, true
}

// GetStatus returns the peer's current status string.
func (p *AppRunPeer) GetStatus() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.status
}

// GetAppInfo returns the peer's AppInfo (nil until the first packet arrives).
func (p *AppRunPeer) GetAppInfo() *ds.AppInfo {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.appInfo
}

// AddLineListener registers a channel that receives every new log line.
// Sends are non-blocking; a slow listener misses lines rather than stalling
// packet ingestion.
func (p *AppRunPeer) AddLineListener(id string, ch chan ds.LogLine) {
	p.listeners.Set(id, ch)
}

func (p *AppRunPeer) RemoveLineListener(id string) {
	p.listeners.Delete(id)
}

func (p *AppRunPeer) notifyListeners(line ds.LogLine) {
	for _, id := range p.listeners.Keys() {
		ch, ok := p.listeners.GetEx(id)
		if !ok {
			continue
		}
		select {
		case ch <- line:
		default:
		}
	}
}

func (p *AppRunPeer) touch() {
	p.lock.Lock()
	p.lastModTime = time.Now().UnixMilli()
	p.lock.Unlock()
}

// normalizeLineEndings strips carriage returns so windows-style and
// progress-bar output is stored as plain lines.
func normalizeLineEndings(msg string) string {
	if !strings.Contains(msg, "\r") {
		return msg
	}
	return strings.ReplaceAll(msg, "\r", "")
}
