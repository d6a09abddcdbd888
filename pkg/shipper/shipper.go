// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package shipper implements the SDK-side controller: it owns the collector
// connection, turns finished console lines into packets, and keeps trying to
// reconnect in the background. It is the log sink consumed by the console
// interceptor.
package shipper

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tailpipedev/tailpipe/pkg/base"
	"github.com/tailpipedev/tailpipe/pkg/comm"
	"github.com/tailpipedev/tailpipe/pkg/ds"
	"github.com/tailpipedev/tailpipe/pkg/global"
	"github.com/tailpipedev/tailpipe/pkg/utilfn"
)

const ConnPollTime = 1 * time.Second

type Shipper struct {
	lock       sync.Mutex // guards connect/disconnect transitions
	config     *ds.Config
	appInfo    ds.AppInfo
	conn       atomic.Pointer[comm.ConnWrap]
	pollerOnce sync.Once
	procStats  *ProcStatsCollector

	transportErrors atomic.Int64
	packetsSent     atomic.Int64
}

var _ ds.Controller = (*Shipper)(nil)

func MakeShipper(config *ds.Config) *Shipper {
	s := &Shipper{config: config}
	s.appInfo = s.createAppInfo(config)
	s.procStats = MakeProcStatsCollector(s)

	if config.ConnectOnInit {
		s.Connect()
	}
	go s.runConnPoller()
	return s
}

// Configuration methods

func (s *Shipper) GetConfig() ds.Config {
	return *s.config
}

func (s *Shipper) GetAppRunId() string {
	return s.appInfo.AppRunId
}

func (s *Shipper) GetAppInfo() ds.AppInfo {
	return s.appInfo
}

// Connection management

func (s *Shipper) Connect() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if global.TailpipeForceDisabled.Load() {
		return false
	}
	if global.TailpipeEnabled.Load() {
		return false
	}

	connWrap, err := comm.Connect(comm.ConnectionModePacket, s.appInfo.AppRunId, s.config.DomainSocketPath, s.config.ServerAddr)
	if err != nil {
		return false
	}
	if !s.config.Quiet {
		fmt.Fprintf(os.Stderr, "[tailpipe] connected to %s\n", connWrap.PeerName)
	}
	s.transportErrors.Store(0)
	s.conn.Store(connWrap)
	s.sendAppInfo()
	global.TailpipeEnabled.Store(true)
	if s.config.ProcStatsConfig.Enabled {
		s.procStats.Enable()
	}
	return true
}

func (s *Shipper) Disconnect() {
	s.lock.Lock()
	defer s.lock.Unlock()

	connWrap := s.conn.Load()
	if connWrap == nil {
		global.TailpipeEnabled.Store(false)
		return
	}
	if !s.config.Quiet {
		fmt.Fprintf(os.Stderr, "[tailpipe] disconnected from %s\n", connWrap.PeerName)
	}
	global.TailpipeEnabled.Store(false)
	s.procStats.Disable()
	s.conn.Store(nil)
	// give in-flight sends a moment to drain before closing
	time.Sleep(50 * time.Millisecond)
	connWrap.Close()
}

// Transport methods

func (s *Shipper) sendPacketInternal(pk *ds.PacketType) (bool, error) {
	connWrap := s.conn.Load()
	if connWrap == nil {
		return false, nil
	}
	barr, err := json.Marshal(pk)
	if err != nil {
		return false, err
	}
	if err := connWrap.WriteLine(string(barr)); err != nil {
		// counted, not surfaced: the poller will disconnect and retry
		s.transportErrors.Add(1)
		return false, nil
	}
	s.packetsSent.Add(1)
	return true, nil
}

func (s *Shipper) SendPacket(pk *ds.PacketType) (bool, error) {
	if !global.TailpipeEnabled.Load() {
		return false, nil
	}
	return s.sendPacketInternal(pk)
}

// ShipLine is the log sink for the console interceptor: it wraps a finalized
// line into a log packet. toConsole is recorded on the wire but the SDK
// always passes false (the passthrough already echoed the text).
func (s *Shipper) ShipLine(source string, line string, toConsole bool) {
	logLine := &ds.LogLine{
		Ts:        time.Now().UnixMilli(),
		Msg:       line,
		Source:    source,
		ToConsole: toConsole,
	}
	pk := &ds.PacketType{
		Type: ds.PacketTypeLog,
		Data: logLine,
	}
	s.SendPacket(pk)
}

// ILog ships internal SDK diagnostics as log lines with the internal source.
func (s *Shipper) ILog(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	msg = strings.TrimSuffix(msg, "\n")
	s.ShipLine(ds.SourceInternal, msg, false)
}

func (s *Shipper) sendAppInfo() {
	// AppInfo is always the first packet on a fresh connection
	pk := &ds.PacketType{
		Type: ds.PacketTypeAppInfo,
		Data: &s.appInfo,
	}
	s.sendPacketInternal(pk)
}

func (s *Shipper) Shutdown() {
	pk := &ds.PacketType{
		Type: ds.PacketTypeAppDone,
		Data: nil,
	}
	s.SendPacket(pk)
	s.Disconnect()
}

// Private methods

func (s *Shipper) runConnPoller() {
	s.pollerOnce.Do(func() {
		for {
			s.pollConn()
			time.Sleep(ConnPollTime)
		}
	})
}

func (s *Shipper) pollConn() {
	if global.TailpipeEnabled.Load() {
		if s.transportErrors.Load() > 0 {
			s.Disconnect()
		}
		return
	}
	s.Connect()
}

// Initialization methods

func (s *Shipper) createAppInfo(config *ds.Config) ds.AppInfo {
	appInfo := ds.AppInfo{}
	appInfo.AppRunId = uuid.New().String()

	appName := config.AppName
	if appName == "" {
		appName = determineAppName()
	}
	appInfo.AppName = appName

	moduleName := config.ModuleName
	if moduleName == "" {
		moduleName = determineModuleName()
	}
	appInfo.ModuleName = moduleName

	appInfo.StartTime = time.Now().UnixMilli()
	appInfo.Args = utilfn.CopyStrArr(os.Args)
	appInfo.Executable, _ = os.Executable()
	appInfo.Pid = os.Getpid()
	appInfo.TailpipeSDKVersion = base.TailpipeSDKVersion

	if u, err := user.Current(); err == nil {
		appInfo.User = u.Username
	}
	if hostname, err := os.Hostname(); err == nil {
		appInfo.Hostname = hostname
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		settings := make(map[string]string)
		for _, setting := range buildInfo.Settings {
			settings[setting.Key] = setting.Value
		}
		appInfo.BuildInfo = &ds.BuildInfoData{
			GoVersion: buildInfo.GoVersion,
			Path:      buildInfo.Path,
			Version:   buildInfo.Main.Version,
			Settings:  settings,
		}
	}
	return appInfo
}

// determineModuleName walks up from the working directory looking for go.mod
// and returns its module line.
func determineModuleName() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			content, err := os.ReadFile(goModPath)
			if err != nil {
				return ""
			}
			for _, line := range strings.Split(string(content), "\n") {
				line = strings.TrimSpace(line)
				if strings.HasPrefix(line, "module ") {
					return strings.TrimSpace(strings.TrimPrefix(line, "module"))
				}
			}
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func determineAppName() string {
	execPath, err := os.Executable()
	if err != nil {
		return "unknown"
	}
	return filepath.Base(execPath)
}
