// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/tailpipedev/tailpipe/pkg/ds"
	"github.com/tailpipedev/tailpipe/pkg/global"
	"github.com/tailpipedev/tailpipe/pkg/panichandler"
)

const ProcStatsInterval = 1 * time.Second

// ProcStatsCollector periodically samples process-level stats (cpu, memory,
// thread count) and ships them alongside the log stream.
type ProcStatsCollector struct {
	lock       sync.Mutex
	controller ds.Controller
	ticker     *time.Ticker
	proc       *process.Process
}

func MakeProcStatsCollector(controller ds.Controller) *ProcStatsCollector {
	pc := &ProcStatsCollector{controller: controller}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		pc.proc = proc
	}
	return pc
}

// Enable starts the sampling loop. Idempotent.
func (pc *ProcStatsCollector) Enable() {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	if pc.ticker != nil {
		return
	}
	go pc.collect()
	pc.ticker = time.NewTicker(ProcStatsInterval)
	ticker := pc.ticker
	go func() {
		defer func() {
			panichandler.PanicHandler("procstats.collectLoop", recover())
		}()
		for range ticker.C {
			pc.collect()
		}
	}()
}

// Disable stops the sampling loop. Idempotent.
func (pc *ProcStatsCollector) Disable() {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	if pc.ticker == nil {
		return
	}
	pc.ticker.Stop()
	pc.ticker = nil
}

func (pc *ProcStatsCollector) collect() {
	if !global.TailpipeEnabled.Load() || pc.controller == nil {
		return
	}

	stats := &ds.ProcStatsInfo{
		Ts:         time.Now().UnixMilli(),
		Pid:        os.Getpid(),
		GoRoutines: runtime.NumGoroutine(),
	}
	if pc.proc != nil {
		// CPUPercent may report 0 on the first call
		stats.CPUPercent, _ = pc.proc.CPUPercent()
		if memInfo, err := pc.proc.MemoryInfo(); err == nil && memInfo != nil {
			stats.MemoryRSS = memInfo.RSS
			stats.MemoryVMS = memInfo.VMS
		}
		if numThreads, err := pc.proc.NumThreads(); err == nil {
			stats.NumThreads = numThreads
		}
	}

	pk := &ds.PacketType{
		Type: ds.PacketTypeProcStats,
		Data: stats,
	}
	pc.controller.SendPacket(pk)
}
