// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package apppeer

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/tailpipedev/tailpipe/pkg/ds"
)

func marshalPacketData(t *testing.T, v any) json.RawMessage {
	t.Helper()
	barr, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal packet data: %v", err)
	}
	return barr
}

func TestLogPacketsGetMonotonicLineNums(t *testing.T) {
	peer := GetAppRunPeer("test-linenum")
	for i := 0; i < 3; i++ {
		data := marshalPacketData(t, ds.LogLine{Ts: time.Now().UnixMilli(), Msg: fmt.Sprintf("line %d", i), Source: ds.SourceStdout})
		if err := peer.HandlePacket(ds.PacketTypeLog, data); err != nil {
			t.Fatalf("HandlePacket failed: %v", err)
		}
	}
	lines, _ := peer.Logs.GetAll()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if line.LineNum != int64(i+1) {
			t.Errorf("line %d: expected linenum %d, got %d", i, i+1, line.LineNum)
		}
	}
}

func TestLogPacketNormalizesCarriageReturns(t *testing.T) {
	peer := GetAppRunPeer("test-crlf")
	data := marshalPacketData(t, ds.LogLine{Msg: "progress\rdone"})
	if err := peer.HandlePacket(ds.PacketTypeLog, data); err != nil {
		t.Fatalf("HandlePacket failed: %v", err)
	}
	lines, _ := peer.Logs.GetAll()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Msg != "progressdone" {
		t.Errorf("expected carriage returns stripped, got %q", lines[0].Msg)
	}
}

func TestAppInfoMakesPeerListable(t *testing.T) {
	peer := GetAppRunPeer("test-listing")
	if _, ok := peer.GetAppRunInfo(); ok {
		t.Fatal("peer should not be listable before appinfo arrives")
	}
	appInfo := ds.AppInfo{AppRunId: "test-listing", AppName: "myapp", StartTime: 1000, Pid: 42}
	if err := peer.HandlePacket(ds.PacketTypeAppInfo, marshalPacketData(t, appInfo)); err != nil {
		t.Fatalf("HandlePacket failed: %v", err)
	}
	info, ok := peer.GetAppRunInfo()
	if !ok {
		t.Fatal("peer should be listable after appinfo")
	}
	if info.AppName != "myapp" || !info.IsRunning || info.Status != AppStatusRunning {
		t.Errorf("unexpected info: %+v", info)
	}

	found := false
	for _, run := range GetAllAppRunPeerInfos(0) {
		if run.AppRunId == "test-listing" {
			found = true
		}
	}
	if !found {
		t.Error("expected peer in GetAllAppRunPeerInfos")
	}
}

func TestAppRunListingOrderedByStartTime(t *testing.T) {
	late := GetAppRunPeer("test-order-late")
	early := GetAppRunPeer("test-order-early")
	lateInfo := ds.AppInfo{AppRunId: "test-order-late", AppName: "late", StartTime: 200000}
	earlyInfo := ds.AppInfo{AppRunId: "test-order-early", AppName: "early", StartTime: 100000}
	if err := late.HandlePacket(ds.PacketTypeAppInfo, marshalPacketData(t, lateInfo)); err != nil {
		t.Fatalf("HandlePacket failed: %v", err)
	}
	if err := early.HandlePacket(ds.PacketTypeAppInfo, marshalPacketData(t, earlyInfo)); err != nil {
		t.Fatalf("HandlePacket failed: %v", err)
	}

	earlyIdx, lateIdx := -1, -1
	for i, run := range GetAllAppRunPeerInfos(0) {
		switch run.AppRunId {
		case "test-order-early":
			earlyIdx = i
		case "test-order-late":
			lateIdx = i
		}
	}
	if earlyIdx < 0 || lateIdx < 0 {
		t.Fatal("expected both peers in the listing")
	}
	if earlyIdx > lateIdx {
		t.Errorf("expected start-time ordering, got early=%d late=%d", earlyIdx, lateIdx)
	}
}

func TestAppDoneStatusSurvivesDisconnect(t *testing.T) {
	peer := GetAppRunPeer("test-appdone")
	if err := peer.HandlePacket(ds.PacketTypeAppDone, nil); err != nil {
		t.Fatalf("HandlePacket failed: %v", err)
	}
	if peer.GetStatus() != AppStatusDone {
		t.Fatalf("expected status done, got %s", peer.GetStatus())
	}
	peer.SetConnectionClosed()
	if peer.GetStatus() != AppStatusDone {
		t.Errorf("appdone status should not be overwritten by disconnect, got %s", peer.GetStatus())
	}
}

func TestConnectionClosedMarksDisconnected(t *testing.T) {
	peer := GetAppRunPeer("test-disconnect")
	peer.SetConnectionClosed()
	if peer.GetStatus() != AppStatusDisconnected {
		t.Errorf("expected disconnected status, got %s", peer.GetStatus())
	}
}

func TestLineListenerReceivesNewLines(t *testing.T) {
	peer := GetAppRunPeer("test-listener")
	ch := make(chan ds.LogLine, 10)
	peer.AddLineListener("listener-1", ch)
	defer peer.RemoveLineListener("listener-1")

	data := marshalPacketData(t, ds.LogLine{Msg: "live line"})
	if err := peer.HandlePacket(ds.PacketTypeLog, data); err != nil {
		t.Fatalf("HandlePacket failed: %v", err)
	}

	select {
	case line := <-ch:
		if line.Msg != "live line" {
			t.Errorf("unexpected line: %q", line.Msg)
		}
	case <-time.After(time.Second):
		t.Fatal("listener did not receive the line")
	}
}

func TestSlowListenerDoesNotBlockIngestion(t *testing.T) {
	peer := GetAppRunPeer("test-slow-listener")
	ch := make(chan ds.LogLine) // unbuffered and never read
	peer.AddLineListener("slow", ch)
	defer peer.RemoveLineListener("slow")

	done := make(chan struct{})
	go func() {
		defer close(done)
		data := marshalPacketData(t, ds.LogLine{Msg: "dropped for slow listener"})
		peer.HandlePacket(ds.PacketTypeLog, data)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("packet ingestion blocked on a slow listener")
	}
}
