// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tailpipedev/tailpipe/pkg/dispatch"
)

type recorder struct {
	lock        sync.Mutex
	passthrough []string
	lines       []string
	flags       []bool
	// events interleaves "pt:<text>" and "sink:<line>" in invocation order
	events []string
}

func (r *recorder) passthroughFn(text string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.passthrough = append(r.passthrough, text)
	r.events = append(r.events, "pt:"+text)
}

func (r *recorder) sinkFn(line string, toConsole bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.lines = append(r.lines, line)
	r.flags = append(r.flags, toConsole)
	r.events = append(r.events, "sink:"+line)
}

func (r *recorder) getLines() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	rtn := make([]string, len(r.lines))
	copy(rtn, r.lines)
	return rtn
}

// testEnv holds a stream wired to a recorder. The dispatcher's owner loop is
// started lazily by drain so tests can issue writes with full control over
// when deferred flushes run.
type testEnv struct {
	stream  *ConsoleStream
	rec     *recorder
	disp    *dispatch.Dispatcher
	runOnce sync.Once
}

func makeTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		rec:  &recorder{},
		disp: dispatch.MakeDispatcher(),
	}
	env.stream = MakeConsoleStream(nil, "/dev/stdout", env.rec.passthroughFn, env.rec.sinkFn, env.disp)
	t.Cleanup(env.disp.Stop)
	return env
}

// drain starts the owner loop (first call only) and waits until every op
// scheduled before the call has executed.
func (env *testEnv) drain(t *testing.T) {
	t.Helper()
	env.runOnce.Do(func() { go env.disp.Run() })
	done := make(chan struct{})
	env.disp.Schedule(func() { close(done) }, dispatch.ScheduleOpts{})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out draining dispatcher")
	}
}

func TestFragmentsCoalesceIntoOneLine(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("a")
	env.stream.WriteString("b")
	env.stream.WriteString("c\n")
	env.drain(t)

	lines := env.rec.getLines()
	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 sink call, got %d: %v", len(lines), lines)
	}
	if lines[0] != "abc" {
		t.Errorf("expected line %q, got %q", "abc", lines[0])
	}
}

func TestCompleteLinesShipInOrder(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("x\n")
	env.stream.WriteString("y\n")
	env.drain(t)

	lines := env.rec.getLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 sink calls, got %d: %v", len(lines), lines)
	}
	if lines[0] != "x" || lines[1] != "y" {
		t.Errorf("expected [x y], got %v", lines)
	}
}

func TestEmptyWriteNeverShips(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("")
	env.drain(t)

	env.rec.lock.Lock()
	defer env.rec.lock.Unlock()
	if len(env.rec.passthrough) != 1 || env.rec.passthrough[0] != "" {
		t.Errorf("passthrough should receive the empty write verbatim, got %v", env.rec.passthrough)
	}
	if len(env.rec.lines) != 0 {
		t.Errorf("empty accumulation must not ship, got %v", env.rec.lines)
	}
}

func TestShipWithEmptyPendingIsNoop(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.shipPending()
	env.stream.shipPending()

	if len(env.rec.getLines()) != 0 {
		t.Errorf("shipping an empty buffer must not invoke the sink, got %v", env.rec.getLines())
	}
}

func TestPassthroughVerbatimAndBeforeSink(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("hello ")
	env.stream.WriteString("world\n")
	env.drain(t)

	env.rec.lock.Lock()
	defer env.rec.lock.Unlock()
	if len(env.rec.passthrough) != 2 || env.rec.passthrough[0] != "hello " || env.rec.passthrough[1] != "world\n" {
		t.Errorf("passthrough should receive every write argument verbatim, got %v", env.rec.passthrough)
	}
	want := []string{"pt:hello ", "pt:world\n", "sink:hello world"}
	if len(env.rec.events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, env.rec.events)
	}
	for i := range want {
		if env.rec.events[i] != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], env.rec.events[i])
		}
	}
}

func TestSinkNeverAsksForConsoleEcho(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("line\n")
	env.stream.WriteString("partial")
	env.drain(t)

	env.rec.lock.Lock()
	defer env.rec.lock.Unlock()
	if len(env.rec.flags) != 2 {
		t.Fatalf("expected 2 sink calls, got %d", len(env.rec.flags))
	}
	for i, flag := range env.rec.flags {
		if flag {
			t.Errorf("sink call %d requested a redundant console echo", i)
		}
	}
}

func TestDeferredFlushCoalescesAndDedups(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("p")
	env.stream.WriteString("q")
	env.stream.WriteString("r")

	// the flushScheduled guard allows only one pending flush for the three
	// partial writes
	if scheduled := env.disp.NumScheduled(); scheduled != 1 {
		t.Errorf("expected 1 scheduled flush, got %d", scheduled)
	}

	env.drain(t)
	lines := env.rec.getLines()
	if len(lines) != 1 || lines[0] != "pqr" {
		t.Fatalf("expected single coalesced line %q, got %v", "pqr", lines)
	}
}

func TestRedundantScheduledFlushIsHarmless(t *testing.T) {
	env := makeTestEnv(t)

	// the partial write schedules a flush; the terminator write ships
	// synchronously, leaving the scheduled flush to run against an empty
	// buffer
	env.stream.WriteString("a")
	env.stream.WriteString("b\n")
	env.drain(t)

	lines := env.rec.getLines()
	if len(lines) != 1 || lines[0] != "ab" {
		t.Errorf("expected exactly one line %q, got %v", "ab", lines)
	}
}

func TestWriteDuringShipReschedules(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("one")
	env.drain(t)
	env.stream.WriteString("two")
	env.drain(t)

	lines := env.rec.getLines()
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("expected [one two], got %v", lines)
	}
}

func TestMultiLineWriteShipsAsOneEntry(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("first\nsecond\n")
	env.drain(t)

	lines := env.rec.getLines()
	if len(lines) != 1 || lines[0] != "first\nsecond" {
		t.Errorf("expected single entry with interior newline preserved, got %v", lines)
	}
}

func TestConcurrentWritersNoLossNoDuplication(t *testing.T) {
	env := makeTestEnv(t)

	numWriters := 50
	var wg sync.WaitGroup
	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			env.stream.WriteString(fmt.Sprintf("token-%d\n", id))
		}(i)
	}
	wg.Wait()
	env.drain(t)

	// racing writers can legally coalesce into one shipped entry with
	// interior newlines, so split entries back into tokens before counting
	seen := make(map[string]int)
	for _, line := range env.rec.getLines() {
		for _, token := range strings.Split(line, "\n") {
			seen[token]++
		}
	}
	for i := 0; i < numWriters; i++ {
		token := fmt.Sprintf("token-%d", i)
		if seen[token] != 1 {
			t.Errorf("expected token %q exactly once, got %d", token, seen[token])
		}
	}
}

func TestFlushDoesNotShipPending(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("buffered")
	if err := env.stream.Flush(); err != nil {
		t.Errorf("Flush with nil orig file should not error, got %v", err)
	}
	if len(env.rec.getLines()) != 0 {
		t.Errorf("Flush must not ship pending fragments, got %v", env.rec.getLines())
	}

	env.drain(t)
	lines := env.rec.getLines()
	if len(lines) != 1 || lines[0] != "buffered" {
		t.Errorf("deferred flush should still ship %q, got %v", "buffered", lines)
	}
}

func TestDrainPendingShipsPartialLine(t *testing.T) {
	env := makeTestEnv(t)

	env.stream.WriteString("last words")
	env.stream.DrainPending()

	lines := env.rec.getLines()
	if len(lines) != 1 || lines[0] != "last words" {
		t.Fatalf("expected drained partial line, got %v", lines)
	}

	// the scheduled flush left over from the partial write must run as a no-op
	env.drain(t)
	if len(env.rec.getLines()) != 1 {
		t.Errorf("drain left a duplicate ship behind: %v", env.rec.getLines())
	}
}

func TestWriteReturnsInputLength(t *testing.T) {
	env := makeTestEnv(t)

	n, err := env.stream.Write([]byte("abc\n"))
	if err != nil {
		t.Errorf("Write must not error, got %v", err)
	}
	if n != 4 {
		t.Errorf("expected n=4, got %d", n)
	}
}
