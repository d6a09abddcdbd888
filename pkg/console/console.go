// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package console implements the console-stream interceptor: a drop-in
// stand-in for stdout/stderr that echoes every write to the real stream
// immediately and separately accumulates writes into logical lines that are
// shipped to a log sink. Partial writes (no trailing newline) are coalesced
// by deferring the ship to the dispatcher's owner goroutine, so a sequence
// like fmt.Print("foo", 123, "bar") ships as one log entry.
package console

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/tailpipedev/tailpipe/pkg/dispatch"
)

// PassthroughFn receives the raw text of every write, before any buffering.
// It drives the real terminal output.
type PassthroughFn = func(text string)

// LogSinkFn receives a finalized line with its trailing newline stripped.
// toConsole is always false from this package: the terminal echo already
// happened via the passthrough, and the sink must not print the line again.
type LogSinkFn = func(line string, toConsole bool)

// ConsoleStream wraps one real output stream. One instance exists per
// intercepted stream for the lifetime of the process.
type ConsoleStream struct {
	lock           sync.Mutex // guards pending and flushScheduled
	pending        []string
	flushScheduled bool

	origFile    *os.File // for Flush/IsTerminal delegation; may be nil
	source      string
	passthrough PassthroughFn
	sink        LogSinkFn
	disp        *dispatch.Dispatcher
}

var _ io.Writer = (*ConsoleStream)(nil)
var _ io.StringWriter = (*ConsoleStream)(nil)

// MakeConsoleStream creates an interceptor for one stream. origFile is the
// real underlying stream (used only for Flush/IsTerminal delegation); source
// names the stream on shipped lines ("/dev/stdout" or "/dev/stderr").
func MakeConsoleStream(origFile *os.File, source string, passthrough PassthroughFn, sink LogSinkFn, disp *dispatch.Dispatcher) *ConsoleStream {
	return &ConsoleStream{
		origFile:    origFile,
		source:      source,
		passthrough: passthrough,
		sink:        sink,
		disp:        disp,
	}
}

// WriteString intercepts one write. The text is forwarded to the passthrough
// first, unconditionally, so terminal output is never delayed by the logging
// path. The text is then appended to the pending fragments; if it ends in a
// newline the accumulated line ships synchronously on the calling goroutine,
// otherwise a deferred ship is scheduled on the owner goroutine (at most one
// outstanding per stream).
func (s *ConsoleStream) WriteString(text string) (int, error) {
	if s.passthrough != nil {
		s.passthrough(text)
	}

	endsWithNewline := strings.HasSuffix(text, "\n")
	needSchedule := false
	s.lock.Lock()
	s.pending = append(s.pending, text)
	if !endsWithNewline && !s.flushScheduled {
		s.flushScheduled = true
		needSchedule = true
	}
	s.lock.Unlock()

	if endsWithNewline {
		// complete line: ship immediately, bypassing the scheduler, so
		// finished lines reach the sink promptly even from non-owner
		// goroutines
		s.shipPending()
	} else if needSchedule {
		s.disp.Schedule(s.shipPending, dispatch.ScheduleOpts{
			FromOtherThread:          true,
			SuppressDuplicateWarning: true,
		})
	}
	return len(text), nil
}

// Write implements io.Writer so the stream drops into exec.Cmd.Stdout,
// log.SetOutput, io.Copy, and friends. It never returns an error.
func (s *ConsoleStream) Write(p []byte) (int, error) {
	s.WriteString(string(p))
	return len(p), nil
}

// shipPending converts the accumulated fragments into a single logical line
// and hands it to the sink, exactly once per accumulated batch. Safe to call
// with nothing pending (a no-op). The flushScheduled guard is cleared before
// the body runs so a write arriving during sink delivery can re-schedule.
func (s *ConsoleStream) shipPending() {
	s.lock.Lock()
	s.flushScheduled = false
	if len(s.pending) == 0 {
		s.lock.Unlock()
		return
	}
	line := strings.Join(s.pending, "")
	s.pending = s.pending[:0]
	s.lock.Unlock()

	if line == "" {
		// fragments were all empty strings; nothing to ship
		return
	}
	// log lines don't carry a trailing newline (strip exactly one)
	if strings.HasSuffix(line, "\n") {
		line = line[:len(line)-1]
	}
	if s.sink != nil {
		s.sink(line, false)
	}
}

// DrainPending ships whatever fragments are buffered right now, without
// waiting for a newline or the scheduler. Intended for shutdown paths so a
// final partial line is not lost.
func (s *ConsoleStream) DrainPending() {
	s.shipPending()
}

// Flush flushes the underlying real stream. It deliberately does not ship
// pending fragments; buffered-but-unshipped text remains the scheduler's
// responsibility.
func (s *ConsoleStream) Flush() error {
	if s.origFile == nil {
		return nil
	}
	// Sync can fail on character devices (ttys); that is not an error the
	// caller can act on
	err := s.origFile.Sync()
	if err != nil && isTerminalFile(s.origFile) {
		return nil
	}
	return err
}

// IsTerminal reports whether the underlying real stream is a terminal.
func (s *ConsoleStream) IsTerminal() bool {
	return isTerminalFile(s.origFile)
}

// Source returns the stream's source name.
func (s *ConsoleStream) Source() string {
	return s.source
}

func isTerminalFile(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
