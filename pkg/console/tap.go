// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package console

import "os"

// FileTap redirects a real file descriptor (stdout or stderr) through a pipe
// so that output written directly to the fd (fmt, cgo, child processes) also
// flows through a ConsoleStream. The tap holds a dup of the original fd; the
// stream's passthrough should write to OrigFile() so terminal output still
// lands on the real destination.
//
// Installation order: MakeFileTap first (it swaps the fd), then build the
// ConsoleStream around OrigFile(), then Start. Output written between the
// swap and Start sits in the pipe buffer and is picked up by the first reads.
type FileTap interface {
	// OrigFile returns a dup of the original stream, still connected to the
	// real destination.
	OrigFile() *os.File

	// Start launches the pump goroutine feeding pipe reads into the stream.
	Start(stream *ConsoleStream)

	// Restore puts the original fd back and tears down the pipe. Returns a
	// file for the restored fd.
	Restore() (*os.File, error)
}
