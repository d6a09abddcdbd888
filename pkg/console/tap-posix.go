// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package console

import (
	"fmt"
	"os"
	"syscall"
)

type pipeTap struct {
	wrappedFDNum  int
	dupedOrigFD   int
	dupedOrigFile *os.File
	source        string

	pipeR, pipeW *os.File
}

// MakeFileTap dups origFile's descriptor and replaces the descriptor with
// the write end of a pipe. source names the stream ("/dev/stdout" etc).
func MakeFileTap(origFile *os.File, source string) (FileTap, error) {
	fd := int(origFile.Fd())
	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	dupedFDNum, err := syscall.Dup(fd)
	if err != nil {
		_ = pipeR.Close()
		_ = pipeW.Close()
		return nil, fmt.Errorf("failed to dup fd: %w", err)
	}
	err = dup2Wrap(int(pipeW.Fd()), fd)
	if err != nil {
		_ = pipeR.Close()
		_ = pipeW.Close()
		_ = syscall.Close(dupedFDNum)
		return nil, fmt.Errorf("failed to dup2 fd: %w", err)
	}
	return &pipeTap{
		wrappedFDNum:  fd,
		dupedOrigFD:   dupedFDNum,
		dupedOrigFile: os.NewFile(uintptr(dupedFDNum), source),
		source:        source,
		pipeR:         pipeR,
		pipeW:         pipeW,
	}, nil
}

func (t *pipeTap) OrigFile() *os.File {
	return t.dupedOrigFile
}

func (t *pipeTap) Start(stream *ConsoleStream) {
	go t.run(stream)
}

func (t *pipeTap) run(stream *ConsoleStream) {
	buf := make([]byte, 4096)
	for {
		n, err := t.pipeR.Read(buf)
		if n > 0 {
			// the stream handles both the passthrough echo (to the duped
			// original fd) and the line accumulation
			stream.WriteString(string(buf[:n]))
		}
		if err != nil {
			break
		}
	}
}

func (t *pipeTap) Restore() (*os.File, error) {
	err := dup2Wrap(t.dupedOrigFD, t.wrappedFDNum)
	if err != nil {
		return nil, fmt.Errorf("failed to restore fd: %w", err)
	}
	_ = t.pipeR.Close()
	_ = t.pipeW.Close()
	_ = t.dupedOrigFile.Close()
	return os.NewFile(uintptr(t.wrappedFDNum), t.source), nil
}
