//go:build windows

// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"errors"
	"os"
)

// fd taps rely on dup2 semantics; not supported on Windows. The interceptor
// streams still work as explicit io.Writers.
func MakeFileTap(origFile *os.File, source string) (FileTap, error) {
	return nil, errors.New("fd taps are not supported on windows")
}
