//go:build linux

// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package console

import "golang.org/x/sys/unix"

// dup2Wrap on Linux uses Dup3 with flags 0 (mimicking dup2)
func dup2Wrap(oldfd, newfd int) error {
	return unix.Dup3(oldfd, newfd, 0)
}
