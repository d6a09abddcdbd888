//go:build !linux && !windows

// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package console

import "syscall"

func dup2Wrap(oldfd, newfd int) error {
	return syscall.Dup2(oldfd, newfd)
}
