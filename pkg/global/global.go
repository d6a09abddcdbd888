// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package global

import (
	"sync/atomic"

	"github.com/tailpipedev/tailpipe/pkg/ds"
)

// The main guard flag to indicate if shipping is enabled (a live collector
// connection exists). Most SDK functions check this flag before proceeding.
var TailpipeEnabled atomic.Bool

// Set when the user force-disabled the SDK via Disable()
var TailpipeForceDisabled atomic.Bool

// Reference to the main controller (the shipper).
var Controller atomic.Pointer[ds.Controller]

func GetController() ds.Controller {
	c := Controller.Load()
	if c == nil || *c == nil {
		return nil
	}
	return *c
}
