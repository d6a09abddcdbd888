// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package panichandler

import (
	"fmt"
	"runtime/debug"

	"github.com/tailpipedev/tailpipe/pkg/global"
)

// PanicHandler logs a recovered panic through the controller (if one is
// installed) and converts it to an error. Meant to be called with the result
// of recover() at goroutine roots.
func PanicHandler(debugStr string, recoverVal any) error {
	if recoverVal == nil {
		return nil
	}
	c := global.Controller.Load()
	if c != nil {
		(*c).ILog("[panic] in %s: %v", debugStr, recoverVal)
		(*c).ILog("[panic] stack trace:\n%s", string(debug.Stack()))
	}
	if err, ok := recoverVal.(error); ok {
		return fmt.Errorf("panic in %s: %w", debugStr, err)
	}
	return fmt.Errorf("panic in %s: %v", debugStr, recoverVal)
}
