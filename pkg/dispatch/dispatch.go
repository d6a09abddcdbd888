// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/tailpipedev/tailpipe/pkg/panichandler"
)

// Dispatcher executes scheduled operations on a single owner goroutine (the
// goroutine that calls Run), regardless of which goroutine issued the
// request. Schedule never blocks the caller: the pending operations live in
// an unbounded queue that the owner goroutine drains in enqueue order.
//
// The dispatcher makes no attempt to deduplicate operations. Callers that
// need at-most-one-pending semantics (like the console interceptor's
// flushScheduled guard) handle that themselves; redundant Schedule calls are
// legal and produce no diagnostics.
type Dispatcher struct {
	lock    sync.Mutex
	queue   *linkedlistqueue.Queue
	wake    chan struct{}
	stopped bool

	numScheduled atomic.Int64
	numExecuted  atomic.Int64
}

// ScheduleOpts carries caller context for a Schedule call. The flags exist
// for contract symmetry with callers on non-owner goroutines; neither one
// changes scheduling behavior.
type ScheduleOpts struct {
	// FromOtherThread indicates the caller may not be the owner goroutine.
	FromOtherThread bool

	// SuppressDuplicateWarning indicates the request may legitimately be
	// redundant (issued again before a previous one ran).
	SuppressDuplicateWarning bool
}

func MakeDispatcher() *Dispatcher {
	return &Dispatcher{
		queue: linkedlistqueue.New(),
		wake:  make(chan struct{}, 1),
	}
}

// Schedule enqueues op for execution on the owner goroutine and returns
// immediately. Ops run later, in enqueue order. Ops scheduled after Stop are
// dropped.
func (d *Dispatcher) Schedule(op func(), opts ScheduleOpts) {
	if op == nil {
		return
	}
	d.lock.Lock()
	if d.stopped {
		d.lock.Unlock()
		return
	}
	d.queue.Enqueue(op)
	d.lock.Unlock()
	d.numScheduled.Add(1)
	d.signalWake()
}

// Run drains the queue, executing each operation in order. It blocks until
// Stop is called and the queue is empty. The goroutine that calls Run is the
// owner goroutine.
func (d *Dispatcher) Run() {
	for {
		op, keepGoing := d.dequeue()
		if op != nil {
			d.runOp(op)
			continue
		}
		if !keepGoing {
			return
		}
		<-d.wake
	}
}

// Stop shuts the dispatcher down. Already-queued operations still run before
// Run returns; new Schedule calls become no-ops.
func (d *Dispatcher) Stop() {
	d.lock.Lock()
	d.stopped = true
	d.lock.Unlock()
	d.signalWake()
}

// NumExecuted returns the number of operations that have finished executing.
func (d *Dispatcher) NumExecuted() int64 {
	return d.numExecuted.Load()
}

// NumScheduled returns the number of operations accepted by Schedule.
func (d *Dispatcher) NumScheduled() int64 {
	return d.numScheduled.Load()
}

func (d *Dispatcher) runOp(op func()) {
	defer func() {
		panichandler.PanicHandler("dispatch.Run", recover())
		d.numExecuted.Add(1)
	}()
	op()
}

// dequeue returns the next operation, or (nil, true) when the queue is empty
// but the dispatcher is still live, or (nil, false) when stopped and drained.
func (d *Dispatcher) dequeue() (func(), bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	v, ok := d.queue.Dequeue()
	if ok {
		return v.(func()), true
	}
	return nil, !d.stopped
}

func (d *Dispatcher) signalWake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}
