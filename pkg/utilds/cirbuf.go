// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package utilds

import "sync"

// CirBuf is a thread-safe generic circular buffer. It grows on demand up to
// MaxSize, after which the oldest element is overwritten. It also tracks the
// total number of elements ever written so callers can report how many
// elements were trimmed from the head.
type CirBuf[T any] struct {
	lock         sync.Mutex
	maxSize      int
	buf          []T
	head         int
	tail         int
	totalWritten int64
}

// MakeCirBuf creates a new circular buffer with the specified maximum size.
func MakeCirBuf[T any](maxSize int) *CirBuf[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &CirBuf[T]{maxSize: maxSize}
}

// Write adds an element to the buffer. When the buffer is full the oldest
// element is dropped; a pointer to the dropped element is returned, nil otherwise.
func (cb *CirBuf[T]) Write(element T) *T {
	cb.lock.Lock()
	defer cb.lock.Unlock()

	cb.totalWritten++
	if cb.head == cb.tail {
		// full, or empty with a nil slice
		curSize := cb.sizeNoLock()
		if curSize == cb.maxSize {
			dropped := cb.buf[cb.head]
			cb.buf[cb.head] = element
			cb.head = (cb.head + 1) % len(cb.buf)
			cb.tail = cb.head
			return &dropped
		}
		// grow (doubling, capped at maxSize), unwrapping into the new slice
		newBuf := make([]T, max(min(curSize*2, cb.maxSize), 1))
		copy(newBuf, cb.buf[cb.head:])
		copy(newBuf[len(cb.buf)-cb.head:], cb.buf[:cb.head])
		cb.buf = newBuf
		cb.head = 0
		cb.tail = curSize
	}
	cb.buf[cb.tail] = element
	cb.tail = (cb.tail + 1) % len(cb.buf)
	return nil
}

// Read removes and returns the oldest element. Returns the zero value and
// false when the buffer is empty. Reading the last element releases the
// backing slice so an idle buffer holds no memory.
func (cb *CirBuf[T]) Read() (T, bool) {
	cb.lock.Lock()
	defer cb.lock.Unlock()

	size := cb.sizeNoLock()
	if size == 0 {
		var zero T
		return zero, false
	}
	elem := cb.buf[cb.head]
	if size == 1 {
		cb.buf = nil
		cb.head = 0
		cb.tail = 0
	} else {
		cb.head = (cb.head + 1) % len(cb.buf)
	}
	return elem, true
}

// GetAll returns a copy of the buffer contents in write order, plus the head
// offset: the number of elements that have been trimmed off the front. The
// element at index i was the (headOffset+i+1)-th element ever written.
func (cb *CirBuf[T]) GetAll() ([]T, int64) {
	cb.lock.Lock()
	defer cb.lock.Unlock()

	size := cb.sizeNoLock()
	rtn := make([]T, 0, size)
	for i := 0; i < size; i++ {
		rtn = append(rtn, cb.buf[(cb.head+i)%len(cb.buf)])
	}
	return rtn, cb.totalWritten - int64(size)
}

// TotalWritten returns the total number of elements ever written.
func (cb *CirBuf[T]) TotalWritten() int64 {
	cb.lock.Lock()
	defer cb.lock.Unlock()
	return cb.totalWritten
}

func (cb *CirBuf[T]) sizeNoLock() int {
	if cb.buf == nil {
		return 0
	}
	if cb.head == cb.tail {
		return len(cb.buf)
	}
	if cb.head < cb.tail {
		return cb.tail - cb.head
	}
	return len(cb.buf) - cb.head + cb.tail
}

// Size returns the current number of elements in the buffer.
func (cb *CirBuf[T]) Size() int {
	cb.lock.Lock()
	defer cb.lock.Unlock()
	return cb.sizeNoLock()
}

// IsEmpty returns true if the buffer is empty.
func (cb *CirBuf[T]) IsEmpty() bool {
	return cb.Size() == 0
}

// IsFull returns true if the buffer is at its maximum size.
func (cb *CirBuf[T]) IsFull() bool {
	return cb.Size() == cb.maxSize
}
