// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package utilds

import (
	"sync"
	"testing"
)

func TestCirBufBasicOperations(t *testing.T) {
	cb := MakeCirBuf[int](5)

	if !cb.IsEmpty() {
		t.Error("New buffer should be empty")
	}
	if cb.Size() != 0 {
		t.Errorf("Expected size 0, got %d", cb.Size())
	}

	cb.Write(10)
	cb.Write(20)
	cb.Write(30)

	if cb.Size() != 3 {
		t.Errorf("Expected size 3, got %d", cb.Size())
	}
	if cb.IsFull() {
		t.Error("Buffer should not be full yet")
	}

	val, ok := cb.Read()
	if !ok || val != 10 {
		t.Errorf("Expected to read 10, got %d (ok: %v)", val, ok)
	}
	val, ok = cb.Read()
	if !ok || val != 20 {
		t.Errorf("Expected to read 20, got %d (ok: %v)", val, ok)
	}
	val, ok = cb.Read()
	if !ok || val != 30 {
		t.Errorf("Expected to read 30, got %d (ok: %v)", val, ok)
	}

	if !cb.IsEmpty() {
		t.Error("Buffer should be empty after reading all elements")
	}
	_, ok = cb.Read()
	if ok {
		t.Error("Reading from empty buffer should return false")
	}
}

func TestCirBufOverwrite(t *testing.T) {
	cb := MakeCirBuf[string](3)

	if dropped := cb.Write("A"); dropped != nil {
		t.Errorf("No element should be dropped, got %v", *dropped)
	}
	cb.Write("B")
	cb.Write("C")

	dropped := cb.Write("D")
	if dropped == nil || *dropped != "A" {
		t.Errorf("Expected to drop A, got %v", dropped)
	}

	elems, offset := cb.GetAll()
	if len(elems) != 3 {
		t.Fatalf("Expected 3 elements, got %d", len(elems))
	}
	if elems[0] != "B" || elems[1] != "C" || elems[2] != "D" {
		t.Errorf("Unexpected contents: %v", elems)
	}
	if offset != 1 {
		t.Errorf("Expected head offset 1, got %d", offset)
	}
	if cb.TotalWritten() != 4 {
		t.Errorf("Expected total written 4, got %d", cb.TotalWritten())
	}
}

func TestCirBufGetAllEmpty(t *testing.T) {
	cb := MakeCirBuf[int](4)
	elems, offset := cb.GetAll()
	if len(elems) != 0 || offset != 0 {
		t.Errorf("Expected empty result, got %v offset %d", elems, offset)
	}
}

func TestCirBufConcurrent(t *testing.T) {
	cb := MakeCirBuf[int](1000)
	var wg sync.WaitGroup
	numWriters := 10
	writesPerWriter := 100

	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < writesPerWriter; j++ {
				cb.Write(base*writesPerWriter + j)
			}
		}(i)
	}
	wg.Wait()

	if cb.Size() != numWriters*writesPerWriter {
		t.Errorf("Expected size %d, got %d", numWriters*writesPerWriter, cb.Size())
	}
	if cb.TotalWritten() != int64(numWriters*writesPerWriter) {
		t.Errorf("Expected total written %d, got %d", numWriters*writesPerWriter, cb.TotalWritten())
	}
}
