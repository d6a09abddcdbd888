// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package utilds

import "sync"

type SyncMap[K comparable, V any] struct {
	lock sync.Mutex
	m    map[K]V
}

func MakeSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{m: make(map[K]V)}
}

func (sm *SyncMap[K, V]) Set(key K, value V) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	sm.m[key] = value
}

func (sm *SyncMap[K, V]) Get(key K) V {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.m[key]
}

func (sm *SyncMap[K, V]) GetEx(key K) (V, bool) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	v, ok := sm.m[key]
	return v, ok
}

func (sm *SyncMap[K, V]) Delete(key K) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	delete(sm.m, key)
}

// GetOrCreate returns the value for key, calling createFn to make one if the
// key is absent. The second return is true if the key already existed.
func (sm *SyncMap[K, V]) GetOrCreate(key K, createFn func() V) (V, bool) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	if v, ok := sm.m[key]; ok {
		return v, true
	}
	newVal := createFn()
	sm.m[key] = newVal
	return newVal, false
}

func (sm *SyncMap[K, V]) Keys() []K {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	keys := make([]K, 0, len(sm.m))
	for k := range sm.m {
		keys = append(keys, k)
	}
	return keys
}

func (sm *SyncMap[K, V]) Len() int {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return len(sm.m)
}
