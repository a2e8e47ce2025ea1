package util

import (
	"cmp"
	"slices"
	"sync"
)

// ConcurrentMap is a mutex guarded map whose listings come back in key order.
type ConcurrentMap[K cmp.Ordered, V any] struct {
	mutex sync.RWMutex
	mp    map[K]V
}

func NewConcurrentMap[K cmp.Ordered, V any]() *ConcurrentMap[K, V] {
	return &ConcurrentMap[K, V]{mp: make(map[K]V)}
}

func (m *ConcurrentMap[K, V]) Get(key K) (V, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	v, ok := m.mp[key]
	return v, ok
}

func (m *ConcurrentMap[K, V]) Set(key K, value V) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.mp[key] = value
}

// SetIfAbsent stores value unless key is present and reports whether it stored it.
func (m *ConcurrentMap[K, V]) SetIfAbsent(key K, value V) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.mp[key]; ok {
		return false
	}
	m.mp[key] = value
	return true
}

func (m *ConcurrentMap[K, V]) Delete(key K) (V, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	v, ok := m.mp[key]
	if ok {
		delete(m.mp, key)
	}
	return v, ok
}

func (m *ConcurrentMap[K, V]) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.mp)
}

func (m *ConcurrentMap[K, V]) Keys() []K {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	keys := make([]K, 0, len(m.mp))
	for k := range m.mp {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Values returns the values ordered by key.
func (m *ConcurrentMap[K, V]) Values() []V {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	keys := make([]K, 0, len(m.mp))
	for k := range m.mp {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	values := make([]V, len(keys))
	for i, k := range keys {
		values[i] = m.mp[k]
	}
	return values
}
