package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConcurrentMap(t *testing.T) {
	m := NewConcurrentMap[string, int]()
	m.Set("b", 2)
	m.Set("a", 1)
	require.True(t, m.SetIfAbsent("c", 3))
	require.False(t, m.SetIfAbsent("a", 10))

	require.Equal(t, []string{"a", "b", "c"}, m.Keys())
	require.Equal(t, []int{1, 2, 3}, m.Values())

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = m.Delete("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	_, ok = m.Delete("a")
	require.False(t, ok)
	require.Equal(t, 2, m.Len())
}

func TestConcurrentMapParallelSetIfAbsent(t *testing.T) {
	m := NewConcurrentMap[int, int]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	stored := 0
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.SetIfAbsent(i%10, i) {
				mu.Lock()
				stored++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 10, stored)
	require.Equal(t, 10, m.Len())
}
