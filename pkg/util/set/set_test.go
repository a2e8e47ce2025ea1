package set

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetContains(t *testing.T) {
	s := New[int]()
	s.Add([]int{1, 3}...)
	require.True(t, s.Contains(1))
	require.False(t, s.Contains(2))
	require.True(t, s.Contains(3))

	s.Remove(1)
	require.False(t, s.Contains(1))

	s.Add(2)
	require.True(t, s.Contains(2))
	require.Equal(t, 2, s.Len())
}

func TestSetAddNew(t *testing.T) {
	s := New("a")
	require.False(t, s.AddNew("a"))
	require.True(t, s.AddNew("b"))
	require.False(t, s.AddNew("b"))
	require.Equal(t, 2, s.Len())
}

func TestSetSorted(t *testing.T) {
	s := New(3, 1, 2, 1)
	require.Equal(t, []int{1, 2, 3}, s.SortedSliceFunc(func(a, b int) bool { return a < b }))
	require.Equal(t, fmt.Sprint([]int{1}), New(1).String())
	require.True(t, New[int]().Empty())
}
