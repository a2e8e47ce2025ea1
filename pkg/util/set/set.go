package set

import (
	"fmt"
	"sort"
)

// Set is an unordered collection of unique values. It is not safe for concurrent use.
type Set[T comparable] struct {
	values map[T]struct{}
}

func New[T comparable](values ...T) *Set[T] {
	s := &Set[T]{values: make(map[T]struct{}, len(values))}
	s.Add(values...)
	return s
}

func (s *Set[T]) Add(values ...T) {
	for _, v := range values {
		s.values[v] = struct{}{}
	}
}

// AddNew adds value and reports whether it was absent before.
func (s *Set[T]) AddNew(value T) bool {
	if _, ok := s.values[value]; ok {
		return false
	}
	s.values[value] = struct{}{}
	return true
}

func (s *Set[T]) Remove(values ...T) {
	for _, v := range values {
		delete(s.values, v)
	}
}

func (s *Set[T]) Len() int {
	return len(s.values)
}

func (s *Set[T]) Empty() bool {
	return len(s.values) == 0
}

func (s *Set[T]) Contains(value T) bool {
	_, ok := s.values[value]
	return ok
}

func (s *Set[T]) Slice() []T {
	res := make([]T, 0, len(s.values))
	for v := range s.values {
		res = append(res, v)
	}
	return res
}

func (s *Set[T]) SortedSliceFunc(less func(a, b T) bool) []T {
	res := s.Slice()
	sort.Slice(res, func(i, j int) bool {
		return less(res[i], res[j])
	})
	return res
}

func (s *Set[T]) String() string {
	return fmt.Sprint(s.Slice())
}
