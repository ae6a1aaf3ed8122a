// Package recency provides a fixed-capacity, most-recent-first queue used
// to remember which scraped items were already seen.
package recency

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidCapacity = errors.New("recency: capacity must be > 0")

// Set is a bounded recency queue: Put inserts at the front and evicts the
// oldest item once Cap is reached.
//
// Put does not collapse duplicates. Re-putting a known item stores another
// copy at the front, so a repeatedly seen item can occupy several slots.
//
// Set is not safe for concurrent use.
type Set[T comparable] struct {
	capacity int
	items    []T
}

// New builds a Set from items (front = most recent), keeping at most
// capacity of them.
func New[T comparable](items []T, capacity int) (*Set[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCapacity, capacity)
	}
	n := min(len(items), capacity)
	buf := make([]T, n, capacity)
	copy(buf, items[:n])
	return &Set[T]{capacity: capacity, items: buf}, nil
}

// Put inserts item as the most recent entry.
func (s *Set[T]) Put(item T) {
	if len(s.items) == s.capacity {
		s.items = s.items[:len(s.items)-1]
	}
	s.items = slices.Insert(s.items, 0, item)
}

// Have reports whether item is currently retained.
func (s *Set[T]) Have(item T) bool {
	return slices.Contains(s.items, item)
}

// Items returns a copy of the retained items, most recent first.
func (s *Set[T]) Items() []T {
	return slices.Clone(s.items)
}

func (s *Set[T]) Len() int { return len(s.items) }

func (s *Set[T]) Cap() int { return s.capacity }
