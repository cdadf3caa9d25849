// Package memory is an in-memory timesheet used by tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kintai/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows map[int64]core.WorkEntry
}

func New() *Store {
	return &Store{rows: make(map[int64]core.WorkEntry)}
}

// UpsertEntry stores the entry keyed by id and returns a synthetic reference.
func (s *Store) UpsertEntry(_ context.Context, e core.WorkEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[e.ID] = e
	return fmt.Sprintf("mem:%d", e.ID), nil
}

// DeleteEntry removes the row; unknown ids are a no-op.
func (s *Store) DeleteEntry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Entry returns a mirrored row for assertions.
func (s *Store) Entry(id int64) (core.WorkEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	return e, ok
}

// Len returns the number of mirrored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
