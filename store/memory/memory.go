/*
Package memory provides an in-memory store for tests and development.

PURPOSE:
  Implements ledger.Store and pool.Store with maps behind a RWMutex. Listing
  order is insertion order, matching what the SQLite store returns, so tests
  written against either behave the same.

NO DELETE:
  Mirrors the persistence contract: assignments are never removed, only
  their status changes.

SEE ALSO:
  - store/sqlite/sqlite.go: the production implementation
*/
package memory

import (
	"context"
	"sync"

	"github.com/warp/license-engine/ledger"
	"github.com/warp/license-engine/pool"
)

// Store implements ledger.Store and pool.Store in memory.
type Store struct {
	mu sync.RWMutex

	assignments     map[string]ledger.Assignment
	assignmentOrder []string

	pools     map[string]pool.Pool
	poolOrder []string
}

func New() *Store {
	return &Store{
		assignments: make(map[string]ledger.Assignment),
		pools:       make(map[string]pool.Pool),
	}
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) InsertAssignment(_ context.Context, a ledger.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assignments[a.ID]; !exists {
		s.assignmentOrder = append(s.assignmentOrder, a.ID)
	}
	s.assignments[a.ID] = a
	return nil
}

func (s *Store) GetAssignment(_ context.Context, id string) (ledger.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return ledger.Assignment{}, ledger.ErrAssignmentNotFound
	}
	return a, nil
}

func (s *Store) SetAssignmentStatus(_ context.Context, id string, status ledger.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return ledger.ErrAssignmentNotFound
	}
	a.Status = status
	s.assignments[id] = a
	return nil
}

func (s *Store) ListAssignments(_ context.Context, f ledger.Filter) ([]ledger.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Assignment
	for _, id := range s.assignmentOrder {
		if a := s.assignments[id]; f.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CountActive(_ context.Context, poolID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.assignments {
		if a.PoolID == poolID && a.Status == ledger.StatusActive {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// POOL STORE
// =============================================================================

func (s *Store) SavePool(_ context.Context, p pool.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pools[p.ID]; !exists {
		s.poolOrder = append(s.poolOrder, p.ID)
	}
	s.pools[p.ID] = p
	return nil
}

func (s *Store) GetPool(_ context.Context, id string) (pool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[id]
	if !ok {
		return pool.Pool{}, pool.ErrPoolNotFound
	}
	return p, nil
}

func (s *Store) PoolBySoftwareID(_ context.Context, softwareID string) (pool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.poolOrder {
		if p := s.pools[id]; p.SoftwareID == softwareID {
			return p, nil
		}
	}
	return pool.Pool{}, pool.ErrPoolNotFound
}

func (s *Store) ListPools(_ context.Context) ([]pool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pool.Pool, 0, len(s.poolOrder))
	for _, id := range s.poolOrder {
		out = append(out, s.pools[id])
	}
	return out, nil
}
