/*
Package ledger owns the per-employee, per-pool assignment records and their
status lifecycle.

PURPOSE:
  The Ledger is the source of truth for seat usage. Every seat handed to an
  employee is an Assignment record here; a pool's assignedSeats figure is
  DERIVED by counting active records, never stored independently.

CRITICAL INVARIANTS:
  1. Assignments are never deleted. Status transitions are the only mutation.
  2. At most one ACTIVE assignment per (employee, pool). Hard block at assign
     time, no override.
  3. active -> expired and active -> revoked are the only transitions. Both
     terminal. A corrected assignment means a new record, not a reopened one.
  4. Mutations for a given pool are serialized: the duplicate check and the
     insert happen under a per-pool mutex, so two concurrent assigns cannot
     both pass the check.

STATE MACHINE:
  active --(explicit action)--> revoked   [terminal]
  active --(policy, expiration due)--> expired  [terminal]

SEE ALSO:
  - ledger.go: assign/revoke/expire operations and queries
  - pool/pool.go: capacity bookkeeping that consumes ActiveCount
*/
package ledger

import (
	"context"
	"strings"
	"time"
)

// =============================================================================
// STATUS - Assignment lifecycle state
// =============================================================================

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// ParseStatus resolves a status case-insensitively, normalizing for storage.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, true
	case StatusExpired:
		return StatusExpired, true
	case StatusRevoked:
		return StatusRevoked, true
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// CanTransition reports whether from -> to is a legal move. Nothing leads
// back to active.
func CanTransition(from, to Status) bool {
	return from == StatusActive && to.Terminal()
}

// =============================================================================
// ASSIGNMENT - One employee holding one seat in one pool
// =============================================================================

// Assignment binds an employee to a pool for a period. The identity triple
// (EmployeeID, PoolID, AssignedDate) is immutable once created; only Status
// may change afterwards. Name and email are snapshots taken at assignment
// time so history survives directory changes.
type Assignment struct {
	ID             string
	PoolID         string
	EmployeeID     string
	EmployeeName   string
	EmployeeEmail  string
	AssignedDate   time.Time
	AssignedBy     string
	ExpirationDate *time.Time
	Status         Status
	Notes          string
}

// Due reports whether the assignment's expiration date has arrived.
// Assignments without an expiration date are never due.
func (a Assignment) Due(now time.Time) bool {
	return a.ExpirationDate != nil && !a.ExpirationDate.After(now)
}

// =============================================================================
// FILTER - Pure query predicate over the ledger
// =============================================================================

// Filter narrows a ledger listing. Zero values match everything.
type Filter struct {
	EmployeeID string
	PoolID     string
	Status     Status
	From       *time.Time // inclusive, on AssignedDate
	To         *time.Time // inclusive, on AssignedDate
}

// Matches applies the filter to a single record.
func (f Filter) Matches(a Assignment) bool {
	if f.EmployeeID != "" && a.EmployeeID != f.EmployeeID {
		return false
	}
	if f.PoolID != "" && a.PoolID != f.PoolID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.From != nil && a.AssignedDate.Before(*f.From) {
		return false
	}
	if f.To != nil && a.AssignedDate.After(*f.To) {
		return false
	}
	return true
}

// =============================================================================
// STORE - Persistence contract for assignments
// =============================================================================

// Store persists assignments. No delete operation exists: records are
// permanent, only their status moves. Implemented by store/memory and
// store/sqlite.
type Store interface {
	// InsertAssignment persists a new record.
	InsertAssignment(ctx context.Context, a Assignment) error

	// GetAssignment returns the record with the given ID.
	GetAssignment(ctx context.Context, id string) (Assignment, error)

	// SetAssignmentStatus updates only the status field.
	SetAssignmentStatus(ctx context.Context, id string, status Status) error

	// ListAssignments returns records matching the filter, in insertion order.
	ListAssignments(ctx context.Context, f Filter) ([]Assignment, error)

	// CountActive returns the number of active assignments for a pool.
	// This is the authoritative assignedSeats computation.
	CountActive(ctx context.Context, poolID string) (int, error)
}
