/*
errors.go - Error and warning types for the assignment ledger

PURPOSE:
  Two tiers, matching how callers react:
  - Errors block the offending operation (duplicate active assignment,
    missing record, illegal transition).
  - Warnings never block. They ride alongside a successful assign so the
    caller can surface them (inactive employee, pool at capacity).

USAGE:
  a, warns, err := ledger.Assign(ctx, p, emp, details)
  if errors.Is(err, ledger.ErrDuplicateAssignment) { ... }
  for _, w := range warns { render(w) }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateAssignment is returned when the employee already holds an
	// active assignment on the pool. Hard block, no override.
	ErrDuplicateAssignment = errors.New("employee already has an active assignment on this pool")

	// ErrAssignmentNotFound is returned when an assignment lookup resolves nothing.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrIllegalTransition is returned on a status move the state machine
	// forbids (anything out of a terminal state, or into active).
	ErrIllegalTransition = errors.New("illegal assignment status transition")
)

// DuplicateAssignmentError carries the identifiers of the conflict.
type DuplicateAssignmentError struct {
	EmployeeID string
	PoolID     string
	ExistingID string
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("employee %s already holds active assignment %s on pool %s",
		e.EmployeeID, e.ExistingID, e.PoolID)
}

func (e *DuplicateAssignmentError) Unwrap() error { return ErrDuplicateAssignment }

// =============================================================================
// WARNINGS - Informational, never block a commit
// =============================================================================

type WarningCode string

const (
	// WarnInactiveEmployee: the employee's status is not active or pre-hire.
	WarnInactiveEmployee WarningCode = "inactive_employee"

	// WarnOverAllocation: available seats were <= 0 when the seat was handed
	// out. Over-allocation is permitted and flagged, never rejected.
	WarnOverAllocation WarningCode = "over_allocation"
)

type Warning struct {
	Code    WarningCode
	Message string
}

func (w Warning) String() string { return string(w.Code) + ": " + w.Message }
