/*
ledger.go - Assignment operations: assign, revoke, expire, query

PURPOSE:
  The Ledger wraps the Store with the business rules: the duplicate-active
  hard block, the non-blocking warnings, default stamping, and the status
  state machine. It also serializes mutations per pool so concurrent callers
  (two admins, or a bulk import running alongside manual assignment) cannot
  both pass the duplicate check before either commits.

EXPIRY:
  Expire is a policy function, not a scheduled job. Callers decide when to
  invoke it - lazily on read or from an external periodic sweep. ExpireDue
  is the bulk form for such a sweep; this module runs no timer of its own.
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/pool"
)

// SystemActor is stamped as AssignedBy when the caller supplies none.
const SystemActor = "system"

// Details carries the optional fields of a new assignment. Zero values get
// stamped with defaults at assign time.
type Details struct {
	AssignedDate   time.Time // zero -> now
	AssignedBy     string    // "" -> SystemActor
	ExpirationDate *time.Time
	Status         Status // "" -> StatusActive (bulk import may backfill history)
	Notes          string
}

// Ledger owns assignment mutations and queries.
type Ledger struct {
	store Store
	clock func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-pool mutation locks
}

func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		clock: time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the time source. Tests use this to pin "now".
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// poolLock returns the mutex serializing mutations for one pool.
func (l *Ledger) poolLock(poolID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[poolID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[poolID] = m
	}
	return m
}

// =============================================================================
// ASSIGN
// =============================================================================

// Assign hands a seat in p to emp.
//
// Order of checks:
//  1. Duplicate active assignment on this pool -> DuplicateAssignmentError,
//     hard block.
//  2. Employee not active/pre-hire -> proceeds, WarnInactiveEmployee.
//  3. Available seats <= 0 -> proceeds, WarnOverAllocation.
//
// The duplicate check and the insert run under the pool's mutex, so the count
// a concurrent caller observes always reflects committed records.
func (l *Ledger) Assign(ctx context.Context, p pool.Pool, emp catalog.Employee, d Details) (Assignment, []Warning, error) {
	lock := l.poolLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := l.store.ListAssignments(ctx, Filter{
		EmployeeID: emp.ID,
		PoolID:     p.ID,
		Status:     StatusActive,
	})
	if err != nil {
		return Assignment{}, nil, err
	}
	if len(existing) > 0 {
		return Assignment{}, nil, &DuplicateAssignmentError{
			EmployeeID: emp.ID,
			PoolID:     p.ID,
			ExistingID: existing[0].ID,
		}
	}

	var warnings []Warning
	if !emp.Assignable() {
		warnings = append(warnings, Warning{
			Code:    WarnInactiveEmployee,
			Message: "employee " + emp.Email + " has status " + string(emp.Status),
		})
	}

	assigned, err := l.store.CountActive(ctx, p.ID)
	if err != nil {
		return Assignment{}, nil, err
	}
	if p.TotalSeats-assigned <= 0 {
		warnings = append(warnings, Warning{
			Code:    WarnOverAllocation,
			Message: "pool has no available seats; assignment over-allocates",
		})
	}

	a := Assignment{
		ID:             uuid.NewString(),
		PoolID:         p.ID,
		EmployeeID:     emp.ID,
		EmployeeName:   emp.Name,
		EmployeeEmail:  emp.Email,
		AssignedDate:   d.AssignedDate,
		AssignedBy:     d.AssignedBy,
		ExpirationDate: d.ExpirationDate,
		Status:         d.Status,
		Notes:          d.Notes,
	}
	if a.AssignedDate.IsZero() {
		a.AssignedDate = l.clock()
	}
	if a.AssignedBy == "" {
		a.AssignedBy = SystemActor
	}
	if a.Status == "" {
		a.Status = StatusActive
	}

	if err := l.store.InsertAssignment(ctx, a); err != nil {
		return Assignment{}, nil, err
	}
	return a, warnings, nil
}

// =============================================================================
// REVOKE / EXPIRE
// =============================================================================

// Revoke moves an active assignment to revoked. Idempotent: revoking a
// record that is already revoked or expired is a no-op, not an error.
func (l *Ledger) Revoke(ctx context.Context, id string) (Assignment, error) {
	return l.terminate(ctx, id, StatusRevoked, func(Assignment) bool { return true })
}

// Expire moves an active assignment to expired, but only once its expiration
// date has arrived. An assignment without an expiration date is never
// expired. No-op on terminal records and on records not yet due.
func (l *Ledger) Expire(ctx context.Context, id string) (Assignment, error) {
	now := l.clock()
	return l.terminate(ctx, id, StatusExpired, func(a Assignment) bool { return a.Due(now) })
}

// terminate applies a terminal transition under the pool lock when eligible.
func (l *Ledger) terminate(ctx context.Context, id string, to Status, eligible func(Assignment) bool) (Assignment, error) {
	a, err := l.store.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}

	lock := l.poolLock(a.PoolID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent caller may have moved it already.
	a, err = l.store.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if a.Status.Terminal() || !eligible(a) {
		return a, nil
	}
	if err := l.store.SetAssignmentStatus(ctx, a.ID, to); err != nil {
		return Assignment{}, err
	}
	a.Status = to
	return a, nil
}

// ExpireDue expires every active assignment whose expiration date has
// arrived, returning how many moved. This is the bulk form for a host-driven
// sweep; the engine schedules nothing itself.
func (l *Ledger) ExpireDue(ctx context.Context) (int, error) {
	active, err := l.store.ListAssignments(ctx, Filter{Status: StatusActive})
	if err != nil {
		return 0, err
	}

	now := l.clock()
	expired := 0
	for _, a := range active {
		if !a.Due(now) {
			continue
		}
		if _, err := l.Expire(ctx, a.ID); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// =============================================================================
// QUERIES - Pure filters, no side effects
// =============================================================================

// ActiveCount is the one authoritative assignedSeats computation.
func (l *Ledger) ActiveCount(ctx context.Context, poolID string) (int, error) {
	return l.store.CountActive(ctx, poolID)
}

// Get returns a single assignment.
func (l *Ledger) Get(ctx context.Context, id string) (Assignment, error) {
	return l.store.GetAssignment(ctx, id)
}

// List returns assignments matching the filter.
func (l *Ledger) List(ctx context.Context, f Filter) ([]Assignment, error) {
	return l.store.ListAssignments(ctx, f)
}

// ByEmployee returns every assignment an employee has ever held.
func (l *Ledger) ByEmployee(ctx context.Context, employeeID string) ([]Assignment, error) {
	return l.store.ListAssignments(ctx, Filter{EmployeeID: employeeID})
}

// ByPool returns every assignment ever made against a pool.
func (l *Ledger) ByPool(ctx context.Context, poolID string) ([]Assignment, error) {
	return l.store.ListAssignments(ctx, Filter{PoolID: poolID})
}

// ByStatus returns every assignment in the given state.
func (l *Ledger) ByStatus(ctx context.Context, s Status) ([]Assignment, error) {
	return l.store.ListAssignments(ctx, Filter{Status: s})
}

// InRange returns assignments with AssignedDate in [from, to].
func (l *Ledger) InRange(ctx context.Context, from, to time.Time) ([]Assignment, error) {
	return l.store.ListAssignments(ctx, Filter{From: &from, To: &to})
}
