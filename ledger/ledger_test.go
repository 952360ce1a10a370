package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/ledger"
	"github.com/warp/license-engine/pool"
	"github.com/warp/license-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newLedger() *ledger.Ledger {
	return ledger.New(memory.New()).WithClock(func() time.Time { return testNow })
}

func testPool(seats int) pool.Pool {
	return pool.Pool{ID: "pool-1", SoftwareID: "sw-1", LicenseType: catalog.LicenseSubscription, TotalSeats: seats}
}

func activeEmp(id, email string) catalog.Employee {
	return catalog.Employee{ID: id, Email: email, Name: "Emp " + id, Status: catalog.EmployeeActive}
}

// =============================================================================
// ASSIGN
// =============================================================================

func TestAssign_StampsDefaults(t *testing.T) {
	// GIVEN: details with no date, actor, or status
	// WHEN: assigning
	// THEN: assignedDate=now, assignedBy=system, status=active

	led := newLedger()
	a, warns, err := led.Assign(context.Background(), testPool(10), activeEmp("emp-1", "a@x.com"), ledger.Details{})
	require.NoError(t, err)

	assert.Empty(t, warns)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, testNow, a.AssignedDate)
	assert.Equal(t, ledger.SystemActor, a.AssignedBy)
	assert.Equal(t, ledger.StatusActive, a.Status)
	assert.Nil(t, a.ExpirationDate)
}

func TestAssign_SnapshotsEmployeeIdentity(t *testing.T) {
	led := newLedger()
	emp := catalog.Employee{ID: "emp-1", Email: "jane@x.com", Name: "Jane Doe", Status: catalog.EmployeeActive}

	a, _, err := led.Assign(context.Background(), testPool(10), emp, ledger.Details{})
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", a.EmployeeName)
	assert.Equal(t, "jane@x.com", a.EmployeeEmail)
}

func TestAssign_DuplicateActive_HardBlock(t *testing.T) {
	// GIVEN: employee already holds an active assignment on the pool
	// WHEN: assigning again
	// THEN: DuplicateAssignmentError, nothing inserted

	led := newLedger()
	ctx := context.Background()
	p := testPool(10)
	emp := activeEmp("emp-1", "a@x.com")

	first, _, err := led.Assign(ctx, p, emp, ledger.Details{})
	require.NoError(t, err)

	_, _, err = led.Assign(ctx, p, emp, ledger.Details{})
	assert.ErrorIs(t, err, ledger.ErrDuplicateAssignment)

	var dup *ledger.DuplicateAssignmentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)

	n, err := led.ActiveCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAssign_AfterRevoke_Allowed(t *testing.T) {
	// A corrected assignment is a new record; the duplicate block applies
	// only to ACTIVE assignments.
	led := newLedger()
	ctx := context.Background()
	p := testPool(10)
	emp := activeEmp("emp-1", "a@x.com")

	a, _, err := led.Assign(ctx, p, emp, ledger.Details{})
	require.NoError(t, err)
	_, err = led.Revoke(ctx, a.ID)
	require.NoError(t, err)

	_, _, err = led.Assign(ctx, p, emp, ledger.Details{})
	assert.NoError(t, err)
}

func TestAssign_InactiveEmployee_WarnsButProceeds(t *testing.T) {
	led := newLedger()
	emp := catalog.Employee{ID: "emp-9", Email: "gone@x.com", Status: catalog.EmployeeWithdrawn}

	a, warns, err := led.Assign(context.Background(), testPool(10), emp, ledger.Details{})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusActive, a.Status)
	require.Len(t, warns, 1)
	assert.Equal(t, ledger.WarnInactiveEmployee, warns[0].Code)
}

func TestAssign_PreHireEmployee_NoWarning(t *testing.T) {
	led := newLedger()
	emp := catalog.Employee{ID: "emp-2", Email: "soon@x.com", Status: catalog.EmployeePreHire}

	_, warns, err := led.Assign(context.Background(), testPool(10), emp, ledger.Details{})
	require.NoError(t, err)
	assert.Empty(t, warns)
}

func TestAssign_OverAllocation_WarnsButProceeds(t *testing.T) {
	// GIVEN: a pool with totalSeats=1 and one seat already taken
	// WHEN: assigning another employee
	// THEN: the assignment succeeds with an over-allocation warning

	led := newLedger()
	ctx := context.Background()
	p := testPool(1)

	_, warns, err := led.Assign(ctx, p, activeEmp("emp-1", "a@x.com"), ledger.Details{})
	require.NoError(t, err)
	assert.Empty(t, warns)

	_, warns, err = led.Assign(ctx, p, activeEmp("emp-2", "b@x.com"), ledger.Details{})
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, ledger.WarnOverAllocation, warns[0].Code)

	n, err := led.ActiveCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "over-allocation is permitted, both seats count")
}

// =============================================================================
// REVOKE / EXPIRE
// =============================================================================

func TestRevoke_Idempotent(t *testing.T) {
	led := newLedger()
	ctx := context.Background()

	a, _, err := led.Assign(ctx, testPool(10), activeEmp("emp-1", "a@x.com"), ledger.Details{})
	require.NoError(t, err)

	first, err := led.Revoke(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRevoked, first.Status)

	second, err := led.Revoke(ctx, a.ID)
	require.NoError(t, err, "revoking a revoked assignment is a no-op, not an error")
	assert.Equal(t, ledger.StatusRevoked, second.Status)
}

func TestRevoke_DoesNotReviveExpired(t *testing.T) {
	led := newLedger()
	ctx := context.Background()
	exp := testNow.AddDate(0, 0, -1)

	a, _, err := led.Assign(ctx, testPool(10), activeEmp("emp-1", "a@x.com"),
		ledger.Details{ExpirationDate: &exp})
	require.NoError(t, err)

	expired, err := led.Expire(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusExpired, expired.Status)

	after, err := led.Revoke(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusExpired, after.Status, "expired is terminal")
}

func TestRevoke_NotFound(t *testing.T) {
	led := newLedger()
	_, err := led.Revoke(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrAssignmentNotFound)
}

func TestExpire_OnlyWhenDue(t *testing.T) {
	led := newLedger()
	ctx := context.Background()
	p := testPool(10)

	// No expiration date: never expired by policy.
	noDate, _, err := led.Assign(ctx, p, activeEmp("emp-1", "a@x.com"), ledger.Details{})
	require.NoError(t, err)
	a, err := led.Expire(ctx, noDate.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, a.Status)

	// Future expiration: not yet due.
	future := testNow.AddDate(0, 1, 0)
	notDue, _, err := led.Assign(ctx, p, activeEmp("emp-2", "b@x.com"), ledger.Details{ExpirationDate: &future})
	require.NoError(t, err)
	a, err = led.Expire(ctx, notDue.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, a.Status)

	// Past expiration: due.
	past := testNow.AddDate(0, 0, -1)
	due, _, err := led.Assign(ctx, p, activeEmp("emp-3", "c@x.com"), ledger.Details{ExpirationDate: &past})
	require.NoError(t, err)
	a, err = led.Expire(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusExpired, a.Status)
}

func TestExpireDue_SweepsOnlyDueAssignments(t *testing.T) {
	led := newLedger()
	ctx := context.Background()
	p := testPool(10)

	past := testNow.AddDate(0, 0, -5)
	future := testNow.AddDate(0, 0, 5)

	_, _, err := led.Assign(ctx, p, activeEmp("emp-1", "a@x.com"), ledger.Details{ExpirationDate: &past})
	require.NoError(t, err)
	_, _, err = led.Assign(ctx, p, activeEmp("emp-2", "b@x.com"), ledger.Details{ExpirationDate: &future})
	require.NoError(t, err)
	_, _, err = led.Assign(ctx, p, activeEmp("emp-3", "c@x.com"), ledger.Details{})
	require.NoError(t, err)

	n, err := led.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := led.ByStatus(ctx, ledger.StatusActive)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

// =============================================================================
// DERIVED COUNT INVARIANT
// =============================================================================

func TestActiveCount_AlwaysMatchesLedger(t *testing.T) {
	// INVARIANT: assignedSeats(pool) == |{a : a.pool = pool, a.status = active}|
	// after every mutation.

	led := newLedger()
	ctx := context.Background()
	p := testPool(10)

	check := func(want int) {
		t.Helper()
		n, err := led.ActiveCount(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, want, n)

		listed, err := led.List(ctx, ledger.Filter{PoolID: p.ID, Status: ledger.StatusActive})
		require.NoError(t, err)
		assert.Equal(t, n, len(listed), "count and list must agree")
	}

	check(0)

	a1, _, err := led.Assign(ctx, p, activeEmp("emp-1", "a@x.com"), ledger.Details{})
	require.NoError(t, err)
	check(1)

	past := testNow.AddDate(0, 0, -1)
	a2, _, err := led.Assign(ctx, p, activeEmp("emp-2", "b@x.com"), ledger.Details{ExpirationDate: &past})
	require.NoError(t, err)
	check(2)

	_, err = led.Revoke(ctx, a1.ID)
	require.NoError(t, err)
	check(1)

	_, err = led.Expire(ctx, a2.ID)
	require.NoError(t, err)
	check(0)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestQueries_PureFilters(t *testing.T) {
	led := newLedger()
	ctx := context.Background()
	p1 := testPool(10)
	p2 := pool.Pool{ID: "pool-2", SoftwareID: "sw-2", TotalSeats: 5}

	jan := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)

	_, _, err := led.Assign(ctx, p1, activeEmp("emp-1", "a@x.com"), ledger.Details{AssignedDate: jan})
	require.NoError(t, err)
	_, _, err = led.Assign(ctx, p2, activeEmp("emp-1", "a@x.com"), ledger.Details{AssignedDate: feb})
	require.NoError(t, err)
	a3, _, err := led.Assign(ctx, p1, activeEmp("emp-2", "b@x.com"), ledger.Details{AssignedDate: feb})
	require.NoError(t, err)
	_, err = led.Revoke(ctx, a3.ID)
	require.NoError(t, err)

	byEmp, err := led.ByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, byEmp, 2)

	byPool, err := led.ByPool(ctx, p1.ID)
	require.NoError(t, err)
	assert.Len(t, byPool, 2, "revoked records remain in the ledger")

	revoked, err := led.ByStatus(ctx, ledger.StatusRevoked)
	require.NoError(t, err)
	assert.Len(t, revoked, 1)

	inFeb, err := led.InRange(ctx, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, inFeb, 2)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ledger.Status
		want     bool
	}{
		{ledger.StatusActive, ledger.StatusRevoked, true},
		{ledger.StatusActive, ledger.StatusExpired, true},
		{ledger.StatusRevoked, ledger.StatusActive, false},
		{ledger.StatusExpired, ledger.StatusActive, false},
		{ledger.StatusRevoked, ledger.StatusExpired, false},
		{ledger.StatusExpired, ledger.StatusRevoked, false},
		{ledger.StatusActive, ledger.StatusActive, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ledger.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestParseStatus_CaseInsensitive(t *testing.T) {
	for _, raw := range []string{"active", "Active", "ACTIVE", "  active "} {
		s, ok := ledger.ParseStatus(raw)
		assert.True(t, ok, "raw=%q", raw)
		assert.Equal(t, ledger.StatusActive, s)
	}
	_, ok := ledger.ParseStatus("enabled")
	assert.False(t, ok)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestAssign_ConcurrentSameEmployee_ExactlyOneWins(t *testing.T) {
	// GIVEN: many concurrent assigns for the same (employee, pool)
	// WHEN: they race
	// THEN: exactly one commits; the rest hit the duplicate block. Without
	// per-pool serialization, several could pass the check before any insert.

	led := newLedger()
	ctx := context.Background()
	p := testPool(10)
	emp := activeEmp("emp-1", "a@x.com")

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = led.Assign(ctx, p, emp, ledger.Details{})
		}(i)
	}
	wg.Wait()

	successes, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ledger.ErrDuplicateAssignment):
			duplicates++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, duplicates)

	n, err := led.ActiveCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
