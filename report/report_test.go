package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/ledger"
	"github.com/warp/license-engine/pool"
	"github.com/warp/license-engine/report"
	"github.com/warp/license-engine/store/memory"
)

var reportNow = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func newReporter(t *testing.T) (*report.Reporter, *ledger.Ledger, *catalog.MemoryRegistry) {
	t.Helper()
	reg := catalog.NewMemoryRegistry()
	led := ledger.New(memory.New()).WithClock(func() time.Time { return reportNow })
	r := report.NewReporter(led, reg)
	r.Clock = func() time.Time { return reportNow }
	return r, led, reg
}

func emp(id string) catalog.Employee {
	return catalog.Employee{ID: id, Email: id + "@x.com", Status: catalog.EmployeeActive}
}

// =============================================================================
// EMPLOYEE SUMMARY
// =============================================================================

func TestSummary_GroupsByStatus(t *testing.T) {
	r, led, _ := newReporter(t)
	ctx := context.Background()
	p1 := pool.Pool{ID: "pool-1", SoftwareID: "sw-1", TotalSeats: 10}
	p2 := pool.Pool{ID: "pool-2", SoftwareID: "sw-2", TotalSeats: 10}

	_, _, err := led.Assign(ctx, p1, emp("emp-1"), ledger.Details{})
	require.NoError(t, err)
	a2, _, err := led.Assign(ctx, p2, emp("emp-1"), ledger.Details{})
	require.NoError(t, err)
	_, err = led.Revoke(ctx, a2.ID)
	require.NoError(t, err)

	s, err := r.Summary(ctx, "emp-1")
	require.NoError(t, err)

	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.ByStatus[ledger.StatusActive])
	assert.Equal(t, 1, s.ByStatus[ledger.StatusRevoked])
	assert.Len(t, s.Assignments, 2)
}

func TestSummary_ReflectsMutationsImmediately(t *testing.T) {
	// Summaries are recomputed, never cached: a revoke shows up on the very
	// next call.
	r, led, _ := newReporter(t)
	ctx := context.Background()
	p := pool.Pool{ID: "pool-1", SoftwareID: "sw-1", TotalSeats: 10}

	a, _, err := led.Assign(ctx, p, emp("emp-1"), ledger.Details{})
	require.NoError(t, err)

	before, err := r.Summary(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, before.ByStatus[ledger.StatusActive])

	_, err = led.Revoke(ctx, a.ID)
	require.NoError(t, err)

	after, err := r.Summary(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 0, after.ByStatus[ledger.StatusActive])
	assert.Equal(t, 1, after.ByStatus[ledger.StatusRevoked])
}

func TestSummary_EmptyLedger(t *testing.T) {
	r, _, _ := newReporter(t)
	s, err := r.Summary(context.Background(), "emp-none")
	require.NoError(t, err)
	assert.Zero(t, s.Total)
	assert.Empty(t, s.Assignments)
}

// =============================================================================
// FLEET STATS
// =============================================================================

func TestFleetStats_Aggregates(t *testing.T) {
	// GIVEN: a full pool pushed into over-allocation, and one expiring soon
	// WHEN: aggregating
	// THEN: seat totals, over-allocated count, and expiring count line up

	r, led, reg := newReporter(t)
	ctx := context.Background()

	reg.Add(catalog.Software{ID: "sw-1", Name: "Acme", Cost: decimal.NewFromInt(100), LicenseType: catalog.LicenseSubscription})
	reg.Add(catalog.Software{ID: "sw-2", Name: "Vector", Cost: decimal.NewFromInt(50), LicenseType: catalog.LicensePerpetual})

	renewal := reportNow.AddDate(0, 0, 10)
	pools := []pool.Pool{
		{ID: "pool-1", SoftwareID: "sw-1", TotalSeats: 2},
		{ID: "pool-2", SoftwareID: "sw-2", TotalSeats: 5, RenewalDate: &renewal},
	}

	// Over-allocate pool-1: 3 seats on a pool of 2.
	for _, id := range []string{"emp-1", "emp-2", "emp-3"} {
		_, _, err := led.Assign(ctx, pools[0], emp(id), ledger.Details{})
		require.NoError(t, err)
	}
	_, _, err := led.Assign(ctx, pools[1], emp("emp-4"), ledger.Details{})
	require.NoError(t, err)

	stats, err := r.FleetStats(ctx, pools)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Pools)
	assert.Equal(t, 7, stats.TotalSeats)
	assert.Equal(t, 4, stats.AssignedSeats)
	assert.Equal(t, 3, stats.AvailableSeats, "(-1) + 4")
	assert.Equal(t, 1, stats.OverAllocated)
	assert.Equal(t, 1, stats.ExpiringSoon)

	// 2 seats x 100 + 5 seats x 50, advisory only.
	assert.True(t, stats.AdvisorySeatCost.Equal(decimal.NewFromInt(450)),
		"got %s", stats.AdvisorySeatCost)
}

func TestFleetStats_EmptyPoolSet(t *testing.T) {
	r, _, _ := newReporter(t)
	stats, err := r.FleetStats(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Pools)
	assert.True(t, stats.AdvisorySeatCost.IsZero())
}
