/*
Package report derives per-employee and fleet-wide summaries.

PURPOSE:
  Pure read-side aggregation over the ledger and pool layers. Holds no state
  of its own and caches nothing: every summary is recomputed from the ledger
  on every call, so revokes, expiries, and imports are visible immediately.

SEE ALSO:
  - ledger/ledger.go: the queries these summaries are built from
  - pool/pool.go: utilization classification reused for fleet stats
*/
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/ledger"
	"github.com/warp/license-engine/pool"
)

// =============================================================================
// EMPLOYEE SUMMARY
// =============================================================================

// EmployeeSummary groups one employee's assignments by status.
type EmployeeSummary struct {
	EmployeeID  string
	Total       int
	ByStatus    map[ledger.Status]int
	Assignments []ledger.Assignment
}

// =============================================================================
// FLEET STATS
// =============================================================================

// FleetStats aggregates seat figures across a pool set. AvailableSeats may
// be negative when the fleet is over-allocated. AdvisorySeatCost sums
// totalSeats x per-seat catalog cost; it is informational, not a ledger
// figure.
type FleetStats struct {
	Pools            int
	TotalSeats       int
	AssignedSeats    int
	AvailableSeats   int
	OverAllocated    int
	ExpiringSoon     int
	AdvisorySeatCost decimal.Decimal
}

// Reporter computes summaries. Stateless apart from its collaborators.
type Reporter struct {
	Ledger   *ledger.Ledger
	Registry catalog.Registry
	Clock    func() time.Time
}

func NewReporter(led *ledger.Ledger, reg catalog.Registry) *Reporter {
	return &Reporter{Ledger: led, Registry: reg, Clock: time.Now}
}

// Summary recomputes an employee's assignment summary from the ledger.
func (r *Reporter) Summary(ctx context.Context, employeeID string) (*EmployeeSummary, error) {
	assignments, err := r.Ledger.ByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	s := &EmployeeSummary{
		EmployeeID:  employeeID,
		Total:       len(assignments),
		ByStatus:    make(map[ledger.Status]int),
		Assignments: assignments,
	}
	for _, a := range assignments {
		s.ByStatus[a.Status]++
	}
	return s, nil
}

// FleetStats aggregates across the given pool set. Assigned counts come from
// the ledger per pool - the derived figure, never a stored counter.
func (r *Reporter) FleetStats(ctx context.Context, pools []pool.Pool) (*FleetStats, error) {
	stats := &FleetStats{
		Pools:            len(pools),
		AdvisorySeatCost: decimal.Zero,
	}
	now := r.Clock()

	for _, p := range pools {
		assigned, err := r.Ledger.ActiveCount(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		stats.TotalSeats += p.TotalSeats
		stats.AssignedSeats += assigned
		stats.AvailableSeats += p.TotalSeats - assigned

		if pool.Classify(assigned, p.TotalSeats) == pool.StatusOver {
			stats.OverAllocated++
		}
		if pool.ExpiringSoon(p, now, pool.DefaultRenewalHorizonDays) {
			stats.ExpiringSoon++
		}

		sw, err := r.Registry.FindByID(ctx, p.SoftwareID)
		if err != nil {
			// Pools may reference products removed from the catalog; the
			// seat math still counts, only the cost figure skips them.
			continue
		}
		seatCost := sw.Cost.Mul(decimal.NewFromInt(int64(p.TotalSeats)))
		stats.AdvisorySeatCost = stats.AdvisorySeatCost.Add(seatCost)
	}
	return stats, nil
}
