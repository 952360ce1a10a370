/*
Package pool owns seat-capacity bookkeeping for license pools.

PURPOSE:
  A Pool is the allocatable capacity unit for one software product: a number
  of seats that assignments draw from. This package handles creation and
  expansion validation, utilization classification, and renewal-horizon
  checks. It deliberately does NOT count assigned seats itself - that number
  is derived from the assignment ledger, the single source of truth.

CRITICAL INVARIANT:
  assignedSeats(pool) == count of ledger assignments with status=active for
  this pool. There is no stored counter to drift. The SeatCounter interface
  is how this package asks the ledger for that derived figure.

OVER-ALLOCATION:
  availableSeats = totalSeats - assignedSeats may go negative. That is a
  permitted, flagged state (classification "over"), never a hard error.
  Duplicate active assignments are the hard block; capacity is advisory.

SEE ALSO:
  - ledger/ledger.go: the authoritative active-assignment count
  - report/report.go: fleet-wide aggregation over pools
*/
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/license-engine/catalog"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidSeatCount is returned when a pool is created with a
	// non-positive seat count.
	ErrInvalidSeatCount = errors.New("total seats must be a positive integer")

	// ErrInvalidExpansion is returned when an expansion adds a non-positive
	// number of seats. Shrinking a pool is not an expansion.
	ErrInvalidExpansion = errors.New("additional seats must be a positive integer")

	// ErrPoolNotFound is returned when a pool lookup resolves nothing.
	ErrPoolNotFound = errors.New("license pool not found")
)

// =============================================================================
// POOL
// =============================================================================

// Pool is the allocatable capacity for one software product. It references
// the catalog entry by ID; it does not own it.
type Pool struct {
	ID          string
	SoftwareID  string
	LicenseType catalog.LicenseType
	TotalSeats  int

	// Renewal bookkeeping, optional. Informational for expiring-soon checks.
	RenewalFrequency string
	RenewalDate      *time.Time
}

// RenewalInfo carries the optional renewal fields at creation time.
type RenewalInfo struct {
	Frequency string
	Date      *time.Time
}

// New validates and builds a pool. Assigned seats are implicitly zero: a new
// pool has no ledger entries yet.
func New(softwareID string, licenseType catalog.LicenseType, totalSeats int, renewal *RenewalInfo) (Pool, error) {
	if totalSeats < 1 {
		return Pool{}, ErrInvalidSeatCount
	}
	p := Pool{
		ID:          uuid.NewString(),
		SoftwareID:  softwareID,
		LicenseType: licenseType,
		TotalSeats:  totalSeats,
	}
	if renewal != nil {
		p.RenewalFrequency = renewal.Frequency
		p.RenewalDate = renewal.Date
	}
	return p, nil
}

// Expansion is the outcome of adding seats: the updated pool plus an
// informational cost delta (additional seats x unit cost). The delta is
// advisory - this engine is not a billing ledger.
type Expansion struct {
	Pool       Pool
	AddedSeats int
	CostDelta  decimal.Decimal
}

// Expand adds seats to a pool. Assignments are untouched; only capacity grows.
func Expand(p Pool, additionalSeats int, unitCost decimal.Decimal) (Expansion, error) {
	if additionalSeats < 1 {
		return Expansion{}, ErrInvalidExpansion
	}
	p.TotalSeats += additionalSeats
	return Expansion{
		Pool:       p,
		AddedSeats: additionalSeats,
		CostDelta:  unitCost.Mul(decimal.NewFromInt(int64(additionalSeats))),
	}, nil
}

// =============================================================================
// UTILIZATION CLASSIFICATION
// =============================================================================

type Classification string

const (
	StatusOK       Classification = "ok"       // utilization < 75
	StatusWarning  Classification = "warning"  // 75 <= utilization < 90
	StatusCritical Classification = "critical" // 90 <= utilization <= 100
	StatusOver     Classification = "over"     // utilization > 100
)

// Utilization returns assigned/total as a percentage. A zero-seat pool has
// zero utilization, not a division error.
func Utilization(assignedSeats, totalSeats int) float64 {
	if totalSeats == 0 {
		return 0
	}
	return float64(assignedSeats) / float64(totalSeats) * 100
}

// Classify buckets a pool's utilization. Bounds are inclusive as stated:
// a pool at exactly 90% is critical, not warning.
func Classify(assignedSeats, totalSeats int) Classification {
	u := Utilization(assignedSeats, totalSeats)
	switch {
	case u > 100:
		return StatusOver
	case u >= 90:
		return StatusCritical
	case u >= 75:
		return StatusWarning
	default:
		return StatusOK
	}
}

// DefaultRenewalHorizonDays is the lookahead window for renewal alerts.
const DefaultRenewalHorizonDays = 30

// ExpiringSoon reports whether the pool's renewal date falls within the
// horizon. Pools without a renewal date never expire soon.
func ExpiringSoon(p Pool, now time.Time, horizonDays int) bool {
	if p.RenewalDate == nil {
		return false
	}
	return !p.RenewalDate.After(now.AddDate(0, 0, horizonDays))
}

// =============================================================================
// STORE - Persistence contract for pools
// =============================================================================

// Store persists pools. Implemented by store/memory and store/sqlite.
type Store interface {
	// SavePool inserts or updates a pool.
	SavePool(ctx context.Context, p Pool) error

	// GetPool returns the pool with the given ID.
	GetPool(ctx context.Context, id string) (Pool, error)

	// PoolBySoftwareID returns the pool backing a catalog entry.
	PoolBySoftwareID(ctx context.Context, softwareID string) (Pool, error)

	// ListPools returns every pool.
	ListPools(ctx context.Context) ([]Pool, error)
}

// SeatCounter is how this package asks the ledger for the derived
// assigned-seat count. The ledger implements it; pool stays ignorant of
// assignment records.
type SeatCounter interface {
	ActiveCount(ctx context.Context, poolID string) (int, error)
}

// =============================================================================
// MANAGER - Store-backed pool operations
// =============================================================================

// Usage is a pool plus its derived seat figures at read time.
type Usage struct {
	Pool           Pool
	AssignedSeats  int
	AvailableSeats int // may be negative (over-allocation)
	Utilization    float64
	Classification Classification
	ExpiringSoon   bool
}

// Manager wires pool operations to persistence and the seat counter.
type Manager struct {
	Store Store
	Seats SeatCounter
	Clock func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store Store, seats SeatCounter) *Manager {
	return &Manager{
		Store: store,
		Seats: seats,
		Clock: time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) poolLock(poolID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[poolID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[poolID] = l
	}
	return l
}

// Create validates, persists, and returns a new pool.
func (m *Manager) Create(ctx context.Context, softwareID string, licenseType catalog.LicenseType, totalSeats int, renewal *RenewalInfo) (Pool, error) {
	p, err := New(softwareID, licenseType, totalSeats, renewal)
	if err != nil {
		return Pool{}, err
	}
	if err := m.Store.SavePool(ctx, p); err != nil {
		return Pool{}, err
	}
	return p, nil
}

// Expand grows an existing pool and persists the new capacity. The
// read-modify-write is serialized per pool so concurrent expansions cannot
// lose an increment.
func (m *Manager) Expand(ctx context.Context, poolID string, additionalSeats int, unitCost decimal.Decimal) (Expansion, error) {
	lock := m.poolLock(poolID)
	lock.Lock()
	defer lock.Unlock()

	p, err := m.Store.GetPool(ctx, poolID)
	if err != nil {
		return Expansion{}, err
	}
	exp, err := Expand(p, additionalSeats, unitCost)
	if err != nil {
		return Expansion{}, err
	}
	if err := m.Store.SavePool(ctx, exp.Pool); err != nil {
		return Expansion{}, err
	}
	return exp, nil
}

// Snapshot derives the pool's seat figures from the ledger. Always computed,
// never cached: the ledger count is the one authoritative definition.
func (m *Manager) Snapshot(ctx context.Context, p Pool) (Usage, error) {
	assigned, err := m.Seats.ActiveCount(ctx, p.ID)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Pool:           p,
		AssignedSeats:  assigned,
		AvailableSeats: p.TotalSeats - assigned,
		Utilization:    Utilization(assigned, p.TotalSeats),
		Classification: Classify(assigned, p.TotalSeats),
		ExpiringSoon:   ExpiringSoon(p, m.Clock(), DefaultRenewalHorizonDays),
	}, nil
}
