package pool_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/pool"
	"github.com/warp/license-engine/store/memory"
)

// zeroSeats satisfies SeatCounter for tests that never read usage.
type zeroSeats struct{}

func (zeroSeats) ActiveCount(context.Context, string) (int, error) { return 0, nil }

// =============================================================================
// CREATION AND EXPANSION
// =============================================================================

func TestNew_RejectsNonPositiveSeats(t *testing.T) {
	for _, seats := range []int{0, -1, -100} {
		_, err := pool.New("sw-1", catalog.LicenseSubscription, seats, nil)
		assert.ErrorIs(t, err, pool.ErrInvalidSeatCount, "seats=%d", seats)
	}
}

func TestNew_StartsWithZeroAssigned(t *testing.T) {
	p, err := pool.New("sw-1", catalog.LicensePerpetual, 10, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 10, p.TotalSeats)
	// A new pool has no ledger entries, so utilization is zero by definition.
	assert.Equal(t, pool.StatusOK, pool.Classify(0, p.TotalSeats))
}

func TestExpand_AddsSeatsAdditively(t *testing.T) {
	p, err := pool.New("sw-1", catalog.LicenseSubscription, 10, nil)
	require.NoError(t, err)

	exp, err := pool.Expand(p, 5, decimal.NewFromFloat(29.99))
	require.NoError(t, err)

	assert.Equal(t, 15, exp.Pool.TotalSeats)
	assert.Equal(t, 5, exp.AddedSeats)
	assert.True(t, exp.CostDelta.Equal(decimal.NewFromFloat(149.95)),
		"cost delta should be 5 x 29.99, got %s", exp.CostDelta)
}

func TestExpand_RejectsNonPositiveSeats(t *testing.T) {
	p, err := pool.New("sw-1", catalog.LicenseSubscription, 10, nil)
	require.NoError(t, err)

	for _, n := range []int{0, -3} {
		_, err := pool.Expand(p, n, decimal.Zero)
		assert.ErrorIs(t, err, pool.ErrInvalidExpansion, "n=%d", n)
	}
	assert.Equal(t, 10, p.TotalSeats, "failed expansion must not mutate the pool")
}

func TestManagerExpand_ConcurrentExpansionsAllLand(t *testing.T) {
	// GIVEN: many goroutines expanding the same pool by one seat each
	// WHEN: they race through GetPool -> Expand -> SavePool
	// THEN: no increment is lost - the read-modify-write is serialized per pool

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SavePool(ctx, pool.Pool{
		ID: "pool-1", SoftwareID: "sw-1",
		LicenseType: catalog.LicenseSubscription, TotalSeats: 10,
	}))

	m := pool.NewManager(store, zeroSeats{})

	const expansions = 16
	var wg sync.WaitGroup
	for i := 0; i < expansions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Expand(ctx, "pool-1", 1, decimal.Zero)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := store.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, 10+expansions, p.TotalSeats)
}

// =============================================================================
// UTILIZATION CLASSIFICATION
// =============================================================================

func TestUtilization_ZeroSeatsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, pool.Utilization(0, 0))
	assert.Equal(t, 0.0, pool.Utilization(5, 0), "even with stray assignments, zero-seat pools report 0")
}

func TestClassify_InclusiveBounds(t *testing.T) {
	tests := []struct {
		name     string
		assigned int
		total    int
		want     pool.Classification
	}{
		{"empty pool", 0, 10, pool.StatusOK},
		{"just under warning", 74, 100, pool.StatusOK},
		{"exactly 75 is warning", 75, 100, pool.StatusWarning},
		{"just under critical", 89, 100, pool.StatusWarning},
		{"exactly 90 is critical, not warning", 90, 100, pool.StatusCritical},
		{"full pool is critical, not over", 100, 100, pool.StatusCritical},
		{"over-allocated", 101, 100, pool.StatusOver},
		{"scenario: 11 of 10 seats is 110% over", 11, 10, pool.StatusOver},
		{"zero total seats", 0, 0, pool.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pool.Classify(tt.assigned, tt.total))
		})
	}
}

// =============================================================================
// RENEWAL HORIZON
// =============================================================================

func TestExpiringSoon(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	date := func(d time.Time) *time.Time { return &d }

	tests := []struct {
		name    string
		renewal *time.Time
		want    bool
	}{
		{"no renewal date never expires soon", nil, false},
		{"renewal already past", date(now.AddDate(0, 0, -10)), true},
		{"renewal within horizon", date(now.AddDate(0, 0, 15)), true},
		{"renewal exactly at horizon boundary", date(now.AddDate(0, 0, 30)), true},
		{"renewal beyond horizon", date(now.AddDate(0, 0, 31)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pool.Pool{ID: "p1", TotalSeats: 10, RenewalDate: tt.renewal}
			assert.Equal(t, tt.want, pool.ExpiringSoon(p, now, pool.DefaultRenewalHorizonDays))
		})
	}
}
