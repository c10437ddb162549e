package funds

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storetest "github.com/aristath/fundsentry/internal/testing"
)

func TestBatchComputeYearReturns(t *testing.T) {
	store, cleanup := storetest.NewTestStore(t)
	defer cleanup()

	navRepo := NewNavRepository(store, testLogger())
	batch := NewBatchComputer(navRepo, 30*time.Second, testLogger())
	now := storetest.MustParseDate(t, "2025-08-15")

	storetest.InsertNav(t, store, "000001", "2023-01-03", 1.00)
	storetest.InsertNav(t, store, "000001", "2023-12-28", 1.20)
	storetest.InsertNav(t, store, "000001", "2024-01-04", 1.22)
	storetest.InsertNav(t, store, "000001", "2024-12-30", 1.10)

	storetest.InsertNav(t, store, "000002", "2024-06-03", 2.00)
	storetest.InsertNav(t, store, "000002", "2024-12-30", 2.30)

	t.Run("computes each requested cell", func(t *testing.T) {
		result, err := batch.ComputeYearReturns(context.Background(), []string{"000001", "000002"}, []int{2023, 2024}, now)
		require.NoError(t, err)

		require.True(t, result["000001"][2023].Defined())
		assert.InDelta(t, 20.0, result["000001"][2023].Float(), 0.001)
		assert.InDelta(t, -9.84, result["000001"][2024].Float(), 0.01)

		// Mid-year launch: 2024 is computed from first available NAV,
		// 2023 predates the fund entirely.
		assert.InDelta(t, 15.0, result["000002"][2024].Float(), 0.001)
		assert.False(t, result["000002"][2023].Defined())
	})

	t.Run("unknown fund reports every cell undefined", func(t *testing.T) {
		result, err := batch.ComputeYearReturns(context.Background(), []string{"404404"}, []int{2023, 2024}, now)
		require.NoError(t, err)
		require.Contains(t, result, "404404")
		assert.False(t, result["404404"][2023].Defined())
		assert.False(t, result["404404"][2024].Defined())
	})

	t.Run("one bad fund does not affect the others", func(t *testing.T) {
		// Zero base NAV for the year makes that cell undefined, not Ok(0)
		// and not an error for the whole batch.
		storetest.InsertNav(t, store, "000bad", "2024-01-02", 0.0)
		storetest.InsertNav(t, store, "000bad", "2024-12-30", 1.00)

		result, err := batch.ComputeYearReturns(context.Background(), []string{"000001", "000bad"}, []int{2024}, now)
		require.NoError(t, err)
		assert.True(t, result["000001"][2024].Defined())
		assert.False(t, result["000bad"][2024].Defined())
	})

	t.Run("empty inputs return empty result", func(t *testing.T) {
		result, err := batch.ComputeYearReturns(context.Background(), nil, []int{2024}, now)
		require.NoError(t, err)
		assert.Empty(t, result)

		result, err = batch.ComputeYearReturns(context.Background(), []string{"000001"}, nil, now)
		require.NoError(t, err)
		assert.Empty(t, result["000001"])
	})
}

func TestBatchTimeoutSurfacesAsQueryTimeout(t *testing.T) {
	store, cleanup := storetest.NewTestStore(t)
	defer cleanup()

	navRepo := NewNavRepository(store, testLogger())
	batch := NewBatchComputer(navRepo, 1*time.Nanosecond, testLogger())
	now := storetest.MustParseDate(t, "2025-08-15")

	storetest.InsertNav(t, store, "000001", "2024-06-03", 1.00)

	_, err := batch.ComputeYearReturns(context.Background(), []string{"000001"}, []int{2024}, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueryTimeout)
}
