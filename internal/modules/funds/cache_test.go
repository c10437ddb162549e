package funds

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storetest "github.com/aristath/fundsentry/internal/testing"
)

func TestReturnsCacheHit(t *testing.T) {
	store, cleanup := storetest.NewTestStore(t)
	defer cleanup()

	navRepo := NewNavRepository(store, testLogger())
	batch := NewBatchComputer(navRepo, 30*time.Second, testLogger())
	cacheRepo := NewCacheRepository(store, testLogger())
	cache := NewReturnsCache(cacheRepo, batch, CachePolicy{FallbackOnMiss: true}, testLogger())

	now := storetest.MustParseDate(t, "2025-08-15")
	storetest.InsertCachedReturn(t, store, "000001", 2024, 12.5, "2025-08-15")
	storetest.InsertCachedReturn(t, store, "000001", 2023, -3.1, "2025-08-15")

	result, err := cache.Get(context.Background(), []string{"000001"}, []int{2024, 2023}, now)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Misses)
	assert.Equal(t, 0, result.Recomputed)
	require.True(t, result.Returns["000001"][2024].Defined())
	assert.Equal(t, 12.5, result.Returns["000001"][2024].Float())
	assert.Equal(t, -3.1, result.Returns["000001"][2023].Float())
}

func TestReturnsCacheLatestComputedDateWins(t *testing.T) {
	store, cleanup := storetest.NewTestStore(t)
	defer cleanup()

	navRepo := NewNavRepository(store, testLogger())
	batch := NewBatchComputer(navRepo, 30*time.Second, testLogger())
	cacheRepo := NewCacheRepository(store, testLogger())
	cache := NewReturnsCache(cacheRepo, batch, CachePolicy{FallbackOnMiss: true}, testLogger())

	now := storetest.MustParseDate(t, "2025-08-15")
	storetest.InsertCachedReturn(t, store, "000001", 2024, 5.0, "2025-08-10")
	storetest.InsertCachedReturn(t, store, "000001", 2024, 9.9, "2025-08-15")
	storetest.InsertCachedReturn(t, store, "000001", 2024, 7.0, "2025-08-12")

	result, err := cache.Get(context.Background(), []string{"000001"}, []int{2024}, now)
	require.NoError(t, err)
	assert.Equal(t, 9.9, result.Returns["000001"][2024].Float())
}

func TestReturnsCachePartialMissFallback(t *testing.T) {
	store, cleanup := storetest.NewTestStore(t)
	defer cleanup()

	navRepo := NewNavRepository(store, testLogger())
	batch := NewBatchComputer(navRepo, 30*time.Second, testLogger())
	cacheRepo := NewCacheRepository(store, testLogger())
	cache := NewReturnsCache(cacheRepo, batch, CachePolicy{FallbackOnMiss: true}, testLogger())

	now := storetest.MustParseDate(t, "2025-08-15")

	// 000001 has a cached 2024 value; 000002 has only NAV history.
	storetest.InsertCachedReturn(t, store, "000001", 2024, 4.2, "2025-08-15")
	storetest.InsertNav(t, store, "000002", "2024-01-02", 1.00)
	storetest.InsertNav(t, store, "000002", "2024-12-30", 1.10)

	result, err := cache.Get(context.Background(), []string{"000001", "000002"}, []int{2024}, now)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Misses)
	assert.Equal(t, 1, result.Recomputed)
	assert.Equal(t, 4.2, result.Returns["000001"][2024].Float())
	require.True(t, result.Returns["000002"][2024].Defined())
	assert.InDelta(t, 10.0, result.Returns["000002"][2024].Float(), 0.001)
}

func TestReturnsCacheFallbackMatchesDirectComputation(t *testing.T) {
	store, cleanup := storetest.NewTestStore(t)
	defer cleanup()

	navRepo := NewNavRepository(store, testLogger())
	batch := NewBatchComputer(navRepo, 30*time.Second, testLogger())
	cacheRepo := NewCacheRepository(store, testLogger())
	cache := NewReturnsCache(cacheRepo, batch, CachePolicy{FallbackOnMiss: true}, testLogger())

	now := storetest.MustParseDate(t, "2025-08-15")
	storetest.InsertNav(t, store, "000010", "2023-01-03", 1.00)
	storetest.InsertNav(t, store, "000010", "2023-12-28", 1.20)
	storetest.InsertNav(t, store, "000010", "2024-01-04", 1.22)
	storetest.InsertNav(t, store, "000010", "2024-12-30", 1.10)

	direct, err := batch.ComputeYearReturns(context.Background(), []string{"000010"}, []int{2023, 2024}, now)
	require.NoError(t, err)

	viaCache, err := cache.Get(context.Background(), []string{"000010"}, []int{2023, 2024}, now)
	require.NoError(t, err)

	assert.Equal(t, direct["000010"][2023], viaCache.Returns["000010"][2023])
	assert.Equal(t, direct["000010"][2024], viaCache.Returns["000010"][2024])
}

func TestReturnsCacheFallbackDisabled(t *testing.T) {
	store, cleanup := storetest.NewTestStore(t)
	defer cleanup()

	navRepo := NewNavRepository(store, testLogger())
	batch := NewBatchComputer(navRepo, 30*time.Second, testLogger())
	cacheRepo := NewCacheRepository(store, testLogger())
	cache := NewReturnsCache(cacheRepo, batch, CachePolicy{FallbackOnMiss: false}, testLogger())

	now := storetest.MustParseDate(t, "2025-08-15")
	// NAV history exists, but with fallback off it must not be consulted.
	storetest.InsertNav(t, store, "000001", "2024-01-02", 1.00)
	storetest.InsertNav(t, store, "000001", "2024-12-30", 1.50)

	result, err := cache.Get(context.Background(), []string{"000001"}, []int{2024}, now)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Misses)
	assert.Equal(t, 0, result.Recomputed)
	assert.False(t, result.Returns["000001"][2024].Defined())
}

func TestReturnsCacheDefaultYearSelection(t *testing.T) {
	store, cleanup := storetest.NewTestStore(t)
	defer cleanup()

	navRepo := NewNavRepository(store, testLogger())
	batch := NewBatchComputer(navRepo, 30*time.Second, testLogger())
	cacheRepo := NewCacheRepository(store, testLogger())
	cache := NewReturnsCache(cacheRepo, batch, CachePolicy{FallbackOnMiss: true}, testLogger())

	now := storetest.MustParseDate(t, "2025-08-15")

	t.Run("uses years computed today when present", func(t *testing.T) {
		storetest.InsertCachedReturn(t, store, "000001", 2025, 8.0, "2025-08-15")
		storetest.InsertCachedReturn(t, store, "000001", 2024, 6.0, "2025-08-15")
		storetest.InsertCachedReturn(t, store, "000001", 2022, 1.0, "2025-08-01") // stale date, must not be picked

		result, err := cache.Get(context.Background(), []string{"000001"}, nil, now)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{2025, 2024}, result.Years)
	})

	t.Run("empty cache for today falls back to default window", func(t *testing.T) {
		result, err := cache.Get(context.Background(), []string{"999999"}, nil, storetest.MustParseDate(t, "2030-06-01"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{2030, 2029, 2028}, result.Years)
	})
}

func TestReturnsCacheEmptyRequest(t *testing.T) {
	cache := NewReturnsCache(nil, nil, CachePolicy{FallbackOnMiss: true}, testLogger())
	result, err := cache.Get(context.Background(), nil, []int{2024}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, result.Returns)
	assert.Equal(t, 0, result.Misses)
}

func TestCacheRepositoryStatus(t *testing.T) {
	store, cleanup := storetest.NewTestStore(t)
	defer cleanup()

	cacheRepo := NewCacheRepository(store, testLogger())

	t.Run("empty table", func(t *testing.T) {
		status, err := cacheRepo.Status(context.Background())
		require.NoError(t, err)
		assert.False(t, status.HasCache)
	})

	t.Run("populated table", func(t *testing.T) {
		storetest.InsertCachedReturn(t, store, "000001", 2024, 5.0, "2025-08-14")
		storetest.InsertCachedReturn(t, store, "000001", 2025, 2.0, "2025-08-15")
		storetest.InsertCachedReturn(t, store, "000002", 2025, 3.0, "2025-08-15")

		status, err := cacheRepo.Status(context.Background())
		require.NoError(t, err)
		assert.True(t, status.HasCache)
		assert.Equal(t, 2, status.FundCount)
		assert.Equal(t, 3, status.RecordCount)
		assert.Equal(t, 2024, status.MinYear)
		assert.Equal(t, 2025, status.MaxYear)
		assert.Equal(t, "2025-08-15", status.LastComputed)
		assert.Equal(t, []int{2025, 2024}, status.AvailableYears)
	})
}
