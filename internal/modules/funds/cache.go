package funds

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CachePolicy controls how the returns cache behaves on a miss. A single
// policy object is passed at construction; call sites never re-derive
// fallback booleans.
type CachePolicy struct {
	FallbackOnMiss bool
}

// CacheResult carries the merged returns plus observability counters.
type CacheResult struct {
	Returns BatchReturns
	Years   []int
	// Misses is the number of (fund, year) cells absent from the cache
	// table. A non-zero count is normal; a persistently high one means the
	// precompute job is stale or not running.
	Misses int
	// Recomputed is the number of missing cells filled by fallback
	// computation.
	Recomputed int
}

// ReturnsCache is the read path over the precomputed returns table with
// partial-miss fallback to the batch computer. The cache is eventually
// consistent with NAV history; a miss is expected, never corruption.
type ReturnsCache struct {
	cacheRepo *CacheRepository
	batch     *BatchComputer
	policy    CachePolicy
	log       zerolog.Logger
}

// NewReturnsCache creates a new returns cache read path
func NewReturnsCache(cacheRepo *CacheRepository, batch *BatchComputer, policy CachePolicy, log zerolog.Logger) *ReturnsCache {
	return &ReturnsCache{
		cacheRepo: cacheRepo,
		batch:     batch,
		policy:    policy,
		log:       log.With().Str("component", "returns_cache").Logger(),
	}
}

// defaultYears is the window used when the cache offers no year set: the
// current year and the two before it.
func defaultYears(now time.Time) []int {
	y := now.Year()
	return []int{y, y - 1, y - 2}
}

// Get returns fund -> year -> return for the requested funds. A nil or
// empty years slice selects the cache's own year set for today, falling
// back to a default recent window computed in real time.
func (c *ReturnsCache) Get(ctx context.Context, fundCodes []string, years []int, now time.Time) (CacheResult, error) {
	if len(fundCodes) == 0 {
		return CacheResult{Returns: BatchReturns{}}, nil
	}

	exists, err := c.cacheRepo.TableExists(ctx)
	if err != nil {
		return CacheResult{}, err
	}
	if !exists {
		return c.computeAll(ctx, fundCodes, c.yearsOrDefault(years, now), now)
	}

	if len(years) == 0 {
		years, err = c.cacheRepo.YearsComputedOn(ctx, now.Format(navDateLayout))
		if err != nil {
			return CacheResult{}, err
		}
		if len(years) == 0 {
			// Cache exists but holds nothing for today; compute a recent
			// window live.
			return c.computeAll(ctx, fundCodes, defaultYears(now), now)
		}
	}

	cached, err := c.cacheRepo.GetCachedReturns(ctx, fundCodes, years)
	if err != nil {
		return CacheResult{}, err
	}

	result := CacheResult{
		Returns: make(BatchReturns, len(fundCodes)),
		Years:   years,
	}

	missing := make(map[string][]int)
	for _, code := range fundCodes {
		result.Returns[code] = make(YearReturns, len(years))
		for _, year := range years {
			if rate, ok := cached[code][year]; ok {
				result.Returns[code][year] = Ok(rate)
			} else {
				result.Returns[code][year] = Undefined()
				result.Misses++
				missing[code] = append(missing[code], year)
			}
		}
	}

	if result.Misses == 0 || !c.policy.FallbackOnMiss {
		if result.Misses > 0 {
			c.log.Debug().Int("misses", result.Misses).Msg("Cache misses left undefined (fallback disabled)")
		}
		return result, nil
	}

	// Recompute only the missing pairs. The year set is the union of the
	// missing cells' years; funds keep their cached values for hits.
	c.log.Warn().Int("misses", result.Misses).Msg("Cache misses, falling back to realtime computation")

	missingCodes := make([]string, 0, len(missing))
	yearSet := make(map[int]struct{})
	for code, ys := range missing {
		missingCodes = append(missingCodes, code)
		for _, y := range ys {
			yearSet[y] = struct{}{}
		}
	}
	missingYears := make([]int, 0, len(yearSet))
	for y := range yearSet {
		missingYears = append(missingYears, y)
	}

	computed, err := c.batch.ComputeYearReturns(ctx, missingCodes, missingYears, now)
	if err != nil {
		// Fallback failure leaves the missing cells undefined; the cached
		// portion of the result is still good.
		c.log.Error().Err(err).Msg("Fallback computation failed")
		return result, nil
	}

	for code, wantYears := range missing {
		for _, year := range wantYears {
			if val, ok := computed[code][year]; ok && val.Defined() {
				result.Returns[code][year] = val
				result.Recomputed++
			}
		}
	}

	return result, nil
}

func (c *ReturnsCache) yearsOrDefault(years []int, now time.Time) []int {
	if len(years) > 0 {
		return years
	}
	return defaultYears(now)
}

// computeAll handles the no-cache path: every cell is a miss and the whole
// request goes through the batch computer.
func (c *ReturnsCache) computeAll(ctx context.Context, fundCodes []string, years []int, now time.Time) (CacheResult, error) {
	misses := len(fundCodes) * len(years)

	if !c.policy.FallbackOnMiss {
		result := CacheResult{Returns: make(BatchReturns, len(fundCodes)), Years: years, Misses: misses}
		for _, code := range fundCodes {
			result.Returns[code] = make(YearReturns, len(years))
			for _, year := range years {
				result.Returns[code][year] = Undefined()
			}
		}
		return result, nil
	}

	c.log.Warn().Int("misses", misses).Msg("Returns cache unavailable, computing in realtime")

	computed, err := c.batch.ComputeYearReturns(ctx, fundCodes, years, now)
	if err != nil {
		return CacheResult{}, err
	}

	recomputed := 0
	for _, yearVals := range computed {
		for _, val := range yearVals {
			if val.Defined() {
				recomputed++
			}
		}
	}

	return CacheResult{Returns: computed, Years: years, Misses: misses, Recomputed: recomputed}, nil
}
