package funds

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CacheProbeJob periodically checks the precomputed cache and warns when
// it is stale or unpopulated, so operators notice a dead precompute job
// before users notice slow responses.
type CacheProbeJob struct {
	cacheRepo *CacheRepository
	maxAge    time.Duration
	log       zerolog.Logger
}

// NewCacheProbeJob creates the cache freshness probe
func NewCacheProbeJob(cacheRepo *CacheRepository, maxAge time.Duration, log zerolog.Logger) *CacheProbeJob {
	return &CacheProbeJob{
		cacheRepo: cacheRepo,
		maxAge:    maxAge,
		log:       log.With().Str("job", "cache_probe").Logger(),
	}
}

// Name implements scheduler.Job
func (j *CacheProbeJob) Name() string { return "cache_probe" }

// Run implements scheduler.Job
func (j *CacheProbeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, err := j.cacheRepo.Status(ctx)
	if err != nil {
		return err
	}

	if !status.HasCache {
		j.log.Warn().Str("message", status.Message).Msg("Returns cache unpopulated")
		return nil
	}

	lastComputed, err := time.Parse("2006-01-02", status.LastComputed)
	if err != nil {
		j.log.Warn().Str("last_computed", status.LastComputed).Msg("Returns cache has unparsable computed_date")
		return nil
	}

	age := time.Since(lastComputed)
	if age > j.maxAge {
		j.log.Warn().
			Dur("age", age).
			Int("funds", status.FundCount).
			Msg("Returns cache is stale")
	} else {
		j.log.Debug().
			Dur("age", age).
			Int("funds", status.FundCount).
			Int("records", status.RecordCount).
			Msg("Returns cache healthy")
	}

	return nil
}
