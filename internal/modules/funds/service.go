package funds

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundsentry/pkg/formulas"
)

// Service orchestrates the engine for the HTTP layer: batch returns with
// optional scores, single-fund scoring, period ladders, rankings and
// holdings concentration.
type Service struct {
	navRepo   *NavRepository
	cacheRepo *CacheRepository
	cache     *ReturnsCache
	batch     *BatchComputer
	scores    *ScoreEngine
	risk      *RiskService
	log       zerolog.Logger

	// NowFn supplies the wall clock; tests pin it.
	NowFn func() time.Time
}

// NewService creates a new funds service
func NewService(
	navRepo *NavRepository,
	cacheRepo *CacheRepository,
	cache *ReturnsCache,
	batch *BatchComputer,
	scores *ScoreEngine,
	risk *RiskService,
	log zerolog.Logger,
) *Service {
	return &Service{
		navRepo:   navRepo,
		cacheRepo: cacheRepo,
		cache:     cache,
		batch:     batch,
		scores:    scores,
		risk:      risk,
		log:       log.With().Str("component", "funds_service").Logger(),
		NowFn:     time.Now,
	}
}

// BatchResult is the result of a batch year-return request.
type BatchResult struct {
	Returns BatchReturns
	Scores  map[string]ScoreResult // nil unless scores were requested
	Years   []int
	Misses  int
}

// BatchYearReturns serves the main batch endpoint. useCache selects the
// cache read path (with its configured fallback policy); otherwise the
// batch computer runs directly. includeScore attaches a composite score per
// fund, computed over the scoring window.
func (s *Service) BatchYearReturns(ctx context.Context, fundCodes []string, years []int, useCache, includeScore bool) (BatchResult, error) {
	now := s.NowFn()

	var (
		result BatchResult
		err    error
	)

	if useCache {
		var cr CacheResult
		cr, err = s.cache.Get(ctx, fundCodes, years, now)
		if err != nil {
			return BatchResult{}, err
		}
		result = BatchResult{Returns: cr.Returns, Years: cr.Years, Misses: cr.Misses}
	} else {
		if len(years) == 0 {
			years = defaultYears(now)
		}
		var computed BatchReturns
		computed, err = s.batch.ComputeYearReturns(ctx, fundCodes, years, now)
		if err != nil {
			return BatchResult{}, err
		}
		result = BatchResult{Returns: computed, Years: years}
	}

	if includeScore {
		result.Scores = s.scoresForBatch(ctx, fundCodes, result.Returns, now)
	}

	return result, nil
}

// scoresForBatch scores the batch. When the requested years already cover
// the scoring window the fetched returns are reused; otherwise the scoring
// window is fetched separately through the cache.
func (s *Service) scoresForBatch(ctx context.Context, fundCodes []string, returns BatchReturns, now time.Time) map[string]ScoreResult {
	scoringYears := ScoringYears(now)

	covered := true
	for _, code := range fundCodes {
		for _, y := range scoringYears {
			if _, ok := returns[code][y]; !ok {
				covered = false
				break
			}
		}
		if !covered {
			break
		}
	}

	scoreInput := returns
	if !covered {
		cr, err := s.cache.Get(ctx, fundCodes, scoringYears, now)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to fetch scoring-window returns")
			scoreInput = BatchReturns{}
		} else {
			scoreInput = cr.Returns
		}
	}

	return s.scores.ScoreMany(fundCodes, scoreInput, now)
}

// FundScore scores a single fund over the standard window.
func (s *Service) FundScore(ctx context.Context, fundCode string) (ScoreResult, error) {
	now := s.NowFn()

	cr, err := s.cache.Get(ctx, []string{fundCode}, ScoringYears(now), now)
	if err != nil {
		return ScoreResult{}, err
	}

	scores := s.scores.ScoreMany([]string{fundCode}, cr.Returns, now)
	return scores[fundCode], nil
}

// PeriodReturns computes the standard trailing-return ladder for one fund.
func (s *Service) PeriodReturns(ctx context.Context, fundCode string) (map[string]Value, error) {
	// Longest window plus padding for non-trading days
	window, err := s.navRepo.GetNavWindow(ctx, fundCode, 365*10+30)
	if err != nil {
		return nil, err
	}
	return PeriodLadder(window), nil
}

// RiskMetrics computes the trailing risk metrics for one fund.
func (s *Service) RiskMetrics(ctx context.Context, fundCode string, days int) (RiskResult, error) {
	return s.risk.Metrics(ctx, fundCode, days)
}

// CacheStatus reports the precomputed-cache state.
func (s *Service) CacheStatus(ctx context.Context) (CacheStatus, error) {
	return s.cacheRepo.Status(ctx)
}

// TopPerformer is one row of the annual leaderboard.
type TopPerformer struct {
	Rank       int     `json:"rank"`
	FundCode   string  `json:"fund_code"`
	Name       string  `json:"name"`
	FundType   string  `json:"fund_type"`
	Management string  `json:"management"`
	Return     float64 `json:"return"`
	Score      float64 `json:"score"`
	Stars      int     `json:"stars"`
	Rated      bool    `json:"rated"`
}

// TopPerformers ranks live funds by the given year's return, attaching
// scores. Funds without a defined return for the year are skipped.
func (s *Service) TopPerformers(ctx context.Context, year, limit int) ([]TopPerformer, error) {
	now := s.NowFn()
	if year == 0 {
		year = now.Year()
	}

	live, err := s.navRepo.GetLiveFunds(ctx)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return []TopPerformer{}, nil
	}

	codes := make([]string, len(live))
	byCode := make(map[string]FundInfo, len(live))
	for i, f := range live {
		codes[i] = f.Code
		byCode[f.Code] = f
	}

	cr, err := s.cache.Get(ctx, codes, []int{year}, now)
	if err != nil {
		return nil, err
	}

	scores := s.scoresForBatch(ctx, codes, BatchReturns{}, now)

	var performers []TopPerformer
	for code, yearVals := range cr.Returns {
		val := yearVals[year]
		if !val.Defined() {
			continue
		}
		info := byCode[code]
		score := scores[code]
		performers = append(performers, TopPerformer{
			FundCode:   code,
			Name:       info.Name,
			FundType:   info.FundType,
			Management: info.Management,
			Return:     val.Float(),
			Score:      score.Total,
			Stars:      score.Stars,
			Rated:      score.Rated,
		})
	}

	sort.Slice(performers, func(i, j int) bool {
		if performers[i].Return != performers[j].Return {
			return performers[i].Return > performers[j].Return
		}
		return performers[i].FundCode < performers[j].FundCode
	})

	if limit > 0 && len(performers) > limit {
		performers = performers[:limit]
	}
	for i := range performers {
		performers[i].Rank = i + 1
	}

	return performers, nil
}

// HoldingsConcentration buckets the top-holding weight sums of a fund.
func (s *Service) HoldingsConcentration(ctx context.Context, fundCode string) (*Concentration, error) {
	weights, err := s.navRepo.GetTopHoldingWeights(ctx, fundCode, 50)
	if err != nil {
		return nil, err
	}
	if len(weights) == 0 {
		return nil, nil
	}

	var top5, top10 float64
	for i, w := range weights {
		if i < 5 {
			top5 += w
		}
		if i < 10 {
			top10 += w
		}
	}

	level := "diversified"
	switch {
	case top5 > 50:
		level = "concentrated"
	case top5 > 30:
		level = "moderate"
	}

	return &Concentration{
		Top5Pct:  formulas.Round2(top5),
		Top10Pct: formulas.Round2(top10),
		Level:    level,
	}, nil
}

// SearchFunds finds funds by code or name substring.
func (s *Service) SearchFunds(ctx context.Context, keyword string, limit int) ([]FundInfo, error) {
	return s.navRepo.SearchFunds(ctx, keyword, limit)
}

// FilterOptions returns the distinct companies and fund types.
func (s *Service) FilterOptions(ctx context.Context) (companies, fundTypes []string, err error) {
	return s.navRepo.FilterOptions(ctx)
}
