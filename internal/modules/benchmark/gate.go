package benchmark

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundsentry/internal/modules/funds"
)

// minFundAgeYears is the minimum age before a fund is eligible for the top
// tier at all.
const minFundAgeYears = 4

// FundHistory is the slice of the funds module the gate needs.
type FundHistory interface {
	GetFundInfo(ctx context.Context, fundCode string) (*funds.FundInfo, error)
	GetFirstLastNav(ctx context.Context, fundCode string) (first, last *funds.NavPoint, err error)
}

// Gate decides whether an already highly rated fund additionally qualifies
// for the top tier by beating the benchmark index over its whole life.
//
// Every condition fails closed: missing fund data, an unparsable inception
// date, or an unavailable benchmark all deny the upgrade. No proof, no
// upgrade.
type Gate struct {
	history FundHistory
	source  IndexSource
	code    string
	market  string
	log     zerolog.Logger

	// NowFn supplies the wall clock; tests pin it.
	NowFn func() time.Time
}

// NewGate creates a new benchmark gate
func NewGate(history FundHistory, source IndexSource, indexCode, market string, log zerolog.Logger) *Gate {
	return &Gate{
		history: history,
		source:  source,
		code:    indexCode,
		market:  market,
		log:     log.With().Str("component", "benchmark_gate").Logger(),
		NowFn:   time.Now,
	}
}

// QualifiesForTopTier checks the three conditions in cost order: the star
// threshold (free), the fund age (one row lookup), then the growth
// comparison (index scan).
func (g *Gate) QualifiesForTopTier(ctx context.Context, fundCode string, stars int) bool {
	if stars < 4 {
		return false
	}

	info, err := g.history.GetFundInfo(ctx, fundCode)
	if err != nil || info == nil {
		if err != nil {
			g.log.Warn().Err(err).Str("fund", fundCode).Msg("Gate: fund lookup failed")
		}
		return false
	}

	inceptionYear, ok := parseInceptionYear(info.InceptionDate)
	if !ok {
		return false
	}
	if g.NowFn().Year()-inceptionYear < minFundAgeYears {
		return false
	}

	first, last, err := g.history.GetFirstLastNav(ctx, fundCode)
	if err != nil || first == nil || last == nil || first.UnitNav == 0 {
		if err != nil {
			g.log.Warn().Err(err).Str("fund", fundCode).Msg("Gate: nav lookup failed")
		}
		return false
	}

	fundGrowth := (last.UnitNav - first.UnitNav) / first.UnitNav * 100

	indexGrowth, ok := g.indexGrowth(ctx, first.Date, last.Date)
	if !ok {
		return false
	}

	return fundGrowth > indexGrowth
}

// indexGrowth computes the benchmark's cumulative growth over [from, to].
// Fewer than 2 matching observations means no proof, so not ok.
func (g *Gate) indexGrowth(ctx context.Context, from, to time.Time) (float64, bool) {
	series, err := g.source.GetIndexSeries(ctx, g.code, g.market)
	if err != nil {
		g.log.Warn().Err(err).Str("index", g.code).Msg("Gate: benchmark unavailable")
		return 0, false
	}

	var window []IndexPoint
	for _, p := range series {
		if !p.Date.Before(from) && !p.Date.After(to) {
			window = append(window, p)
		}
	}
	if len(window) < 2 {
		return 0, false
	}

	first, last := window[0], window[len(window)-1]
	if first.Close == 0 {
		return 0, false
	}

	return (last.Close - first.Close) / first.Close * 100, true
}

// parseInceptionYear extracts the year from an inception date in either
// YYYYMMDD or YYYY-MM-DD form. Anything unparsable is rejected.
func parseInceptionYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year < 1900 {
		return 0, false
	}
	return year, true
}
