package funds

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundsentry/pkg/formulas"
)

// Scoring constants. The two penalty rates are deliberately different:
// a short track record is a bigger blind spot for stability assessment
// than for return measurement, so stability gaps cost more per missing
// year.
const (
	scoringWindowYears      = 5
	maxReturnComponent      = 80.0
	maxStabilityComponent   = 20.0
	returnPenaltyPerYear    = 0.15
	stabilityPenaltyPerYear = 0.20
)

// ScoringYears returns the scoring window: the most recent five calendar
// years including the current one, newest first. The window tracks
// wall-clock time, not fund inception.
func ScoringYears(now time.Time) []int {
	years := make([]int, 0, scoringWindowYears)
	for y := now.Year(); y > now.Year()-scoringWindowYears; y-- {
		years = append(years, y)
	}
	return years
}

// stabilityPoints buckets one annual return into stability points.
// Note: this scores return stability via bucketed annual returns rather
// than true return volatility; the bucketing conflates return dispersion
// with downside risk, but it is the established scoring methodology and
// changing it would change every published rating.
func stabilityPoints(annualReturn float64) int {
	switch {
	case annualReturn > 20:
		return 4
	case annualReturn > 0:
		return 3
	case annualReturn > -10:
		return 2
	default:
		return 0
	}
}

// ComputeScore maps up to five yearly returns onto the bounded composite
// score. Undefined years are excluded outright, never treated as zero.
// With no valid years at all the fund is not ratable.
func ComputeScore(fundCode string, yearReturns YearReturns, now time.Time) ScoreResult {
	result := ScoreResult{
		FundCode:        fundCode,
		YearReturns:     make(map[int]float64),
		StabilityPoints: make(map[int]int),
		Rating:          "unrated",
	}

	var validReturns []float64
	for _, year := range ScoringYears(now) {
		val, ok := yearReturns[year]
		if !ok || !val.Defined() {
			continue
		}
		validReturns = append(validReturns, val.Float())
		result.YearReturns[year] = val.Float()
		result.StabilityPoints[year] = stabilityPoints(val.Float())
	}

	n := len(validReturns)
	result.YearsOfData = n
	if n == 0 {
		return result
	}
	result.Rated = true

	missing := float64(scoringWindowYears - n)

	// Return component (max 80): sum of the window's returns scaled so
	// +100% cumulative hits the cap; non-positive cumulative scores zero.
	var total float64
	for _, r := range validReturns {
		total += r
	}
	var returnScore float64
	if total > 0 {
		returnScore = math.Min(maxReturnComponent, total/100*maxReturnComponent)
	}
	returnScore *= 1 - missing*returnPenaltyPerYear
	result.ReturnComponent = math.Max(0, formulas.Round1(returnScore))

	// Stability component (max 20): bucketed points per valid year.
	points := 0
	for _, p := range result.StabilityPoints {
		points += p
	}
	stabilityScore := float64(points) * (1 - missing*stabilityPenaltyPerYear)
	result.StabilityComponent = math.Max(0, formulas.Round1(stabilityScore))

	result.Total = formulas.Round1(result.ReturnComponent + result.StabilityComponent)
	result.Stars = StarRating(result.Total)
	result.Rating = starLabel(result.Stars)

	return result
}

// StarRating buckets a total score into 1-5 stars. Boundaries are
// exclusive on the lower side: exactly 80 is 4 stars, not 5.
func StarRating(total float64) int {
	switch {
	case total > 80:
		return 5
	case total > 70:
		return 4
	case total > 60:
		return 3
	case total > 50:
		return 2
	default:
		return 1
	}
}

func starLabel(stars int) string {
	label := ""
	for i := 0; i < stars; i++ {
		label += "★"
	}
	return label
}

// ScoreEngine scores funds from the cached/recomputed year returns.
type ScoreEngine struct {
	cache *ReturnsCache
	log   zerolog.Logger
}

// NewScoreEngine creates a new score engine
func NewScoreEngine(cache *ReturnsCache, log zerolog.Logger) *ScoreEngine {
	return &ScoreEngine{
		cache: cache,
		log:   log.With().Str("component", "score_engine").Logger(),
	}
}

// ScoreMany computes scores for many funds from an already-fetched batch of
// year returns. A failure scoring one fund is isolated: it is logged and
// that fund reports as not ratable, without affecting the rest.
func (e *ScoreEngine) ScoreMany(fundCodes []string, returns BatchReturns, now time.Time) map[string]ScoreResult {
	results := make(map[string]ScoreResult, len(fundCodes))
	for _, code := range fundCodes {
		results[code] = e.scoreOne(code, returns[code], now)
	}
	return results
}

func (e *ScoreEngine) scoreOne(code string, yearReturns YearReturns, now time.Time) (result ScoreResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("fund", code).
				Interface("panic", r).
				Msg("Scoring failed")
			result = ScoreResult{
				FundCode:        code,
				Rating:          "unrated",
				YearReturns:     map[int]float64{},
				StabilityPoints: map[int]int{},
			}
		}
	}()

	return ComputeScore(code, yearReturns, now)
}
