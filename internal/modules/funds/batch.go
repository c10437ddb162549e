package funds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrQueryTimeout reports that the bulk NAV query hit its deadline. It is
// distinct from "no data" so callers can retry or surface it.
var ErrQueryTimeout = errors.New("bulk nav query timed out")

// BatchComputer computes year returns for many funds with a single bulk
// range query, partitioning the rows in memory. This trades memory for
// round trips; it is what makes scoring hundreds of funds tractable.
type BatchComputer struct {
	navRepo *NavRepository
	timeout time.Duration
	log     zerolog.Logger
}

// NewBatchComputer creates a new batch year-return computer
func NewBatchComputer(navRepo *NavRepository, timeout time.Duration, log zerolog.Logger) *BatchComputer {
	return &BatchComputer{
		navRepo: navRepo,
		timeout: timeout,
		log:     log.With().Str("component", "batch_computer").Logger(),
	}
}

// ComputeYearReturns returns fund -> year -> return for every requested
// pair. Exactly one store query is issued regardless of input size. A
// failure confined to one (fund, year) cell is recorded on that cell only.
func (b *BatchComputer) ComputeYearReturns(ctx context.Context, fundCodes []string, years []int, now time.Time) (BatchReturns, error) {
	result := make(BatchReturns, len(fundCodes))
	for _, code := range fundCodes {
		result[code] = make(YearReturns, len(years))
		for _, year := range years {
			result[code][year] = Undefined()
		}
	}

	if len(fundCodes) == 0 || len(years) == 0 {
		return result, nil
	}

	// Conservative floor: one year before the earliest requested year, so
	// funds whose first trading day of a year falls in early January are
	// never cut off.
	minYear := years[0]
	for _, y := range years[1:] {
		if y < minYear {
			minYear = y
		}
	}
	floor := time.Date(minYear-1, time.January, 1, 0, 0, 0, 0, time.UTC)

	queryCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	partitions, err := b.navRepo.GetNavSince(queryCtx, fundCodes, floor)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrQueryTimeout, err)
		}
		return nil, err
	}

	for _, code := range fundCodes {
		window, ok := partitions[code]
		if !ok {
			// Fund has no NAV history in range; cells stay Undefined
			continue
		}
		for _, year := range years {
			result[code][year] = b.computeCell(code, window, year, now)
		}
	}

	return result, nil
}

// computeCell evaluates one (fund, year) cell, converting panics from bad
// data into an error-state cell instead of aborting the batch.
func (b *BatchComputer) computeCell(code string, window []NavPoint, year int, now time.Time) (val Value) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn().
				Str("fund", code).
				Int("year", year).
				Interface("panic", r).
				Msg("Year return computation failed")
			val = Failed(fmt.Sprintf("computation failed: %v", r))
		}
	}()

	return YearReturn(window, year, now)
}
