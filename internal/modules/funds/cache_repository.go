package funds

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/fundsentry/internal/database"
)

// CacheRepository reads the precomputed (fund, year) -> return table. The
// table is written by an out-of-band batch job; this engine never writes it.
type CacheRepository struct {
	store *database.Store
	log   zerolog.Logger
}

// NewCacheRepository creates a new returns-cache repository
func NewCacheRepository(store *database.Store, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		store: store,
		log:   log.With().Str("repo", "returns_cache").Logger(),
	}
}

// TableExists reports whether the cache table is present in the store.
func (r *CacheRepository) TableExists(ctx context.Context) (bool, error) {
	var name string
	err := r.store.Conn().QueryRowContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name = 'fund_returns_cache'
	`).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check cache table: %w", err)
	}
	return true, nil
}

// YearsComputedOn returns the distinct cached years whose computed_date
// matches the given date (YYYY-MM-DD), newest year first.
func (r *CacheRepository) YearsComputedOn(ctx context.Context, date string) ([]int, error) {
	rows, err := r.store.QueryContext(ctx, `
		SELECT DISTINCT year
		FROM fund_returns_cache
		WHERE computed_date = ?
		ORDER BY year DESC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("failed to scan cache year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// GetCachedReturns fetches the cached return for every requested
// (fund, year) pair that is present. Duplicate rows for a key are resolved
// by taking the one with the greatest computed_date.
func (r *CacheRepository) GetCachedReturns(ctx context.Context, fundCodes []string, years []int) (map[string]map[int]float64, error) {
	if len(fundCodes) == 0 || len(years) == 0 {
		return map[string]map[int]float64{}, nil
	}

	query := `
		SELECT fund_code, year, return_rate, MAX(computed_date)
		FROM fund_returns_cache
		WHERE fund_code IN (` + placeholders(len(fundCodes)) + `)
		  AND year IN (` + placeholders(len(years)) + `)
		GROUP BY fund_code, year
	`

	args := make([]interface{}, 0, len(fundCodes)+len(years))
	for _, code := range fundCodes {
		args = append(args, code)
	}
	for _, y := range years {
		args = append(args, y)
	}

	rows, err := r.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached returns: %w", err)
	}
	defer rows.Close()

	cached := make(map[string]map[int]float64)
	for rows.Next() {
		var code string
		var year int
		var rate float64
		var computedDate sql.NullString
		if err := rows.Scan(&code, &year, &rate, &computedDate); err != nil {
			return nil, fmt.Errorf("failed to scan cached return: %w", err)
		}
		if cached[code] == nil {
			cached[code] = make(map[int]float64)
		}
		cached[code][year] = rate
	}
	return cached, rows.Err()
}

// Status summarizes the cache contents for operators.
func (r *CacheRepository) Status(ctx context.Context) (CacheStatus, error) {
	exists, err := r.TableExists(ctx)
	if err != nil {
		return CacheStatus{}, err
	}
	if !exists {
		return CacheStatus{HasCache: false, Message: "cache table does not exist"}, nil
	}

	var fundCount, recordCount int
	var minYear, maxYear sql.NullInt64
	var lastComputed sql.NullString
	err = r.store.Conn().QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT fund_code),
			COUNT(*),
			MIN(year),
			MAX(year),
			MAX(computed_date)
		FROM fund_returns_cache
	`).Scan(&fundCount, &recordCount, &minYear, &maxYear, &lastComputed)
	if err != nil {
		return CacheStatus{}, fmt.Errorf("failed to query cache status: %w", err)
	}

	if fundCount == 0 {
		return CacheStatus{HasCache: false, Message: "cache table is empty"}, nil
	}

	rows, err := r.store.QueryContext(ctx, `
		SELECT DISTINCT year FROM fund_returns_cache ORDER BY year DESC
	`)
	if err != nil {
		return CacheStatus{}, fmt.Errorf("failed to query available years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return CacheStatus{}, fmt.Errorf("failed to scan available year: %w", err)
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return CacheStatus{}, err
	}

	return CacheStatus{
		HasCache:       true,
		FundCount:      fundCount,
		RecordCount:    recordCount,
		AvailableYears: years,
		MinYear:        int(minYear.Int64),
		MaxYear:        int(maxYear.Int64),
		LastComputed:   lastComputed.String,
		Message:        fmt.Sprintf("%d funds precomputed, last update %s", fundCount, lastComputed.String),
	}, nil
}
