package funds

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundsentry/internal/database"
)

const navDateLayout = "2006-01-02"

// NavRepository reads NAV series and fund reference data from the store.
// All access is read-only.
type NavRepository struct {
	store *database.Store
	log   zerolog.Logger
}

// NewNavRepository creates a new NAV repository
func NewNavRepository(store *database.Store, log zerolog.Logger) *NavRepository {
	return &NavRepository{
		store: store,
		log:   log.With().Str("repo", "nav").Logger(),
	}
}

// GetNavWindow returns the most recent non-null NAV observations for a
// fund, sorted ascending by date. limit bounds the number of rows fetched.
func (r *NavRepository) GetNavWindow(ctx context.Context, fundCode string, limit int) ([]NavPoint, error) {
	query := `
		SELECT nav_date, unit_nav, accum_nav
		FROM fund_nav
		WHERE fund_code = ? AND unit_nav IS NOT NULL
		ORDER BY nav_date DESC
		LIMIT ?
	`

	rows, err := r.store.QueryContext(ctx, query, fundCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query nav window: %w", err)
	}
	defer rows.Close()

	var window []NavPoint
	for rows.Next() {
		p, err := scanNavPoint(rows)
		if err != nil {
			return nil, err
		}
		window = append(window, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nav rows: %w", err)
	}

	// Fetched newest-first; calculators expect ascending order
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}

	return window, nil
}

// GetNavSince returns all non-null NAV rows for the given funds with
// nav_date >= floor, grouped by fund and sorted ascending by date. This is
// the single bulk query behind batch year-return computation.
func (r *NavRepository) GetNavSince(ctx context.Context, fundCodes []string, floor time.Time) (map[string][]NavPoint, error) {
	if len(fundCodes) == 0 {
		return map[string][]NavPoint{}, nil
	}

	query := `
		SELECT fund_code, nav_date, unit_nav
		FROM fund_nav
		WHERE fund_code IN (` + placeholders(len(fundCodes)) + `)
		  AND unit_nav IS NOT NULL
		  AND nav_date >= ?
		ORDER BY fund_code, nav_date
	`

	args := make([]interface{}, 0, len(fundCodes)+1)
	for _, code := range fundCodes {
		args = append(args, code)
	}
	args = append(args, floor.Format(navDateLayout))

	rows, err := r.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk query nav rows: %w", err)
	}
	defer rows.Close()

	partitions := make(map[string][]NavPoint, len(fundCodes))
	for rows.Next() {
		var code, dateStr string
		var unitNav float64
		if err := rows.Scan(&code, &dateStr, &unitNav); err != nil {
			return nil, fmt.Errorf("failed to scan nav row: %w", err)
		}
		date, err := time.Parse(navDateLayout, dateStr)
		if err != nil {
			r.log.Warn().Str("fund", code).Str("date", dateStr).Msg("Skipping unparsable nav date")
			continue
		}
		partitions[code] = append(partitions[code], NavPoint{Date: date, UnitNav: unitNav})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bulk nav rows: %w", err)
	}

	return partitions, nil
}

// GetFirstLastNav returns the earliest and latest non-null NAV observations
// for a fund, or nil slices when the fund has no history.
func (r *NavRepository) GetFirstLastNav(ctx context.Context, fundCode string) (first, last *NavPoint, err error) {
	query := `
		SELECT nav_date, unit_nav FROM (
			SELECT nav_date, unit_nav FROM fund_nav
			WHERE fund_code = ? AND unit_nav IS NOT NULL
			ORDER BY nav_date ASC LIMIT 1
		)
		UNION ALL
		SELECT nav_date, unit_nav FROM (
			SELECT nav_date, unit_nav FROM fund_nav
			WHERE fund_code = ? AND unit_nav IS NOT NULL
			ORDER BY nav_date DESC LIMIT 1
		)
	`

	rows, err := r.store.QueryContext(ctx, query, fundCode, fundCode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query first/last nav: %w", err)
	}
	defer rows.Close()

	var points []NavPoint
	for rows.Next() {
		var dateStr string
		var unitNav float64
		if err := rows.Scan(&dateStr, &unitNav); err != nil {
			return nil, nil, fmt.Errorf("failed to scan first/last nav: %w", err)
		}
		date, perr := time.Parse(navDateLayout, dateStr)
		if perr != nil {
			continue
		}
		points = append(points, NavPoint{Date: date, UnitNav: unitNav})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating first/last nav: %w", err)
	}

	if len(points) < 2 {
		return nil, nil, nil
	}
	return &points[0], &points[1], nil
}

// GetFundInfo returns reference data for a fund, or nil when unknown.
func (r *NavRepository) GetFundInfo(ctx context.Context, fundCode string) (*FundInfo, error) {
	query := `
		SELECT fund_code, name, fund_type, management, found_date, status
		FROM fund_basic
		WHERE fund_code = ?
	`

	var info FundInfo
	var name, fundType, management, foundDate, status sql.NullString
	err := r.store.Conn().QueryRowContext(ctx, query, fundCode).
		Scan(&info.Code, &name, &fundType, &management, &foundDate, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fund info: %w", err)
	}

	info.Name = name.String
	info.FundType = fundType.String
	info.Management = management.String
	info.InceptionDate = foundDate.String
	info.Status = status.String

	return &info, nil
}

// SearchFunds finds funds whose code or name contains the keyword.
func (r *NavRepository) SearchFunds(ctx context.Context, keyword string, limit int) ([]FundInfo, error) {
	query := `
		SELECT fund_code, name, fund_type, management, found_date, status
		FROM fund_basic
		WHERE fund_code LIKE ? OR name LIKE ?
		ORDER BY fund_code
		LIMIT ?
	`

	pattern := "%" + keyword + "%"
	return r.queryFunds(ctx, query, pattern, pattern, limit)
}

// GetLiveFunds returns all funds currently open for subscription.
func (r *NavRepository) GetLiveFunds(ctx context.Context) ([]FundInfo, error) {
	query := `
		SELECT fund_code, name, fund_type, management, found_date, status
		FROM fund_basic
		WHERE status = 'L'
		ORDER BY fund_code
	`
	return r.queryFunds(ctx, query)
}

// FilterOptions returns the distinct management companies and fund types
// available for filtering.
func (r *NavRepository) FilterOptions(ctx context.Context) (companies, fundTypes []string, err error) {
	companies, err = r.distinctColumn(ctx, "management")
	if err != nil {
		return nil, nil, err
	}
	fundTypes, err = r.distinctColumn(ctx, "fund_type")
	if err != nil {
		return nil, nil, err
	}
	return companies, fundTypes, nil
}

func (r *NavRepository) distinctColumn(ctx context.Context, column string) ([]string, error) {
	// column is one of two fixed identifiers, never user input
	query := `
		SELECT DISTINCT ` + column + `
		FROM fund_basic
		WHERE ` + column + ` IS NOT NULL AND ` + column + ` != ''
		ORDER BY ` + column

	rows, err := r.store.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetTopHoldingWeights returns the portfolio weights of the most recently
// reported holdings, largest first.
func (r *NavRepository) GetTopHoldingWeights(ctx context.Context, fundCode string, limit int) ([]float64, error) {
	query := `
		SELECT weight_pct
		FROM fund_portfolio
		WHERE fund_code = ?
		  AND end_date = (SELECT MAX(end_date) FROM fund_portfolio WHERE fund_code = ?)
		ORDER BY weight_pct DESC
		LIMIT ?
	`

	rows, err := r.store.QueryContext(ctx, query, fundCode, fundCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding weights: %w", err)
	}
	defer rows.Close()

	var weights []float64
	for rows.Next() {
		var w float64
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("failed to scan holding weight: %w", err)
		}
		weights = append(weights, w)
	}
	return weights, rows.Err()
}

func (r *NavRepository) queryFunds(ctx context.Context, query string, args ...interface{}) ([]FundInfo, error) {
	rows, err := r.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer rows.Close()

	var funds []FundInfo
	for rows.Next() {
		var info FundInfo
		var name, fundType, management, foundDate, status sql.NullString
		if err := rows.Scan(&info.Code, &name, &fundType, &management, &foundDate, &status); err != nil {
			return nil, fmt.Errorf("failed to scan fund row: %w", err)
		}
		info.Name = name.String
		info.FundType = fundType.String
		info.Management = management.String
		info.InceptionDate = foundDate.String
		info.Status = status.String
		funds = append(funds, info)
	}
	return funds, rows.Err()
}

func scanNavPoint(rows *sql.Rows) (NavPoint, error) {
	var dateStr string
	var unitNav float64
	var accumNav sql.NullFloat64

	if err := rows.Scan(&dateStr, &unitNav, &accumNav); err != nil {
		return NavPoint{}, fmt.Errorf("failed to scan nav point: %w", err)
	}

	date, err := time.Parse(navDateLayout, dateStr)
	if err != nil {
		return NavPoint{}, fmt.Errorf("failed to parse nav date %q: %w", dateStr, err)
	}

	p := NavPoint{Date: date, UnitNav: unitNav}
	if accumNav.Valid {
		v := accumNav.Float64
		p.AccumNav = &v
	}
	return p, nil
}

// placeholders builds a "?,?,?" list for IN clauses.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
