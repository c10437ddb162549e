// Package testing provides test database helpers for the fundsentry project.
package testing

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/aristath/fundsentry/internal/database"
)

// StoreSchema is the fund store schema used by tests. It mirrors the
// production tables: NAV series, fund reference data, precomputed returns
// cache and holdings. The cache table deliberately has no primary key -
// duplicate (fund_code, year) rows with different computed_date values are
// part of the contract.
const StoreSchema = `
CREATE TABLE fund_nav (
	fund_code TEXT NOT NULL,
	nav_date  TEXT NOT NULL,
	unit_nav  REAL,
	accum_nav REAL
);

CREATE TABLE fund_basic (
	fund_code  TEXT PRIMARY KEY,
	name       TEXT,
	fund_type  TEXT,
	management TEXT,
	found_date TEXT,
	status     TEXT
);

CREATE TABLE fund_returns_cache (
	fund_code     TEXT NOT NULL,
	year          INTEGER NOT NULL,
	return_rate   REAL,
	computed_date TEXT
);

CREATE TABLE fund_portfolio (
	fund_code  TEXT NOT NULL,
	ann_date   TEXT,
	end_date   TEXT,
	symbol     TEXT,
	mkv        REAL,
	weight_pct REAL
);
`

// NewTestStore creates a temp-file fund store with the production schema
// applied. Returns the store and an idempotent cleanup function.
func NewTestStore(t *testing.T) (*database.Store, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test_funds_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp store file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	// Apply schema with a throwaway connection before the store opens it
	conn, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to open schema connection: %v", err)
	}
	if _, err := conn.Exec(StoreSchema); err != nil {
		_ = conn.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to apply schema: %v", err)
	}
	if err := conn.Close(); err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to close schema connection: %v", err)
	}

	store, err := database.Open(database.Config{
		Path: tmpPath,
		Log:  zerolog.New(nil).Level(zerolog.Disabled),
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to open test store: %v", err)
	}

	return store, func() {
		_ = store.Close()
		_ = os.Remove(tmpPath)
	}
}

// InsertNav adds one NAV observation.
func InsertNav(t *testing.T, store *database.Store, fundCode, date string, unitNav float64) {
	t.Helper()
	_, err := store.Conn().Exec(
		`INSERT INTO fund_nav (fund_code, nav_date, unit_nav) VALUES (?, ?, ?)`,
		fundCode, date, unitNav,
	)
	if err != nil {
		t.Fatalf("Failed to insert nav row: %v", err)
	}
}

// InsertFund adds one fund reference row.
func InsertFund(t *testing.T, store *database.Store, fundCode, name, fundType, management, foundDate, status string) {
	t.Helper()
	_, err := store.Conn().Exec(
		`INSERT INTO fund_basic (fund_code, name, fund_type, management, found_date, status) VALUES (?, ?, ?, ?, ?, ?)`,
		fundCode, name, fundType, management, foundDate, status,
	)
	if err != nil {
		t.Fatalf("Failed to insert fund row: %v", err)
	}
}

// InsertCachedReturn adds one precomputed cache row.
func InsertCachedReturn(t *testing.T, store *database.Store, fundCode string, year int, rate float64, computedDate string) {
	t.Helper()
	_, err := store.Conn().Exec(
		`INSERT INTO fund_returns_cache (fund_code, year, return_rate, computed_date) VALUES (?, ?, ?, ?)`,
		fundCode, year, rate, computedDate,
	)
	if err != nil {
		t.Fatalf("Failed to insert cache row: %v", err)
	}
}

// InsertHolding adds one holdings row.
func InsertHolding(t *testing.T, store *database.Store, fundCode, endDate, symbol string, weightPct float64) {
	t.Helper()
	_, err := store.Conn().Exec(
		`INSERT INTO fund_portfolio (fund_code, end_date, symbol, weight_pct) VALUES (?, ?, ?, ?)`,
		fundCode, endDate, symbol, weightPct,
	)
	if err != nil {
		t.Fatalf("Failed to insert holding row: %v", err)
	}
}

// SeedDailyNavs inserts a run of consecutive daily NAVs starting at the
// given date, one per element of navs.
func SeedDailyNavs(t *testing.T, store *database.Store, fundCode, startDate string, navs []float64) {
	t.Helper()
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		t.Fatalf("Bad start date %q: %v", startDate, err)
	}
	for i, nav := range navs {
		InsertNav(t, store, fundCode, start.AddDate(0, 0, i).Format("2006-01-02"), nav)
	}
}

// DisabledLogger returns a no-op zerolog logger for tests.
func DisabledLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// MustParseDate parses YYYY-MM-DD or fails the test.
func MustParseDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("Bad date %q: %v", s, err)
	}
	return d
}
