// Package database provides access to the embedded fund store, including
// transparent decompression of gzip-wrapped snapshots.
package database

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Format identifies the content of a store file.
type Format int

const (
	// FormatUnknown - neither a SQLite file nor a gzip stream
	FormatUnknown Format = iota
	// FormatSQLite - a plain SQLite database file
	FormatSQLite
	// FormatGzip - a gzip-compressed stream
	FormatGzip
)

var sqliteMagic = []byte("SQLite format 3\x00")

// Store wraps the embedded fund database. When the source file is
// gzip-compressed it is decompressed once, on open, to a process-scoped
// temporary file which is removed on Close.
type Store struct {
	conn     *sql.DB
	path     string
	tempPath string
	log      zerolog.Logger

	closeOnce sync.Once
}

// Config holds store configuration
type Config struct {
	Path string
	Log  zerolog.Logger
}

// Open opens the fund store. A ".gz" extension selects the decompression
// path; anything else is opened directly. A missing source file or a
// decompression failure is a hard error.
func Open(cfg Config) (*Store, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("store unavailable: %w", err)
	}

	s := &Store{
		path: cfg.Path,
		log:  cfg.Log.With().Str("component", "store").Logger(),
	}

	dbPath := cfg.Path
	if strings.HasSuffix(cfg.Path, ".gz") {
		tempPath, err := decompressToTemp(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("store unavailable: %w", err)
		}
		s.tempPath = tempPath
		dbPath = tempPath
		s.log.Info().Str("source", cfg.Path).Str("temp", tempPath).Msg("Decompressed store snapshot")
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		s.removeTemp()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Read-mostly workload, shared by all request goroutines
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		s.removeTemp()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	s.conn = conn
	s.ensureIndexes()

	return s, nil
}

// decompressToTemp extracts a gzip-compressed database to a temporary file
// and returns its path.
func decompressToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open compressed store: %w", err)
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return "", fmt.Errorf("failed to read gzip header: %w", err)
	}
	defer gz.Close()

	tmp, err := os.CreateTemp("", "fundsentry-*.db")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, gz); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to decompress store: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to flush temp file: %w", err)
	}

	return tmp.Name(), nil
}

// ensureIndexes creates the indexes backing the hot query paths. Creation
// failures are swallowed - the index may already exist, or the table may be
// absent in a partial snapshot, and neither should stop the engine.
func (s *Store) ensureIndexes() {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_fund_nav_code_date ON fund_nav(fund_code, nav_date)`,
		`CREATE INDEX IF NOT EXISTS idx_fund_portfolio_code_date ON fund_portfolio(fund_code, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_fund_basic_status ON fund_basic(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.Exec(stmt); err != nil {
			s.log.Debug().Err(err).Msg("Index creation skipped")
		}
	}
}

// SniffFormat peeks at the first bytes of a file to distinguish a SQLite
// database from a gzip stream. Used where the file extension cannot be
// trusted (e.g. downloaded snapshots).
func SniffFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("failed to open file for sniffing: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(sqliteMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return FormatUnknown, fmt.Errorf("failed to read file header: %w", err)
	}

	if n >= 2 && header[0] == 0x1f && header[1] == 0x8b {
		return FormatGzip, nil
	}
	if n == len(sqliteMagic) && string(header) == string(sqliteMagic) {
		return FormatSQLite, nil
	}

	return FormatUnknown, nil
}

// Close closes the connection and removes the decompressed temp file.
// Safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
		s.removeTemp()
	})
	return err
}

func (s *Store) removeTemp() {
	if s.tempPath == "" {
		return
	}
	if err := os.Remove(s.tempPath); err != nil && !os.IsNotExist(err) {
		// Best effort - a leftover temp file is not fatal
		s.log.Warn().Err(err).Str("temp", s.tempPath).Msg("Failed to remove temp store file")
	}
}

// Conn returns the underlying sql.DB connection
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// Path returns the configured source path
func (s *Store) Path() string {
	return s.path
}

// Query executes a query that returns rows
func (s *Store) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.conn.Query(query, args...)
}

// QueryContext executes a query that returns rows, honoring ctx
func (s *Store) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row
func (s *Store) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.conn.QueryRow(query, args...)
}
