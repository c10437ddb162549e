// Package benchmark implements the benchmark-beating gate: the secondary
// check comparing a fund's lifetime growth against a market index over the
// same window.
package benchmark

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

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// IndexPoint is one observation of a benchmark index.
type IndexPoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// IndexSource provides ordered benchmark index series. The engine only
// consumes this; it never writes index data.
type IndexSource interface {
	GetIndexSeries(ctx context.Context, indexCode, market string) ([]IndexPoint, error)
}

// IndexDB reads benchmark index series from a local SQLite database,
// optionally gzip-compressed. Decompression happens lazily, at most once
// per process; concurrent first callers are serialized so no reader ever
// sees a partially written temp file.
type IndexDB struct {
	path string
	log  zerolog.Logger

	once     sync.Once
	initErr  error
	dbPath   string
	tempPath string
}

// NewIndexDB creates a new benchmark index accessor
func NewIndexDB(path string, log zerolog.Logger) *IndexDB {
	return &IndexDB{
		path: path,
		log:  log.With().Str("component", "index_db").Logger(),
	}
}

// init extracts the compressed source to a temp file on first use.
func (ib *IndexDB) init() error {
	ib.once.Do(func() {
		if !strings.HasSuffix(ib.path, ".gz") {
			ib.dbPath = ib.path
			return
		}

		src, err := os.Open(ib.path)
		if err != nil {
			ib.initErr = fmt.Errorf("failed to open index store: %w", err)
			return
		}
		defer src.Close()

		gz, err := gzip.NewReader(src)
		if err != nil {
			ib.initErr = fmt.Errorf("failed to read index store gzip header: %w", err)
			return
		}
		defer gz.Close()

		tmp, err := os.CreateTemp("", "fundsentry-index-*.db")
		if err != nil {
			ib.initErr = fmt.Errorf("failed to create index temp file: %w", err)
			return
		}

		if _, err := io.Copy(tmp, gz); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			ib.initErr = fmt.Errorf("failed to decompress index store: %w", err)
			return
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			ib.initErr = fmt.Errorf("failed to flush index temp file: %w", err)
			return
		}

		ib.tempPath = tmp.Name()
		ib.dbPath = tmp.Name()
		ib.log.Info().Str("source", ib.path).Str("temp", ib.tempPath).Msg("Decompressed index store")
	})
	return ib.initErr
}

// GetIndexSeries returns the (date, close) series for an index, ascending
// by date.
func (ib *IndexDB) GetIndexSeries(ctx context.Context, indexCode, market string) ([]IndexPoint, error) {
	if err := ib.init(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", ib.dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open index db: %w", err)
	}
	defer db.Close()

	query := `
		SELECT trade_date, close
		FROM index_daily
		WHERE index_code = ? AND market = ? AND close IS NOT NULL
		ORDER BY trade_date
	`

	rows, err := db.QueryContext(ctx, query, indexCode, market)
	if err != nil {
		return nil, fmt.Errorf("failed to query index series: %w", err)
	}
	defer rows.Close()

	var series []IndexPoint
	for rows.Next() {
		var dateStr string
		var close float64
		if err := rows.Scan(&dateStr, &close); err != nil {
			return nil, fmt.Errorf("failed to scan index point: %w", err)
		}
		date, perr := time.Parse("2006-01-02", dateStr)
		if perr != nil {
			ib.log.Warn().Str("date", dateStr).Msg("Skipping unparsable index date")
			continue
		}
		series = append(series, IndexPoint{Date: date, Close: close})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index series: %w", err)
	}

	return series, nil
}

// Close removes the decompressed temp file, if any.
func (ib *IndexDB) Close() error {
	if ib.tempPath == "" {
		return nil
	}
	if err := os.Remove(ib.tempPath); err != nil && !os.IsNotExist(err) {
		ib.log.Warn().Err(err).Str("temp", ib.tempPath).Msg("Failed to remove index temp file")
	}
	return nil
}
