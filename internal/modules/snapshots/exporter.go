// Package snapshots exports leaderboard snapshots for the desktop shell.
// The shell polls a msgpack file from the scratch directory instead of
// hitting the API, so it keeps working while the server is busy.
package snapshots

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/fundsentry/internal/modules/funds"
)

// Snapshot is the serialized leaderboard frame.
type Snapshot struct {
	GeneratedAt time.Time            `msgpack:"generated_at"`
	Year        int                  `msgpack:"year"`
	Entries     []funds.TopPerformer `msgpack:"entries"`
}

// Exporter writes leaderboard snapshots to the scratch directory.
type Exporter struct {
	service    *funds.Service
	scratchDir string
	limit      int
	log        zerolog.Logger
}

// NewExporter creates a new snapshot exporter
func NewExporter(service *funds.Service, scratchDir string, limit int, log zerolog.Logger) *Exporter {
	return &Exporter{
		service:    service,
		scratchDir: scratchDir,
		limit:      limit,
		log:        log.With().Str("component", "snapshot_exporter").Logger(),
	}
}

// Export writes the current-year leaderboard to leaderboard.msgpack,
// atomically via rename so the shell never reads a partial file.
func (e *Exporter) Export(ctx context.Context) error {
	year := time.Now().Year()

	performers, err := e.service.TopPerformers(ctx, year, e.limit)
	if err != nil {
		return fmt.Errorf("failed to build leaderboard: %w", err)
	}

	snap := Snapshot{
		GeneratedAt: time.Now(),
		Year:        year,
		Entries:     performers,
	}

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.MkdirAll(e.scratchDir, 0755); err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}

	target := filepath.Join(e.scratchDir, "leaderboard.msgpack")
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	e.log.Info().Int("entries", len(snap.Entries)).Str("path", target).Msg("Leaderboard snapshot exported")
	return nil
}

// Load reads a snapshot file back. The shell side uses the same decoder.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// ExportJob adapts Exporter to the scheduler's Job interface.
type ExportJob struct {
	exporter *Exporter
	timeout  time.Duration
}

// NewExportJob creates the scheduled snapshot export job
func NewExportJob(exporter *Exporter, timeout time.Duration) *ExportJob {
	return &ExportJob{exporter: exporter, timeout: timeout}
}

// Name implements scheduler.Job
func (j *ExportJob) Name() string { return "leaderboard_snapshot" }

// Run implements scheduler.Job
func (j *ExportJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.exporter.Export(ctx)
}
