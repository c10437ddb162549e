package snapshots

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fundsentry/internal/modules/funds"
	storetest "github.com/aristath/fundsentry/internal/testing"
)

func newLeaderboardService(t *testing.T) (*funds.Service, func()) {
	t.Helper()

	store, cleanup := storetest.NewTestStore(t)
	log := zerolog.Nop()

	navRepo := funds.NewNavRepository(store, log)
	cacheRepo := funds.NewCacheRepository(store, log)
	batch := funds.NewBatchComputer(navRepo, 30*time.Second, log)
	cache := funds.NewReturnsCache(cacheRepo, batch, funds.CachePolicy{FallbackOnMiss: true}, log)
	scores := funds.NewScoreEngine(cache, log)
	risk := funds.NewRiskService(navRepo, 3.0, log)
	service := funds.NewService(navRepo, cacheRepo, cache, batch, scores, risk, log)

	year := time.Now().Year()
	today := time.Now().Format("2006-01-02")
	for i, ret := range []float64{25.0, 12.0, -4.0} {
		code := fmt.Sprintf("00000%d", i+1)
		storetest.InsertFund(t, store, code, "Fund "+code, "股票型", "Test AM", "20180101", "L")
		storetest.InsertCachedReturn(t, store, code, year, ret, today)
	}

	return service, cleanup
}

func TestExportAndLoadRoundtrip(t *testing.T) {
	service, cleanup := newLeaderboardService(t)
	defer cleanup()

	scratch := t.TempDir()
	exporter := NewExporter(service, scratch, 10, zerolog.Nop())

	require.NoError(t, exporter.Export(context.Background()))

	snap, err := Load(filepath.Join(scratch, "leaderboard.msgpack"))
	require.NoError(t, err)

	assert.Equal(t, time.Now().Year(), snap.Year)
	assert.WithinDuration(t, time.Now(), snap.GeneratedAt, time.Minute)

	require.Len(t, snap.Entries, 3)
	assert.Equal(t, "000001", snap.Entries[0].FundCode)
	assert.Equal(t, 1, snap.Entries[0].Rank)
	assert.Equal(t, 25.0, snap.Entries[0].Return)
	assert.Equal(t, "000003", snap.Entries[2].FundCode)
}

func TestExportHonorsLimit(t *testing.T) {
	service, cleanup := newLeaderboardService(t)
	defer cleanup()

	scratch := t.TempDir()
	exporter := NewExporter(service, scratch, 2, zerolog.Nop())

	require.NoError(t, exporter.Export(context.Background()))

	snap, err := Load(filepath.Join(scratch, "leaderboard.msgpack"))
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 2)
}

func TestExportCreatesScratchDir(t *testing.T) {
	service, cleanup := newLeaderboardService(t)
	defer cleanup()

	scratch := filepath.Join(t.TempDir(), "nested", "scratch")
	exporter := NewExporter(service, scratch, 10, zerolog.Nop())

	require.NoError(t, exporter.Export(context.Background()))

	_, err := os.Stat(filepath.Join(scratch, "leaderboard.msgpack"))
	require.NoError(t, err)
}

func TestExportLeavesNoTempFile(t *testing.T) {
	service, cleanup := newLeaderboardService(t)
	defer cleanup()

	scratch := t.TempDir()
	exporter := NewExporter(service, scratch, 10, zerolog.Nop())
	require.NoError(t, exporter.Export(context.Background()))

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "leaderboard.msgpack", entries[0].Name())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.msgpack"))
	assert.Error(t, err)
}

func TestExportJobName(t *testing.T) {
	job := NewExportJob(NewExporter(nil, "", 0, zerolog.Nop()), time.Second)
	assert.Equal(t, "leaderboard_snapshot", job.Name())
}
