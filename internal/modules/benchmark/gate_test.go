package benchmark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/fundsentry/internal/modules/funds"
)

type fakeHistory struct {
	info    *funds.FundInfo
	infoErr error
	first   *funds.NavPoint
	last    *funds.NavPoint
	navErr  error
}

func (f *fakeHistory) GetFundInfo(_ context.Context, _ string) (*funds.FundInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeHistory) GetFirstLastNav(_ context.Context, _ string) (*funds.NavPoint, *funds.NavPoint, error) {
	return f.first, f.last, f.navErr
}

type fakeIndex struct {
	series []IndexPoint
	err    error
}

func (f *fakeIndex) GetIndexSeries(_ context.Context, _, _ string) ([]IndexPoint, error) {
	return f.series, f.err
}

func date(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func navPoint(s string, nav float64) *funds.NavPoint {
	return &funds.NavPoint{Date: date(s), UnitNav: nav}
}

// oldFund is a 2018 vintage fund that doubled: 100% growth since inception.
func oldFund() *fakeHistory {
	return &fakeHistory{
		info:  &funds.FundInfo{Code: "000001", InceptionDate: "20180115"},
		first: navPoint("2018-01-15", 1.0),
		last:  navPoint("2025-08-14", 2.0),
	}
}

// benchmarkSeries returns an index series with the given cumulative growth
// over the fund's life.
func benchmarkSeries(growthPct float64) []IndexPoint {
	return []IndexPoint{
		{Date: date("2018-01-15"), Close: 3000},
		{Date: date("2021-06-30"), Close: 3200},
		{Date: date("2025-08-14"), Close: 3000 * (1 + growthPct/100)},
	}
}

func newTestGate(history FundHistory, source IndexSource) *Gate {
	g := NewGate(history, source, "000300", "CN", zerolog.Nop())
	g.NowFn = func() time.Time { return date("2025-08-15") }
	return g
}

func TestQualifiesForTopTier(t *testing.T) {
	ctx := context.Background()

	t.Run("qualifies when beating the benchmark", func(t *testing.T) {
		gate := newTestGate(oldFund(), &fakeIndex{series: benchmarkSeries(40)})
		assert.True(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("denied when trailing the benchmark", func(t *testing.T) {
		gate := newTestGate(oldFund(), &fakeIndex{series: benchmarkSeries(150)})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("denied when exactly matching the benchmark", func(t *testing.T) {
		gate := newTestGate(oldFund(), &fakeIndex{series: benchmarkSeries(100)})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("fewer than four stars never qualifies", func(t *testing.T) {
		gate := newTestGate(oldFund(), &fakeIndex{series: benchmarkSeries(10)})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 3))
	})

	t.Run("four stars is enough to be considered", func(t *testing.T) {
		gate := newTestGate(oldFund(), &fakeIndex{series: benchmarkSeries(10)})
		assert.True(t, gate.QualifiesForTopTier(ctx, "000001", 4))
	})

	t.Run("young fund is denied regardless of performance", func(t *testing.T) {
		young := oldFund()
		young.info.InceptionDate = "20230110"
		gate := newTestGate(young, &fakeIndex{series: benchmarkSeries(10)})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("unknown fund fails closed", func(t *testing.T) {
		gate := newTestGate(&fakeHistory{}, &fakeIndex{series: benchmarkSeries(10)})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("fund lookup error fails closed", func(t *testing.T) {
		gate := newTestGate(&fakeHistory{infoErr: errors.New("store offline")}, &fakeIndex{series: benchmarkSeries(10)})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("unparsable inception date fails closed", func(t *testing.T) {
		bad := oldFund()
		bad.info.InceptionDate = "unknown"
		gate := newTestGate(bad, &fakeIndex{series: benchmarkSeries(10)})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("missing nav history fails closed", func(t *testing.T) {
		noNav := oldFund()
		noNav.first, noNav.last = nil, nil
		gate := newTestGate(noNav, &fakeIndex{series: benchmarkSeries(10)})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("zero base nav fails closed", func(t *testing.T) {
		zeroed := oldFund()
		zeroed.first = navPoint("2018-01-15", 0)
		gate := newTestGate(zeroed, &fakeIndex{series: benchmarkSeries(10)})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("benchmark unavailable fails closed", func(t *testing.T) {
		gate := newTestGate(oldFund(), &fakeIndex{err: errors.New("index store missing")})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})

	t.Run("benchmark series outside fund life fails closed", func(t *testing.T) {
		series := []IndexPoint{
			{Date: date("2010-01-04"), Close: 3000},
			{Date: date("2012-01-04"), Close: 3100},
		}
		gate := newTestGate(oldFund(), &fakeIndex{series: series})
		assert.False(t, gate.QualifiesForTopTier(ctx, "000001", 5))
	})
}

func TestParseInceptionYear(t *testing.T) {
	tests := []struct {
		date string
		year int
		ok   bool
	}{
		{"20180115", 2018, true},
		{"2018-01-15", 2018, true},
		{"2018", 2018, true},
		{"189", 0, false},
		{"18990101", 0, false},
		{"abcd0101", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		year, ok := parseInceptionYear(tt.date)
		assert.Equal(t, tt.ok, ok, "date %q", tt.date)
		if tt.ok {
			assert.Equal(t, tt.year, year)
		}
	}
}
