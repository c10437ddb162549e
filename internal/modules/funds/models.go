// Package funds implements the return and score computation engine:
// period/annual returns over NAV series, the precomputed-returns cache with
// on-demand fallback, risk metrics, and the composite fund score.
package funds

import (
	"encoding/json"
	"time"
)

// NavPoint is a single observation of a fund's net asset value.
// Rows with a null unit NAV (non-trading days) are excluded at query time
// and never reach the calculators.
type NavPoint struct {
	Date     time.Time `json:"date"`
	UnitNav  float64   `json:"unit_nav"`
	AccumNav *float64  `json:"accum_nav,omitempty"`
}

// FundInfo is read-only reference data for a fund.
type FundInfo struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	FundType      string `json:"fund_type"`
	Management    string `json:"management"`
	InceptionDate string `json:"inception_date"` // YYYYMMDD or YYYY-MM-DD; may be empty
	Status        string `json:"status"`
}

// YearReturns maps year -> return for one fund.
type YearReturns map[int]Value

// BatchReturns maps fund code -> year -> return.
type BatchReturns map[string]YearReturns

// CacheStatus describes the state of the precomputed returns cache.
type CacheStatus struct {
	HasCache       bool   `json:"has_cache"`
	FundCount      int    `json:"fund_count"`
	RecordCount    int    `json:"record_count"`
	AvailableYears []int  `json:"available_years,omitempty"`
	MinYear        int    `json:"min_year,omitempty"`
	MaxYear        int    `json:"max_year,omitempty"`
	LastComputed   string `json:"last_computed,omitempty"`
	Message        string `json:"message"`
}

// ScoreResult is the composite score for a single fund. A fund with no
// valid yearly returns in the scoring window is not ratable and has
// Rated=false.
type ScoreResult struct {
	FundCode           string          `json:"fund_code"`
	Rated              bool            `json:"rated"`
	Total              float64         `json:"total"`
	ReturnComponent    float64         `json:"return_component"`
	StabilityComponent float64         `json:"stability_component"`
	YearsOfData        int             `json:"years_of_data"`
	YearReturns        map[int]float64 `json:"year_returns"`
	StabilityPoints    map[int]int     `json:"stability_points"`
	Stars              int             `json:"stars"`
	Rating             string          `json:"rating"`
}

// RiskResult holds the trailing-window risk metrics for a fund. Each metric
// is Undefined when the window has fewer than the required observations.
type RiskResult struct {
	FundCode    string `json:"fund_code"`
	Days        int    `json:"days"`
	Volatility  Value  `json:"volatility"`
	MaxDrawdown Value  `json:"max_drawdown"`
	Sharpe      Value  `json:"sharpe"`
	// Trend indicators over the same window (nil when insufficient data)
	RSI14 *float64 `json:"rsi_14,omitempty"`
	EMA20 *float64 `json:"ema_20,omitempty"`
}

// Concentration summarizes how concentrated a fund's top holdings are.
type Concentration struct {
	Top5Pct  float64 `json:"top5_pct"`
	Top10Pct float64 `json:"top10_pct"`
	Level    string  `json:"level"` // concentrated, moderate, diversified
}

// ValueKind discriminates the states of a Value.
type ValueKind int

const (
	// KindOK - a computed value
	KindOK ValueKind = iota
	// KindUndefined - legitimately no data (insufficient history, missing endpoint)
	KindUndefined
	// KindError - a swallowed per-cell computation failure
	KindError
)

// Value is the soft result of a per-cell computation. It keeps "no data"
// distinct from both zero and swallowed errors, so batch callers can report
// each cell honestly without aborting.
type Value struct {
	kind   ValueKind
	v      float64
	reason string
}

// Ok returns a defined Value.
func Ok(v float64) Value {
	return Value{kind: KindOK, v: v}
}

// Undefined returns the "no data" Value.
func Undefined() Value {
	return Value{kind: KindUndefined}
}

// Failed returns an error-state Value carrying the failure reason.
func Failed(reason string) Value {
	return Value{kind: KindError, reason: reason}
}

// Defined reports whether the value was computed.
func (val Value) Defined() bool {
	return val.kind == KindOK
}

// Kind returns the value's state.
func (val Value) Kind() ValueKind {
	return val.kind
}

// Float returns the computed value; only meaningful when Defined.
func (val Value) Float() float64 {
	return val.v
}

// Reason returns the failure reason for KindError values.
func (val Value) Reason() string {
	return val.reason
}

// Ptr returns a pointer to the value, or nil when not defined.
func (val Value) Ptr() *float64 {
	if val.kind != KindOK {
		return nil
	}
	v := val.v
	return &v
}

// MarshalJSON serializes defined values as numbers and everything else as
// null, matching the wire contract of the batch endpoints.
func (val Value) MarshalJSON() ([]byte, error) {
	if val.kind != KindOK {
		return []byte("null"), nil
	}
	return json.Marshal(val.v)
}
