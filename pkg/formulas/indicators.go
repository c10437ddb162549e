package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index over a NAV series.
//
// RSI Formula:
//
//	RSI = 100 - (100 / (1 + RS))
//	where RS = Average Gain / Average Loss over N periods
//
// Returns the current RSI value (0-100) or nil if insufficient data.
func CalculateRSI(navs []float64, length int) *float64 {
	if len(navs) < length+1 {
		return nil
	}

	rsi := talib.Rsi(navs, length)

	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

// CalculateEMA calculates the Exponential Moving Average over a NAV series
// and returns the latest value, or nil if insufficient data.
func CalculateEMA(navs []float64, length int) *float64 {
	if len(navs) < length {
		return nil
	}

	ema := talib.Ema(navs, length)

	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	return nil
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
