package formulas

// SharpeFromDailyReturns calculates a Sharpe-like ratio from daily simple
// returns against an annual risk-free rate expressed in percent (e.g. 3.0).
//
// Formula:
//
//	Annualized Return = mean(daily returns) x 252 x 100
//	Sharpe = (Annualized Return - Risk-free Rate) / Annualized Volatility
//
// Returns nil when there are fewer than 2 returns or volatility is zero --
// a flat series has no meaningful risk-adjusted return.
func SharpeFromDailyReturns(dailyReturns []float64, riskFreeRatePct float64) *float64 {
	if len(dailyReturns) < 2 {
		return nil
	}

	volatility := AnnualizedVolatility(dailyReturns)
	if volatility == 0 {
		return nil
	}

	annualReturn := Mean(dailyReturns) * TradingDaysPerYear * 100
	sharpe := (annualReturn - riskFreeRatePct) / volatility

	return &sharpe
}
