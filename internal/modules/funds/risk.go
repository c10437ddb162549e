package funds

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/fundsentry/pkg/formulas"
)

// minRiskObservations is the smallest NAV window that yields meaningful
// risk metrics. Below it every metric is Undefined - insufficient history
// is a different outcome from "zero risk".
const minRiskObservations = 30

// RiskService derives volatility, max drawdown and a Sharpe-like ratio
// from trailing NAV windows.
type RiskService struct {
	navRepo         *NavRepository
	riskFreeRatePct float64
	log             zerolog.Logger
}

// NewRiskService creates a new risk metrics service
func NewRiskService(navRepo *NavRepository, riskFreeRatePct float64, log zerolog.Logger) *RiskService {
	return &RiskService{
		navRepo:         navRepo,
		riskFreeRatePct: riskFreeRatePct,
		log:             log.With().Str("component", "risk").Logger(),
	}
}

// Metrics computes the risk metrics over a trailing window of roughly the
// given number of days (the fetch is padded so the window is not starved
// by non-trading days).
func (s *RiskService) Metrics(ctx context.Context, fundCode string, days int) (RiskResult, error) {
	window, err := s.navRepo.GetNavWindow(ctx, fundCode, days+minRiskObservations)
	if err != nil {
		return RiskResult{}, err
	}

	return ComputeRisk(fundCode, days, window, s.riskFreeRatePct), nil
}

// ComputeRisk is the pure core of the risk metrics: daily simple returns,
// annualized volatility, max drawdown, Sharpe-like ratio, plus trend
// indicators over the same window.
func ComputeRisk(fundCode string, days int, window []NavPoint, riskFreeRatePct float64) RiskResult {
	result := RiskResult{
		FundCode:    fundCode,
		Days:        days,
		Volatility:  Undefined(),
		MaxDrawdown: Undefined(),
		Sharpe:      Undefined(),
	}

	if len(window) < minRiskObservations {
		return result
	}

	navs := make([]float64, len(window))
	for i, p := range window {
		navs[i] = p.UnitNav
	}

	dailyReturns := formulas.CalculateReturns(navs)

	volatility := formulas.AnnualizedVolatility(dailyReturns)
	result.Volatility = Ok(formulas.Round2(volatility))

	if dd := formulas.CalculateMaxDrawdown(navs); dd != nil {
		result.MaxDrawdown = Ok(formulas.Round2(*dd))
	}

	if sharpe := formulas.SharpeFromDailyReturns(dailyReturns, riskFreeRatePct); sharpe != nil {
		result.Sharpe = Ok(formulas.Round2(*sharpe))
	}

	result.RSI14 = formulas.CalculateRSI(navs, 14)
	result.EMA20 = formulas.CalculateEMA(navs, 20)

	return result
}
