package formulas

// CalculateMaxDrawdown calculates the maximum drawdown of a NAV series,
// expressed as a non-positive percentage (-25 means a 25% loss from peak).
//
// Drawdown Formula:
//
//	Drawdown = (NAV - Running Peak) / Running Peak x 100
//	Max Drawdown = minimum of all drawdowns
//
// Returns nil when fewer than 2 observations are available.
func CalculateMaxDrawdown(navs []float64) *float64 {
	if len(navs) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := navs[0]

	for _, nav := range navs {
		if nav > peak {
			peak = nav
		}

		if peak > 0 {
			drawdown := (nav - peak) / peak * 100
			if drawdown < maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}
