package bidding

import "math"

// neutralStrength is applied to competitors with no known strength.
const neutralStrength = 1.0

// AdjustmentFactor returns the strongest competitor multiplier among competitors.
// Competitors without a usable strength count as 1.0; no competitors yields 1.0.
func AdjustmentFactor(strengths map[string]float64, competitors []string) float64 {
	if len(competitors) == 0 {
		return neutralStrength
	}
	factor := math.Inf(-1)
	for _, c := range competitors {
		s, ok := strengths[c]
		if !ok || !validStrength(s) {
			s = neutralStrength
		}
		if s > factor {
			factor = s
		}
	}
	return factor
}

// AllowedBid splits the budget evenly over the remaining transactions and
// shrinks the share by the adjustment factor. The last transaction (remaining <= 0)
// may take the whole budget.
func AllowedBid(budget float64, remaining int, factor float64) float64 {
	if remaining <= 0 {
		return budget
	}
	if !validStrength(factor) {
		factor = neutralStrength
	}
	return (budget / float64(remaining)) / factor
}

func validStrength(s float64) bool {
	return s > 0 && !math.IsNaN(s) && !math.IsInf(s, 0)
}
