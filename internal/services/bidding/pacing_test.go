package bidding

import (
	"math"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestAdjustmentFactor(t *testing.T) {
	strengths := map[string]float64{"amex": 1.5, "chase": 1.2, "weak": 0.8, "bad": -2, "nan": math.NaN()}

	cases := []struct {
		name        string
		competitors []string
		want        float64
	}{
		{"no competitors", nil, 1.0},
		{"max wins", []string{"chase", "amex"}, 1.5},
		{"absent counts as neutral", []string{"weak", "citi"}, 1.0},
		{"weak alone loosens", []string{"weak"}, 0.8},
		{"invalid ignored", []string{"bad", "nan"}, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			check.Equal(t, tc.want, AdjustmentFactor(strengths, tc.competitors))
		})
	}
}

func TestAllowedBid(t *testing.T) {
	check.True(t, approx(20.0/3, AllowedBid(20, 3, 1)))
	check.Equal(t, 5.0, AllowedBid(20, 2, 2))
	check.Equal(t, 20.0, AllowedBid(20, 0, 2))
	check.Equal(t, 20.0, AllowedBid(20, -1, 1))
	check.Equal(t, 10.0, AllowedBid(20, 2, 0))
	check.Equal(t, 12.5, AllowedBid(20, 2, 0.8))
}

func TestAllowedBidNonNegative(t *testing.T) {
	for _, budget := range []float64{0, 0.01, 5, 1000} {
		for remaining := -1; remaining < 5; remaining++ {
			for _, f := range []float64{0.5, 1, 3} {
				check.True(t, AllowedBid(budget, remaining, f) >= 0)
			}
		}
	}
}
