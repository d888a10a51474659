package bidding

import (
	"math"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"RewardBid/internal/domain/models"
)

func TestJudge(t *testing.T) {
	j := NewJudge("rewardbid")

	win := j.Judge(&models.BidResult{Bid: 10.00}, &models.CompetitorOffer{CompetitorID: "amex", Value: 9.99})
	check.Equal(t, models.ResultWin, win.Result)
	check.Equal(t, "rewardbid", win.Winner)

	lose := j.Judge(&models.BidResult{Bid: 9.98}, &models.CompetitorOffer{CompetitorID: "amex", Value: 9.99})
	check.Equal(t, models.ResultLose, lose.Result)
	check.Equal(t, "amex", lose.Winner)

	tie := j.Judge(&models.BidResult{Bid: 0.1 + 0.2}, &models.CompetitorOffer{CompetitorID: "amex", Value: 0.3})
	check.Equal(t, models.ResultWin, tie.Result)
}

func TestJudgeErrors(t *testing.T) {
	j := NewJudge("rewardbid")
	bid := &models.BidResult{Bid: 1}

	cases := []struct {
		name   string
		res    *models.BidResult
		offer  *models.CompetitorOffer
		reason string
	}{
		{"missing bid", nil, &models.CompetitorOffer{CompetitorID: "a", Value: 1}, ReasonMissingBid},
		{"missing offer", bid, nil, ReasonMissingOffer},
		{"negative offer", bid, &models.CompetitorOffer{CompetitorID: "a", Value: -1}, ReasonInvalidOffer},
		{"nan offer", bid, &models.CompetitorOffer{CompetitorID: "a", Value: math.NaN()}, ReasonInvalidOffer},
		{"inf offer", bid, &models.CompetitorOffer{CompetitorID: "a", Value: math.Inf(1)}, ReasonInvalidOffer},
		{"no competitor", bid, &models.CompetitorOffer{Value: 1}, ReasonMissingWinner},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := j.Judge(tc.res, tc.offer)
			check.Equal(t, models.ResultError, got.Result)
			check.Equal(t, tc.reason, got.Reason)
			check.Equal(t, "", got.Winner)
		})
	}
}

func TestBestOffer(t *testing.T) {
	check.Nil(t, BestOffer(nil))
	check.Nil(t, BestOffer([]models.CompetitorOffer{{CompetitorID: "a", Value: math.NaN()}, {Value: 3}}))

	best := BestOffer([]models.CompetitorOffer{
		{CompetitorID: "a", Value: 2},
		{CompetitorID: "b", Value: 5},
		{CompetitorID: "c", Value: 5},
		{CompetitorID: "d", Value: math.Inf(1)},
	})
	assert.NotNil(t, best)
	check.Equal(t, "b", best.CompetitorID)
	check.Equal(t, 5.0, best.Value)
}
