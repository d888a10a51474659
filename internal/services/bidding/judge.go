package bidding

import (
	"math"

	"github.com/shopspring/decimal"

	"RewardBid/internal/domain/models"
)

// moneyPlaces is the precision used when comparing bids with offers.
const moneyPlaces = 4

const (
	ReasonMissingBid    = "missing bid"
	ReasonMissingOffer  = "missing competitor offer"
	ReasonInvalidOffer  = "invalid competitor offer"
	ReasonMissingWinner = "competitor offer has no competitor id"
)

// Judge decides whether our bid beats the best competing offer.
type Judge struct {
	self string
}

// NewJudge returns a judge that reports self as the winner when our bid wins.
func NewJudge(self string) *Judge {
	return &Judge{self: self}
}

// Judge compares bid and offer. Ties go to us. Missing or malformed data yields
// a ResultError judgment instead of a guess.
func (j *Judge) Judge(res *models.BidResult, offer *models.CompetitorOffer) models.Judgment {
	if res == nil {
		return models.Judgment{Result: models.ResultError, Reason: ReasonMissingBid}
	}
	if offer == nil {
		return models.Judgment{Result: models.ResultError, Reason: ReasonMissingOffer}
	}
	if !validOffer(offer.Value) {
		return models.Judgment{Result: models.ResultError, OfferValue: offer.Value, Reason: ReasonInvalidOffer}
	}
	if offer.CompetitorID == "" {
		return models.Judgment{Result: models.ResultError, OfferValue: offer.Value, Reason: ReasonMissingWinner}
	}

	bid := decimal.NewFromFloat(res.Bid).Round(moneyPlaces)
	best := decimal.NewFromFloat(offer.Value).Round(moneyPlaces)
	if bid.GreaterThanOrEqual(best) {
		return models.Judgment{Result: models.ResultWin, Winner: j.self, OfferValue: offer.Value}
	}
	return models.Judgment{Result: models.ResultLose, Winner: offer.CompetitorID, OfferValue: offer.Value}
}

// BestOffer returns the highest valid offer. The first one wins ties.
// It returns nil when no offer is usable.
func BestOffer(offers []models.CompetitorOffer) *models.CompetitorOffer {
	var best *models.CompetitorOffer
	for i := range offers {
		o := offers[i]
		if o.CompetitorID == "" || !validOffer(o.Value) {
			continue
		}
		if best == nil || o.Value > best.Value {
			best = &o
		}
	}
	return best
}

func validOffer(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
