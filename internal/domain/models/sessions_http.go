package models

// Requests for the bidding HTTP endpoints. Defined in domain for reuse by the kafka intake.

type CreateSessionRequest struct {
	ID        string                        `json:"id" validate:"omitempty,max=64"`
	Budget    float64                       `json:"budget" validate:"omitempty,gt=0"`
	Rates     map[string]float64            `json:"rates" validate:"omitempty,dive,gte=0,lte=1"`
	Strengths map[string]map[string]float64 `json:"strengths"`
	Restore   bool                          `json:"restore"`
}

type TransactionRequest struct {
	Category    string  `json:"category" validate:"required"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	Description string  `json:"description"`
	Merchant    string  `json:"merchant" default:"unknown merchant"`
}

type OfferRequest struct {
	CompetitorID string  `json:"competitor_id" validate:"required"`
	Value        float64 `json:"value"`
}

type BidItemRequest struct {
	Transaction TransactionRequest `json:"transaction" validate:"required"`
	Competitors []string           `json:"competitors"`
	Offer       *OfferRequest      `json:"offer"`
	Offers      []OfferRequest     `json:"offers"`
}

type RunBidsRequest struct {
	Items       []BidItemRequest `json:"items" validate:"required,min=1,max=10000,dive"`
	Competitors []string         `json:"competitors"`
}

type OutcomesRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

// ToBatch converts a validated request into a domain batch.
func (r *RunBidsRequest) ToBatch() Batch {
	b := Batch{Items: make([]BatchItem, 0, len(r.Items)), Competitors: r.Competitors}
	for _, it := range r.Items {
		item := BatchItem{
			Transaction: Transaction{
				Category:    it.Transaction.Category,
				Amount:      it.Transaction.Amount,
				Description: it.Transaction.Description,
				Merchant:    it.Transaction.Merchant,
			},
			Competitors: it.Competitors,
		}
		if it.Offer != nil {
			item.Offer = &CompetitorOffer{CompetitorID: it.Offer.CompetitorID, Value: it.Offer.Value}
		}
		for _, o := range it.Offers {
			item.Offers = append(item.Offers, CompetitorOffer{CompetitorID: o.CompetitorID, Value: o.Value})
		}
		b.Items = append(b.Items, item)
	}
	return b
}
