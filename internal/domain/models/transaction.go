package models

// Transaction is one purchase up for bidding. Amount is in the account currency.
type Transaction struct {
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Merchant    string  `json:"merchant"`
}

// CompetitorOffer is the best competing offer for a transaction, already normalized
// into a single monetary value by the collaborator that produced it.
type CompetitorOffer struct {
	CompetitorID string  `json:"competitor_id"`
	Value        float64 `json:"value"`
}

// BatchItem is a transaction with the competitor context it is judged against.
// Competitors falls back to Batch.Competitors when empty.
type BatchItem struct {
	Transaction Transaction       `json:"transaction"`
	Competitors []string          `json:"competitors,omitempty"`
	Offer       *CompetitorOffer  `json:"offer,omitempty"`
	Offers      []CompetitorOffer `json:"offers,omitempty"`
}

// Batch is an ordered sequence of transactions. Order matters: pacing depends on position.
type Batch struct {
	Items       []BatchItem `json:"items"`
	Competitors []string    `json:"competitors,omitempty"`
}

// CompetitorsFor returns the competitor ids that apply to item i.
func (b *Batch) CompetitorsFor(i int) []string {
	if i < 0 || i >= len(b.Items) {
		return nil
	}
	if len(b.Items[i].Competitors) > 0 {
		return b.Items[i].Competitors
	}
	return b.Competitors
}
