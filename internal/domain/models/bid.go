package models

import "time"

// Recommendation is the competitor a downstream matcher picked for a transaction.
type Recommendation struct {
	CompetitorID string `json:"competitor_id"`
	Source       string `json:"source"`
	Answer       string `json:"answer,omitempty"`
}

// BidResult is the engine's decision for one transaction. Immutable once returned,
// except for Recommendation which an enrichment step may fill in later.
type BidResult struct {
	ID               string          `json:"id"`
	Transaction      Transaction     `json:"transaction"`
	Category         string          `json:"category"`
	KnownCategory    bool            `json:"known_category"`
	RemainingCount   int             `json:"remaining_count"`
	PredictedRate    float64         `json:"predicted_rate"`
	HeuristicBid     float64         `json:"heuristic_bid"`
	AdjustmentFactor float64         `json:"adjustment_factor"`
	AllowedBid       float64         `json:"allowed_bid"`
	Bid              float64         `json:"bid"`
	BudgetBefore     float64         `json:"budget_before"`
	BudgetAfter      float64         `json:"budget_after"`
	PacingOvershoot  bool            `json:"pacing_overshoot,omitempty"`
	Placeholder      string          `json:"placeholder"`
	Recommendation   *Recommendation `json:"recommendation,omitempty"`
	Rationale        string          `json:"rationale"`
}

// RecommendedCompetitor returns the resolved recommendation, or the placeholder.
func (r *BidResult) RecommendedCompetitor() string {
	if r.Recommendation != nil && r.Recommendation.CompetitorID != "" {
		return r.Recommendation.CompetitorID
	}
	return r.Placeholder
}

// JudgmentResult is the outcome of comparing our bid with the best competing offer.
type JudgmentResult string

const (
	ResultWin   JudgmentResult = "win"
	ResultLose  JudgmentResult = "lose"
	ResultError JudgmentResult = "error"
)

// Judgment records who won a transaction.
type Judgment struct {
	Result     JudgmentResult `json:"result"`
	Winner     string         `json:"winner"`
	OfferValue float64        `json:"offer_value,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// RateUpdate describes one online update of a category rate.
type RateUpdate struct {
	Category string  `json:"category"`
	Target   float64 `json:"target"`
	Before   float64 `json:"before"`
	After    float64 `json:"after"`
	Loss     float64 `json:"loss"`
}

// Outcome pairs a bid with its judgment. Error is set when the bid itself could not be made.
type Outcome struct {
	Index     int         `json:"index"`
	Bid       *BidResult  `json:"bid,omitempty"`
	Judgment  Judgment    `json:"judgment"`
	Update    *RateUpdate `json:"update,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunReport is the aggregated result of one sequencer run.
type RunReport struct {
	SessionID     string             `json:"session_id"`
	Outcomes      []Outcome          `json:"outcomes"`
	InitialBudget float64            `json:"initial_budget"`
	FinalBudget   float64            `json:"final_budget"`
	TotalBid      float64            `json:"total_bid"`
	Wins          int                `json:"wins"`
	Losses        int                `json:"losses"`
	Errors        int                `json:"errors"`
	Rates         map[string]float64 `json:"rates"`
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
}
