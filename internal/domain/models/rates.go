package models

// RateState is the learned rate of one category together with its optimizer moments.
type RateState struct {
	Rate  float64 `json:"rate"`
	M     float64 `json:"m"`
	V     float64 `json:"v"`
	Steps int     `json:"steps"`
}

// RateSnapshot is a point-in-time copy of a rate model, suitable for persisting and resuming.
type RateSnapshot struct {
	Categories map[string]RateState `json:"categories"`
	Budget     float64              `json:"budget"`
}

// Rates flattens the snapshot to category -> rate.
func (s RateSnapshot) Rates() map[string]float64 {
	out := make(map[string]float64, len(s.Categories))
	for k, v := range s.Categories {
		out[k] = v.Rate
	}
	return out
}
