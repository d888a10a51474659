package bidding

import (
	"math"

	"RewardBid/internal/domain/models"
)

// AdamConfig holds the optimizer hyper-parameters shared by every category.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// DefaultAdam returns the standard Adam settings with a 0.01 learning rate.
func DefaultAdam() AdamConfig {
	return AdamConfig{LearningRate: 0.01, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// RateModel keeps one learnable bid rate per category, each with its own
// first/second moment estimates. Categories never share state.
//
// RateModel is not safe for concurrent use; Engine serializes access to it.
type RateModel struct {
	states   map[string]*models.RateState
	fallback float64
	adam     AdamConfig
	clamp    bool
}

type RateOption func(*RateModel)

func WithAdam(cfg AdamConfig) RateOption {
	return func(m *RateModel) { m.adam = cfg }
}

func WithFallbackRate(rate float64) RateOption {
	return func(m *RateModel) { m.fallback = rate }
}

// WithClamp keeps rates inside [0, 1] after every update.
func WithClamp(enabled bool) RateOption {
	return func(m *RateModel) { m.clamp = enabled }
}

// NewRateModel seeds a model from category -> initial rate.
func NewRateModel(seed map[string]float64, opts ...RateOption) *RateModel {
	m := &RateModel{
		states:   make(map[string]*models.RateState, len(seed)),
		fallback: FallbackRate,
		adam:     DefaultAdam(),
		clamp:    true,
	}
	for _, opt := range opts {
		opt(m)
	}
	for cat, rate := range seed {
		key := NormalizeCategory(cat)
		if key == "" {
			continue
		}
		m.states[key] = &models.RateState{Rate: m.bound(rate)}
	}
	return m
}

// Known reports whether the category is part of the catalog.
func (m *RateModel) Known(category string) bool {
	_, ok := m.states[NormalizeCategory(category)]
	return ok
}

// Rate returns the learned rate, or the fallback for unknown categories.
func (m *RateModel) Rate(category string) float64 {
	if st, ok := m.states[NormalizeCategory(category)]; ok {
		return st.Rate
	}
	return m.fallback
}

// Update takes one Adam step on loss = (rate - target)^2.
// Returns false and leaves state untouched for unknown categories.
func (m *RateModel) Update(category string, target float64) (models.RateUpdate, bool) {
	key := NormalizeCategory(category)
	st, ok := m.states[key]
	if !ok || math.IsNaN(target) || math.IsInf(target, 0) {
		return models.RateUpdate{}, false
	}

	before := st.Rate
	diff := before - target
	grad := 2 * diff

	st.Steps++
	st.M = m.adam.Beta1*st.M + (1-m.adam.Beta1)*grad
	st.V = m.adam.Beta2*st.V + (1-m.adam.Beta2)*grad*grad

	mHat := st.M / (1 - math.Pow(m.adam.Beta1, float64(st.Steps)))
	vHat := st.V / (1 - math.Pow(m.adam.Beta2, float64(st.Steps)))
	st.Rate = m.bound(before - m.adam.LearningRate*mHat/(math.Sqrt(vHat)+m.adam.Epsilon))

	return models.RateUpdate{
		Category: key,
		Target:   target,
		Before:   before,
		After:    st.Rate,
		Loss:     diff * diff,
	}, true
}

// Snapshot copies the full per-category state.
func (m *RateModel) Snapshot() map[string]models.RateState {
	out := make(map[string]models.RateState, len(m.states))
	for k, st := range m.states {
		out[k] = *st
	}
	return out
}

// Restore overwrites state for the categories present in states. Categories
// outside the catalog are added, so a restored session keeps what it learned.
func (m *RateModel) Restore(states map[string]models.RateState) {
	for k, st := range states {
		key := NormalizeCategory(k)
		if key == "" {
			continue
		}
		cp := st
		cp.Rate = m.bound(cp.Rate)
		m.states[key] = &cp
	}
}

func (m *RateModel) bound(rate float64) float64 {
	if !m.clamp {
		return rate
	}
	return math.Min(1, math.Max(0, rate))
}
