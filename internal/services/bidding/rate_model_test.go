package bidding

import (
	"math"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRateModelSeedAndFallback(t *testing.T) {
	m := NewRateModel(SeedRates(DefaultCatalog))

	check.Equal(t, 0.05, m.Rate("groceries"))
	check.Equal(t, 0.03, m.Rate("  Online Shopping "))
	check.Equal(t, FallbackRate, m.Rate("crypto"))
	check.True(t, m.Known("GAS"))
	check.False(t, m.Known("crypto"))
}

func TestRateModelUnknownCategoryIsNoop(t *testing.T) {
	m := NewRateModel(SeedRates(DefaultCatalog))
	before := m.Snapshot()

	_, ok := m.Update("crypto", 0.5)
	check.False(t, ok)
	check.Equal(t, before, m.Snapshot())
	check.Equal(t, 0.02, m.Rate("crypto"))
}

func TestRateModelUpdateOnlyTouchesOneCategory(t *testing.T) {
	m := NewRateModel(SeedRates(DefaultCatalog))
	before := m.Snapshot()

	upd, ok := m.Update("groceries", 0.01)
	assert.True(t, ok)
	check.Equal(t, "groceries", upd.Category)
	check.True(t, upd.After < upd.Before)

	after := m.Snapshot()
	for cat, st := range before {
		if cat == "groceries" {
			continue
		}
		check.Equal(t, st, after[cat])
	}
	check.Equal(t, 1, after["groceries"].Steps)
}

func TestRateModelFirstStepMovesByLearningRate(t *testing.T) {
	m := NewRateModel(map[string]float64{"travel": 0.5})

	upd, ok := m.Update("travel", 0.1)
	assert.True(t, ok)
	// bias-corrected first step is lr * sign(grad)
	check.True(t, math.Abs(upd.After-0.49) < 1e-6)
	check.True(t, approx(0.16, upd.Loss))
}

func TestRateModelZeroGradientKeepsRate(t *testing.T) {
	m := NewRateModel(map[string]float64{"gas": 0.03})

	upd, ok := m.Update("gas", 0.03)
	assert.True(t, ok)
	check.Equal(t, 0.03, upd.After)
	check.Equal(t, 0.0, upd.Loss)
}

func TestRateModelClamp(t *testing.T) {
	clamped := NewRateModel(map[string]float64{"uber": 0.005})
	upd, _ := clamped.Update("uber", -1)
	check.Equal(t, 0.0, upd.After)

	free := NewRateModel(map[string]float64{"uber": 0.005}, WithClamp(false))
	upd, _ = free.Update("uber", -1)
	check.True(t, upd.After < 0)
}

func TestRateModelConvergesTowardTarget(t *testing.T) {
	m := NewRateModel(map[string]float64{"health": 0.2}, WithAdam(AdamConfig{
		LearningRate: 0.01, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8,
	}))
	for i := 0; i < 500; i++ {
		m.Update("health", 0.05)
	}
	check.True(t, math.Abs(m.Rate("health")-0.05) < 0.01)
}

func TestRateModelRestore(t *testing.T) {
	m := NewRateModel(SeedRates(DefaultCatalog))
	m.Update("restaurant", 0.01)
	snap := m.Snapshot()

	other := NewRateModel(SeedRates(DefaultCatalog))
	other.Restore(snap)
	check.Equal(t, snap, other.Snapshot())

	// a restored step keeps the optimizer moments
	a, _ := m.Update("restaurant", 0.01)
	b, _ := other.Update("restaurant", 0.01)
	check.Equal(t, a, b)
}

func TestNormalizeCategoryAndSeed(t *testing.T) {
	check.Equal(t, "online shopping", NormalizeCategory("  ONLINE Shopping\t"))

	seed := SeedRates([]Category{{Name: "Gas", Rate: 0.1}, {Name: " ", Rate: 1}, {Name: "gas", Rate: 0.2}})
	check.Equal(t, map[string]float64{"gas": 0.2}, seed)
}
