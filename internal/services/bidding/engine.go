package bidding

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"RewardBid/internal/domain/models"
)

const unknownCompetitor = "unknown"

// BidRequest is the input for one transaction.
type BidRequest struct {
	Transaction models.Transaction
	// Remaining is the number of transactions left in the batch, this one included.
	Remaining   int
	Competitors []string
	// Strengths are looked-up values for this request. The engine's own table
	// wins for any competitor it lists.
	Strengths map[string]float64
}

// Engine owns a budget and a rate model. Every method is safe for concurrent
// use; Step runs bid and learn inside one critical section.
type Engine struct {
	mu sync.Mutex

	id            string
	initial       decimal.Decimal
	budget        decimal.Decimal
	rates         *RateModel
	strengths     map[string]map[string]float64
	clampToBudget bool
}

type Option func(*Engine)

func WithID(id string) Option {
	return func(e *Engine) { e.id = id }
}

func WithRateModel(m *RateModel) Option {
	return func(e *Engine) { e.rates = m }
}

// WithStrengths sets the category -> competitor -> strength table.
func WithStrengths(table map[string]map[string]float64) Option {
	return func(e *Engine) { e.strengths = normalizeStrengths(table) }
}

// WithClampToBudget caps each bid at the non-negative remaining budget.
func WithClampToBudget(enabled bool) Option {
	return func(e *Engine) { e.clampToBudget = enabled }
}

// NewEngine creates an engine with the given budget. Without WithRateModel it
// is seeded from DefaultCatalog.
func NewEngine(budget float64, opts ...Option) (*Engine, error) {
	if !(budget > 0) || math.IsInf(budget, 0) {
		return nil, fmt.Errorf("%w: %v", ErrEngineBudget, budget)
	}
	e := &Engine{
		initial:       decimal.NewFromFloat(budget),
		budget:        decimal.NewFromFloat(budget),
		clampToBudget: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	if e.rates == nil {
		e.rates = NewRateModel(SeedRates(DefaultCatalog))
	}
	return e, nil
}

func (e *Engine) ID() string { return e.id }

func (e *Engine) Budget() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.budget.InexactFloat64()
}

func (e *Engine) InitialBudget() float64 {
	return e.initial.InexactFloat64()
}

// Spent is the total debited so far.
func (e *Engine) Spent() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initial.Sub(e.budget).InexactFloat64()
}

func (e *Engine) Rate(category string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rates.Rate(category)
}

// SetStrengths replaces the strengths known for one category.
func (e *Engine) SetStrengths(category string, strengths map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.strengths == nil {
		e.strengths = make(map[string]map[string]float64)
	}
	cp := make(map[string]float64, len(strengths))
	for k, v := range strengths {
		cp[k] = v
	}
	e.strengths[NormalizeCategory(category)] = cp
}

// Snapshot returns the rate model state and current budget.
func (e *Engine) Snapshot() models.RateSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.RateSnapshot{Categories: e.rates.Snapshot(), Budget: e.budget.InexactFloat64()}
}

// Restore loads learned rates from a snapshot. The budget is restored only when
// restoreBudget is set, so a resumed session can start with a fresh allowance.
func (e *Engine) Restore(snap models.RateSnapshot, restoreBudget bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rates.Restore(snap.Categories)
	if restoreBudget {
		e.budget = decimal.NewFromFloat(snap.Budget)
	}
}

// Bid prices one transaction and debits the budget.
func (e *Engine) Bid(req BidRequest) (*models.BidResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bid(req)
}

// Learn feeds a bid back into the rate model. It returns nil for unknown categories.
func (e *Engine) Learn(res *models.BidResult) *models.RateUpdate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learn(res)
}

// Step is Bid followed by Learn with no other caller in between.
func (e *Engine) Step(req BidRequest) (*models.BidResult, *models.RateUpdate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, err := e.bid(req)
	if err != nil {
		return nil, nil, err
	}
	return res, e.learn(res), nil
}

func (e *Engine) bid(req BidRequest) (*models.BidResult, error) {
	tx := SanitizeTransaction(req.Transaction)
	switch {
	case math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0):
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, tx.Amount)
	case tx.Amount < 0:
		return nil, fmt.Errorf("%w: %v", ErrNegativeAmount, tx.Amount)
	}

	category := NormalizeCategory(tx.Category)
	rate := e.rates.Rate(category)
	heuristic := tx.Amount * rate

	factor := AdjustmentFactor(mergeStrengths(req.Strengths, e.strengths[category]), req.Competitors)

	before := e.budget.InexactFloat64()
	allowed := AllowedBid(before, req.Remaining, factor)
	// a negative rate cannot credit the budget
	debit := decimal.NewFromFloat(math.Max(math.Min(heuristic, allowed), 0))
	if e.clampToBudget {
		debit = decimal.Min(debit, decimal.Max(e.budget, decimal.Zero))
	}
	bid := debit.InexactFloat64()

	e.budget = e.budget.Sub(debit)
	after := e.budget.InexactFloat64()

	res := &models.BidResult{
		ID:               uuid.NewString(),
		Transaction:      tx,
		Category:         category,
		KnownCategory:    e.rates.Known(category),
		RemainingCount:   req.Remaining,
		PredictedRate:    rate,
		HeuristicBid:     heuristic,
		AdjustmentFactor: factor,
		AllowedBid:       allowed,
		Bid:              bid,
		BudgetBefore:     before,
		BudgetAfter:      after,
		PacingOvershoot:  allowed > before && before >= 0,
		Placeholder:      placeholder(req.Competitors),
	}
	res.Rationale = Rationale(res)
	return res, nil
}

func (e *Engine) learn(res *models.BidResult) *models.RateUpdate {
	if res == nil || !e.rates.Known(res.Category) {
		return nil
	}
	target := res.PredictedRate
	if res.Transaction.Amount > 0 && res.AllowedBid < res.HeuristicBid {
		target = res.AllowedBid / res.Transaction.Amount
	}
	upd, ok := e.rates.Update(res.Category, target)
	if !ok {
		return nil
	}
	return &upd
}

func placeholder(competitors []string) string {
	for _, c := range competitors {
		if c != "" {
			return c
		}
	}
	return unknownCompetitor
}

// Rationale renders the human-readable explanation of a bid.
func Rationale(r *models.BidResult) string {
	return fmt.Sprintf(
		"For a $%s transaction in '%s', our model predicts a bid rate of %.1f%%, "+
			"yielding a heuristic bid of $%.2f. With the current budget, the allowed bid (after adjustment "+
			"for competitor strength %.2f) is $%.2f. Final bid: $%.2f. Remaining budget: $%.2f.",
		strconv.FormatFloat(r.Transaction.Amount, 'f', -1, 64), r.Category, r.PredictedRate*100,
		r.HeuristicBid, r.AdjustmentFactor, r.AllowedBid, r.Bid, r.BudgetAfter,
	)
}

// mergeStrengths overlays own on base without mutating either.
func mergeStrengths(base, own map[string]float64) map[string]float64 {
	if len(base) == 0 {
		return own
	}
	if len(own) == 0 {
		return base
	}
	out := make(map[string]float64, len(base)+len(own))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range own {
		out[k] = v
	}
	return out
}

func normalizeStrengths(table map[string]map[string]float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(table))
	for cat, comps := range table {
		cp := make(map[string]float64, len(comps))
		for k, v := range comps {
			cp[k] = v
		}
		out[NormalizeCategory(cat)] = cp
	}
	return out
}
