package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"RewardBid/internal/domain/models"
	domrepo "RewardBid/internal/domain/repository"
	domsvc "RewardBid/internal/domain/service"
	"RewardBid/internal/services/bidding"
	"RewardBid/pkg/logger"
)

var ErrNilBatch = errors.New("batch is nil")

// OutcomeSink receives outcomes in batch order as soon as they are final.
type OutcomeSink func(ctx context.Context, o *models.Outcome)

// Sequencer drives one engine over an ordered batch. Budget-affecting work runs
// strictly in order; recommendation lookups run concurrently beside it.
type Sequencer struct {
	engine      *bidding.Engine
	judge       *bidding.Judge
	strengths   domrepo.StrengthSource
	recommender domsvc.Recommender
	metrics     domrepo.Metrics
	log         *logger.Logger

	sessionID     string
	enrichTimeout time.Duration
	enrichWorkers int
	sink          OutcomeSink
	now           func() time.Time
}

type SequencerOption func(*Sequencer)

func WithStrengthSource(src domrepo.StrengthSource) SequencerOption {
	return func(s *Sequencer) { s.strengths = src }
}

// WithRecommender enables per-transaction enrichment. timeout bounds each call;
// workers bounds how many run at once.
func WithRecommender(r domsvc.Recommender, timeout time.Duration, workers int) SequencerOption {
	return func(s *Sequencer) {
		s.recommender = r
		if timeout > 0 {
			s.enrichTimeout = timeout
		}
		if workers > 0 {
			s.enrichWorkers = workers
		}
	}
}

func WithOutcomeSink(sink OutcomeSink) SequencerOption {
	return func(s *Sequencer) { s.sink = sink }
}

// WithJudgeName sets the winner name reported when our bid wins.
func WithJudgeName(name string) SequencerOption {
	return func(s *Sequencer) { s.judge = bidding.NewJudge(name) }
}

func WithSessionID(id string) SequencerOption {
	return func(s *Sequencer) { s.sessionID = id }
}

func NewSequencer(engine *bidding.Engine, metrics domrepo.Metrics, log *logger.Logger, opts ...SequencerOption) *Sequencer {
	if log == nil {
		log = logger.Nop()
	}
	s := &Sequencer{
		engine:        engine,
		judge:         bidding.NewJudge(engine.ID()),
		metrics:       metrics,
		log:           log,
		sessionID:     engine.ID(),
		enrichTimeout: 5 * time.Second,
		enrichWorkers: 4,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type enrichment struct {
	rec *models.Recommendation
	err error
}

// Run bids on every item of the batch in order. A failure on one item is
// recorded in its Outcome and the run moves on; only a nil batch fails the run.
func (s *Sequencer) Run(ctx context.Context, batch *models.Batch) (*models.RunReport, error) {
	if batch == nil {
		return nil, ErrNilBatch
	}
	start := s.now()
	total := len(batch.Items)
	report := &models.RunReport{
		SessionID:     s.sessionID,
		Outcomes:      make([]models.Outcome, 0, total),
		InitialBudget: s.engine.Budget(),
		StartedAt:     start,
	}

	enriched := s.enrich(ctx, batch)

	outcomes := make([]models.Outcome, total)
	for i := range batch.Items {
		outcomes[i] = s.step(ctx, batch, i, total)
	}

	for i := range outcomes {
		o := &outcomes[i]
		if ch := enriched[i]; ch != nil {
			s.attach(o, <-ch)
		}
		s.tally(report, o)
		report.Outcomes = append(report.Outcomes, *o)
		if s.sink != nil {
			s.sink(ctx, o)
		}
	}

	snap := s.engine.Snapshot()
	report.FinalBudget = snap.Budget
	report.Rates = snap.Rates()
	report.FinishedAt = s.now()
	if s.metrics != nil {
		s.metrics.RecordBudget(s.sessionID, report.FinalBudget)
		for cat, r := range report.Rates {
			s.metrics.RecordRate(s.sessionID, cat, r)
		}
		s.metrics.RecordLatency("sequencer_run", report.FinishedAt.Sub(start).Seconds())
	}
	s.log.Info("batch processed",
		logger.String("session_id", s.sessionID),
		logger.Int("items", total),
		logger.Int("wins", report.Wins),
		logger.Int("losses", report.Losses),
		logger.Int("errors", report.Errors),
		logger.Float64("final_budget", report.FinalBudget),
	)
	return report, nil
}

func (s *Sequencer) step(ctx context.Context, batch *models.Batch, i, total int) (out models.Outcome) {
	item := batch.Items[i]
	out = models.Outcome{Index: i, Timestamp: s.now()}

	defer func() {
		if r := recover(); r != nil {
			out.Bid, out.Update = nil, nil
			s.fail(&out, fmt.Errorf("bid panicked: %v", r))
		}
	}()

	competitors := batch.CompetitorsFor(i)
	req := bidding.BidRequest{
		Transaction: item.Transaction,
		Remaining:   total - i,
		Competitors: competitors,
		Strengths:   s.lookupStrengths(ctx, item.Transaction.Category),
	}

	res, upd, err := s.engine.Step(req)
	if err != nil {
		s.fail(&out, fmt.Errorf("bid transaction %d: %w", i, err))
		return out
	}
	out.Bid = res
	out.Update = upd

	if res.PacingOvershoot {
		s.log.Warn("allowed bid exceeds remaining budget",
			logger.String("session_id", s.sessionID),
			logger.String("category", res.Category),
			logger.Float64("allowed_bid", res.AllowedBid),
			logger.Float64("budget", res.BudgetBefore),
			logger.Float64("adjustment_factor", res.AdjustmentFactor),
		)
		if s.metrics != nil {
			s.metrics.RecordOvershoot(res.Category)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordBid(res.Category, res.Transaction.Amount, res.Bid)
	}

	offer := item.Offer
	if offer == nil && len(item.Offers) > 0 {
		offer = bidding.BestOffer(item.Offers)
	}
	out.Judgment = s.judge.Judge(res, offer)
	if out.Judgment.Result == models.ResultError {
		s.log.Warn("transaction could not be judged",
			logger.String("session_id", s.sessionID),
			logger.Int("index", i),
			logger.String("reason", out.Judgment.Reason),
		)
	}
	return out
}

func (s *Sequencer) fail(out *models.Outcome, err error) {
	out.Error = err.Error()
	out.Judgment = models.Judgment{Result: models.ResultError, Reason: err.Error()}
	if s.metrics != nil {
		s.metrics.RecordError("sequencer_bid")
	}
	s.log.Warn("transaction skipped",
		logger.String("session_id", s.sessionID),
		logger.Int("index", out.Index),
		logger.Error(err),
	)
}

// lookupStrengths returns nil on any failure so the engine falls back to its own table.
func (s *Sequencer) lookupStrengths(ctx context.Context, category string) map[string]float64 {
	if s.strengths == nil {
		return nil
	}
	st, err := s.strengths.Strengths(ctx, bidding.NormalizeCategory(category))
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("strength_lookup")
		}
		s.log.Warn("strength lookup failed",
			logger.String("session_id", s.sessionID),
			logger.String("category", category),
			logger.Error(err),
		)
		return nil
	}
	return st
}

// enrich starts one bounded lookup per item. Each returned channel yields exactly one value.
func (s *Sequencer) enrich(ctx context.Context, batch *models.Batch) []chan enrichment {
	out := make([]chan enrichment, len(batch.Items))
	if s.recommender == nil {
		return out
	}

	sem := make(chan struct{}, s.enrichWorkers)
	for i := range batch.Items {
		ch := make(chan enrichment, 1)
		out[i] = ch
		tx := bidding.SanitizeTransaction(batch.Items[i].Transaction)
		competitors := batch.CompetitorsFor(i)

		go func() {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				ch <- enrichment{err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			cctx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
			defer cancel()
			rec, err := s.recommender.Recommend(cctx, tx, competitors)
			ch <- enrichment{rec: rec, err: err}
		}()
	}
	return out
}

func (s *Sequencer) attach(o *models.Outcome, e enrichment) {
	if o.Bid == nil {
		return
	}
	if e.err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("enrichment")
		}
		s.log.Debug("recommendation unavailable, keeping placeholder",
			logger.String("session_id", s.sessionID),
			logger.Int("index", o.Index),
			logger.Error(e.err),
		)
		return
	}
	if e.rec == nil || e.rec.CompetitorID == "" {
		return
	}
	o.Bid.Recommendation = e.rec
	if answer := strings.TrimSpace(e.rec.Answer); answer != "" {
		o.Bid.Rationale += "\n\n" + answer
	}
}

func (s *Sequencer) tally(r *models.RunReport, o *models.Outcome) {
	if o.Bid != nil {
		r.TotalBid += o.Bid.Bid
	}
	switch o.Judgment.Result {
	case models.ResultWin:
		r.Wins++
	case models.ResultLose:
		r.Losses++
	default:
		r.Errors++
	}
	if s.metrics != nil {
		s.metrics.RecordJudgment(string(o.Judgment.Result))
	}
}
