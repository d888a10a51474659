package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"RewardBid/internal/domain/models"
	domrepo "RewardBid/internal/domain/repository"
	domsvc "RewardBid/internal/domain/service"
	"RewardBid/internal/middleware"
	"RewardBid/internal/services/bidding"
	"RewardBid/pkg/logger"
	pkgmetrics "RewardBid/pkg/metrics"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionClosed   = errors.New("session closed")
)

// EngineSettings are the defaults every new session starts from.
type EngineSettings struct {
	// EngineID names us in judgments; empty means the session id.
	EngineID      string
	Catalog       []bidding.Category
	Adam          bidding.AdamConfig
	FallbackRate  float64
	ClampRates    bool
	ClampToBudget bool
	Strengths     map[string]map[string]float64

	EnrichTimeout time.Duration
	EnrichWorkers int
	HistorySize   int
	QueueSize     int
}

type CreateSessionParams struct {
	ID     string
	Budget float64
	// Rates overrides seed rates per category; unknown names extend the catalog.
	Rates     map[string]float64
	Strengths map[string]map[string]float64
	// Restore loads the last saved rate snapshot for ID, if any.
	Restore bool
}

// SessionManager owns every live bidding session.
type SessionManager struct {
	settings    EngineSettings
	sink        middleware.Proc
	history     domrepo.OutcomeStorage
	rates       domrepo.RateStore
	strengths   domrepo.StrengthSource
	recommender domsvc.Recommender
	metrics     domrepo.Metrics
	log         *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

type ManagerOption func(*SessionManager)

// WithDelivery forwards finished outcomes, usually to an OutcomePipeline.
func WithDelivery(p middleware.Proc) ManagerOption {
	return func(m *SessionManager) { m.sink = p }
}

// WithHistory serves Outcomes from a store instead of the in-memory history.
func WithHistory(store domrepo.OutcomeStorage) ManagerOption {
	return func(m *SessionManager) { m.history = store }
}

func WithRateStore(store domrepo.RateStore) ManagerOption {
	return func(m *SessionManager) { m.rates = store }
}

func WithStrengths(src domrepo.StrengthSource) ManagerOption {
	return func(m *SessionManager) { m.strengths = src }
}

func WithRecommendations(r domsvc.Recommender) ManagerOption {
	return func(m *SessionManager) { m.recommender = r }
}

func NewSessionManager(settings EngineSettings, metrics domrepo.Metrics, log *logger.Logger, opts ...ManagerOption) *SessionManager {
	if len(settings.Catalog) == 0 {
		settings.Catalog = bidding.DefaultCatalog
	}
	if settings.Adam == (bidding.AdamConfig{}) {
		settings.Adam = bidding.DefaultAdam()
	}
	if settings.FallbackRate <= 0 {
		settings.FallbackRate = bidding.FallbackRate
	}
	if settings.HistorySize <= 0 {
		settings.HistorySize = 1000
	}
	if settings.QueueSize <= 0 {
		settings.QueueSize = 16
	}
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	m := &SessionManager{
		settings: settings,
		metrics:  metrics,
		log:      log,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create builds a fresh engine and starts its run loop.
func (m *SessionManager) Create(ctx context.Context, p CreateSessionParams) (*SessionState, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	m.mu.RLock()
	_, exists := m.sessions[p.ID]
	m.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, p.ID)
	}

	engine, err := m.newEngine(p)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if p.Restore && m.rates != nil {
		snap, err := m.rates.Load(ctx, p.ID)
		switch {
		case err == nil:
			engine.Restore(snap, false)
		case errors.Is(err, domrepo.ErrNotFound):
		default:
			m.metrics.RecordError("rate_restore")
			m.log.Warn("rate snapshot restore failed", logger.String("session_id", p.ID), logger.Error(err))
		}
	}

	s := newSession(p.ID, engine, m.settings.HistorySize, m.settings.QueueSize)
	s.dropped = func() { m.metrics.RecordError("stream_drop") }
	s.seq = m.newSequencer(s)

	m.mu.Lock()
	if _, ok := m.sessions[p.ID]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, p.ID)
	}
	m.sessions[p.ID] = s
	m.mu.Unlock()

	go s.loop(m.afterRun)

	m.metrics.RecordBudget(p.ID, engine.Budget())
	m.log.Info("session created",
		logger.String("session_id", p.ID),
		logger.Float64("budget", engine.Budget()),
		logger.Bool("restored", p.Restore),
	)
	return s.state(), nil
}

func (m *SessionManager) newEngine(p CreateSessionParams) (*bidding.Engine, error) {
	seed := bidding.SeedRates(m.settings.Catalog)
	for cat, r := range p.Rates {
		seed[bidding.NormalizeCategory(cat)] = r
	}
	rates := bidding.NewRateModel(seed,
		bidding.WithAdam(m.settings.Adam),
		bidding.WithFallbackRate(m.settings.FallbackRate),
		bidding.WithClamp(m.settings.ClampRates),
	)

	// With a source wired the configured table reaches bids through it, so the
	// engine only keeps the session's own overrides.
	strengths := make(map[string]map[string]float64, len(m.settings.Strengths)+len(p.Strengths))
	if m.strengths == nil {
		for cat, v := range m.settings.Strengths {
			strengths[cat] = v
		}
	}
	for cat, v := range p.Strengths {
		strengths[cat] = v
	}

	return bidding.NewEngine(p.Budget,
		bidding.WithID(p.ID),
		bidding.WithRateModel(rates),
		bidding.WithStrengths(strengths),
		bidding.WithClampToBudget(m.settings.ClampToBudget),
	)
}

func (m *SessionManager) newSequencer(s *session) *Sequencer {
	opts := []SequencerOption{
		WithSessionID(s.id),
		WithOutcomeSink(s.record),
	}
	if m.settings.EngineID != "" {
		opts = append(opts, WithJudgeName(m.settings.EngineID))
	}
	if m.strengths != nil {
		opts = append(opts, WithStrengthSource(m.strengths))
	}
	if m.recommender != nil {
		opts = append(opts, WithRecommender(m.recommender, m.settings.EnrichTimeout, m.settings.EnrichWorkers))
	}
	return NewSequencer(s.engine, m.metrics, m.log, opts...)
}

// afterRun runs on the session loop once a batch is done. Failures here never
// fail the run: outcomes are already decided.
func (m *SessionManager) afterRun(ctx context.Context, s *session, report *models.RunReport) {
	ctx = context.WithoutCancel(ctx)

	if m.sink != nil && len(report.Outcomes) > 0 {
		outs := make([]*models.Outcome, len(report.Outcomes))
		for i := range report.Outcomes {
			outs[i] = &report.Outcomes[i]
		}
		if err := m.sink.Process(ctx, s.id, outs); err != nil {
			m.log.Warn("outcome delivery deferred", logger.String("session_id", s.id), logger.Error(err))
		}
	}
	m.saveSnapshot(ctx, s)
}

func (m *SessionManager) saveSnapshot(ctx context.Context, s *session) {
	if m.rates == nil {
		return
	}
	if err := m.rates.Save(ctx, s.id, s.engine.Snapshot()); err != nil {
		m.metrics.RecordError("rate_snapshot")
		m.log.Warn("rate snapshot save failed", logger.String("session_id", s.id), logger.Error(err))
	}
}

func (m *SessionManager) get(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Run queues the batch on the session loop and waits for its report.
func (m *SessionManager) Run(ctx context.Context, id string, batch *models.Batch) (*models.RunReport, error) {
	if batch == nil {
		return nil, ErrNilBatch
	}
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	req := runRequest{ctx: ctx, batch: batch, reply: make(chan runReply, 1)}
	select {
	case s.runs <- req:
	case <-s.stop:
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.report, r.err
	case <-s.done:
		select {
		case r := <-req.reply:
			return r.report, r.err
		default:
			return nil, fmt.Errorf("%w: %s", ErrSessionClosed, id)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *SessionManager) Get(id string) (*SessionState, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return s.state(), nil
}

func (m *SessionManager) List() []*SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SessionState, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.state())
	}
	return out
}

// Outcomes returns the latest outcomes of a session, oldest first.
func (m *SessionManager) Outcomes(ctx context.Context, id string, limit int) ([]*models.Outcome, error) {
	return m.OutcomesBetween(ctx, id, time.Time{}, time.Time{}, limit)
}

// OutcomesBetween is Outcomes restricted to [from, to]. With a history store
// configured, closed sessions stay queryable.
func (m *SessionManager) OutcomesBetween(ctx context.Context, id string, from, to time.Time, limit int) ([]*models.Outcome, error) {
	if m.history != nil {
		if to.IsZero() {
			to = time.Now()
		}
		outs, err := m.history.Query(ctx, id, from, to, limit)
		if err != nil {
			return nil, fmt.Errorf("query outcomes: %w", err)
		}
		return outs, nil
	}
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return s.recent(from, to, limit), nil
}

// Count returns the number of open sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Subscribe streams outcomes of future runs until cancel is called or the session closes.
func (m *SessionManager) Subscribe(id string, buf int) (<-chan *models.Outcome, func(), error) {
	s, err := m.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.subscribe(buf)
	return ch, cancel, nil
}

// Close stops the session loop after its current run and saves its rates.
func (m *SessionManager) Close(ctx context.Context, id string) (*SessionState, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.saveSnapshot(ctx, s)
	s.closeSubscribers()
	if f, ok := m.metrics.(interface{ ForgetSession(string) }); ok {
		f.ForgetSession(id)
	}
	st := s.state()
	m.log.Info("session closed",
		logger.String("session_id", id),
		logger.Float64("budget", st.Budget),
		logger.Int("processed", st.Processed),
	)
	return st, nil
}

// Shutdown closes every session.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if _, err := m.Close(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
