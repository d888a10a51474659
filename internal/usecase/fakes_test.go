package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"RewardBid/internal/domain/models"
	domrepo "RewardBid/internal/domain/repository"
	"RewardBid/internal/services/bidding"
	pkgmetrics "RewardBid/pkg/metrics"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// countingMetrics counts RecordError calls by kind.
type countingMetrics struct {
	pkgmetrics.Nop
	mu     sync.Mutex
	errors map[string]int
	sent   map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}, sent: map[string]int{}}
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) RecordMessageSent(backend string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[backend]++
}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type recommenderFunc func(ctx context.Context, tx models.Transaction, competitors []string) (*models.Recommendation, error)

func (f recommenderFunc) Recommend(ctx context.Context, tx models.Transaction, competitors []string) (*models.Recommendation, error) {
	return f(ctx, tx, competitors)
}

type memRateStore struct {
	mu    sync.Mutex
	snaps map[string]models.RateSnapshot
	saves int
}

func newMemRateStore() *memRateStore {
	return &memRateStore{snaps: map[string]models.RateSnapshot{}}
}

func (s *memRateStore) Save(_ context.Context, id string, snap models.RateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[id] = snap
	s.saves++
	return nil
}

func (s *memRateStore) Load(_ context.Context, id string) (models.RateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return models.RateSnapshot{}, domrepo.ErrNotFound
	}
	return snap, nil
}

type memPublisher struct {
	mu   sync.Mutex
	got  map[string][]*models.Outcome
	fail error
}

func (p *memPublisher) Publish(ctx context.Context, id string, o *models.Outcome) error {
	return p.PublishBatch(ctx, id, []*models.Outcome{o})
}

func (p *memPublisher) PublishBatch(_ context.Context, id string, outs []*models.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	if p.got == nil {
		p.got = map[string][]*models.Outcome{}
	}
	p.got[id] = append(p.got[id], outs...)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func (p *memPublisher) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got[id])
}

type memStorage struct {
	memPublisher
}

func (s *memStorage) Init(context.Context) error { return nil }

func (s *memStorage) StoreBatch(ctx context.Context, id string, outs []*models.Outcome) error {
	return s.PublishBatch(ctx, id, outs)
}

func (s *memStorage) Query(_ context.Context, id string, from, to time.Time, limit int) ([]*models.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Outcome
	for _, o := range s.got[id] {
		if o.Timestamp.Before(from) || o.Timestamp.After(to) {
			continue
		}
		out = append(out, o)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStorage) Health(context.Context) error { return nil }

var errDown = errors.New("backend down")

func tx(category string, amount float64) models.BatchItem {
	return models.BatchItem{Transaction: models.Transaction{Category: category, Amount: amount, Merchant: "shop"}}
}

func withOffer(it models.BatchItem, id string, v float64) models.BatchItem {
	it.Offer = &models.CompetitorOffer{CompetitorID: id, Value: v}
	return it
}

func newEngine(budget float64) *bidding.Engine {
	e, err := bidding.NewEngine(budget, bidding.WithID("s1"))
	if err != nil {
		panic(err)
	}
	return e
}
