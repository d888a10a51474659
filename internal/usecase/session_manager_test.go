package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"RewardBid/internal/domain/models"
	"RewardBid/internal/middleware"
	"RewardBid/pkg/logger"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func newManager(t *testing.T, opts ...ManagerOption) *SessionManager {
	t.Helper()
	m := NewSessionManager(EngineSettings{ClampRates: true, ClampToBudget: true, FallbackRate: 0.02}, nil, logger.Nop(), opts...)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestSessionManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	st, err := m.Create(ctx, CreateSessionParams{ID: "s1", Budget: 20, Rates: map[string]float64{"Pets": 0.04}})
	assert.NoError(t, err)
	check.Equal(t, "s1", st.ID)
	check.Equal(t, 0.04, st.Rates["pets"])
	check.Equal(t, 1, m.Count())

	_, err = m.Create(ctx, CreateSessionParams{ID: "s1", Budget: 20})
	check.True(t, errors.Is(err, ErrSessionExists))

	_, err = m.Create(ctx, CreateSessionParams{Budget: 0})
	check.Error(t, err)

	report, err := m.Run(ctx, "s1", threeItems())
	assert.NoError(t, err)
	check.Equal(t, "s1", report.SessionID)

	st, err = m.Get("s1")
	assert.NoError(t, err)
	check.Equal(t, 1, st.Runs)
	check.Equal(t, 3, st.Processed)
	check.True(t, approx(report.FinalBudget, st.Budget))
	check.True(t, approx(20-st.Budget, st.Spent))

	outs, err := m.Outcomes(ctx, "s1", 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(outs))
	check.Equal(t, 1, outs[0].Index)
	check.Equal(t, 2, outs[1].Index)

	closed, err := m.Close(ctx, "s1")
	assert.NoError(t, err)
	check.True(t, approx(st.Budget, closed.Budget))

	_, err = m.Run(ctx, "s1", threeItems())
	check.True(t, errors.Is(err, ErrSessionNotFound))
	_, err = m.Get("s1")
	check.True(t, errors.Is(err, ErrSessionNotFound))
	check.Equal(t, 0, m.Count())
}

func TestSessionManagerRunsAreSerialized(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	_, err := m.Create(ctx, CreateSessionParams{ID: "s1", Budget: 1000})
	assert.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Run(ctx, "s1", threeItems())
			check.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := m.Get("s1")
	assert.NoError(t, err)
	check.Equal(t, 8, st.Runs)
	check.Equal(t, 24, st.Processed)

	// Every run starts where the previous one left off.
	outs, err := m.Outcomes(ctx, "s1", 0)
	assert.NoError(t, err)
	for i := 1; i < len(outs); i++ {
		if outs[i-1].Bid != nil && outs[i].Bid != nil {
			check.True(t, approx(outs[i-1].Bid.BudgetAfter, outs[i].Bid.BudgetBefore))
		}
	}
}

func TestSessionManagerNilBatch(t *testing.T) {
	m := newManager(t)
	_, err := m.Run(context.Background(), "s1", nil)
	check.True(t, errors.Is(err, ErrNilBatch))
}

func TestSessionManagerPersistsAndRestoresRates(t *testing.T) {
	ctx := context.Background()
	store := newMemRateStore()
	m := newManager(t, WithRateStore(store))

	_, err := m.Create(ctx, CreateSessionParams{ID: "s1", Budget: 20})
	assert.NoError(t, err)
	report, err := m.Run(ctx, "s1", threeItems())
	assert.NoError(t, err)
	learned := report.Rates["groceries"]
	check.False(t, approx(0.05, learned))
	_, err = m.Close(ctx, "s1")
	assert.NoError(t, err)
	check.True(t, store.saves >= 2)

	st, err := m.Create(ctx, CreateSessionParams{ID: "s1", Budget: 50, Restore: true})
	assert.NoError(t, err)
	check.True(t, approx(learned, st.Rates["groceries"]))
	check.Equal(t, 50.0, st.Budget)

	fresh, err := m.Create(ctx, CreateSessionParams{ID: "s2", Budget: 50, Restore: true})
	assert.NoError(t, err)
	check.Equal(t, 0.05, fresh.Rates["groceries"])
}

func TestSessionManagerDeliversOutcomes(t *testing.T) {
	ctx := context.Background()
	pub := &memPublisher{}
	proc := NewOutcomeProcessor(pub, nil, nil, BackendKafka)
	pipe := middleware.NewOutcomePipeline(proc, nil)
	m := newManager(t, WithDelivery(pipe))

	_, err := m.Create(ctx, CreateSessionParams{ID: "s1", Budget: 20})
	assert.NoError(t, err)
	_, err = m.Run(ctx, "s1", threeItems())
	assert.NoError(t, err)
	check.Equal(t, 3, pub.count("s1"))
}

func TestSessionManagerHistoryStore(t *testing.T) {
	ctx := context.Background()
	store := &memStorage{}
	proc := NewOutcomeProcessor(nil, store, nil, BackendClickHouse)
	m := newManager(t, WithDelivery(proc), WithHistory(proc.Storage()))

	_, err := m.Create(ctx, CreateSessionParams{ID: "s1", Budget: 20})
	assert.NoError(t, err)
	_, err = m.Run(ctx, "s1", threeItems())
	assert.NoError(t, err)
	_, err = m.Close(ctx, "s1")
	assert.NoError(t, err)

	outs, err := m.Outcomes(ctx, "s1", 10)
	assert.NoError(t, err)
	check.Equal(t, 3, len(outs))
}

func TestSessionManagerSubscribe(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	_, err := m.Create(ctx, CreateSessionParams{ID: "s1", Budget: 20})
	assert.NoError(t, err)

	ch, cancel, err := m.Subscribe("s1", 8)
	assert.NoError(t, err)
	defer cancel()

	_, err = m.Run(ctx, "s1", threeItems())
	assert.NoError(t, err)
	for want := 0; want < 3; want++ {
		select {
		case o := <-ch:
			check.Equal(t, want, o.Index)
		case <-time.After(time.Second):
			t.Fatalf("outcome %d not streamed", want)
		}
	}

	_, err = m.Close(ctx, "s1")
	assert.NoError(t, err)
	_, open := <-ch
	check.False(t, open)

	_, _, err = m.Subscribe("s1", 8)
	check.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSessionManagerCancelledRun(t *testing.T) {
	m := newManager(t)
	_, err := m.Create(context.Background(), CreateSessionParams{ID: "s1", Budget: 20})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(ctx, "s1", &models.Batch{})
	check.Error(t, err)

	st, err := m.Get("s1")
	assert.NoError(t, err)
	check.Equal(t, 0, st.Runs)
}

type strengthsFunc func(ctx context.Context, category string) (map[string]float64, error)

func (f strengthsFunc) Strengths(ctx context.Context, category string) (map[string]float64, error) {
	return f(ctx, category)
}

func TestSessionManagerSessionStrengthsWinOverSource(t *testing.T) {
	ctx := context.Background()
	src := strengthsFunc(func(_ context.Context, category string) (map[string]float64, error) {
		if category == "groceries" {
			return map[string]float64{"amex": 1.0, "chase": 3.0}, nil
		}
		return nil, nil
	})
	m := newManager(t, WithStrengths(src))

	_, err := m.Create(ctx, CreateSessionParams{
		ID:        "s1",
		Budget:    5,
		Strengths: map[string]map[string]float64{"Groceries": {"amex": 4.0}},
	})
	assert.NoError(t, err)

	batch := &models.Batch{Items: []models.BatchItem{tx("groceries", 1000)}, Competitors: []string{"amex"}}
	report, err := m.Run(ctx, "s1", batch)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(report.Outcomes))
	res := report.Outcomes[0].Bid
	assert.True(t, res != nil)
	check.Equal(t, 4.0, res.AdjustmentFactor)
	check.True(t, approx(1.25, res.AllowedBid))

	// the source still covers competitors the session leaves out
	_, err = m.Create(ctx, CreateSessionParams{
		ID:        "s2",
		Budget:    5,
		Strengths: map[string]map[string]float64{"groceries": {"amex": 4.0}},
	})
	assert.NoError(t, err)
	batch = &models.Batch{Items: []models.BatchItem{tx("groceries", 1000)}, Competitors: []string{"chase"}}
	report, err = m.Run(ctx, "s2", batch)
	assert.NoError(t, err)
	res = report.Outcomes[0].Bid
	assert.True(t, res != nil)
	check.Equal(t, 3.0, res.AdjustmentFactor)
}

func TestSessionManagerDefaultsFallbackRate(t *testing.T) {
	ctx := context.Background()
	m := NewSessionManager(EngineSettings{ClampRates: true, ClampToBudget: true}, nil, logger.Nop())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	_, err := m.Create(ctx, CreateSessionParams{ID: "s1", Budget: 100})
	assert.NoError(t, err)

	batch := &models.Batch{Items: []models.BatchItem{tx("crypto", 100)}}
	report, err := m.Run(ctx, "s1", batch)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(report.Outcomes))
	res := report.Outcomes[0].Bid
	assert.True(t, res != nil)
	check.False(t, res.KnownCategory)
	check.True(t, approx(0.02, res.PredictedRate))
	check.True(t, approx(2, res.Bid))
}
