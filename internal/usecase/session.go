package usecase

import (
	"context"
	"sync"
	"time"

	"RewardBid/internal/domain/models"
	"RewardBid/internal/services/bidding"
)

type runRequest struct {
	ctx   context.Context
	batch *models.Batch
	reply chan runReply
}

type runReply struct {
	report *models.RunReport
	err    error
}

// SessionState is a read-only view of a session.
type SessionState struct {
	ID            string             `json:"id"`
	InitialBudget float64            `json:"initial_budget"`
	Budget        float64            `json:"budget"`
	Spent         float64            `json:"spent"`
	Rates         map[string]float64 `json:"rates"`
	Runs          int                `json:"runs"`
	Processed     int                `json:"processed"`
	CreatedAt     time.Time          `json:"created_at"`
	LastRunAt     *time.Time         `json:"last_run_at,omitempty"`
}

// session owns one engine. All runs go through its loop goroutine, so two
// batches against the same budget never interleave.
type session struct {
	id      string
	engine  *bidding.Engine
	seq     *Sequencer
	created time.Time

	runs chan runRequest
	stop chan struct{}
	done chan struct{}

	mu          sync.RWMutex
	history     []models.Outcome
	historySize int
	runCount    int
	processed   int
	lastRun     time.Time
	subs        map[int]chan *models.Outcome
	nextSub     int
	dropped     func()
}

func newSession(id string, engine *bidding.Engine, historySize, queueSize int) *session {
	return &session{
		id:          id,
		engine:      engine,
		created:     time.Now(),
		runs:        make(chan runRequest, queueSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		historySize: historySize,
		subs:        make(map[int]chan *models.Outcome),
	}
}

func (s *session) loop(after func(ctx context.Context, s *session, report *models.RunReport)) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case req := <-s.runs:
			if err := req.ctx.Err(); err != nil {
				req.reply <- runReply{err: err}
				continue
			}
			report, err := s.seq.Run(req.ctx, req.batch)
			if err == nil {
				s.mu.Lock()
				s.runCount++
				s.processed += len(report.Outcomes)
				s.lastRun = report.FinishedAt
				s.mu.Unlock()
				after(req.ctx, s, report)
			}
			req.reply <- runReply{report: report, err: err}
		}
	}
}

// record keeps the outcome in the bounded history and fans it out to subscribers.
func (s *session) record(_ context.Context, o *models.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, *o)
	if over := len(s.history) - s.historySize; s.historySize > 0 && over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}

	cp := *o
	for _, ch := range s.subs {
		select {
		case ch <- &cp:
		default:
			if s.dropped != nil {
				s.dropped()
			}
		}
	}
}

func (s *session) subscribe(buf int) (<-chan *models.Outcome, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan *models.Outcome, buf)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// recent returns up to limit outcomes stamped within [from, to], oldest first.
// A zero from or to leaves that side open.
func (s *session) recent(from, to time.Time, limit int) []*models.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Outcome
	for i := len(s.history) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		o := s.history[i]
		if (!from.IsZero() && o.Timestamp.Before(from)) || (!to.IsZero() && o.Timestamp.After(to)) {
			continue
		}
		out = append(out, &o)
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func (s *session) state() *SessionState {
	snap := s.engine.Snapshot()
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &SessionState{
		ID:            s.id,
		InitialBudget: s.engine.InitialBudget(),
		Budget:        snap.Budget,
		Spent:         s.engine.Spent(),
		Rates:         snap.Rates(),
		Runs:          s.runCount,
		Processed:     s.processed,
		CreatedAt:     s.created,
	}
	if !s.lastRun.IsZero() {
		t := s.lastRun
		st.LastRunAt = &t
	}
	return st
}
