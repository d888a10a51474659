package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RewardBid/internal/domain/models"
	domrepo "RewardBid/internal/domain/repository"
	pkgmetrics "RewardBid/pkg/metrics"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, sessionID string, outcomes []*models.Outcome) error
}

type pending struct {
	sessionID string
	outcomes  []*models.Outcome
}

// OutcomePipeline sits between the session run loops and the outcome backends.
// It validates batches and buffers them when downstream is unavailable, retrying
// in the background with capped exponential backoff.
type OutcomePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	bufSize int
	bufCh   chan pending
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex

	minBackoff time.Duration
	maxBackoff time.Duration
}

type PipelineOption func(*OutcomePipeline)

// WithBufferSize sets how many failed batches are kept for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *OutcomePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *OutcomePipeline) {
		if min > 0 {
			p.minBackoff = min
		}
		if max >= p.minBackoff {
			p.maxBackoff = max
		}
	}
}

func NewOutcomePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *OutcomePipeline {
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	p := &OutcomePipeline{
		proc:       proc,
		metrics:    metrics,
		bufSize:    256,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		minBackoff: 50 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan pending, p.bufSize)
	return p
}

// Start launches background flushing of buffered batches.
func (p *OutcomePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		backoff := p.minBackoff
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case b := <-p.bufCh:
				if err := p.proc.Process(ctx, b.sessionID, b.outcomes); err != nil {
					p.metrics.RecordError("pipeline_flush")
					if backoff < p.maxBackoff {
						backoff *= 2
					}
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					case <-ctx.Done():
						return
					}
					select {
					case p.bufCh <- b:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
					continue
				}
				backoff = p.minBackoff
			}
		}
	}()
}

// Stop stops background flushing and waits for the flusher to exit.
func (p *OutcomePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// Buffered is the number of batches waiting for retry.
func (p *OutcomePipeline) Buffered() int {
	return len(p.bufCh)
}

// Process validates and forwards a batch, buffering it when downstream fails.
func (p *OutcomePipeline) Process(ctx context.Context, sessionID string, outcomes []*models.Outcome) error {
	start := time.Now()
	if err := validateOutcomes(sessionID, outcomes); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if len(outcomes) == 0 {
		return nil
	}

	if err := p.proc.Process(ctx, sessionID, outcomes); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- pending{sessionID: sessionID, outcomes: outcomes}:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateOutcomes(sessionID string, outcomes []*models.Outcome) error {
	if sessionID == "" {
		return fmt.Errorf("session id empty")
	}
	for i, o := range outcomes {
		if o == nil {
			return fmt.Errorf("outcome %d nil", i)
		}
		if o.Bid == nil && o.Error == "" {
			return fmt.Errorf("outcome %d has neither bid nor error", i)
		}
	}
	return nil
}
