package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "RewardBid/internal/middleware"
	"RewardBid/internal/usecase"
	pkgcache "RewardBid/pkg/cache"
	pkgch "RewardBid/pkg/clickhouse"
	"RewardBid/pkg/config"
	xhttp "RewardBid/pkg/http"
	pkgkafka "RewardBid/pkg/kafka"
	applogger "RewardBid/pkg/logger"
	"RewardBid/pkg/queue"
)

// Components are the long-lived parts the App starts and stops. Consumer,
// Batches, Queue and ClickHouse may be nil.
type Components struct {
	Sessions   *usecase.SessionManager
	Pipeline   *mid.OutcomePipeline
	Processor  *usecase.OutcomeProcessor
	Consumer   *pkgkafka.Consumer
	Batches    pkgkafka.MessageHandler
	Queue      *queue.RedisQueue
	HTTP       *xhttp.Server
	ClickHouse *pkgch.Client
	Cache      pkgcache.Service
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	Components
}

func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, log: log, Components: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	// The pipeline outlives ctx so batches produced while sessions close
	// still reach the backend.
	pipeCtx, cancelPipe := context.WithCancel(context.Background())
	defer cancelPipe()
	if a.Pipeline != nil {
		a.Pipeline.Start(pipeCtx)
	}
	a.log.Info("outcome pipeline started", applogger.String("backend", a.cfg.Backend.Type))

	if a.Consumer != nil && a.Batches != nil {
		a.Consumer.RegisterHandler(a.Batches)
		if err := a.Consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.Batches.Topic()))
	}

	if a.Queue != nil {
		if err := a.Queue.Start(); err != nil {
			a.log.Error("redis queue start error", applogger.Error(err))
			return err
		}
	}

	if err := a.HTTP.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then drains sessions and closes backends.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	if err := a.HTTP.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.Queue != nil {
		if err := a.Queue.Stop(ctx); err != nil {
			a.log.Warn("redis queue stop error", applogger.Error(err))
		}
	}

	if a.Sessions != nil {
		if err := a.Sessions.Shutdown(ctx); err != nil {
			a.log.Warn("session shutdown error", applogger.Error(err))
		}
	}

	if a.Pipeline != nil {
		if n := a.Pipeline.Buffered(); n > 0 {
			a.log.Warn("dropping undelivered outcome batches", applogger.Int("batches", n))
		}
		a.Pipeline.Stop()
	}

	// The collector publishes through the outcome producer, so it goes first.
	a.log.RemoveCollector()
	if a.Processor != nil {
		a.Processor.Close()
	}

	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
