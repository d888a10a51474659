package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	domrepo "RewardBid/internal/domain/repository"
	domsvc "RewardBid/internal/domain/service"
	"RewardBid/internal/handler/api"
	mid "RewardBid/internal/middleware"
	internalrepo "RewardBid/internal/repository"
	"RewardBid/internal/service/ratelimit"
	"RewardBid/internal/services/bidding"
	"RewardBid/internal/services/recommend"
	"RewardBid/internal/usecase"
	pkgcache "RewardBid/pkg/cache"
	pkgch "RewardBid/pkg/clickhouse"
	"RewardBid/pkg/config"
	xhttp "RewardBid/pkg/http"
	pkgkafka "RewardBid/pkg/kafka"
	"RewardBid/pkg/logger"
	"RewardBid/pkg/metrics"
	"RewardBid/pkg/queue"
	"RewardBid/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when outcomes never go to Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.UsesKafka() {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. With a producer, error logs are
// also aggregated and published to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Logging.Topic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval: cfg.Logging.FlushInterval,
			Topic:        cfg.Logging.Topic,
			Source:       cfg.App.Name,
			IncludeWarn:  cfg.Logging.IncludeWarn,
			Publisher:    producer,
		})
	}
	return l.With(logger.String("app", cfg.App.Name), logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse and creates the database, or
// returns nil when outcomes are not stored there.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.UsesClickHouse() {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideOutcomeStorage creates the outcome table when ClickHouse is in use.
func ProvideOutcomeStorage(client *pkgch.Client, cfg *config.Config) (domrepo.OutcomeStorage, error) {
	if client == nil {
		return nil, nil
	}
	table := cfg.ClickHouse.Table
	if !strings.Contains(table, ".") {
		table = cfg.ClickHouse.Database + "." + table
	}
	store := internalrepo.NewClickHouseOutcomeStore(client.DB(), table)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("outcome storage: %w", err)
	}
	return store, nil
}

// ProvideOutcomePublisher wraps the producer for the outcomes topic.
func ProvideOutcomePublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.OutcomePublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaOutcomePublisher(producer, cfg.Kafka.OutcomesTopic)
}

// ProvideCache uses Redis when enabled and an in-process cache otherwise.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(
			pkgcache.WithMemoryMaxSize(10000),
			pkgcache.WithMemoryCleanup(time.Minute),
		), nil
	}
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 4*time.Second),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func ProvideRateStore(c pkgcache.Service, cfg *config.Config) domrepo.RateStore {
	return internalrepo.NewCacheRateStore(c, cfg.Redis.RateTTL)
}

// ProvideStrengthSource reads published strengths from the cache and falls
// back to the configured table.
func ProvideStrengthSource(c pkgcache.Service, cfg *config.Config) domrepo.StrengthSource {
	static := internalrepo.NewStaticStrengthSource(cfg.Bidding.Strengths)
	if !cfg.Redis.Enabled {
		return static
	}
	return internalrepo.NewCachedStrengthSource(c, static, cfg.Redis.StrengthTTL)
}

func ProvideRecommender(cfg *config.Config) domsvc.Recommender {
	if !cfg.Recommender.Enabled {
		return nil
	}
	return recommend.NewHTTPRecommender(cfg)
}

// ProvideOutcomeProcessor creates the outcome processor use case.
func ProvideOutcomeProcessor(
	pub domrepo.OutcomePublisher,
	store domrepo.OutcomeStorage,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.OutcomeProcessor {
	return usecase.NewOutcomeProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideOutcomePipeline buffers outcome batches between sessions and the backend.
func ProvideOutcomePipeline(proc *usecase.OutcomeProcessor, m domrepo.Metrics, cfg *config.Config) *mid.OutcomePipeline {
	return mid.NewOutcomePipeline(proc, m,
		mid.WithBufferSize(cfg.Backend.BufferSize),
		mid.WithBackoff(cfg.Backend.BackoffMin, cfg.Backend.BackoffMax),
	)
}

// EngineSettingsFromConfig maps the bidding section onto session defaults.
func EngineSettingsFromConfig(cfg *config.Config) usecase.EngineSettings {
	var catalog []bidding.Category
	for _, c := range cfg.Bidding.Categories {
		catalog = append(catalog, bidding.Category{Name: c.Name, Rate: c.Rate})
	}
	return usecase.EngineSettings{
		EngineID: cfg.Bidding.EngineID,
		Catalog:  catalog,
		Adam: bidding.AdamConfig{
			LearningRate: cfg.Bidding.LearningRate,
			Beta1:        cfg.Bidding.Beta1,
			Beta2:        cfg.Bidding.Beta2,
			Epsilon:      cfg.Bidding.Epsilon,
		},
		FallbackRate:  cfg.Bidding.FallbackRate,
		ClampRates:    cfg.Bidding.ClampRates,
		ClampToBudget: cfg.Bidding.ClampToBudget,
		Strengths:     cfg.Bidding.Strengths,
		EnrichTimeout: cfg.Recommender.Timeout,
		EnrichWorkers: cfg.Recommender.Workers,
		HistorySize:   cfg.Backend.HistorySize,
		QueueSize:     cfg.Backend.QueueSize,
	}
}

// ProvideSessionManager creates the session manager use case.
func ProvideSessionManager(
	cfg *config.Config,
	pipeline *mid.OutcomePipeline,
	proc *usecase.OutcomeProcessor,
	rates domrepo.RateStore,
	strengths domrepo.StrengthSource,
	recommender domsvc.Recommender,
	m domrepo.Metrics,
	l *logger.Logger,
) *usecase.SessionManager {
	opts := []usecase.ManagerOption{
		usecase.WithDelivery(pipeline),
		usecase.WithRateStore(rates),
		usecase.WithStrengths(strengths),
	}
	if store := proc.Storage(); store != nil {
		opts = append(opts, usecase.WithHistory(store))
	}
	if recommender != nil {
		opts = append(opts, usecase.WithRecommendations(recommender))
	}
	return usecase.NewSessionManager(EngineSettingsFromConfig(cfg), m, l, opts...)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.Refill)
}

// ProvideHTTPServer registers the API routes and dependency health checks.
func ProvideHTTPServer(
	cfg *config.Config,
	sessions *usecase.SessionManager,
	limiter *ratelimit.Limiter,
	c pkgcache.Service,
	store domrepo.OutcomeStorage,
	l *logger.Logger,
) *xhttp.Server {
	handlers := []xhttp.Handler{
		api.NewSessionsEchoHandler(l, sessions, limiter, cfg.Bidding.DefaultBudget),
		api.NewOutcomeStreamHandler(l, sessions),
	}
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
	}
	if cfg.Redis.Enabled {
		opts = append(opts, xhttp.WithHealthCheck("redis", c.Ping))
	}
	if store != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", store.Health))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideKafkaConsumer creates the batch intake consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.TraceHook)
	return consumer, nil
}

func ProvideKafkaBatchHandler(cfg *config.Config, sessions *usecase.SessionManager, m domrepo.Metrics, l *logger.Logger) *usecase.KafkaBatchHandler {
	return usecase.NewKafkaBatchHandler(cfg.Kafka.BatchesTopic, sessions, m, l)
}

// ProvideBatchQueue builds the Redis batch intake, or nil when it is disabled.
func ProvideBatchQueue(cfg *config.Config, c pkgcache.Service, kh *usecase.KafkaBatchHandler, l *logger.Logger) *queue.RedisQueue {
	rc, ok := c.(*pkgcache.RedisCache)
	if !ok || !cfg.Redis.Queue.Enabled {
		return nil
	}
	q := queue.NewRedisQueue(rc.Client(), queue.Config{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
	}, l, queue.WithKeyPrefix(cfg.Redis.Queue.Prefix))
	q.Register(usecase.NewBatchJob(kh))
	return q
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	sessions *usecase.SessionManager,
	pipeline *mid.OutcomePipeline,
	proc *usecase.OutcomeProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBatchHandler,
	q *queue.RedisQueue,
	httpServer *xhttp.Server,
	chClient *pkgch.Client,
	c pkgcache.Service,
) *server.App {
	return server.New(cfg, l, server.Components{
		Sessions:   sessions,
		Pipeline:   pipeline,
		Processor:  proc,
		Consumer:   consumer,
		Batches:    kh,
		Queue:      q,
		HTTP:       httpServer,
		ClickHouse: chClient,
		Cache:      c,
	})
}
