//go:build wireinject
// +build wireinject

package di

import (
	"RewardBid/pkg/config"
	"RewardBid/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideCache,

		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Repositories
		ProvideOutcomeStorage,
		ProvideOutcomePublisher,
		ProvideRateStore,
		ProvideStrengthSource,
		ProvideRecommender,

		// Use cases
		ProvideOutcomeProcessor,
		ProvideOutcomePipeline,
		ProvideSessionManager,
		ProvideKafkaConsumer,
		ProvideKafkaBatchHandler,
		ProvideBatchQueue,

		// Transport
		ProvideRateLimiter,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
