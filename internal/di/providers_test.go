package di

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	internalrepo "RewardBid/internal/repository"
	"RewardBid/internal/usecase"
	pkgcache "RewardBid/pkg/cache"
	"RewardBid/pkg/config"
)

func TestEngineSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Bidding.Categories = []config.CategoryConfig{{Name: "Dining", Rate: 0.05}}
	cfg.Bidding.Strengths = map[string]map[string]float64{"dining": {"rival": 1.5}}

	s := EngineSettingsFromConfig(cfg)
	assert.Equal(t, 1, len(s.Catalog))
	check.Equal(t, "Dining", s.Catalog[0].Name)
	check.Equal(t, 0.05, s.Catalog[0].Rate)
	check.Equal(t, "self", s.EngineID)
	check.Equal(t, 0.01, s.Adam.LearningRate)
	check.Equal(t, 0.9, s.Adam.Beta1)
	check.Equal(t, 0.02, s.FallbackRate)
	check.True(t, s.ClampRates)
	check.Equal(t, 1.5, s.Strengths["dining"]["rival"])
	check.Equal(t, cfg.Backend.HistorySize, s.HistorySize)
}

func TestProvidersWithoutInfrastructure(t *testing.T) {
	cfg := config.Default()

	producer, err := ProvideKafkaProducer(cfg)
	assert.NoError(t, err)
	check.True(t, producer == nil)

	client, err := ProvideClickHouseClient(cfg)
	assert.NoError(t, err)
	check.True(t, client == nil)

	store, err := ProvideOutcomeStorage(client, cfg)
	assert.NoError(t, err)
	check.Nil(t, store)
	check.Nil(t, ProvideOutcomePublisher(producer, cfg))

	c, err := ProvideCache(cfg)
	assert.NoError(t, err)
	_, isMemory := c.(*pkgcache.MemoryCache)
	check.True(t, isMemory)

	_, isStatic := ProvideStrengthSource(c, cfg).(*internalrepo.StaticStrengthSource)
	check.True(t, isStatic)
	check.Nil(t, ProvideRecommender(cfg))

	cfg.Redis.Queue.Enabled = true
	check.True(t, ProvideBatchQueue(cfg, c, nil, nil) == nil)

	consumer, err := ProvideKafkaConsumer(cfg)
	assert.NoError(t, err)
	check.True(t, consumer == nil)

	proc := ProvideOutcomeProcessor(nil, nil, nil, cfg)
	check.Equal(t, usecase.BackendNone, proc.Backend())
	check.Nil(t, proc.Storage())

	check.True(t, ProvideRateLimiter(cfg) != nil)
	cfg.RateLimit.Enabled = false
	check.True(t, ProvideRateLimiter(cfg) == nil)
}

func TestProvideKafkaProducerNeedsBrokers(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Type = config.BackendKafka

	_, err := ProvideKafkaProducer(cfg)
	check.Error(t, err)
}
