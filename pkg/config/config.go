package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Outcome delivery backends.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendBoth       = "both"
)

type CategoryConfig struct {
	Name string  `yaml:"name"`
	Rate float64 `yaml:"rate"`
}

type Config struct {
	App struct {
		Name string `yaml:"name" default:"rewardbid"`
	} `yaml:"app"`
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`

		// Aggregated error logs are published to this topic when kafka is enabled.
		Topic         string        `yaml:"topic" default:"rewardbid.logs"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
		IncludeWarn   bool          `yaml:"include_warn"`
	} `yaml:"logging"`
	Backend struct {
		Type        string        `yaml:"type" default:"none"`
		BufferSize  int           `yaml:"buffer_size" default:"10000"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
		HistorySize int           `yaml:"history_size" default:"1000"`
		QueueSize   int           `yaml:"queue_size" default:"16"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		OutcomesTopic string   `yaml:"outcomes_topic" default:"bid.outcomes"`
		BatchesTopic  string   `yaml:"batches_topic" default:"bid.batches"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"snappy"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"rewardbid"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"bid.batches.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"rewardbid"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		Table        string        `yaml:"table" default:"bid_outcomes"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		MaxOpenConns int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns int           `yaml:"max_idle_conns" default:"5"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled     bool          `yaml:"enabled"`
		Addr        string        `yaml:"addr" default:"localhost:6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		Prefix      string        `yaml:"prefix" default:"rewardbid"`
		PoolSize    int           `yaml:"pool_size" default:"10"`
		RateTTL     time.Duration `yaml:"rate_ttl" default:"168h"`
		StrengthTTL time.Duration `yaml:"strength_ttl" default:"1m"`

		// Queue is a Redis list intake for batches, an alternative to the Kafka consumer.
		Queue struct {
			Enabled    bool          `yaml:"enabled"`
			Prefix     string        `yaml:"prefix" default:"rewardbid:queue"`
			Workers    int           `yaml:"workers" default:"2"`
			RetryLimit int           `yaml:"retry_limit" default:"3"`
			RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		} `yaml:"queue"`
	} `yaml:"redis"`
	Recommender struct {
		Enabled  bool          `yaml:"enabled"`
		URL      string        `yaml:"url"`
		Path     string        `yaml:"path" default:"/recommend"`
		Timeout  time.Duration `yaml:"timeout" default:"3s"`
		Attempts int           `yaml:"attempts" default:"2"`
		Workers  int           `yaml:"workers" default:"4"`
	} `yaml:"recommender"`
	Bidding struct {
		EngineID      string                        `yaml:"engine_id" default:"self"`
		DefaultBudget float64                       `yaml:"default_budget" default:"100"`
		FallbackRate  float64                       `yaml:"fallback_rate" default:"0.02"`
		LearningRate  float64                       `yaml:"learning_rate" default:"0.01"`
		Beta1         float64                       `yaml:"beta1" default:"0.9"`
		Beta2         float64                       `yaml:"beta2" default:"0.999"`
		Epsilon       float64                       `yaml:"epsilon" default:"1e-8"`
		ClampRates    bool                          `yaml:"clamp_rates" default:"true"`
		ClampToBudget bool                          `yaml:"clamp_to_budget" default:"true"`
		Categories    []CategoryConfig              `yaml:"categories"`
		Strengths     map[string]map[string]float64 `yaml:"strengths"`
	} `yaml:"bidding"`
	RateLimit struct {
		Enabled  bool    `yaml:"enabled" default:"true"`
		Capacity float64 `yaml:"capacity" default:"20"`
		Refill   float64 `yaml:"refill_per_sec" default:"5"`
	} `yaml:"ratelimit"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load with environment overrides applied before validation.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// Defaults go in first so an explicit false or 0 in the file survives.
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("REWARDBID_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("RECOMMENDER_URL"); v != "" {
		c.Recommender.URL = v
		c.Recommender.Enabled = true
	}
	if v := getenv("REWARDBID_DEFAULT_BUDGET"); v != "" {
		b, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("REWARDBID_DEFAULT_BUDGET: %w", err)
		}
		c.Bidding.DefaultBudget = b
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UsesKafka reports whether outcomes are published to kafka.
func (c *Config) UsesKafka() bool {
	return c.Backend.Type == BackendKafka || c.Backend.Type == BackendBoth
}

// UsesClickHouse reports whether outcomes are stored in clickhouse.
func (c *Config) UsesClickHouse() bool {
	return c.Backend.Type == BackendClickHouse || c.Backend.Type == BackendBoth
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Backend.Type {
	case BackendNone, BackendKafka, BackendClickHouse, BackendBoth:
	default:
		return fmt.Errorf("backend.type must be one of none|kafka|clickhouse|both, got '%s'", c.Backend.Type)
	}
	if (c.UsesKafka() || c.Kafka.Consumer.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is used")
	}
	if c.Redis.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("redis.queue requires redis.enabled")
	}
	if c.Recommender.Enabled && c.Recommender.URL == "" {
		return fmt.Errorf("recommender.url is required when the recommender is enabled")
	}

	b := c.Bidding
	if b.DefaultBudget <= 0 {
		return fmt.Errorf("bidding.default_budget must be > 0")
	}
	if b.LearningRate <= 0 {
		return fmt.Errorf("bidding.learning_rate must be > 0")
	}
	if b.Beta1 < 0 || b.Beta1 >= 1 || b.Beta2 < 0 || b.Beta2 >= 1 {
		return fmt.Errorf("bidding.beta1 and bidding.beta2 must be in [0, 1)")
	}
	if b.Epsilon <= 0 {
		return fmt.Errorf("bidding.epsilon must be > 0")
	}
	if b.FallbackRate < 0 {
		return fmt.Errorf("bidding.fallback_rate must be >= 0")
	}
	seen := make(map[string]struct{}, len(b.Categories))
	for i, cat := range b.Categories {
		name := strings.ToLower(strings.TrimSpace(cat.Name))
		if name == "" {
			return fmt.Errorf("bidding.categories[%d].name is required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("bidding.categories: duplicate category '%s'", name)
		}
		seen[name] = struct{}{}
		if cat.Rate < 0 || cat.Rate > 1 {
			return fmt.Errorf("bidding.categories[%d].rate must be in [0, 1]", i)
		}
	}
	for cat, table := range b.Strengths {
		for comp, f := range table {
			if f <= 0 {
				return fmt.Errorf("bidding.strengths[%s][%s] must be > 0", cat, comp)
			}
		}
	}
	return nil
}
