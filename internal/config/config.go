// Package config loads the service configuration from an optional YAML file
// and environment overrides. Both binaries read the same structure.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"recipe-ingest-service/internal/ai"
	"recipe-ingest-service/internal/events"
	"recipe-ingest-service/internal/search"
)

const (
	DispatchInline = "inline"
	DispatchQueue  = "queue"
)

type Config struct {
	HTTP     HTTPConfig         `yaml:"http"`
	Postgres PostgresConfig     `yaml:"postgres"`
	Redis    RedisConfig        `yaml:"redis"`
	Worker   WorkerConfig       `yaml:"worker"`
	Dispatch DispatchConfig     `yaml:"dispatch"`
	Pipeline PipelineConfig     `yaml:"pipeline"`
	AI       ai.Config          `yaml:"ai"`
	Video    VideoConfig        `yaml:"video"`
	Search   SearchConfig       `yaml:"search"`
	Kafka    events.KafkaConfig `yaml:"kafka"`
	Logging  LoggingConfig      `yaml:"logging"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr             string `yaml:"addr"`
	Password         string `yaml:"password"`
	DB               int    `yaml:"db"`
	QueueKey         string `yaml:"queue_key"`
	ProcessingKey    string `yaml:"processing_key"`
	ProcessingMapKey string `yaml:"processing_map_key"`
	EventsPrefix     string `yaml:"events_prefix"`
}

// WorkerConfig sizes the execution pool. MaxPending bounds submissions
// waiting for a free worker in the API process; zero rejects as soon as
// every worker is busy.
type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	MaxPending   int           `yaml:"max_pending"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

type DispatchConfig struct {
	Mode     string        `yaml:"mode"`
	MaxRelay time.Duration `yaml:"max_relay"`
}

type PipelineConfig struct {
	StepTimeout time.Duration `yaml:"step_timeout"`
	StaleAfter  time.Duration `yaml:"stale_after"`
}

type VideoConfig struct {
	OEmbedURL         string        `yaml:"oembed_url"`
	TranscriptBaseURL string        `yaml:"transcript_base_url"`
	Timeout           time.Duration `yaml:"timeout"`
}

type SearchConfig struct {
	Weights  search.Weights `yaml:"weights"`
	CacheTTL time.Duration  `yaml:"cache_ttl"`
}

// LoggingConfig: File receives JSON logs in addition to text on stderr.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{MaxConns: 10},
		Redis: RedisConfig{
			QueueKey:      "jobs:queue",
			ProcessingKey: "jobs:processing",
			EventsPrefix:  "jobs:events",
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			MaxPending:   16,
			DrainTimeout: 30 * time.Second,
			ReapInterval: 30 * time.Second,
		},
		Dispatch: DispatchConfig{
			Mode:     DispatchInline,
			MaxRelay: 10 * time.Minute,
		},
		Pipeline: PipelineConfig{
			StepTimeout: 2 * time.Minute,
			StaleAfter:  30 * time.Minute,
		},
		AI: ai.DefaultConfig(),
		Video: VideoConfig{
			OEmbedURL:         "https://www.youtube.com/oembed",
			TranscriptBaseURL: "http://localhost:8090",
			Timeout:           30 * time.Second,
		},
		Search: SearchConfig{
			Weights:  search.DefaultWeights(),
			CacheTTL: 30 * time.Second,
		},
		Kafka:   events.KafkaConfig{Topic: "recipes.committed"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path when it is not empty, then applies environment overrides.
// It does not validate; call Validate once every override is in place.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if cfg.Redis.ProcessingMapKey == "" {
		cfg.Redis.ProcessingMapKey = cfg.Redis.ProcessingKey + ":map"
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = i
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("POSTGRES_DSN", &cfg.Postgres.DSN)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("REDIS_QUEUE_KEY", &cfg.Redis.QueueKey)
	str("REDIS_PROCESSING_KEY", &cfg.Redis.ProcessingKey)
	str("REDIS_PROCESSING_MAP_KEY", &cfg.Redis.ProcessingMapKey)
	str("REDIS_EVENTS_PREFIX", &cfg.Redis.EventsPrefix)
	num("WORKERS", &cfg.Worker.Concurrency)
	num("WORKER_MAX_PENDING", &cfg.Worker.MaxPending)
	str("DISPATCH_MODE", &cfg.Dispatch.Mode)
	dur("STEP_TIMEOUT", &cfg.Pipeline.StepTimeout)
	dur("STALE_AFTER", &cfg.Pipeline.StaleAfter)
	str("OPENAI_BASE_URL", &cfg.AI.BaseURL)
	str("OPENAI_API_KEY", &cfg.AI.Token)
	str("CHAT_MODEL", &cfg.AI.ChatModel)
	str("EMBEDDING_MODEL", &cfg.AI.EmbeddingModel)
	num("EMBEDDING_DIMENSIONS", &cfg.AI.Dimensions)
	str("TRANSCRIPT_BASE_URL", &cfg.Video.TranscriptBaseURL)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FILE", &cfg.Logging.File)
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn (POSTGRES_DSN) is required"))
	}
	switch c.Dispatch.Mode {
	case DispatchInline:
	case DispatchQueue:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr (REDIS_ADDR) is required for queue dispatch"))
		}
	default:
		errs = append(errs, fmt.Errorf("dispatch.mode must be %q or %q, got %q", DispatchInline, DispatchQueue, c.Dispatch.Mode))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Pipeline.StepTimeout <= 0 {
		errs = append(errs, errors.New("pipeline.step_timeout must be positive"))
	}
	if err := c.AI.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Search.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("search.weights: %w", err))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// RedactDSN masks the password of a URL-style DSN: user:pass@ becomes user:****@.
func RedactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}
