package config

import (
	"fmt"

	pkgconfig "github.com/Colauncha/Fixserv-sub001/pkg/config"
)

// Bus backends.
const (
	BusMemory = "memory"
	BusRedis  = "redis"
	BusKafka  = "kafka"
)

// Config holds all configuration for the marketplace core service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP servers, one per bounded context.
	OrderHTTPPort  int `env:"ORDER_HTTP_PORT" envDefault:"8080"`
	ReviewHTTPPort int `env:"REVIEW_HTTP_PORT" envDefault:"8081"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"fixserv"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"fixserv_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"fixserv"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`

	// Redis (cache, and the bus when EVENT_BUS=redis)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Event bus backend: memory, redis, or kafka.
	EventBus     string   `env:"EVENT_BUS" envDefault:"memory"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Peer service base URLs
	UserServiceURL    string `env:"USER_SERVICE_URL" envDefault:"http://localhost:8001"`
	ServiceServiceURL string `env:"SERVICE_SERVICE_URL" envDefault:"http://localhost:8002"`
	WalletServiceURL  string `env:"WALLET_SERVICE_URL" envDefault:"http://localhost:8003"`

	// Saga and background work
	AckTimeoutSecs     int `env:"ACK_TIMEOUT_SECS" envDefault:"15"`
	ExpirySweepMins    int `env:"EXPIRY_SWEEP_MINS" envDefault:"5"`
	IdempotencyTTLMins int `env:"IDEMPOTENCY_TTL_MINS" envDefault:"60"`

	// Circuit breaker for peer service calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"5"`
	CBInterval     int     `env:"CB_INTERVAL_SECS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"10"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.OrderHTTPPort < 1 || c.OrderHTTPPort > 65535 {
		return fmt.Errorf("invalid order HTTP port: %d", c.OrderHTTPPort)
	}
	if c.ReviewHTTPPort < 1 || c.ReviewHTTPPort > 65535 {
		return fmt.Errorf("invalid review HTTP port: %d", c.ReviewHTTPPort)
	}
	if c.OrderHTTPPort == c.ReviewHTTPPort {
		return fmt.Errorf("order and review HTTP ports must differ, both are %d", c.OrderHTTPPort)
	}
	switch c.EventBus {
	case BusMemory, BusRedis, BusKafka:
	default:
		return fmt.Errorf("invalid event bus backend: %q", c.EventBus)
	}
	if c.AckTimeoutSecs < 1 {
		return fmt.Errorf("ack timeout must be at least 1 second, got %d", c.AckTimeoutSecs)
	}
	return nil
}
