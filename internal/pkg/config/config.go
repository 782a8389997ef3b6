package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	RedactFields  string `env:"LOG_REDACT_FIELDS" envDefault:"token,secret,authorization,identifier"`
	DataDir       string `env:"DATA_DIR" envDefault:"./data"`
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr   string `env:"METRICS_ADDR" envDefault:":9091"`
	MarketBaseURL string `env:"MARKET_BASE_URL" envDefault:"http://localhost:8080"`
	MaxBodyBytes  int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"` // 1MB

	DeskStore   string `env:"DESK_STORE" envDefault:"sqlite"`
	PostgresURL string `env:"POSTGRES_URL"`

	TokenSource   string        `env:"TOKEN_SOURCE" envDefault:"hex"`
	TokenCacheTTL time.Duration `env:"TOKEN_CACHE_TTL" envDefault:"5m"`
	JWTSecret     string        `env:"JWT_SECRET"`
	AdminKey      string        `env:"ADMIN_KEY"`

	RedisAddr        string `env:"REDIS_ADDR"`
	NoteStreamKey    string `env:"NOTE_STREAM_KEY" envDefault:"desk_note_events"`
	NoteStreamMaxLen int64  `env:"NOTE_STREAM_MAX_LEN" envDefault:"100000"`

	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaNoteTopic string   `env:"KAFKA_NOTE_TOPIC" envDefault:"desk-note-events"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	ActorQueueSize     int           `env:"ACTOR_QUEUE_SIZE" envDefault:"64"`
	JournalSegmentSize int64         `env:"JOURNAL_SEGMENT_SIZE_BYTES" envDefault:"16777216"`   // 16MB
	JournalMaxDiskSize int64         `env:"JOURNAL_MAX_DISK_SIZE_BYTES" envDefault:"1073741824"` // 1GB
	LocalLedgerLatency time.Duration `env:"LOCAL_LEDGER_LATENCY" envDefault:"0s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.DeskStore {
	case "sqlite":
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("DESK_STORE=postgres requires POSTGRES_URL")
		}
	default:
		return fmt.Errorf("unsupported DESK_STORE %q", c.DeskStore)
	}
	switch c.TokenSource {
	case "hex":
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("TOKEN_SOURCE=postgres requires POSTGRES_URL")
		}
	case "jwt":
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("TOKEN_SOURCE=jwt requires a JWT_SECRET of at least 32 bytes")
		}
	default:
		return fmt.Errorf("unsupported TOKEN_SOURCE %q", c.TokenSource)
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.ActorQueueSize <= 0 {
		return fmt.Errorf("ACTOR_QUEUE_SIZE must be positive")
	}
	return nil
}

// RedactFieldList splits LOG_REDACT_FIELDS.
func (c *Config) RedactFieldList() []string {
	var out []string
	for _, f := range strings.Split(c.RedactFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
