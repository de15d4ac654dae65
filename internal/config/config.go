package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	zlog "github.com/rs/zerolog/log"
)

// Config holds the settings shared by every binary in this repo.
// Each binary only reads the sections it needs.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	Port     string `envconfig:"PORT" default:"8080"`
	AppURL   string `envconfig:"APP_URL" default:"http://localhost:5173"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Database  DatabaseConfig  `envconfig:"DATABASE"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	Stripe    StripeConfig    `envconfig:"STRIPE"`
	Promotion PromotionConfig `envconfig:"PROMO"`
	Firebase  FirebaseConfig  `envconfig:"FIREBASE"`
	SMTP      SMTPConfig      `envconfig:"SMTP"`
	Kafka     KafkaConfig     `envconfig:"KAFKA"`
	Web       WebConfig       `envconfig:"WEB"`
	Worker    WorkerConfig    `envconfig:"WORKER"`
	Realtime  RealtimeConfig  `envconfig:"REALTIME"`
}

type DatabaseConfig struct {
	URL      string `split_words:"true"`
	LogLevel string `split_words:"true" default:"warn"`
}

type RedisConfig struct {
	URL string `split_words:"true"`
}

type StripeConfig struct {
	SecretKey     string `split_words:"true"`
	WebhookSecret string `split_words:"true"`
}

// MaxPromotionDays is the hard ceiling on a promotion's duration. It keeps
// boost end times well inside time.Duration range.
const MaxPromotionDays = 3650

// PromotionConfig controls pricing and redirect targets for boosted videos.
// A zero MaxDailyBudgetCents disables clamping.
type PromotionConfig struct {
	MinDailyBudgetCents int64  `split_words:"true" default:"50"`
	MaxDailyBudgetCents int64  `split_words:"true" default:"50000"`
	MaxDurationDays     int    `split_words:"true" default:"365"`
	DefaultCurrency     string `split_words:"true" default:"USD"`
	SuccessPath         string `split_words:"true" default:"/promote/success"`
	CancelPath          string `split_words:"true" default:"/promote/cancel"`
}

type FirebaseConfig struct {
	CredentialsPath string `split_words:"true" default:"./firebase-service-account.json"`
}

type SMTPConfig struct {
	Host     string `split_words:"true"`
	Port     string `split_words:"true" default:"587"`
	User     string `split_words:"true"`
	Password string `split_words:"true"`
	From     string `split_words:"true" default:"no-reply@splikz.com"`
}

type KafkaConfig struct {
	Brokers string `split_words:"true"`
	Topic   string `split_words:"true" default:"splikz.row-changes"`
	GroupID string `split_words:"true" default:"splikz-unread"`
}

// BrokerList splits the comma separated broker setting.
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type WebConfig struct {
	Port         string        `split_words:"true" default:"3000"`
	DistDir      string        `split_words:"true" default:"./dist"`
	SiteName     string        `split_words:"true" default:"Splikz"`
	DefaultImage string        `split_words:"true" default:"/og-default.png"`
	MetaCacheTTL time.Duration `split_words:"true" default:"5m"`
}

type WorkerConfig struct {
	Interval    time.Duration `split_words:"true" default:"1m"`
	ExpiryRRule string        `split_words:"true" default:"FREQ=MINUTELY;INTERVAL=15"`
}

type RealtimeConfig struct {
	WebhookSecret string `split_words:"true"`
}

// Load reads .env (when present) and the process environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zlog.Debug().Msg("No .env file found, using system environment")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that would make the services misbehave.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.AppURL == "" {
		return fmt.Errorf("APP_URL is required")
	}
	p := c.Promotion
	if p.MinDailyBudgetCents <= 0 {
		return fmt.Errorf("minimum daily budget must be positive")
	}
	if p.MaxDailyBudgetCents != 0 && p.MaxDailyBudgetCents < p.MinDailyBudgetCents {
		return fmt.Errorf("maximum daily budget %d is below minimum %d", p.MaxDailyBudgetCents, p.MinDailyBudgetCents)
	}
	if p.MaxDurationDays <= 0 || p.MaxDurationDays > MaxPromotionDays {
		return fmt.Errorf("maximum duration must be between 1 and %d days, got %d", MaxPromotionDays, p.MaxDurationDays)
	}
	if len(p.DefaultCurrency) != 3 {
		return fmt.Errorf("default currency must be an ISO 4217 code, got %q", p.DefaultCurrency)
	}
	if c.Worker.Interval <= 0 {
		return fmt.Errorf("worker interval must be positive")
	}
	return nil
}

// IsProduction reports whether ENV is set to production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
