package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("WORKER_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(50), cfg.Promotion.MinDailyBudgetCents)
	assert.Equal(t, "USD", cfg.Promotion.DefaultCurrency)
	assert.Equal(t, 365, cfg.Promotion.MaxDurationDays)
	assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
	assert.Equal(t, 30*time.Second, cfg.Worker.Interval)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:   "8080",
			AppURL: "http://localhost",
			Promotion: PromotionConfig{
				MinDailyBudgetCents: 50,
				MaxDailyBudgetCents: 50000,
				MaxDurationDays:     365,
				DefaultCurrency:     "USD",
			},
			Worker: WorkerConfig{Interval: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "clamp disabled", mutate: func(c *Config) { c.Promotion.MaxDailyBudgetCents = 0 }},
		{name: "max below min", mutate: func(c *Config) { c.Promotion.MaxDailyBudgetCents = 10 }, wantErr: true},
		{name: "zero min", mutate: func(c *Config) { c.Promotion.MinDailyBudgetCents = 0 }, wantErr: true},
		{name: "zero max duration", mutate: func(c *Config) { c.Promotion.MaxDurationDays = 0 }, wantErr: true},
		{name: "max duration above ceiling", mutate: func(c *Config) { c.Promotion.MaxDurationDays = MaxPromotionDays + 1 }, wantErr: true},
		{name: "bad currency", mutate: func(c *Config) { c.Promotion.DefaultCurrency = "dollars" }, wantErr: true},
		{name: "missing port", mutate: func(c *Config) { c.Port = "" }, wantErr: true},
		{name: "zero worker interval", mutate: func(c *Config) { c.Worker.Interval = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBrokerList(t *testing.T) {
	k := KafkaConfig{Brokers: "kafka-1:9092, kafka-2:9092,,"}
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, k.BrokerList())
	assert.Empty(t, KafkaConfig{}.BrokerList())
}
