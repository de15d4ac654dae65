package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	zlog "github.com/rs/zerolog/log"

	"splikz/internal/config"
	"splikz/internal/services"
	"splikz/internal/unread"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	services.InitLogger("realtime", cfg.LogLevel, cfg.IsProduction())

	brokers := cfg.Kafka.BrokerList()
	if len(brokers) == 0 {
		zlog.Fatal().Msg("KAFKA_BROKERS not set")
	}
	// Counters must be shared with the api server
	if cfg.Redis.URL == "" {
		zlog.Fatal().Msg("REDIS_URL not set")
	}
	if cfg.Database.URL == "" {
		zlog.Fatal().Msg("DATABASE_URL not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := services.InitDB(cfg.Database.URL, cfg.Database.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to database")
	}
	cache, err := services.NewRedisCache(ctx, cfg.Redis.URL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer cache.Close()

	tracker := unread.NewTracker(unread.NewRedisStore(cache.Client(), 0), db)
	consumer := unread.NewConsumer(unread.NewKafkaReader(brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID), tracker)
	defer consumer.Close()

	zlog.Info().Strs("brokers", brokers).Str("topic", cfg.Kafka.Topic).Str("group", cfg.Kafka.GroupID).Msg("Realtime consumer starting")
	if err := consumer.Run(ctx); err != nil {
		zlog.Error().Err(err).Msg("Realtime consumer stopped")
	}
}
