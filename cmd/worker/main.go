package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"splikz/internal/config"
	"splikz/internal/services"
	"splikz/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	services.InitLogger("worker", cfg.LogLevel, cfg.IsProduction())
	if err := cfg.Validate(); err != nil {
		zlog.Fatal().Err(err).Msg("Invalid config")
	}

	if cfg.Database.URL == "" {
		zlog.Fatal().Msg("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.Database.URL, cfg.Database.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Initialize Task Registry
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, services.NewEmailService(cfg.SMTP))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	created, err := tasks.EnsureRecurringTask(ctx, db, tasks.ExpirePromotionsTask.TaskID(), cfg.Worker.ExpiryRRule, time.Now().UTC(), 1)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to seed expiry task")
	}
	if created {
		zlog.Info().Str("rrule", cfg.Worker.ExpiryRRule).Msg("Seeded promotion expiry task")
	}

	zlog.Info().Strs("tasks", registry.Names()).Dur("interval", cfg.Worker.Interval).Msg("Worker started")
	tasks.NewRunner(db, registry).Run(ctx, cfg.Worker.Interval)
	zlog.Info().Msg("Worker stopped")
}
