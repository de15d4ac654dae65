package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"splikz/internal/config"
	"splikz/internal/seo"
	"splikz/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	services.InitLogger("web", cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Share pages degrade to generic tags without a database
	var db *gorm.DB
	if cfg.Database.URL != "" {
		db, err = services.InitDB(cfg.Database.URL, cfg.Database.LogLevel)
		if err != nil {
			zlog.Warn().Err(err).Msg("Database unavailable, share pages will use generic tags")
			db = nil
		}
	}

	var cache *services.RedisCache
	if cfg.Redis.URL != "" {
		cache, err = services.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			zlog.Warn().Err(err).Msg("Redis unavailable, video meta will not be cached")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	server, err := seo.NewServer(cfg.Web, cfg.AppURL, db, cache)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to build web server")
	}
	e := server.Echo()

	go func() {
		zlog.Info().Str("port", cfg.Web.Port).Str("dist", cfg.Web.DistDir).Msg("Web server starting")
		if err := e.Start(":" + cfg.Web.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("Web server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
