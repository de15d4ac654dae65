package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"

	"splikz/internal/config"
	"splikz/internal/handlers"
	authMiddleware "splikz/internal/middleware"
	"splikz/internal/models"
	"splikz/internal/services"
	"splikz/internal/tasks"
	"splikz/internal/unread"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	services.InitLogger("api", cfg.LogLevel, cfg.IsProduction())
	if err := cfg.Validate(); err != nil {
		zlog.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Firebase
	var verifier services.TokenVerifier
	authClient, err := services.InitFirebase(ctx, cfg.Firebase.CredentialsPath)
	if err != nil {
		zlog.Warn().Err(err).Msg("Firebase initialization failed, authenticated routes will answer 503")
	} else {
		verifier = authClient
	}

	// Initialize Database
	if cfg.Database.URL == "" {
		zlog.Fatal().Msg("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.Database.URL, cfg.Database.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := services.AutoMigrate(db); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Unread counters live in Redis when it is configured
	var store unread.Store = unread.NewMemoryStore()
	if cfg.Redis.URL != "" {
		cache, err := services.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			zlog.Warn().Err(err).Msg("Redis unavailable, keeping unread counters in memory")
		} else {
			defer cache.Close()
			store = unread.NewRedisStore(cache.Client(), 0)
		}
	}

	if cfg.Stripe.SecretKey == "" || cfg.Stripe.WebhookSecret == "" {
		zlog.Warn().Msg("Stripe keys not set, checkout and webhook calls will fail")
	}
	stripeService := services.NewStripeService(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	promotionService := services.NewPromotionService(db, stripeService, cfg.Promotion, cfg.AppURL)
	promotionService.OnActivated(func(ctx context.Context, p *models.Promotion) {
		if _, err := tasks.EnqueuePromotionReceipt(ctx, db, p); err != nil {
			zlog.Warn().Err(err).Str("promotion_id", p.ID).Msg("failed to enqueue promotion receipt")
		}
	})

	promotionHandler := handlers.NewPromotionHandler(promotionService, stripeService)
	realtimeHandler := handlers.NewRealtimeHandler(unread.NewTracker(store, db))

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = authMiddleware.CustomErrorHandler

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Public routes
	e.POST("/api/stripe/webhook", promotionHandler.StripeWebhook)
	e.GET("/api/promotions/confirm", promotionHandler.Confirm)
	e.POST("/api/promotions/confirm", promotionHandler.Confirm)
	e.POST("/api/realtime/events", realtimeHandler.IngestEvent,
		authMiddleware.RequireSharedSecret("X-Webhook-Secret", cfg.Realtime.WebhookSecret))

	// Protected routes
	requireAuth := authMiddleware.RequireAuth(verifier)
	api := e.Group("/api", requireAuth)
	api.POST("/promotions/checkout", promotionHandler.CreateCheckout)
	api.GET("/promotions", promotionHandler.ListPromotions)
	api.GET("/unread", realtimeHandler.Unread)

	e.POST("/promote/checkout", promotionHandler.CheckoutRedirect, requireAuth)

	go func() {
		zlog.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("Server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	zlog.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
