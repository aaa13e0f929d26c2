package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpapi "github.com/loadboard/loadboard/internal/api/http"
	appNegotiation "github.com/loadboard/loadboard/internal/application/negotiation"
	"github.com/loadboard/loadboard/internal/application/pricing"
	"github.com/loadboard/loadboard/internal/config"
	"github.com/loadboard/loadboard/internal/domain/event"
	"github.com/loadboard/loadboard/internal/infrastructure/bus"
	"github.com/loadboard/loadboard/internal/infrastructure/postgres"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, "internal/migrations"); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	bidRepo := postgres.NewBidRepository(pool)
	threadRepo := postgres.NewNegotiationRepository(pool)
	loadRepo := postgres.NewLoadRepository(pool)

	// event fan-out
	hub := bus.NewHub()
	var publisher event.Bus = hub
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		bridge := bus.NewBridge(hub, rdb, logger)
		go bridge.Run(ctx)
		publisher = bridge
		logger.Info().Str("addr", cfg.RedisAddr).Msg("redis event bridge enabled")
	}

	// services
	calc := pricing.NewCalculator(cfg.Pricing, logger)
	negotiationSvc := appNegotiation.NewService(bidRepo, threadRepo, loadRepo, calc, publisher, logger)

	// API server
	apiServer := httpapi.NewServer(negotiationSvc, calc, hub, logger)

	httpServer := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: apiServer.Router(),
		// No WriteTimeout: SSE and websocket streams stay open until the
		// client disconnects.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()
	hub.Stop()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
}
