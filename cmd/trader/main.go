package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"micro-trade-bot-go/internal/config"
	"micro-trade-bot-go/internal/database"
	"micro-trade-bot-go/internal/feed"
	"micro-trade-bot-go/internal/gateway"
	"micro-trade-bot-go/internal/lock"
	"micro-trade-bot-go/internal/logger"
	"micro-trade-bot-go/internal/metrics"
	"micro-trade-bot-go/internal/trader"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	metrics.Register()

	// The counters live in this process, so the scrape endpoint does too.
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("Serving metrics", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// Initialize database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Wire the trading core
	locks := lock.NewManager(db, log.Named("lock"), time.Duration(cfg.Trading.LockExpiry)*time.Second)
	gateways := gateway.NewRegistry(&cfg, log.Named("gateway"))
	feeds := feed.NewRegistry(log.Named("feed"))
	processor := trader.NewProcessor(db, log.Named("trader"), locks, gateways)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize and run the trading engine
	tradeEngine := trader.NewEngine(log, &cfg, db, processor, feeds)
	tradeEngine.Run(ctx)

	log.Info("Bot has been shut down.")
}
