package main

import (
	"fmt"
	"net/http"
	"os"

	"micro-trade-bot-go/internal/config"
	"micro-trade-bot-go/internal/database"
	"micro-trade-bot-go/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	apiHandler := NewAPIHandler(log, db)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/status", apiHandler.StatusHandler)
	r.Get("/api/transactions", apiHandler.TransactionsHandler)
	r.Get("/api/statistics", apiHandler.StatisticsHandler)
	r.Get("/api/assets", apiHandler.AssetsHandler)
	r.Get("/api/assets/{assetID}/settings", apiHandler.GetSettingsHandler)
	r.Put("/api/assets/{assetID}/settings", apiHandler.UpdateSettingsHandler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting dashboard server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal("Dashboard server failed", zap.Error(err))
	}
}
