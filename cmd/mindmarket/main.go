package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/config"
	"github.com/kolfi-labs/mindmarket/internal/domain"
	"github.com/kolfi-labs/mindmarket/internal/engine"
	"github.com/kolfi-labs/mindmarket/internal/handler"
	"github.com/kolfi-labs/mindmarket/internal/ledger"
	"github.com/kolfi-labs/mindmarket/internal/logging"
	"github.com/kolfi-labs/mindmarket/internal/oracle"
	"github.com/kolfi-labs/mindmarket/internal/service"
	"github.com/kolfi-labs/mindmarket/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)

	// Open the persistence layer.
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	webhookStore := store.NewWebhookStore()

	// Domain.
	subjects := domain.NewSubjectRegistry()

	// Ledger, restored from disk.
	book := ledger.New(db)
	free, locked, custody, deposited, err := db.LoadBalances()
	if err != nil {
		logger.Error("failed to load balances", slog.String("error", err.Error()))
		os.Exit(1)
	}
	book.Restore(free, locked, custody, deposited)

	// Services (webhook first: it is the notifier for oracle and engine).
	webhookSvc := service.NewWebhookService(webhookStore, book, cfg.WebhookTimeout)

	// Oracle, restored from disk.
	prices := oracle.New(cfg.MaxUpdateDelay, subjects, webhookSvc, db)
	points, err := db.LoadPoints()
	if err != nil {
		logger.Error("failed to load price points", slog.String("error", err.Error()))
		os.Exit(1)
	}
	prices.Restore(points)

	// Engine.
	factory := engine.NewMarketFactory(
		cfg.EpochLength,
		cfg.FeeBps,
		decimal.NewFromInt(cfg.PriceScale),
		subjects,
		prices,
		book,
		book,
		webhookSvc,
		db,
	)
	states, err := db.LoadMarkets()
	if err != nil {
		logger.Error("failed to load markets", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, st := range states {
		orders, err := db.LoadOpenOrders(st.ID)
		if err != nil {
			logger.Error("failed to load orders",
				slog.String("market_id", st.ID),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		factory.Restore(st, orders)
		logger.Info("market restored",
			slog.Uint64("subject_id", st.SubjectID),
			slog.Int("open_orders", len(orders)))
	}

	// Seed markets from the optional YAML file. Existing subjects are
	// left untouched.
	seeds, err := cfg.LoadMarketSeeds()
	if err != nil {
		logger.Error("failed to load market seeds", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, seed := range seeds {
		expiry, _ := time.Parse(time.RFC3339, seed.ExpiresAt)
		if _, err := factory.CreateMarket(seed.SubjectID, seed.PriceSourceID, expiry); err != nil {
			if err == domain.ErrMarketAlreadyExists {
				continue
			}
			logger.Error("failed to seed market",
				slog.Uint64("subject_id", seed.SubjectID),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("market seeded", slog.Uint64("subject_id", seed.SubjectID))
	}

	// Remaining services.
	accountSvc := service.NewAccountService(book)
	orderSvc := service.NewOrderService(factory)
	marketSvc := service.NewMarketService(factory, book, cfg.TreasuryAccount)
	oracleSvc := service.NewOracleService(prices)

	// Expiry announcements (depends on webhook service as dispatcher).
	watcher := engine.NewEpochWatcher(cfg.EpochInterval, factory, webhookSvc)

	// Router.
	router := handler.NewRouter(accountSvc, orderSvc, marketSvc, oracleSvc, webhookSvc, cfg.AdminKey, cfg.UpdaterKey, logger)

	// Start the epoch watcher with a cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops epoch watcher).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
