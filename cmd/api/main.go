package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/paycore/internal/api"
	"github.com/baharkarakas/paycore/internal/auth"
	"github.com/baharkarakas/paycore/internal/cache"
	"github.com/baharkarakas/paycore/internal/config"
	"github.com/baharkarakas/paycore/internal/db"
	"github.com/baharkarakas/paycore/internal/gateway"
	"github.com/baharkarakas/paycore/internal/idempotency"
	"github.com/baharkarakas/paycore/internal/logger"
	"github.com/baharkarakas/paycore/internal/metrics"
	"github.com/baharkarakas/paycore/internal/ratelimit"
	repo "github.com/baharkarakas/paycore/internal/repository"
	"github.com/baharkarakas/paycore/internal/repository/memory"
	"github.com/baharkarakas/paycore/internal/repository/postgres"
	"github.com/baharkarakas/paycore/internal/services"
	"github.com/baharkarakas/paycore/internal/webhook"
	"github.com/baharkarakas/paycore/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repos repo.Repositories
	switch cfg.RepoBackend {
	case "memory":
		log.Warn("using in-memory repositories; data is lost on restart")
		repos = memory.NewRepositories()
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("db connect", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if os.Getenv("APP_MIGRATE") == "true" {
			if err := db.RunMigrations(ctx, pool); err != nil {
				log.Error("migrations", "err", err)
				os.Exit(1)
			}
		}
		repos = postgres.NewRepositories(pool)
	}

	rdb, err := cache.NewRedis(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
	if err != nil {
		log.Error("redis connect", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	verifier, err := webhook.NewVerifier(cfg.WebhookSecret, webhook.WithMaxAge(cfg.WebhookMaxAge))
	if err != nil {
		log.Error("webhook verifier", "err", err)
		os.Exit(1)
	}

	wp := worker.NewPool(cfg.SettlementWorkers, cfg.SettlementWorkers*4)
	defer wp.Stop()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	processor := gateway.NewSimulator(cfg.ProcessorLimit)

	merchantSvc := services.NewMerchantService(repos.Merchants, tokens, cfg.DefaultCurrency, log)
	txnSvc := services.NewTransactionService(repos, processor, cfg.DefaultCurrency, log)
	settlementSvc := services.NewSettlementService(repos, verifier, txnSvc, wp, log)

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		Cfg:            cfg,
		Log:            log,
		Tokens:         tokens,
		Idempotency:    idempotency.New(rdb, idempotency.WithTTL(cfg.IdempotencyTTL), idempotency.WithWait(cfg.IdempotencyWait)),
		WebhookLimiter: ratelimit.New(rdb, cfg.WebhookRateLimit, cfg.WebhookRateWindow),
		MerchantSvc:    merchantSvc,
		TxnSvc:         txnSvc,
		SettlementSvc:  settlementSvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env, "backend", cfg.RepoBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
