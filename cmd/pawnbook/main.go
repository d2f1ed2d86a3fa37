package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pawnbook/pawnbook/internal/app"
	"github.com/pawnbook/pawnbook/internal/fiscal"
	fiscalhttp "github.com/pawnbook/pawnbook/internal/fiscal/http"
	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/parties"
	"github.com/pawnbook/pawnbook/internal/platform/cache"
	"github.com/pawnbook/pawnbook/internal/platform/db"
	"github.com/pawnbook/pawnbook/internal/pledge"
	"github.com/pawnbook/pawnbook/internal/shared"
	"github.com/pawnbook/pawnbook/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	reportCache := ledger.NewReportCache(redisClient, cfg.ReportCacheTTL, logger)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, ledgerRepo, auditLogger, reportCache)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, reportCache)

	pledgeRepo := pledge.NewRepository(pool)
	pledgeService := pledge.NewService(pledgeRepo, pledgeRepo, auditLogger, reportCache, idempotencyStore)
	pledgeHandler := pledge.NewHandler(logger, pledgeService)

	fiscalRepo := fiscal.NewRepository(pool)
	fiscalService := fiscal.NewService(ledgerRepo, fiscalRepo, auditLogger, reportCache)
	fiscalHandler := fiscalhttp.NewHandler(logger, fiscalService)

	partiesRepo := parties.NewRepository(pool)
	partiesService := parties.NewService(partiesRepo)
	partiesHandler := parties.NewHandler(logger, partiesService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		LedgerHandler:  ledgerHandler,
		PledgeHandler:  pledgeHandler,
		FiscalHandler:  fiscalHandler,
		PartiesHandler: partiesHandler,
		JobHandler:     jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
