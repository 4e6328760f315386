package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/praxis-erp/praxis/internal/app"
	"github.com/praxis-erp/praxis/internal/observability"
	"github.com/praxis-erp/praxis/internal/platform/cache"
	"github.com/praxis-erp/praxis/internal/platform/db"
	"github.com/praxis-erp/praxis/internal/wip"
	wiphttp "github.com/praxis-erp/praxis/internal/wip/http"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The engine degrades to always-compute without Redis.
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()

	startMonth, err := cfg.FiscalStartMonth()
	if err != nil {
		logger.Error("fiscal calendar", slog.Any("error", err))
		os.Exit(1)
	}

	source, err := wip.NewLedgerSource(cfg.WIPSourceStrategy, dbpool, cfg.WIPRowCap)
	if err != nil {
		logger.Error("ledger source", slog.Any("error", err))
		os.Exit(1)
	}

	reportCache := wip.NewCache(redisClient, cfg.WIPCacheTTL, logger)
	if err := reportCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	wipService := wip.NewService(wip.ServiceConfig{
		Source:                 source,
		Mapper:                 wip.NewServiceLineMapper(dbpool),
		Directory:              wip.NewDirectory(dbpool),
		Cache:                  reportCache,
		Resolver:               wip.NewPeriodResolver(wip.FiscalCalendar{StartMonth: startMonth}),
		ProductionIncludesDisb: cfg.WIPProductionIncludesDisb,
		Logger:                 logger,
		Metrics:                metrics,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		WIPHandler: wiphttp.NewHandler(logger, wipService),
		Metrics:    metrics,
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
