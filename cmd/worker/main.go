package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/praxis-erp/praxis/internal/app"
	"github.com/praxis-erp/praxis/internal/platform/db"
	"github.com/praxis-erp/praxis/internal/wip"
	"github.com/praxis-erp/praxis/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	startMonth, err := cfg.FiscalStartMonth()
	if err != nil {
		logger.Error("fiscal calendar", slog.Any("error", err))
		os.Exit(1)
	}
	source, err := wip.NewLedgerSource(cfg.WIPSourceStrategy, pool, cfg.WIPRowCap)
	if err != nil {
		logger.Error("ledger source", slog.Any("error", err))
		os.Exit(1)
	}
	wipService := wip.NewService(wip.ServiceConfig{
		Source:                 source,
		Mapper:                 wip.NewServiceLineMapper(pool),
		Directory:              wip.NewDirectory(pool),
		Cache:                  wip.NewCache(redisClient, cfg.WIPCacheTTL, logger),
		Resolver:               wip.NewPeriodResolver(wip.FiscalCalendar{StartMonth: startMonth}),
		ProductionIncludesDisb: cfg.WIPProductionIncludesDisb,
		Logger:                 logger,
	})

	warmupJob := jobs.NewWIPWarmupJob(wipService, pool, logger, nil)
	warmupTask, err := jobs.NewWIPWarmupTask(cfg.WIPWarmupLookbackDays)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskWIPCacheWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WIPWarmupCron, Task: warmupTask},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
