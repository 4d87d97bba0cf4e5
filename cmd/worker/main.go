package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/approvisionnement/internal/app"
	"github.com/odyssey-erp/approvisionnement/internal/catalog"
	"github.com/odyssey-erp/approvisionnement/internal/procurement"
	"github.com/odyssey-erp/approvisionnement/jobs"
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

	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("open backends", slog.Any("error", err))
		os.Exit(1)
	}
	defer backends.Close()

	blobStore, err := app.OpenBlobStore(ctx, cfg)
	if err != nil {
		logger.Error("open export store", slog.Any("error", err))
		os.Exit(1)
	}

	service := procurement.NewService(backends.Store, backends.Catalog, procurement.WithLogger(logger))
	exportJob := jobs.NewRecordsExportJob(service, blobStore, logger, nil)

	warmer := backends.Cache
	if warmer == nil {
		warmer = catalog.NewCachedCatalog(backends.Catalog, nil, cfg.CatalogCacheTTL)
	}
	warmupJob := jobs.NewCatalogWarmupJob(warmer, logger, nil)

	warmupTask, err := jobs.NewCatalogWarmupTask(false)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	exportTask, err := jobs.NewRecordsExportTask(jobs.RecordsExportPayload{Format: procurement.FormatCSV})
	if err != nil {
		logger.Error("build export task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.CatalogWarmupCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.CatalogWarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}
	if cfg.ExportCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.ExportCron, Task: exportTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	redisOpts, err := app.QueueRedis(cfg)
	if err != nil {
		logger.Error("queue redis options", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCatalogWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskRecordsExport, Handler: exportJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
