package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/handler"
	"github.com/noah-isme/eleven-api/internal/repository"
	"github.com/noah-isme/eleven-api/internal/service"
	"github.com/noah-isme/eleven-api/pkg/cache"
	"github.com/noah-isme/eleven-api/pkg/config"
	"github.com/noah-isme/eleven-api/pkg/database"
	"github.com/noah-isme/eleven-api/pkg/export"
	"github.com/noah-isme/eleven-api/pkg/jobs"
	"github.com/noah-isme/eleven-api/pkg/logger"
	"github.com/noah-isme/eleven-api/pkg/signing"
	"github.com/noah-isme/eleven-api/pkg/worker"
)

const poolReleaseTimeout = 10 * time.Second

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client
	pool   *worker.Pool
	queue  *jobs.Queue

	metrics    *service.MetricsService
	tokens     *service.TokenService
	workOrders *service.WorkOrderService
	generation *service.GenerationService
	billing    *service.BillingService
	kpis       *service.KPIService
	exports    *service.ExportService
	buildings  *service.BuildingService
	clients    *service.ClientService
	portal     *service.PortalService
	ranking    *service.RankingService
}

// bootstrap wires configuration, storage and services. When syncRanking is set the
// client ranking is recomputed inline instead of through the background queue.
func bootstrap(syncRanking bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if cfg.Migrations.AutoApply {
		if err := database.MigrateUp(cfg.Database); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logr.Info("migrations applied")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		redisClient = nil
	}

	pool, err := worker.New("work-order-generation", cfg.WorkOrders.GenerationConcurrency, logr)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	a := &app{cfg: cfg, logger: logr, db: db, redis: redisClient, pool: pool}
	a.wire(syncRanking)
	return a, nil
}

func (a *app) wire(syncRanking bool) {
	cfg := a.cfg
	validate := validator.New()

	workOrderRepo := repository.NewWorkOrderRepository(a.db)
	buildingRepo := repository.NewBuildingRepository(a.db)
	clientRepo := repository.NewClientRepository(a.db)

	a.metrics = service.NewMetricsService()
	a.tokens = service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	var cacheRepo service.CacheRepository
	cacheEnabled := cfg.Dashboard.CacheEnabled && a.redis != nil
	if a.redis != nil {
		cacheRepo = repository.NewCacheRepository(a.redis, a.logger)
	}
	cacheSvc := service.NewCacheService(cacheRepo, a.metrics, cfg.Dashboard.CacheTTL, a.logger, cacheEnabled)

	a.ranking = service.NewRankingService(clientRepo, a.metrics, a.logger)
	var notifier service.RankingNotifier
	if syncRanking {
		notifier = service.NewSyncRankingNotifier(a.ranking, a.logger)
	} else {
		a.queue = jobs.NewQueue("client-rankings", service.RankingJobHandler(a.ranking), jobs.QueueConfig{
			Workers:    cfg.WorkOrders.RankingWorkers,
			MaxRetries: cfg.WorkOrders.RankingRetries,
			RetryDelay: cfg.WorkOrders.RankingRetryDelay,
			Logger:     a.logger,
		})
		notifier = service.NewQueuedRankingNotifier(a.queue, a.logger)
	}

	signer := signing.NewPortalLinkSigner(cfg.Portal.LinkSecret, cfg.Portal.LinkTTL)

	a.kpis = service.NewKPIService(workOrderRepo, cacheSvc, cfg.Dashboard.CacheTTL, a.logger)
	a.workOrders = service.NewWorkOrderService(service.WorkOrderServiceParams{
		Repo:      workOrderRepo,
		Buildings: buildingRepo,
		KPIs:      a.kpis,
		Metrics:   a.metrics,
		Validator: validate,
		Logger:    a.logger,
	})
	a.generation = service.NewGenerationService(service.GenerationServiceParams{
		Buildings: buildingRepo,
		Orders:    workOrderRepo,
		Pool:      a.pool,
		Notifier:  notifier,
		KPIs:      a.kpis,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	a.billing = service.NewBillingService(workOrderRepo, a.kpis, a.metrics, validate, a.logger)
	a.exports = service.NewExportService(workOrderRepo, export.NewCSVExporter(), export.NewPDFExporter(), a.logger)
	a.buildings = service.NewBuildingService(service.BuildingServiceParams{
		Repo:          buildingRepo,
		Clients:       clientRepo,
		Notifier:      notifier,
		Signer:        signer,
		PortalBaseURL: cfg.Portal.BaseURL,
		Validator:     validate,
		Logger:        a.logger,
	})
	a.clients = service.NewClientService(service.ClientServiceParams{
		Repo:      clientRepo,
		Buildings: buildingRepo,
		Ranking:   a.ranking,
		Notifier:  notifier,
		Validator: validate,
		Logger:    a.logger,
	})
	a.portal = service.NewPortalService(service.PortalServiceParams{
		Buildings:  buildingRepo,
		Orders:     workOrderRepo,
		WorkOrders: a.workOrders,
		Verifier:   signer,
		Logger:     a.logger,
	})
}

// readiness returns the dependency probes used by /ready.
func (a *app) readiness() map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": a.db.PingContext,
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return checks
}

func (a *app) close() {
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.pool != nil {
		a.pool.Release(poolReleaseTimeout)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close postgres", zap.Error(err))
	}
	_ = a.logger.Sync()
}
