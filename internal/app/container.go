package app

import (
	"context"
	"log"
	"time"

	"city-pulse/internal/config"
	"city-pulse/internal/database"
	dbpostgres "city-pulse/internal/database/postgres"
	"city-pulse/internal/infrastructure/cache"
	"city-pulse/internal/infrastructure/collector"
	"city-pulse/internal/orchestrator"
	"city-pulse/internal/repository"
	"city-pulse/internal/source"
)

// Container holds the shared collaborators every entrypoint needs.
type Container struct {
	Config   config.Config
	DB       database.DB
	Redis    *cache.Redis
	Registry *source.Registry

	JobRuns repository.JobRunRepository
	Locks   repository.LockRepository
	Items   repository.ContentItemRepository

	Orchestrator *orchestrator.Orchestrator

	Log *log.Logger
}

func NewContainer(cfg config.Config, logger *log.Logger) (*Container, error) {
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	redis := cache.NewRedis(logger)
	registry := source.NewRegistry(source.Defaults(), cfg.Orchestrator.ThresholdOverrides)

	jobRuns := repository.NewPostgresJobRunRepository(db, logger)
	locks := repository.NewPostgresLockRepository(db)
	items := repository.NewPostgresContentItemRepository(db)

	trigger := collector.NewClient(cfg.Collector.BaseURL, logger)
	checker := orchestrator.NewChecker(registry, jobRuns, items)
	healer := orchestrator.NewHealer(trigger, jobRuns, checker, cfg.Orchestrator.HealConcurrency, logger)
	scorer := orchestrator.NewScorer(orchestrator.DefaultRuleSets())

	orch := orchestrator.New(registry, checker, healer, scorer, locks, items, jobRuns, orchestrator.Config{
		LockLease:        cfg.Orchestrator.LockLease,
		HealBudget:       cfg.Orchestrator.HealBudget,
		MinSelectedItems: cfg.Orchestrator.MinSelectedItems,
	}, logger)
	orch.SetSnapshotCache(redis)

	return &Container{
		Config:       cfg,
		DB:           db,
		Redis:        redis,
		Registry:     registry,
		JobRuns:      jobRuns,
		Locks:        locks,
		Items:        items,
		Orchestrator: orch,
		Log:          logger,
	}, nil
}

func (c *Container) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
