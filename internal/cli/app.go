package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sjperalta/fintera-cuotas/internal/config"
	"github.com/sjperalta/fintera-cuotas/internal/database"
	"github.com/sjperalta/fintera-cuotas/internal/integrations"
	"github.com/sjperalta/fintera-cuotas/internal/jobs"
	"github.com/sjperalta/fintera-cuotas/internal/repository"
	"github.com/sjperalta/fintera-cuotas/internal/services"
	"github.com/sjperalta/fintera-cuotas/pkg/logger"
	"gorm.io/gorm"
)

// app is the wiring shared by commands that touch the database
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	rdb    *redis.Client
	worker *jobs.Worker
	svcs   *services.Services
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)
	return cfg, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	rdb := integrations.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	deps := services.Dependencies{
		Catalog: integrations.NewCachedCatalog(
			integrations.NewCatalogClient(cfg.CatalogBaseURL, cfg.CatalogToken, cfg.HTTPTimeout),
			rdb,
			cfg.CatalogCacheTTL,
		),
		Ledger:    integrations.NewLedgerClient(cfg.LedgerBaseURL, cfg.LedgerToken, cfg.HTTPTimeout),
		Authority: integrations.NewAuthorityClient(cfg.AuthorityBaseURL, cfg.AuthorityToken, cfg.HTTPTimeout),
	}

	worker := jobs.NewWorker(1)
	return &app{
		cfg:    cfg,
		db:     db,
		rdb:    rdb,
		worker: worker,
		svcs:   services.NewServices(repository.NewRepositories(db), worker, deps, cfg),
	}, nil
}

func (a *app) Close() {
	a.worker.Shutdown()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := database.Close(a.db); err != nil {
		logger.Error("Failed to close database", "error", err)
	}
}
