package modules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/cache"
	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/infrastructure"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/pkg/worker"
	"approvedpremises.io/cas/internal/service"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config      *config.Config
	DB          *infrastructure.DatabaseClients
	Pools       *worker.Pools
	Metrics     *metrics.Metrics
	Schemas     *jsonschema.Registry
	Redis       *redis.Client
	Reference   *service.ReferenceDataService
	RiverClient *river.Client[pgx.Tx]
}

// NewInfrastructure opens the database, worker pools and caches.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		SeedPoolSize:    cfg.Worker.SeedPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	infra := &Infrastructure{
		Config:  cfg,
		DB:      db,
		Pools:   pools,
		Metrics: metrics.New(),
	}

	infra.Schemas, err = jsonschema.LoadBuiltin()
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("load json schemas: %w", err)
	}

	var refCache cache.ReferenceCache = cache.Nop{}
	infra.Redis, err = cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	if infra.Redis != nil {
		refCache = cache.NewRedis(infra.Redis, cfg.Redis.TTL)
		logger.Info("Reference data cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}
	infra.Reference = service.NewReferenceDataService(db.Reference, refCache, infra.Metrics)

	return infra, nil
}

// InitRiver initializes River client on top of a prepared worker registry.
func (i *Infrastructure) InitRiver(workers *river.Workers, periodic []*river.PeriodicJob) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if err := i.DB.InitRiverClient(workers, periodic, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			logger.Warn("Close redis client failed", zap.Error(err))
		}
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
