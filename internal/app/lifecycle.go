package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/app/modules"
	"approvedpremises.io/cas/internal/pkg/logger"
)

// Start starts River and every module background loop.
func (a *Application) Start(ctx context.Context) error {
	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("River client started, jobs will now be consumed")
	}
	for _, mod := range a.Modules {
		starter, ok := mod.(modules.Starter)
		if !ok {
			continue
		}
		if err := starter.Start(ctx, a.Server); err != nil {
			return fmt.Errorf("start module %s: %w", mod.Name(), err)
		}
		logger.Info("Module started", zap.String("module", mod.Name()))
	}
	return nil
}

// Shutdown gracefully shuts down all application components.
func (a *Application) Shutdown() {
	shutdownCtx := context.Background()

	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		}
		logger.Info("River client stopped")
	}

	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(shutdownCtx); err != nil {
			logger.Warn("module shutdown returned error",
				zap.String("module", mod.Name()),
				zap.Error(err),
			)
		}
	}

	if a.Infra != nil {
		a.Infra.Close()
		return
	}
	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
