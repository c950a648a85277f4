// Package app is the composition root; bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"approvedpremises.io/cas/internal/api/handlers"
	"approvedpremises.io/cas/internal/app/modules"
	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/infrastructure"
	"approvedpremises.io/cas/internal/jobs"
	"approvedpremises.io/cas/internal/pkg/worker"
	"approvedpremises.io/cas/internal/service"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	Server  *handlers.Server
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Infra   *modules.Infrastructure
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	msg, err := modules.NewMessagingModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init messaging module: %w", err)
	}
	cases, err := modules.NewCaseManagementModule(infra, msg.Publisher())
	if err != nil {
		_ = msg.Shutdown(ctx)
		infra.Close()
		return nil, fmt.Errorf("init case management module: %w", err)
	}
	allModules := []modules.Module{msg, cases}

	workers := river.NewWorkers()
	for _, mod := range allModules {
		mod.RegisterWorkers(workers)
	}
	if err := infra.InitRiver(workers, jobs.PeriodicJobs()); err != nil {
		_ = msg.Shutdown(ctx)
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}

	serverDeps := modules.NewServerDeps(cfg, infra, allModules)
	server := handlers.NewServer(serverDeps)

	router, err := newRouter(routerDeps{
		Config:  cfg,
		Server:  server,
		JWT:     modules.NewJWTConfig(cfg.Security),
		Users:   service.NewUserService(serverDeps.Service),
		Metrics: infra.Metrics,
	})
	if err != nil {
		_ = msg.Shutdown(ctx)
		infra.Close()
		return nil, fmt.Errorf("init router: %w", err)
	}

	return &Application{
		Config:  cfg,
		Router:  router,
		Server:  server,
		DB:      infra.DB,
		Pools:   infra.Pools,
		Infra:   infra,
		Modules: allModules,
	}, nil
}
