// Package worker provides goroutine pool management.
//
// Background work goes through a pool with context propagation; handlers and
// services never start naked goroutines.
//
// Import Path: approvedpremises.io/cas/internal/pkg/worker
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/pkg/logger"
)

// Pool names accepted by SubmitDetached.
const (
	PoolGeneral = "general"
	PoolSeed    = "seed"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
type Pools struct {
	General *Pool
	// Seed runs CSV seed files; kept small because each run holds one
	// database transaction open for the whole file.
	Seed *Pool

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	GeneralPoolSize int
	SeedPoolSize    int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize: 100,
		SeedPoolSize:    2,
	}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	generalAnts, err := ants.NewPool(cfg.GeneralPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	seedAnts, err := ants.NewPool(cfg.SeedPoolSize,
		ants.WithPanicHandler(panicHandler),
		// A busy seed pool rejects instead of queueing so the admin endpoint
		// can report it.
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(time.Minute),
	)
	if err != nil {
		generalAnts.Release()
		serviceCancel()
		return nil, err
	}

	return &Pools{
		General:       &Pool{pool: generalAnts, name: PoolGeneral},
		Seed:          &Pool{pool: seedAnts, name: PoolSeed},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task.
// If ctx is already cancelled, returns ctx.Err() without submitting.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
	return translateErr(err)
}

// SubmitDetached submits a task that outlives the request which started it
// but still stops at graceful shutdown.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	pool := p.General
	if poolName == PoolSeed {
		pool = p.Seed
	}

	err := pool.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("Detached task skipped: service shutting down",
				zap.String("pool", pool.name),
			)
			return
		default:
		}
		task(p.serviceCtx)
	})
	return translateErr(err)
}

func translateErr(err error) error {
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Shutdown cancels detached work then waits up to 30s for running tasks.
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.General.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("General pool shutdown timeout", zap.Error(err))
	}
	if err := p.Seed.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("Seed pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool occupancy for the health endpoint.
func (p *Pools) Metrics() map[string]map[string]int {
	stats := func(pl *Pool) map[string]int {
		return map[string]int{
			"running": pl.pool.Running(),
			"free":    pl.pool.Free(),
			"cap":     pl.pool.Cap(),
		}
	}
	return map[string]map[string]int{
		PoolGeneral: stats(p.General),
		PoolSeed:    stats(p.Seed),
	}
}
