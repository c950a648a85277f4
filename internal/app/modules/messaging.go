package modules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/api/handlers"
	"approvedpremises.io/cas/internal/inbound"
	"approvedpremises.io/cas/internal/messaging"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/pkg/worker"
)

// MessagingModule owns the broker connections: the domain event publisher
// and the inbound allocation consumer.
type MessagingModule struct {
	infra     *Infrastructure
	publisher *messaging.AMQPPublisher

	mu       sync.Mutex
	consumer *messaging.Consumer
}

// NewMessagingModule dials the broker for whichever directions are enabled.
// With no broker URL it is inert.
func NewMessagingModule(infra *Infrastructure) (*MessagingModule, error) {
	cfg := infra.Config.Messaging
	m := &MessagingModule{infra: infra}
	if !cfg.Enabled() {
		return m, nil
	}

	if infra.Config.DomainEvents.PublishEnabled {
		p, err := messaging.NewPublisher(cfg.URL, cfg.DomainExchange)
		if err != nil {
			return nil, fmt.Errorf("init domain event publisher: %w", err)
		}
		m.publisher = p
	}

	if cfg.InboundQueue != "" {
		c, err := messaging.NewConsumer(cfg.URL, cfg.InboundExchange, cfg.InboundQueue, cfg.InboundKeys)
		if err != nil {
			_ = m.Shutdown(context.Background())
			return nil, fmt.Errorf("init inbound consumer: %w", err)
		}
		m.consumer = c
	}
	return m, nil
}

// Publisher returns the domain event publisher, or nil when publishing is off.
func (m *MessagingModule) Publisher() messaging.Publisher {
	if m.publisher == nil {
		return nil
	}
	return m.publisher
}

func (m *MessagingModule) Name() string { return "messaging" }

func (m *MessagingModule) ContributeServerDeps(*handlers.ServerDeps) {}

func (m *MessagingModule) RegisterWorkers(*river.Workers) {}

// Start runs the inbound consumer on the general pool until ctx ends.
func (m *MessagingModule) Start(ctx context.Context, server *handlers.Server) error {
	if m.currentConsumer() == nil {
		return nil
	}
	router := inbound.NewRouter(m.infra.Metrics)
	router.Register(inbound.AllocationChangedType, inbound.NewAllocationHandler(server.Cas2(), m.infra.Metrics).HandleEvent)
	backoff := m.infra.Config.Messaging.ReconnectBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return m.infra.Pools.SubmitDetached(worker.PoolGeneral, func(poolCtx context.Context) {
		runCtx, cancel := mergeDone(ctx, poolCtx)
		defer cancel()
		for {
			err := m.currentConsumer().Run(runCtx, router.Handle)
			if err == nil || runCtx.Err() != nil {
				logger.Info("Inbound consumer stopped")
				return
			}
			logger.Error("Inbound consumer failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-runCtx.Done():
				return
			case <-time.After(backoff):
			}
			if err := m.reconnect(); err != nil {
				logger.Error("Inbound consumer reconnect failed", zap.Error(err))
			}
		}
	})
}

func (m *MessagingModule) currentConsumer() *messaging.Consumer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumer
}

func (m *MessagingModule) reconnect() error {
	cfg := m.infra.Config.Messaging
	c, err := messaging.NewConsumer(cfg.URL, cfg.InboundExchange, cfg.InboundQueue, cfg.InboundKeys)
	if err != nil {
		return err
	}
	m.mu.Lock()
	old := m.consumer
	m.consumer = c
	m.mu.Unlock()
	_ = old.Close()
	return nil
}

func (m *MessagingModule) Shutdown(context.Context) error {
	var errs []error
	if c := m.currentConsumer(); c != nil {
		errs = append(errs, c.Close())
	}
	if m.publisher != nil {
		errs = append(errs, m.publisher.Close())
	}
	return errors.Join(errs...)
}

// mergeDone returns a context cancelled when either parent is done.
func mergeDone(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
