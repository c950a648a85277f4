package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"approvedpremises.io/cas/internal/api/handlers"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/jobs"
	"approvedpremises.io/cas/internal/messaging"
	"approvedpremises.io/cas/internal/notification"
)

// CaseManagementModule owns the workflow collaborators shared by every
// service: the domain event emitter, email triggers and their workers.
type CaseManagementModule struct {
	infra     *Infrastructure
	emitter   *events.Emitter
	triggers  *notification.Triggers
	sender    notification.Sender
	publisher messaging.Publisher
}

// NewCaseManagementModule builds the module. publisher may be nil when
// domain events are not published.
func NewCaseManagementModule(infra *Infrastructure, publisher messaging.Publisher) (*CaseManagementModule, error) {
	cfg := infra.Config
	emitter, err := events.NewEmitter(cfg.DomainEvents, publisher != nil, infra.Metrics)
	if err != nil {
		return nil, fmt.Errorf("init domain event emitter: %w", err)
	}
	return &CaseManagementModule{
		infra:     infra,
		emitter:   emitter,
		triggers:  notification.NewTriggers(cfg.Notify),
		sender:    notification.NewSender(cfg.Notify),
		publisher: publisher,
	}, nil
}

func (m *CaseManagementModule) Name() string { return "case-management" }

func (m *CaseManagementModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	deps.Service.Events = m.emitter
	deps.Service.Emails = m.triggers
}

func (m *CaseManagementModule) RegisterWorkers(workers *river.Workers) {
	cfg := m.infra.Config
	jobs.Register(workers, jobs.Deps{
		Store:         m.infra.DB.Store,
		Publisher:     m.publisher,
		DetailURLBase: cfg.DomainEvents.DetailURLBase,
		Sender:        m.sender,
		Metrics:       m.infra.Metrics,
		AbandonAfter:  cfg.CAS2.AbandonAfter,
	})
}

func (m *CaseManagementModule) Shutdown(context.Context) error { return nil }
