// Package handlers implements the CAS HTTP API on gin.
//
// Handlers bind and validate the request shape, call one service operation
// and render its result. Failures are recorded with c.Error and rendered as
// problem documents by middleware.ErrorHandler.
//
// Import Path: approvedpremises.io/cas/internal/api/handlers
package handlers

import (
	"context"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/pkg/worker"
	"approvedpremises.io/cas/internal/seed"
	"approvedpremises.io/cas/internal/service"
)

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the services behind every route.
type Server struct {
	pinger                Pinger
	schemas               *jsonschema.Registry
	reference             *service.ReferenceDataService
	applications          *service.ApplicationService
	assessments           *service.AssessmentService
	placementRequests     *service.PlacementRequestService
	placementApplications *service.PlacementApplicationService
	bookings              *service.BookingService
	outOfServiceBeds      *service.OutOfServiceBedService
	spaceBookings         *service.SpaceBookingService
	search                *service.SearchService
	cas2                  *service.Cas2Service
	events                *service.EventService
	seeds                 *seed.Runner
	pools                 *worker.Pools
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Pinger  Pinger
	Service service.Deps
	Seeds   *seed.Runner
	Pools   *worker.Pools
}

// NewServer builds every service over one set of shared dependencies.
func NewServer(deps ServerDeps) *Server {
	d := deps.Service
	return &Server{
		pinger:                deps.Pinger,
		schemas:               d.Schemas,
		reference:             d.Reference,
		applications:          service.NewApplicationService(d),
		assessments:           service.NewAssessmentService(d),
		placementRequests:     service.NewPlacementRequestService(d),
		placementApplications: service.NewPlacementApplicationService(d),
		bookings:              service.NewBookingService(d),
		outOfServiceBeds:      service.NewOutOfServiceBedService(d),
		spaceBookings:         service.NewSpaceBookingService(d),
		search:                service.NewSearchService(d),
		cas2:                  service.NewCas2Service(d),
		events:                service.NewEventService(d),
		seeds:                 deps.Seeds,
		pools:                 deps.Pools,
	}
}

// Cas2 exposes the referral service to the inbound allocation consumer.
func (s *Server) Cas2() *service.Cas2Service { return s.cas2 }

func (s *Server) schemaOutdated(a *domain.Application) bool {
	t := jsonschema.TypeApprovedPremisesApplication
	if a.Service == domain.ServiceCAS3 {
		t = jsonschema.TypeTemporaryAccommodationApplication
	}
	return s.schemas.IsOutdated(t, a.SchemaVersion)
}
