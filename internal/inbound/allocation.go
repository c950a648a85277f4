// Package inbound handles events published by other probation services.
//
// Import Path: approvedpremises.io/cas/internal/inbound
package inbound

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/service"
)

// AllocationChangedType is the event type of a POM allocation change.
const AllocationChangedType = "offender-management.allocation.changed"

var errMalformed = errors.New("malformed allocation message")

// AllocationRecorder is implemented by service.Cas2Service.
type AllocationRecorder interface {
	RecordAllocationChange(ctx context.Context, c service.AllocationChange) (bool, error)
}

// AllocationHandler turns allocation-changed messages into CAS2 assignments.
type AllocationHandler struct {
	recorder AllocationRecorder
	metrics  *metrics.Metrics
}

// NewAllocationHandler creates the handler. m may be nil.
func NewAllocationHandler(r AllocationRecorder, m *metrics.Metrics) *AllocationHandler {
	return &AllocationHandler{recorder: r, metrics: m}
}

// HandleEvent records one allocation change. Payload problems wrap
// errMalformed; a NOMS number with no CAS2 application is not an error.
func (h *AllocationHandler) HandleEvent(ctx context.Context, ev *domain.EventNotification) error {
	log := logger.FromContext(ctx)

	change, err := parseAllocation(ev)
	if err != nil {
		h.metrics.InboundMessage(AllocationChangedType, "malformed")
		return err
	}

	recorded, err := h.recorder.RecordAllocationChange(ctx, change)
	if err != nil {
		log.Error("Inbound allocation change failed", zap.String("noms_number", change.NomsNumber), zap.Error(err))
		h.metrics.InboundMessage(AllocationChangedType, "error")
		return err
	}
	if !recorded {
		log.Debug("No CAS2 application for allocation change", zap.String("noms_number", change.NomsNumber))
		h.metrics.InboundMessage(AllocationChangedType, "ignored")
		return nil
	}
	h.metrics.InboundMessage(AllocationChangedType, "recorded")
	return nil
}

func parseAllocation(ev *domain.EventNotification) (service.AllocationChange, error) {
	if ev.EventType != AllocationChangedType {
		return service.AllocationChange{}, errors.Join(errMalformed, errors.New("unexpected event type "+ev.EventType))
	}
	var noms string
	for _, id := range ev.PersonReference.Identifiers {
		if strings.EqualFold(id.Type, "NOMS") {
			noms = strings.TrimSpace(id.Value)
			break
		}
	}
	prison := infoString(ev.AdditionalInformation, "prisonId")
	if noms == "" || prison == "" {
		return service.AllocationChange{}, errors.Join(errMalformed, errors.New("missing NOMS number or prison"))
	}
	return service.AllocationChange{
		NomsNumber:  noms,
		PrisonCode:  prison,
		PomUsername: infoString(ev.AdditionalInformation, "pomUsername"),
	}, nil
}

func infoString(info map[string]any, key string) string {
	s, _ := info[key].(string)
	return strings.TrimSpace(s)
}
