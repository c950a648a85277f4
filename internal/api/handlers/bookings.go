package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/service"
)

type newBookingRequest struct {
	CRN           string  `json:"crn" binding:"required"`
	NomsNumber    *string `json:"nomsNumber"`
	ArrivalDate   Date    `json:"arrivalDate"`
	DepartureDate Date    `json:"departureDate"`
	BedID         *string `json:"bedId"`
	EventNumber   *string `json:"eventNumber"`
}

type arrivalRequest struct {
	ArrivalDate           Date    `json:"arrivalDate"`
	ExpectedDepartureDate Date    `json:"expectedDepartureDate"`
	Notes                 *string `json:"notes"`
}

type departureRequest struct {
	DateTime         time.Time `json:"dateTime"`
	ReasonID         string    `json:"reasonId"`
	MoveOnCategoryID string    `json:"moveOnCategoryId"`
	Notes            *string   `json:"notes"`
}

type datedReasonRequest struct {
	Date     Date    `json:"date"`
	ReasonID string  `json:"reasonId"`
	Notes    *string `json:"notes"`
}

type notesRequest struct {
	Notes *string `json:"notes"`
}

type extensionRequest struct {
	NewDepartureDate Date    `json:"newDepartureDate"`
	Notes            *string `json:"notes"`
}

type newOutOfServiceBedRequest struct {
	BedID           string  `json:"bedId" binding:"required"`
	StartDate       Date    `json:"startDate"`
	EndDate         Date    `json:"endDate"`
	Reason          string  `json:"reason" binding:"required"`
	ReferenceNumber *string `json:"referenceNumber"`
	Notes           *string `json:"notes"`
}

func bookingViews(list []domain.Booking) ([]BookingView, error) {
	out := make([]BookingView, 0, len(list))
	for i := range list {
		v, err := bookingView(&list[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ListBookings handles GET /premises/{premisesId}/bookings.
func (s *Server) ListBookings(c *gin.Context) {
	premisesID, ok := pathParam(c, "premisesId")
	if !ok {
		return
	}
	a, err := s.bookings.List(c.Request.Context(), currentUser(c), premisesID)
	writeAuthorisableChecked(c, a, err, bookingViews)
}

// GetBooking handles GET /premises/{premisesId}/bookings/{bookingId}.
func (s *Server) GetBooking(c *gin.Context) {
	ids, ok := pathParams(c, "premisesId", "bookingId")
	if !ok {
		return
	}
	a, err := s.bookings.Get(c.Request.Context(), currentUser(c), ids[0], ids[1])
	writeAuthorisableChecked(c, a, err, bookingView)
}

// CreateBooking handles POST /premises/{premisesId}/bookings.
func (s *Server) CreateBooking(c *gin.Context) {
	premisesID, ok := pathParam(c, "premisesId")
	if !ok {
		return
	}
	var req newBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.bookings.Create(c.Request.Context(), currentUser(c), premisesID, service.NewBooking{
		CRN:           req.CRN,
		NomsNumber:    req.NomsNumber,
		ArrivalDate:   req.ArrivalDate.Time,
		DepartureDate: req.DepartureDate.Time,
		BedID:         req.BedID,
		EventNumber:   req.EventNumber,
	})
	writeOutcomeChecked(c, http.StatusOK, o, err, bookingView)
}

// bookingAction binds the booking path and a request body, then renders the
// updated booking.
func bookingAction[R any](c *gin.Context, run func(user *domain.User, premisesID, bookingID string, req R) (service.Outcome[*domain.Booking], error)) {
	ids, ok := pathParams(c, "premisesId", "bookingId")
	if !ok {
		return
	}
	var req R
	if !bindJSON(c, &req) {
		return
	}
	o, err := run(currentUser(c), ids[0], ids[1], req)
	writeOutcomeChecked(c, http.StatusOK, o, err, bookingView)
}

// CreateArrival handles POST .../bookings/{bookingId}/arrivals.
func (s *Server) CreateArrival(c *gin.Context) {
	bookingAction(c, func(u *domain.User, premisesID, bookingID string, req arrivalRequest) (service.Outcome[*domain.Booking], error) {
		return s.bookings.CreateArrival(c.Request.Context(), u, premisesID, bookingID, service.ArrivalInput{
			ArrivalDate:           req.ArrivalDate.Time,
			ExpectedDepartureDate: req.ExpectedDepartureDate.Time,
			Notes:                 req.Notes,
		})
	})
}

// CreateDeparture handles POST .../bookings/{bookingId}/departures.
func (s *Server) CreateDeparture(c *gin.Context) {
	bookingAction(c, func(u *domain.User, premisesID, bookingID string, req departureRequest) (service.Outcome[*domain.Booking], error) {
		return s.bookings.CreateDeparture(c.Request.Context(), u, premisesID, bookingID, service.DepartureInput{
			DateTime:         req.DateTime,
			ReasonID:         req.ReasonID,
			MoveOnCategoryID: req.MoveOnCategoryID,
			Notes:            req.Notes,
		})
	})
}

// CreateNonArrival handles POST .../bookings/{bookingId}/non-arrivals.
func (s *Server) CreateNonArrival(c *gin.Context) {
	bookingAction(c, func(u *domain.User, premisesID, bookingID string, req datedReasonRequest) (service.Outcome[*domain.Booking], error) {
		return s.bookings.CreateNonArrival(c.Request.Context(), u, premisesID, bookingID, service.NonArrivalInput{
			Date:     req.Date.Time,
			ReasonID: req.ReasonID,
			Notes:    req.Notes,
		})
	})
}

// CreateCancellation handles POST .../bookings/{bookingId}/cancellations.
func (s *Server) CreateCancellation(c *gin.Context) {
	bookingAction(c, func(u *domain.User, premisesID, bookingID string, req datedReasonRequest) (service.Outcome[*domain.Booking], error) {
		return s.bookings.CreateCancellation(c.Request.Context(), u, premisesID, bookingID, service.CancellationInput{
			Date:     req.Date.Time,
			ReasonID: req.ReasonID,
			Notes:    req.Notes,
		})
	})
}

// CreateConfirmation handles POST .../bookings/{bookingId}/confirmations.
func (s *Server) CreateConfirmation(c *gin.Context) {
	bookingAction(c, func(u *domain.User, premisesID, bookingID string, req notesRequest) (service.Outcome[*domain.Booking], error) {
		return s.bookings.CreateConfirmation(c.Request.Context(), u, premisesID, bookingID, req.Notes)
	})
}

// CreateExtension handles POST .../bookings/{bookingId}/extensions.
func (s *Server) CreateExtension(c *gin.Context) {
	bookingAction(c, func(u *domain.User, premisesID, bookingID string, req extensionRequest) (service.Outcome[*domain.Booking], error) {
		return s.bookings.CreateExtension(c.Request.Context(), u, premisesID, bookingID, service.ExtensionInput{
			NewDepartureDate: req.NewDepartureDate.Time,
			Notes:            req.Notes,
		})
	})
}

// ListOutOfServiceBeds handles GET /premises/{premisesId}/out-of-service-beds.
func (s *Server) ListOutOfServiceBeds(c *gin.Context) {
	premisesID, ok := pathParam(c, "premisesId")
	if !ok {
		return
	}
	a, err := s.outOfServiceBeds.List(c.Request.Context(), currentUser(c), premisesID)
	writeAuthorisable(c, a, err, outOfServiceBedViews)
}

// CreateOutOfServiceBed handles POST /premises/{premisesId}/out-of-service-beds.
func (s *Server) CreateOutOfServiceBed(c *gin.Context) {
	premisesID, ok := pathParam(c, "premisesId")
	if !ok {
		return
	}
	var req newOutOfServiceBedRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.outOfServiceBeds.Create(c.Request.Context(), currentUser(c), premisesID, service.NewOutOfServiceBed{
		BedID:           req.BedID,
		StartDate:       req.StartDate.Time,
		EndDate:         req.EndDate.Time,
		Reason:          req.Reason,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	})
	writeOutcome(c, http.StatusOK, o, err, outOfServiceBedView)
}

// CancelOutOfServiceBed handles POST .../out-of-service-beds/{id}/cancellation.
func (s *Server) CancelOutOfServiceBed(c *gin.Context) {
	ids, ok := pathParams(c, "premisesId", "id")
	if !ok {
		return
	}
	var req notesRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.outOfServiceBeds.Cancel(c.Request.Context(), currentUser(c), ids[0], ids[1], req.Notes)
	writeOutcome(c, http.StatusOK, o, err, outOfServiceBedView)
}
