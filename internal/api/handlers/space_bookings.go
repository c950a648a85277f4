package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/service"
)

type spaceArrivalRequest struct {
	ArrivalDateTime time.Time `json:"arrivalDateTime"`
}

type spaceDepartureRequest struct {
	DepartureDateTime time.Time `json:"departureDateTime"`
	ReasonID          string    `json:"reasonId"`
	MoveOnCategoryID  string    `json:"moveOnCategoryId"`
	Notes             *string   `json:"notes"`
}

type spaceNonArrivalRequest struct {
	ReasonID string  `json:"reasonId"`
	Notes    *string `json:"notes"`
}

type spaceCancellationRequest struct {
	OccurredAt Date    `json:"occurredAt"`
	ReasonID   string  `json:"reasonId"`
	Notes      *string `json:"notes"`
}

type spaceSearchRequest struct {
	PostcodeDistrict        string        `json:"postcodeDistrict"`
	RadiusMiles             int           `json:"radiusMiles"`
	ApType                  domain.ApType `json:"apType"`
	Gender                  domain.Gender `json:"gender"`
	RequiredCharacteristics []string      `json:"requiredCharacteristics"`
}

// GetSpaceBooking handles GET /cas1/premises/{premisesId}/space-bookings/{bookingId}.
func (s *Server) GetSpaceBooking(c *gin.Context) {
	ids, ok := pathParams(c, "premisesId", "bookingId")
	if !ok {
		return
	}
	a, err := s.spaceBookings.Get(c.Request.Context(), currentUser(c), ids[0], ids[1])
	writeAuthorisableChecked(c, a, err, spaceBookingView)
}

func spaceBookingAction[R any](c *gin.Context, run func(user *domain.User, premisesID, bookingID string, req R) (service.Outcome[*domain.SpaceBooking], error)) {
	ids, ok := pathParams(c, "premisesId", "bookingId")
	if !ok {
		return
	}
	var req R
	if !bindJSON(c, &req) {
		return
	}
	o, err := run(currentUser(c), ids[0], ids[1], req)
	writeOutcomeChecked(c, http.StatusOK, o, err, spaceBookingView)
}

// RecordSpaceArrival handles POST .../space-bookings/{bookingId}/arrival.
func (s *Server) RecordSpaceArrival(c *gin.Context) {
	spaceBookingAction(c, func(u *domain.User, premisesID, bookingID string, req spaceArrivalRequest) (service.Outcome[*domain.SpaceBooking], error) {
		return s.spaceBookings.RecordArrival(c.Request.Context(), u, premisesID, bookingID, req.ArrivalDateTime)
	})
}

// RecordSpaceDeparture handles POST .../space-bookings/{bookingId}/departure.
func (s *Server) RecordSpaceDeparture(c *gin.Context) {
	spaceBookingAction(c, func(u *domain.User, premisesID, bookingID string, req spaceDepartureRequest) (service.Outcome[*domain.SpaceBooking], error) {
		return s.spaceBookings.RecordDeparture(c.Request.Context(), u, premisesID, bookingID, service.SpaceDepartureInput{
			DepartedAt:       req.DepartureDateTime,
			ReasonID:         req.ReasonID,
			MoveOnCategoryID: req.MoveOnCategoryID,
			Notes:            req.Notes,
		})
	})
}

// RecordSpaceNonArrival handles POST .../space-bookings/{bookingId}/non-arrival.
func (s *Server) RecordSpaceNonArrival(c *gin.Context) {
	spaceBookingAction(c, func(u *domain.User, premisesID, bookingID string, req spaceNonArrivalRequest) (service.Outcome[*domain.SpaceBooking], error) {
		return s.spaceBookings.RecordNonArrival(c.Request.Context(), u, premisesID, bookingID, req.ReasonID, req.Notes)
	})
}

// CancelSpaceBooking handles POST .../space-bookings/{bookingId}/cancellations.
func (s *Server) CancelSpaceBooking(c *gin.Context) {
	spaceBookingAction(c, func(u *domain.User, premisesID, bookingID string, req spaceCancellationRequest) (service.Outcome[*domain.SpaceBooking], error) {
		return s.spaceBookings.Cancel(c.Request.Context(), u, premisesID, bookingID, service.CancellationInput{
			Date:     req.OccurredAt.Time,
			ReasonID: req.ReasonID,
			Notes:    req.Notes,
		})
	})
}

// SearchSpaces handles POST /cas1/spaces/search.
func (s *Server) SearchSpaces(c *gin.Context) {
	var req spaceSearchRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := s.search.Search(c.Request.Context(), service.SpaceSearch{
		PostcodeDistrict:        req.PostcodeDistrict,
		RadiusMiles:             req.RadiusMiles,
		ApType:                  req.ApType,
		Gender:                  req.Gender,
		RequiredCharacteristics: req.RequiredCharacteristics,
	})
	writeValidatable(c, http.StatusOK, v, err, searchResultViews)
}
