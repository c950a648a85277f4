package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/service"
)

type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type spaceBookingRequest struct {
	PremisesID    string `json:"premisesId" binding:"required"`
	ArrivalDate   Date   `json:"arrivalDate"`
	DepartureDate Date   `json:"departureDate"`
}

type newPlacementApplicationRequest struct {
	ApplicationID string `json:"applicationId" binding:"required"`
}

type placementApplicationSubmissionRequest struct {
	Data               json.RawMessage        `json:"data"`
	TranslatedDocument json.RawMessage        `json:"translatedDocument" binding:"required"`
	PlacementType      string                 `json:"placementType" binding:"required"`
	PlacementDates     []placementDateRequest `json:"placementDates"`
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

// GetPlacementRequest handles GET /placement-requests/{id}.
func (s *Server) GetPlacementRequest(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	a, err := s.placementRequests.GetForUser(c.Request.Context(), currentUser(c), id)
	writeAuthorisable(c, a, err, placementRequestView)
}

// WithdrawPlacementRequest handles POST /placement-requests/{id}/withdrawal.
func (s *Server) WithdrawPlacementRequest(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.placementRequests.Withdraw(c.Request.Context(), currentUser(c), id, req.Reason)
	writeOutcome(c, http.StatusOK, o, err, placementRequestView)
}

// BookPlacementRequest handles POST /placement-requests/{id}/booking.
func (s *Server) BookPlacementRequest(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req spaceBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.placementRequests.CreateSpaceBooking(c.Request.Context(), currentUser(c), id, service.NewSpaceBooking{
		PremisesID:    req.PremisesID,
		ArrivalDate:   req.ArrivalDate.Time,
		DepartureDate: req.DepartureDate.Time,
	})
	writeOutcomeChecked(c, http.StatusCreated, o, err, spaceBookingView)
}

// CreatePlacementApplication handles POST /placement-applications.
func (s *Server) CreatePlacementApplication(c *gin.Context) {
	var req newPlacementApplicationRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.placementApplications.Create(c.Request.Context(), currentUser(c), req.ApplicationID)
	writeOutcome(c, http.StatusOK, o, err, placementApplicationView)
}

// UpdatePlacementApplication handles PUT /placement-applications/{id}.
func (s *Server) UpdatePlacementApplication(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req updateDataRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.placementApplications.Update(c.Request.Context(), currentUser(c), id, jsonString(req.Data))
	writeOutcome(c, http.StatusOK, o, err, placementApplicationView)
}

// SubmitPlacementApplication handles POST /placement-applications/{id}/submission.
func (s *Server) SubmitPlacementApplication(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req placementApplicationSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	dates := make([]domain.PlacementDate, 0, len(req.PlacementDates))
	for _, d := range req.PlacementDates {
		dates = append(dates, d.domain())
	}
	o, err := s.placementApplications.Submit(c.Request.Context(), currentUser(c), id, service.PlacementApplicationSubmission{
		Data:          jsonString(req.Data),
		Document:      jsonString(req.TranslatedDocument),
		PlacementType: req.PlacementType,
		Dates:         dates,
	})
	writeOutcome(c, http.StatusOK, o, err, placementApplicationView)
}

// DecidePlacementApplication handles POST /placement-applications/{id}/decision.
func (s *Server) DecidePlacementApplication(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req decisionRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.placementApplications.RecordDecision(c.Request.Context(), currentUser(c), id, req.Decision)
	writeOutcome(c, http.StatusOK, o, err, placementApplicationView)
}

// WithdrawPlacementApplication handles POST /placement-applications/{id}/withdraw.
func (s *Server) WithdrawPlacementApplication(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.placementApplications.Withdraw(c.Request.Context(), currentUser(c), id, req.Reason)
	writeOutcome(c, http.StatusOK, o, err, placementApplicationView)
}
