package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/api/middleware"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/service"
)

type newApplicationRequest struct {
	CRN                    string        `json:"crn" binding:"required"`
	NomsNumber             *string       `json:"nomsNumber"`
	ApType                 domain.ApType `json:"apType"`
	IsWomensApplication    bool          `json:"isWomensApplication"`
	IsEmergencyApplication bool          `json:"isEmergencyApplication"`
	ReleaseType            string        `json:"releaseType"`
	TargetLocation         string        `json:"targetLocation"`
	ArrivalDate            *Date         `json:"arrivalDate"`
	ProbationRegionID      string        `json:"probationRegionId"`
}

type updateDataRequest struct {
	Data json.RawMessage `json:"data" binding:"required"`
}

type applicationSubmissionRequest struct {
	TranslatedDocument     json.RawMessage `json:"translatedDocument" binding:"required"`
	ApType                 domain.ApType   `json:"apType"`
	IsWomensApplication    bool            `json:"isWomensApplication"`
	IsEmergencyApplication bool            `json:"isEmergencyApplication"`
	ReleaseType            string          `json:"releaseType"`
	TargetLocation         string          `json:"targetLocation"`
	ArrivalDate            *Date           `json:"arrivalDate"`
	IsDutyToReferSubmitted bool            `json:"isDutyToReferSubmitted"`
}

type withdrawalRequest struct {
	Reason      string  `json:"reason" binding:"required"`
	OtherReason *string `json:"otherReason"`
}

// ListApplications handles GET /applications.
func (s *Server) ListApplications(c *gin.Context) {
	list, err := s.applications.ListForUser(c.Request.Context(), currentUser(c), middleware.GetServiceName(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.applicationViews(list))
}

// CreateApplication handles POST /applications.
func (s *Server) CreateApplication(c *gin.Context) {
	var req newApplicationRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := s.applications.Create(c.Request.Context(), currentUser(c), service.NewApplication{
		Service:             middleware.GetServiceName(c),
		CRN:                 req.CRN,
		NomsNumber:          req.NomsNumber,
		ApType:              req.ApType,
		IsWomensApplication: req.IsWomensApplication,
		IsEmergency:         req.IsEmergencyApplication,
		ReleaseType:         req.ReleaseType,
		TargetLocation:      req.TargetLocation,
		ArrivalDate:         timeOf(req.ArrivalDate),
		ProbationRegionID:   req.ProbationRegionID,
	})
	writeValidatable(c, http.StatusCreated, v, err, s.applicationView)
}

// GetApplication handles GET /applications/{applicationId}.
func (s *Server) GetApplication(c *gin.Context) {
	id, ok := pathParam(c, "applicationId")
	if !ok {
		return
	}
	a, err := s.applications.GetForUser(c.Request.Context(), currentUser(c), id)
	writeAuthorisable(c, a, err, s.applicationView)
}

// UpdateApplication handles PUT /applications/{applicationId}.
func (s *Server) UpdateApplication(c *gin.Context) {
	id, ok := pathParam(c, "applicationId")
	if !ok {
		return
	}
	var req updateDataRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.applications.Update(c.Request.Context(), currentUser(c), id, jsonString(req.Data))
	writeOutcome(c, http.StatusOK, o, err, s.applicationView)
}

// SubmitApplication handles POST /applications/{applicationId}/submission.
func (s *Server) SubmitApplication(c *gin.Context) {
	id, ok := pathParam(c, "applicationId")
	if !ok {
		return
	}
	var req applicationSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.applications.Submit(c.Request.Context(), currentUser(c), id, service.ApplicationSubmission{
		Document:               jsonString(req.TranslatedDocument),
		ApType:                 req.ApType,
		IsWomensApplication:    req.IsWomensApplication,
		IsEmergency:            req.IsEmergencyApplication,
		ReleaseType:            req.ReleaseType,
		TargetLocation:         req.TargetLocation,
		ArrivalDate:            timeOf(req.ArrivalDate),
		IsDutyToReferSubmitted: req.IsDutyToReferSubmitted,
	})
	writeOutcome(c, http.StatusOK, o, err, s.applicationView)
}

// WithdrawApplication handles POST /applications/{applicationId}/withdrawal.
func (s *Server) WithdrawApplication(c *gin.Context) {
	id, ok := pathParam(c, "applicationId")
	if !ok {
		return
	}
	var req withdrawalRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.applications.Withdraw(c.Request.Context(), currentUser(c), id, req.Reason, req.OtherReason)
	writeOutcome(c, http.StatusOK, o, err, s.applicationView)
}
