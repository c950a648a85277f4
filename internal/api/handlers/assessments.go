package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/api/middleware"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/service"
)

type requirementsRequest struct {
	Gender            domain.Gender `json:"gender"`
	ApType            domain.ApType `json:"apType"`
	PostcodeDistrict  string        `json:"postcodeDistrict"`
	Radius            int           `json:"radius"`
	EssentialCriteria []string      `json:"essentialCriteria"`
	DesirableCriteria []string      `json:"desirableCriteria"`
}

type placementDateRequest struct {
	ExpectedArrival Date `json:"expectedArrival"`
	Duration        int  `json:"duration"`
}

func (p placementDateRequest) domain() domain.PlacementDate {
	return domain.PlacementDate{ExpectedArrival: p.ExpectedArrival.Time, Duration: p.Duration}
}

type acceptanceRequest struct {
	Document       json.RawMessage       `json:"document" binding:"required"`
	Requirements   requirementsRequest   `json:"requirements"`
	PlacementDates *placementDateRequest `json:"placementDates"`
	Notes          *string               `json:"notes"`
}

type rejectionRequest struct {
	Document           json.RawMessage `json:"document" binding:"required"`
	RejectionRationale string          `json:"rejectionRationale" binding:"required"`
}

type allocationRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type newNoteRequest struct {
	Query string `json:"query" binding:"required"`
}

type noteResponseRequest struct {
	Response           string `json:"response" binding:"required"`
	ResponseReceivedOn Date   `json:"responseReceivedOn"`
}

type referralStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListAssessments handles GET /assessments.
func (s *Server) ListAssessments(c *gin.Context) {
	list, err := s.assessments.ListForUser(c.Request.Context(), currentUser(c), middleware.GetServiceName(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assessmentViews(list))
}

// GetAssessment handles GET /assessments/{assessmentId}.
func (s *Server) GetAssessment(c *gin.Context) {
	id, ok := pathParam(c, "assessmentId")
	if !ok {
		return
	}
	a, err := s.assessments.GetForUser(c.Request.Context(), currentUser(c), id)
	writeAuthorisable(c, a, err, assessmentView)
}

// UpdateAssessment handles PUT /assessments/{assessmentId}.
func (s *Server) UpdateAssessment(c *gin.Context) {
	id, ok := pathParam(c, "assessmentId")
	if !ok {
		return
	}
	var req updateDataRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.assessments.Update(c.Request.Context(), currentUser(c), id, jsonString(req.Data))
	writeOutcome(c, http.StatusOK, o, err, assessmentView)
}

// AcceptAssessment handles POST /assessments/{assessmentId}/acceptance.
func (s *Server) AcceptAssessment(c *gin.Context) {
	id, ok := pathParam(c, "assessmentId")
	if !ok {
		return
	}
	var req acceptanceRequest
	if !bindJSON(c, &req) {
		return
	}
	in := service.AssessmentAcceptance{
		Data: jsonString(req.Document),
		Requirements: service.RequirementsInput{
			Gender:            req.Requirements.Gender,
			ApType:            req.Requirements.ApType,
			PostcodeDistrict:  req.Requirements.PostcodeDistrict,
			Radius:            req.Requirements.Radius,
			EssentialCriteria: req.Requirements.EssentialCriteria,
			DesirableCriteria: req.Requirements.DesirableCriteria,
		},
		Notes: req.Notes,
	}
	if req.PlacementDates != nil {
		d := req.PlacementDates.domain()
		in.PlacementDates = &d
	}
	o, err := s.assessments.Accept(c.Request.Context(), currentUser(c), id, in)
	writeOutcome(c, http.StatusOK, o, err, assessmentView)
}

// RejectAssessment handles POST /assessments/{assessmentId}/rejection.
func (s *Server) RejectAssessment(c *gin.Context) {
	id, ok := pathParam(c, "assessmentId")
	if !ok {
		return
	}
	var req rejectionRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.assessments.Reject(c.Request.Context(), currentUser(c), id, jsonString(req.Document), req.RejectionRationale)
	writeOutcome(c, http.StatusOK, o, err, assessmentView)
}

// ReallocateAssessment handles POST /assessments/{assessmentId}/allocation.
func (s *Server) ReallocateAssessment(c *gin.Context) {
	id, ok := pathParam(c, "assessmentId")
	if !ok {
		return
	}
	var req allocationRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.assessments.Reallocate(c.Request.Context(), currentUser(c), id, req.UserID)
	writeOutcome(c, http.StatusCreated, o, err, assessmentView)
}

// AddClarificationNote handles POST /assessments/{assessmentId}/notes.
func (s *Server) AddClarificationNote(c *gin.Context) {
	id, ok := pathParam(c, "assessmentId")
	if !ok {
		return
	}
	var req newNoteRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.assessments.AddClarificationNote(c.Request.Context(), currentUser(c), id, req.Query)
	writeOutcome(c, http.StatusOK, o, err, clarificationNoteView)
}

// UpdateClarificationNote handles PUT /assessments/{assessmentId}/notes/{noteId}.
func (s *Server) UpdateClarificationNote(c *gin.Context) {
	ids, ok := pathParams(c, "assessmentId", "noteId")
	if !ok {
		return
	}
	var req noteResponseRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.assessments.UpdateClarificationNote(c.Request.Context(), currentUser(c), ids[0], ids[1], req.Response, req.ResponseReceivedOn.Time)
	writeOutcome(c, http.StatusOK, o, err, clarificationNoteView)
}

// UpdateReferralStatus handles POST /assessments/{assessmentId}/status-updates.
func (s *Server) UpdateReferralStatus(c *gin.Context) {
	id, ok := pathParam(c, "assessmentId")
	if !ok {
		return
	}
	var req referralStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.assessments.UpdateReferralStatus(c.Request.Context(), currentUser(c), id, req.Status)
	writeOutcome(c, http.StatusOK, o, err, assessmentView)
}
