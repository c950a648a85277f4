package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/service"
)

type newCas2ApplicationRequest struct {
	CRN        string `json:"crn" binding:"required"`
	NomsNumber string `json:"nomsNumber" binding:"required"`
}

type cas2SubmissionRequest struct {
	ApplicationID          string          `json:"applicationId" binding:"required"`
	TranslatedDocument     json.RawMessage `json:"translatedDocument" binding:"required"`
	PreferredAreas         *string         `json:"preferredAreas"`
	HDCEligibilityDate     *Date           `json:"hdcEligibilityDate"`
	ConditionalReleaseDate *Date           `json:"conditionalReleaseDate"`
	TelephoneNumber        *string         `json:"telephoneNumber"`
}

type cas2StatusUpdateRequest struct {
	NewStatus string `json:"newStatus" binding:"required"`
}

// ListCas2Applications handles GET /cas2/applications. ?scope=prison lists
// the referrals of the caller's prison.
func (s *Server) ListCas2Applications(c *gin.Context) {
	list, err := s.cas2.ListForUser(c.Request.Context(), currentUser(c), c.Query("scope") == "prison")
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]Cas2ApplicationView, 0, len(list))
	for i := range list {
		out = append(out, s.cas2ApplicationView(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// CreateCas2Application handles POST /cas2/applications.
func (s *Server) CreateCas2Application(c *gin.Context) {
	var req newCas2ApplicationRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := s.cas2.Create(c.Request.Context(), currentUser(c), req.CRN, req.NomsNumber)
	writeValidatable(c, http.StatusCreated, v, err, s.cas2ApplicationView)
}

// GetCas2Application handles GET /cas2/applications/{id}. The view carries
// the assessor status updates.
func (s *Server) GetCas2Application(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	a, err := s.cas2.GetForUser(c.Request.Context(), currentUser(c), id)
	writeAuthorisableChecked(c, a, err, func(app *domain.Cas2Application) (Cas2ApplicationView, error) {
		v := s.cas2ApplicationView(app)
		updates, err := s.cas2.StatusUpdates(c.Request.Context(), app.ID)
		if err != nil {
			return v, err
		}
		views := make([]Cas2StatusUpdateView, 0, len(updates))
		for i := range updates {
			views = append(views, cas2StatusUpdateView(&updates[i]))
		}
		v.StatusUpdates = &views
		return v, nil
	})
}

// UpdateCas2Application handles PUT /cas2/applications/{id}.
func (s *Server) UpdateCas2Application(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req updateDataRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.cas2.Update(c.Request.Context(), currentUser(c), id, jsonString(req.Data))
	writeOutcome(c, http.StatusOK, o, err, s.cas2ApplicationView)
}

// AbandonCas2Application handles POST /cas2/applications/{id}/abandon.
func (s *Server) AbandonCas2Application(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	o, err := s.cas2.Abandon(c.Request.Context(), currentUser(c), id)
	writeOutcome(c, http.StatusOK, o, err, s.cas2ApplicationView)
}

// SubmitCas2Application handles POST /cas2/submissions.
func (s *Server) SubmitCas2Application(c *gin.Context) {
	var req cas2SubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.cas2.Submit(c.Request.Context(), currentUser(c), service.Cas2Submission{
		ApplicationID:          req.ApplicationID,
		Document:               jsonString(req.TranslatedDocument),
		PreferredAreas:         req.PreferredAreas,
		HDCEligibilityDate:     timeOf(req.HDCEligibilityDate),
		ConditionalReleaseDate: timeOf(req.ConditionalReleaseDate),
		TelephoneNumber:        req.TelephoneNumber,
	})
	writeOutcome(c, http.StatusOK, o, err, s.cas2ApplicationView)
}

// CreateCas2StatusUpdate handles POST /cas2/assessments/{assessmentId}/status-updates.
func (s *Server) CreateCas2StatusUpdate(c *gin.Context) {
	id, ok := pathParam(c, "assessmentId")
	if !ok {
		return
	}
	var req cas2StatusUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.cas2.CreateStatusUpdate(c.Request.Context(), currentUser(c), id, req.NewStatus)
	writeOutcome(c, http.StatusCreated, o, err, cas2StatusUpdateView)
}
