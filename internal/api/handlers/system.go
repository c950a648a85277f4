package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/api/middleware"
	"approvedpremises.io/cas/internal/domain"
	apperrors "approvedpremises.io/cas/internal/pkg/errors"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/pkg/worker"
	"approvedpremises.io/cas/internal/seed"
)

// Health handles GET /health.
func (s *Server) Health(c *gin.Context) {
	checks := map[string]string{"database": "ok"}
	status, code := "UP", http.StatusOK
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request.Context()); err != nil {
			logger.FromContext(c.Request.Context()).Warn("database ping failed", zap.Error(err))
			checks["database"] = "error"
			status, code = "DOWN", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

// GetProfile handles GET /profile.
func (s *Server) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, userView(currentUser(c)))
}

// ListReferenceData handles GET /reference-data/{kind}. Scoped kinds are
// filtered by X-Service-Name when one is sent.
func (s *Server) ListReferenceData(c *gin.Context) {
	raw, ok := pathParam(c, "kind")
	if !ok {
		return
	}
	kind, ok := domain.ParseReferenceKind(raw)
	if !ok {
		fail(c, apperrors.NotFound("ReferenceData", raw))
		return
	}
	rows, err := s.reference.List(c.Request.Context(), kind, middleware.GetServiceName(c))
	if err != nil {
		fail(c, err)
		return
	}
	if rows == nil {
		rows = []domain.ReferenceData{}
	}
	c.JSON(http.StatusOK, rows)
}

// GetEvent handles GET /events/{eventId}, the detail URL target of
// published notifications.
func (s *Server) GetEvent(c *gin.Context) {
	id, ok := pathParam(c, "eventId")
	if !ok {
		return
	}
	ev, err := s.events.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if ev == nil {
		fail(c, apperrors.NotFound("DomainEvent", id))
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(ev.Data))
}

type seedRequest struct {
	SeedType string `json:"seedType" binding:"required"`
	FileName string `json:"fileName" binding:"required"`
}

// RunSeed handles POST /seed. The job runs on the seed pool; the response
// only confirms it was accepted.
func (s *Server) RunSeed(c *gin.Context) {
	var req seedRequest
	if !bindJSON(c, &req) {
		return
	}
	seedType, ok := seed.ParseType(req.SeedType)
	if !ok {
		fail(c, apperrors.FieldValidation(map[string]string{"$.seedType": "invalid"}))
		return
	}
	err := s.seeds.RunDetached(s.pools, seedType, req.FileName)
	switch {
	case err == nil:
		logger.FromContext(c.Request.Context()).Info("Seed job accepted",
			zap.String("seed_type", string(seedType)),
			zap.String("file", req.FileName),
		)
		c.Status(http.StatusAccepted)
	case errors.Is(err, seed.ErrInvalidFileName):
		fail(c, apperrors.FieldValidation(map[string]string{"$.fileName": "invalid"}))
	case errors.Is(err, worker.ErrPoolClosed):
		fail(c, apperrors.BadRequest(apperrors.CodeSeedRequestRejected, "The seed pool is not accepting jobs"))
	default:
		fail(c, apperrors.BadRequest(apperrors.CodeSeedRequestRejected, err.Error()))
	}
}
