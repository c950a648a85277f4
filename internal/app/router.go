package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/api/handlers"
	"approvedpremises.io/cas/internal/api/middleware"
	"approvedpremises.io/cas/internal/api/openapi"
	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/metrics"
)

// defaultCORSOrigins are the local UI origins allowed when none are configured.
var defaultCORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

type routerDeps struct {
	Config  *config.Config
	Server  *handlers.Server
	JWT     middleware.JWTConfig
	Users   middleware.UserResolver
	Metrics *metrics.Metrics
}

// newRouter mounts /health and /metrics unauthenticated and every API route
// behind JWT and the OpenAPI request validator.
func newRouter(d routerDeps) (*gin.Engine, error) {
	doc, err := openapi.Load()
	if err != nil {
		return nil, err
	}
	validator, err := middleware.NewOpenAPIValidator(doc, middleware.ValidatorOptions{
		ValidateResponses: d.Config.Server.ValidateResponses,
	})
	if err != nil {
		return nil, fmt.Errorf("init openapi validator: %w", err)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.ErrorHandler(),
		middleware.RequestMetrics(d.Metrics),
		cors.New(buildCORSConfig(d.Config)),
	)

	router.GET("/health", d.Server.Health)
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := router.Group("")
	api.Use(middleware.JWTAuth(d.JWT, d.Users), validator)
	handlers.RegisterHandlers(api, d.Server)
	return router, nil
}

// buildCORSConfig allows the configured origins. A "*" entry allows every
// origin and drops credentials, which browsers refuse to combine.
func buildCORSConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.ServiceNameHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	origins := make([]string, 0, len(cfg.Server.CORSAllowedOrigins))
	for _, o := range cfg.Server.CORSAllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	c.AllowOrigins = origins
	return c
}
