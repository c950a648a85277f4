package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"approvedpremises.io/cas/internal/metrics"
)

func TestRequestMetrics(t *testing.T) {
	m := metrics.New()
	router := gin.New()
	router.Use(RequestMetrics(m))
	router.GET("/applications/:applicationId", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	serve(router, http.MethodGet, "/applications/a-1")
	serve(router, http.MethodGet, "/applications/a-2")
	serve(router, http.MethodGet, "/nowhere")

	// One series for the route template, one for unmatched paths.
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDurations))
}

func TestRequestMetrics_NilMetrics(t *testing.T) {
	router := gin.New()
	router.Use(RequestMetrics(nil))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ok").Code)
}
