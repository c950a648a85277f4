package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	for _, path := range []string{
		"/health",
		"/applications/{applicationId}/submission",
		"/premises/{premisesId}/bookings/{bookingId}/confirmations",
		"/cas1/spaces/search",
		"/cas2/assessments/{assessmentId}/status-updates",
		"/seed",
	} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
	health := doc.Paths.Find("/health").Get
	require.NotNil(t, health.Security)
	assert.Empty(t, *health.Security)
}
