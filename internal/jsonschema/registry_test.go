package jsonschema

import (
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestLoadBuiltin(t *testing.T) {
	r, err := LoadBuiltin()
	require.NoError(t, err)

	for _, typ := range []Type{
		TypeApprovedPremisesApplication,
		TypeTemporaryAccommodationApplication,
		TypeCas2Application,
		TypeApprovedPremisesAssessment,
		TypeTemporaryAccommodationAssessment,
		TypePlacementApplication,
	} {
		d, err := r.NewestFor(typ)
		require.NoError(t, err, typ)
		assert.Equal(t, typ, d.Type)
		assert.False(t, r.IsOutdated(typ, d.ID))
	}
}

func TestRegistry_IsOutdated(t *testing.T) {
	old := &Document{ID: "old", Type: TypeCas2Application, AddedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Schema: openapi3.NewObjectSchema()}
	cur := &Document{ID: "new", Type: TypeCas2Application, AddedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Schema: openapi3.NewObjectSchema()}
	r := NewRegistry(cur, old)

	assert.True(t, r.IsOutdated(TypeCas2Application, "old"))
	assert.False(t, r.IsOutdated(TypeCas2Application, "new"))
	assert.True(t, r.IsOutdated(TypeApprovedPremisesAssessment, "new"))
}

func TestRegistry_Validate(t *testing.T) {
	doc, err := ParseDocument([]byte(`
id: s1
type: approved-premises-assessment
addedAt: 2026-01-01T00:00:00Z
schema:
  type: object
  required: [decision]
  properties:
    decision:
      type: string
`))
	require.NoError(t, err)
	r := NewRegistry(doc)

	tests := []struct {
		name string
		data *string
		want string
	}{
		{"nil", nil, ErrorEmpty},
		{"blank", str("  "), ErrorEmpty},
		{"empty object", str("{}"), ErrorEmpty},
		{"not json", str("{"), ErrorInvalid},
		{"wrong shape", str(`{"decision": 3}`), ErrorInvalid},
		{"missing required", str(`{"other": "x"}`), ErrorInvalid},
		{"valid", str(`{"decision": "accept"}`), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Validate("s1", tt.data))
		})
	}

	assert.Equal(t, ErrorInvalid, r.Validate("unknown", str(`{"decision":"x"}`)))
}

func TestParseDocument_RequiresIDAndType(t *testing.T) {
	_, err := ParseDocument([]byte("schema:\n  type: object\n"))
	require.Error(t, err)
}
