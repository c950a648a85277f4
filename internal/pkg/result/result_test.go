package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorisableConstructors(t *testing.T) {
	ok := Success(42)
	require.True(t, ok.IsSuccess())
	assert.Equal(t, 42, ok.Value)

	nf := NotFound[int]("Assessment", "a-1")
	assert.Equal(t, AuthNotFound, nf.Kind)
	assert.Equal(t, "Assessment", nf.EntityType)
	assert.Equal(t, "a-1", nf.ID)
	assert.False(t, nf.IsSuccess())

	un := Unauthorised[string]()
	assert.Equal(t, AuthUnauthorised, un.Kind)
	assert.Equal(t, "Unauthorised", un.Kind.String())
}

func TestValidatableConstructors(t *testing.T) {
	tests := []struct {
		name string
		v    Validatable[string]
		kind ValidKind
	}{
		{"success", Valid("x"), ValidSuccess},
		{"general", General[string]("The schema version is outdated"), GeneralValidationError},
		{"fields", Fields[string](map[string]string{"$.data": "invalid"}), FieldValidationError},
		{"conflict", Conflict[string]("b-1", "overlap"), ConflictError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind)
			assert.Equal(t, tt.kind == ValidSuccess, tt.v.IsSuccess())
		})
	}
}

func TestValidationErrors_FirstErrorWins(t *testing.T) {
	errs := ValidationErrors{}
	assert.False(t, errs.Any())

	errs.Add("$.data", "empty")
	errs.Add("$.data", "invalid")
	require.True(t, errs.Any())
	assert.Equal(t, "empty", errs["$.data"])
}

func TestRecast(t *testing.T) {
	in := Conflict[int]("b-9", "overlap")
	out := Recast[string](in)
	assert.Equal(t, ConflictError, out.Kind)
	assert.Equal(t, "b-9", out.ConflictingID)
	assert.Equal(t, "overlap", out.Message)

	assert.Panics(t, func() { Recast[string](Valid(1)) })
}

func TestNested(t *testing.T) {
	r := Nested(General[int]("A decision has already been taken on this assessment"))
	require.True(t, r.IsSuccess())
	assert.Equal(t, GeneralValidationError, r.Value.Kind)
}
