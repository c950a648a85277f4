package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/pkg/result"
)

func TestSearch(t *testing.T) {
	f := newFixture(t)
	near := f.cas1Premises("Near")
	far := f.cas1Premises("Far")
	lat, lon := 53.48, -2.24
	far.Latitude, far.Longitude = &lat, &lon
	f.store.PutPremises(far)
	f.store.PutPremises(&domain.Premises{ID: newID(), Name: "Unmapped", Service: domain.ServiceCAS1, ApType: domain.ApTypeNormal, Gender: domain.GenderMale})
	f.store.PutPremises(&domain.Premises{ID: newID(), Name: "Flat", Service: domain.ServiceCAS3, Latitude: near.Latitude, Longitude: near.Longitude})
	svc := NewSearchService(f.deps)

	tests := []struct {
		name   string
		radius int
		want   []string
	}{
		{name: "local only", radius: 10, want: []string{"Near"}},
		{name: "nearest first", radius: 500, want: []string{"Near", "Far"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := svc.Search(f.ctx, SpaceSearch{PostcodeDistrict: "sw1a", RadiusMiles: tt.radius, ApType: domain.ApTypeNormal, Gender: domain.GenderMale})
			require.NoError(t, err)
			require.Equal(t, result.ValidSuccess, out.Kind)
			var names []string
			for _, r := range out.Value {
				names = append(names, r.Premises.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	out, err := svc.Search(f.ctx, SpaceSearch{PostcodeDistrict: "sw1a", RadiusMiles: 500})
	require.NoError(t, err)
	require.Len(t, out.Value, 2)
	assert.Less(t, out.Value[0].DistanceMiles, 5.0)
	assert.InDelta(t, 163, out.Value[1].DistanceMiles, 5)
}

func TestSearch_Validation(t *testing.T) {
	f := newFixture(t)
	out, err := NewSearchService(f.deps).Search(f.ctx, SpaceSearch{PostcodeDistrict: "ZZ9", RadiusMiles: 0})
	require.NoError(t, err)
	require.Equal(t, result.FieldValidationError, out.Kind)
	assert.Equal(t, map[string]string{
		"$.postcodeDistrict": "doesNotExist",
		"$.radius":           "mustBePositive",
	}, map[string]string(out.Fields))
}

func TestDistanceMiles(t *testing.T) {
	assert.InDelta(t, 0, domain.DistanceMiles(51.5, -0.12, 51.5, -0.12), 1e-9)
	// London to Manchester is roughly 163 miles as the crow flies.
	assert.InDelta(t, 163, domain.DistanceMiles(51.5074, -0.1278, 53.4808, -2.2426), 3)
}
