package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
)

type mapCache struct {
	rows        map[string][]domain.ReferenceData
	invalidated []domain.ReferenceKind
}

func (c *mapCache) Get(_ context.Context, kind domain.ReferenceKind, scope string) ([]domain.ReferenceData, bool) {
	rows, ok := c.rows[string(kind)+"/"+scope]
	return rows, ok
}

func (c *mapCache) Set(_ context.Context, kind domain.ReferenceKind, scope string, rows []domain.ReferenceData) {
	c.rows[string(kind)+"/"+scope] = rows
}

func (c *mapCache) Invalidate(_ context.Context, kind domain.ReferenceKind) error {
	c.invalidated = append(c.invalidated, kind)
	for k := range c.rows {
		if strings.HasPrefix(k, string(kind)+"/") {
			delete(c.rows, k)
		}
	}
	return nil
}

func TestReferenceDataService_List(t *testing.T) {
	f := newFixture(t)
	f.store.PutReference(domain.ReferenceData{Kind: domain.KindCharacteristics, ID: "isCAS3Only", Name: "Shared", ServiceScope: string(domain.ServiceCAS3), IsActive: true})
	f.store.PutReference(domain.ReferenceData{Kind: domain.KindCharacteristics, ID: "retired", Name: "Retired", ServiceScope: domain.ScopeAll})
	c := &mapCache{rows: map[string][]domain.ReferenceData{}}
	svc := NewReferenceDataService(f.store, c, nil)

	cas1, err := svc.List(f.ctx, domain.KindCharacteristics, domain.ServiceCAS1)
	require.NoError(t, err)
	assert.Equal(t, []string{"isIAP"}, ids(cas1))

	cas3, err := svc.List(f.ctx, domain.KindCharacteristics, domain.ServiceCAS3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"isIAP", "isCAS3Only"}, ids(cas3))

	// Cached rows are served until the kind is invalidated.
	f.store.PutReference(domain.ReferenceData{Kind: domain.KindCharacteristics, ID: "late", Name: "Late", ServiceScope: domain.ScopeAll, IsActive: true})
	cached, err := svc.List(f.ctx, domain.KindCharacteristics, domain.ServiceCAS1)
	require.NoError(t, err)
	assert.Equal(t, []string{"isIAP"}, ids(cached))

	require.NoError(t, svc.Invalidate(f.ctx, domain.KindCharacteristics))
	fresh, err := svc.List(f.ctx, domain.KindCharacteristics, domain.ServiceCAS1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"isIAP", "late"}, ids(fresh))
	assert.Equal(t, []domain.ReferenceKind{domain.KindCharacteristics}, c.invalidated)

	unscoped, err := svc.List(f.ctx, domain.KindNonArrivalReasons, domain.ServiceCAS3)
	require.NoError(t, err)
	assert.Equal(t, []string{"non-arrival-1"}, ids(unscoped))
}

func TestReferenceDataService_Lookups(t *testing.T) {
	f := newFixture(t)
	svc := f.deps.Reference

	found, err := svc.Exists(f.ctx, domain.KindCancellationReasons, "cancel-1")
	require.NoError(t, err)
	assert.True(t, found)
	found, err = svc.Exists(f.ctx, domain.KindCancellationReasons, " ")
	require.NoError(t, err)
	assert.False(t, found)

	d, err := svc.PostcodeDistrict(f.ctx, " sw1a ")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "district-sw1a", d.ID)
	none, err := svc.PostcodeDistrict(f.ctx, "ZZ9")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUserService_GetUserForRequest(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.deps)

	first, err := svc.GetUserForRequest(f.ctx, Principal{Username: "jane.doe", Name: "Jane Doe", Email: "jane@cas.test"})
	require.NoError(t, err)
	assert.Equal(t, "JANE.DOE", first.DeliusUsername)
	assert.Empty(t, first.Roles)

	again, err := svc.GetUserForRequest(f.ctx, Principal{Username: "JANE.DOE"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = svc.GetUserForRequest(f.ctx, Principal{})
	require.Error(t, err)
}

func ids(rows []domain.ReferenceData) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
