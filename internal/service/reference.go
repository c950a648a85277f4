package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"approvedpremises.io/cas/internal/cache"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/repository"
)

const unscopedCacheKey = "all"

// ReferenceDataService serves lookup lists through the cache and answers
// existence checks for validation.
type ReferenceDataService struct {
	repo    repository.ReferenceDataRepository
	cache   cache.ReferenceCache
	metrics *metrics.Metrics
}

// NewReferenceDataService creates the service. A nil cache disables caching.
func NewReferenceDataService(repo repository.ReferenceDataRepository, c cache.ReferenceCache, m *metrics.Metrics) *ReferenceDataService {
	if c == nil {
		c = cache.Nop{}
	}
	return &ReferenceDataService{repo: repo, cache: c, metrics: m}
}

// List returns the active rows of kind that apply to service. Kinds without
// a service scope ignore service.
func (s *ReferenceDataService) List(ctx context.Context, kind domain.ReferenceKind, service domain.ServiceName) ([]domain.ReferenceData, error) {
	key := unscopedCacheKey
	if kind.Scoped() {
		key = string(service)
	}
	if rows, hit := s.cache.Get(ctx, kind, key); hit {
		s.metrics.CacheLookup(string(kind), "hit")
		return rows, nil
	}
	s.metrics.CacheLookup(string(kind), "miss")

	all, err := s.repo.ListReferenceData(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	rows := make([]domain.ReferenceData, 0, len(all))
	for _, r := range all {
		if !r.IsActive {
			continue
		}
		if kind.Scoped() && service != "" && !domain.InScope(r.ServiceScope, service) {
			continue
		}
		rows = append(rows, r)
	}
	s.cache.Set(ctx, kind, key, rows)
	return rows, nil
}

// Exists reports whether a row of kind with id exists.
func (s *ReferenceDataService) Exists(ctx context.Context, kind domain.ReferenceKind, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	_, err := s.repo.GetReferenceData(ctx, kind, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up %s %s: %w", kind, id, err)
	}
	return true, nil
}

// PostcodeDistrict returns the district for outcode, or nil if unknown.
func (s *ReferenceDataService) PostcodeDistrict(ctx context.Context, outcode string) (*domain.PostcodeDistrict, error) {
	outcode = strings.ToUpper(strings.TrimSpace(outcode))
	if outcode == "" {
		return nil, nil
	}
	d, err := lookup(s.repo.GetPostcodeDistrict(ctx, outcode))
	if err != nil {
		return nil, fmt.Errorf("look up postcode district %s: %w", outcode, err)
	}
	return d, nil
}

// Invalidate drops cached lists of kind after a seed run.
func (s *ReferenceDataService) Invalidate(ctx context.Context, kind domain.ReferenceKind) error {
	return s.cache.Invalidate(ctx, kind)
}
