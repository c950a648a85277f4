package service

import (
	"context"
	"fmt"
	"sort"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/repository"
)

// SpaceSearch is the input of SearchService.Search.
type SpaceSearch struct {
	PostcodeDistrict        string
	RadiusMiles             int
	ApType                  domain.ApType
	Gender                  domain.Gender
	RequiredCharacteristics []string
}

// SpaceSearchResult is a candidate premises with its distance.
type SpaceSearchResult struct {
	Premises      domain.Premises
	DistanceMiles float64
}

// SearchService finds CAS1 premises near a postcode district.
type SearchService struct {
	Deps
}

// NewSearchService creates the service.
func NewSearchService(d Deps) *SearchService {
	return &SearchService{Deps: d}
}

// Search returns premises within the radius, nearest first.
func (s *SearchService) Search(ctx context.Context, in SpaceSearch) (result.Validatable[[]SpaceSearchResult], error) {
	errs := result.ValidationErrors{}
	district, err := s.Reference.PostcodeDistrict(ctx, in.PostcodeDistrict)
	if err != nil {
		return result.Validatable[[]SpaceSearchResult]{}, err
	}
	if district == nil {
		errs.Add("$.postcodeDistrict", errDoesNotExist)
	}
	if in.RadiusMiles <= 0 {
		errs.Add("$.radius", errMustBePositive)
	}
	if errs.Any() {
		return result.Fields[[]SpaceSearchResult](errs), nil
	}

	candidates, err := s.Store.SearchPremises(ctx, repository.PremisesSearch{
		Service:         domain.ServiceCAS1,
		ApType:          in.ApType,
		Gender:          in.Gender,
		Characteristics: in.RequiredCharacteristics,
	})
	if err != nil {
		return result.Validatable[[]SpaceSearchResult]{}, fmt.Errorf("search premises: %w", err)
	}

	out := make([]SpaceSearchResult, 0, len(candidates))
	for _, p := range candidates {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		d := domain.DistanceMiles(district.Latitude, district.Longitude, *p.Latitude, *p.Longitude)
		if d > float64(in.RadiusMiles) {
			continue
		}
		out = append(out, SpaceSearchResult{Premises: p, DistanceMiles: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMiles < out[j].DistanceMiles })
	return result.Valid(out), nil
}
