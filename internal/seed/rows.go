package seed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"approvedpremises.io/cas/internal/domain"
)

// record is one CSV data row addressed by header name.
type record struct {
	row    int
	cols   map[string]int
	fields []string
}

func (r record) str(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r record) optional(name string) *string {
	if v := r.str(name); v != "" {
		return &v
	}
	return nil
}

func (r record) list(name string) []string {
	raw := r.str(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ";") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// boolean defaults to true when the column is absent or blank.
func (r record) boolean(name string) (bool, error) {
	raw := r.str(name)
	if raw == "" {
		return true, nil
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return false, fmt.Errorf("%w: row %d: column %s: %q is not a boolean", ErrStructural, r.row, name, raw)
	}
	return v, nil
}

func (r record) float(name string) (*float64, error) {
	raw := r.str(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: row %d: column %s: %q is not a number", ErrStructural, r.row, name, raw)
	}
	return &v, nil
}

// applyFunc writes one row. A non-empty message is a row error; an error
// aborts the run.
type applyFunc func(ctx context.Context, w Writer, r record, now time.Time) (string, error)

type job struct {
	required []string
	// kind is the cached reference list the job replaces, if any.
	kind  domain.ReferenceKind
	apply applyFunc
}

var jobs = map[Type]job{
	TypeCharacteristics: {
		required: []string{"id", "name", "service_scope", "model_scope", "property_name"},
		kind:     domain.KindCharacteristics,
		apply:    referenceRow(domain.KindCharacteristics),
	},
	TypeCancellationReasons: {
		required: []string{"id", "name", "service_scope"},
		kind:     domain.KindCancellationReasons,
		apply:    referenceRow(domain.KindCancellationReasons),
	},
	TypeDepartureReasons: {
		required: []string{"id", "name", "service_scope"},
		kind:     domain.KindDepartureReasons,
		apply:    referenceRow(domain.KindDepartureReasons),
	},
	TypeMoveOnCategories: {
		required: []string{"id", "name", "service_scope"},
		kind:     domain.KindMoveOnCategories,
		apply:    referenceRow(domain.KindMoveOnCategories),
	},
	TypeNonArrivalReasons: {
		required: []string{"id", "name"},
		kind:     domain.KindNonArrivalReasons,
		apply:    referenceRow(domain.KindNonArrivalReasons),
	},
	TypeProbationRegions: {
		required: []string{"id", "name", "delius_code"},
		kind:     domain.KindProbationRegions,
		apply:    referenceRow(domain.KindProbationRegions),
	},
	TypePostcodeDistricts: {
		required: []string{"outcode", "latitude", "longitude"},
		apply:    postcodeDistrictRow,
	},
	TypeUsers: {
		required: []string{"delius_username", "name", "email", "roles"},
		apply:    userRow,
	},
	TypeApprovedPremises: {
		required: []string{"id", "name", "ap_code", "probation_region_id", "postcode", "latitude", "longitude", "ap_type", "gender"},
		apply:    premisesRow,
	},
	TypeBeds: {
		required: []string{"id", "premises_id", "name", "code"},
		apply:    bedRow,
	},
}

func validScope(scope string) bool {
	if scope == domain.ScopeAll {
		return true
	}
	_, ok := domain.ParseServiceName(scope)
	return ok
}

func referenceRow(kind domain.ReferenceKind) applyFunc {
	return func(ctx context.Context, w Writer, r record, _ time.Time) (string, error) {
		active, err := r.boolean("is_active")
		if err != nil {
			return "", err
		}
		row := domain.ReferenceData{
			Kind:             kind,
			ID:               r.str("id"),
			Name:             r.str("name"),
			ServiceScope:     r.str("service_scope"),
			ModelScope:       r.str("model_scope"),
			PropertyName:     r.str("property_name"),
			LegacyDeliusCode: r.str("delius_code"),
			IsActive:         active,
		}
		switch {
		case row.ID == "":
			return "id is required", nil
		case row.Name == "":
			return "name is required", nil
		case kind.Scoped() && !validScope(row.ServiceScope):
			return fmt.Sprintf("service_scope %q is not a service", row.ServiceScope), nil
		case kind == domain.KindCharacteristics && row.ModelScope != domain.ModelScopePremises &&
			row.ModelScope != domain.ModelScopeRoom && row.ModelScope != domain.ScopeAll:
			return fmt.Sprintf("model_scope %q is not premises, room or *", row.ModelScope), nil
		}
		return "", w.UpsertReferenceData(ctx, row)
	}
}

func postcodeDistrictRow(ctx context.Context, w Writer, r record, _ time.Time) (string, error) {
	lat, err := r.float("latitude")
	if err != nil {
		return "", err
	}
	lon, err := r.float("longitude")
	if err != nil {
		return "", err
	}
	outcode := strings.ToUpper(r.str("outcode"))
	switch {
	case outcode == "":
		return "outcode is required", nil
	case lat == nil || lon == nil:
		return "latitude and longitude are required", nil
	}
	id := r.str("id")
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	return "", w.UpsertPostcodeDistrict(ctx, domain.PostcodeDistrict{ID: id, Outcode: outcode, Latitude: *lat, Longitude: *lon})
}

func userRow(ctx context.Context, w Writer, r record, now time.Time) (string, error) {
	u := domain.User{
		ID:                uuid.Must(uuid.NewV7()).String(),
		DeliusUsername:    strings.ToUpper(r.str("delius_username")),
		Name:              r.str("name"),
		Email:             r.str("email"),
		ProbationRegionID: r.optional("probation_region_id"),
		PrisonCode:        r.optional("prison_code"),
		CreatedAt:         now,
	}
	if u.DeliusUsername == "" {
		return "delius_username is required", nil
	}
	for _, raw := range r.list("roles") {
		role, ok := domain.ParseUserRole(strings.ToUpper(raw))
		if !ok {
			return fmt.Sprintf("role %q is not recognised", raw), nil
		}
		u.Roles = append(u.Roles, role)
	}
	return "", w.UpsertUser(ctx, u)
}

func premisesRow(ctx context.Context, w Writer, r record, _ time.Time) (string, error) {
	lat, err := r.float("latitude")
	if err != nil {
		return "", err
	}
	lon, err := r.float("longitude")
	if err != nil {
		return "", err
	}
	p := domain.Premises{
		ID:                r.str("id"),
		Name:              r.str("name"),
		Service:           domain.ServiceCAS1,
		ProbationRegionID: r.str("probation_region_id"),
		Postcode:          strings.ToUpper(r.str("postcode")),
		Latitude:          lat,
		Longitude:         lon,
		ApCode:            r.str("ap_code"),
		ApType:            domain.ApType(r.str("ap_type")),
		Gender:            domain.Gender(strings.ToLower(r.str("gender"))),
		Characteristics:   r.list("characteristics"),
		Status:            "active",
	}
	if s := r.str("status"); s != "" {
		p.Status = s
	}
	switch {
	case p.ID == "" || p.Name == "":
		return "id and name are required", nil
	case p.ProbationRegionID == "":
		return "probation_region_id is required", nil
	case !knownApType(p.ApType):
		return fmt.Sprintf("ap_type %q is not recognised", p.ApType), nil
	case p.Gender != domain.GenderMale && p.Gender != domain.GenderFemale:
		return fmt.Sprintf("gender %q is not male or female", p.Gender), nil
	}
	return "", w.UpsertPremises(ctx, p)
}

func knownApType(t domain.ApType) bool {
	switch t {
	case domain.ApTypeNormal, domain.ApTypePIPE, domain.ApTypeESAP, domain.ApTypeRFAP, domain.ApTypeMHAP:
		return true
	}
	return false
}

func bedRow(ctx context.Context, w Writer, r record, _ time.Time) (string, error) {
	b := domain.Bed{
		ID:              r.str("id"),
		PremisesID:      r.str("premises_id"),
		Name:            r.str("name"),
		Code:            r.str("code"),
		Characteristics: r.list("characteristics"),
	}
	if raw := r.str("end_date"); raw != "" {
		end, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return "", fmt.Errorf("%w: row %d: column end_date: %q is not a date", ErrStructural, r.row, raw)
		}
		b.EndDate = &end
	}
	if b.ID == "" || b.Code == "" {
		return "id and code are required", nil
	}
	exists, err := w.PremisesExists(ctx, b.PremisesID)
	if err != nil {
		return "", err
	}
	if !exists {
		return fmt.Sprintf("premises %q does not exist", b.PremisesID), nil
	}
	return "", w.UpsertBed(ctx, b)
}
