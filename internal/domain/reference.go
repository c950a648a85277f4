package domain

// ReferenceKind names a reference-data list.
type ReferenceKind string

const (
	KindCharacteristics     ReferenceKind = "characteristics"
	KindCancellationReasons ReferenceKind = "cancellation-reasons"
	KindDepartureReasons    ReferenceKind = "departure-reasons"
	KindMoveOnCategories    ReferenceKind = "move-on-categories"
	KindNonArrivalReasons   ReferenceKind = "non-arrival-reasons"
	KindProbationRegions    ReferenceKind = "probation-regions"
)

// ReferenceKinds lists the kinds served by GET /reference-data/{kind}.
var ReferenceKinds = []ReferenceKind{
	KindCharacteristics,
	KindCancellationReasons,
	KindDepartureReasons,
	KindMoveOnCategories,
	KindNonArrivalReasons,
	KindProbationRegions,
}

// ParseReferenceKind validates a path value.
func ParseReferenceKind(raw string) (ReferenceKind, bool) {
	for _, k := range ReferenceKinds {
		if string(k) == raw {
			return k, true
		}
	}
	return "", false
}

// Scoped reports whether rows of this kind carry a service scope.
func (k ReferenceKind) Scoped() bool {
	switch k {
	case KindNonArrivalReasons, KindProbationRegions:
		return false
	}
	return true
}

// ReferenceData is a lookup row. Characteristic-only fields are empty for the
// reason and category kinds; probation regions use LegacyDeliusCode for their
// delius code.
type ReferenceData struct {
	Kind             ReferenceKind `json:"-"`
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ServiceScope     string        `json:"serviceScope,omitempty"`
	ModelScope       string        `json:"modelScope,omitempty"`
	PropertyName     string        `json:"propertyName,omitempty"`
	LegacyDeliusCode string        `json:"legacyDeliusCode,omitempty"`
	IsActive         bool          `json:"isActive"`
}

// Characteristic model scopes.
const (
	ModelScopePremises = "premises"
	ModelScopeRoom     = "room"
)

// PostcodeDistrict is an outcode with its centroid.
type PostcodeDistrict struct {
	ID        string
	Outcode   string
	Latitude  float64
	Longitude float64
}
