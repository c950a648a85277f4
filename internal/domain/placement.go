package domain

import "time"

// PlacementRequirements are the matching criteria captured on acceptance.
type PlacementRequirements struct {
	ID                 string
	ApplicationID      string
	AssessmentID       string
	Gender             Gender
	ApType             ApType
	PostcodeDistrictID string
	Radius             int
	EssentialCriteria  []string
	DesirableCriteria  []string
	CreatedAt          time.Time
}

// PlacementRequest is a need for a bed waiting to be matched.
type PlacementRequest struct {
	ID                      string
	ApplicationID           string
	AssessmentID            string
	PlacementRequirementsID string
	PlacementApplicationID  *string
	ExpectedArrival         time.Time
	Duration                int
	Notes                   *string
	SpaceBookingID          *string
	AllocatedToUserID       *string
	IsWithdrawn             bool
	WithdrawalReason        *string
	ReallocatedAt           *time.Time
	CreatedAt               time.Time
}

// HasBooking reports whether a space booking has been made for the request.
func (p *PlacementRequest) HasBooking() bool { return p.SpaceBookingID != nil }

// ExpectedDeparture is the arrival date plus the requested duration in days.
func (p *PlacementRequest) ExpectedDeparture() time.Time {
	return p.ExpectedArrival.AddDate(0, 0, p.Duration)
}

// PlacementType says why a further placement is being requested.
type PlacementType string

const (
	PlacementTypeROTL                     PlacementType = "ROTL"
	PlacementTypeReleaseFollowingDecision PlacementType = "RELEASE_FOLLOWING_DECISION"
	PlacementTypeAdditionalPlacement      PlacementType = "ADDITIONAL_PLACEMENT"
)

// ParsePlacementType validates an API value.
func ParsePlacementType(raw string) (PlacementType, bool) {
	t := PlacementType(raw)
	switch t {
	case PlacementTypeROTL, PlacementTypeReleaseFollowingDecision, PlacementTypeAdditionalPlacement:
		return t, true
	}
	return "", false
}

// PlacementDate is one requested stay.
type PlacementDate struct {
	ExpectedArrival time.Time
	Duration        int
}

// PlacementApplicationDecision is the outcome of a placement application.
type PlacementApplicationDecision string

const (
	PlacementDecisionAccepted PlacementApplicationDecision = "ACCEPTED"
	PlacementDecisionRejected PlacementApplicationDecision = "REJECTED"
)

// PlacementApplication asks for further placements on an accepted application.
type PlacementApplication struct {
	ID               string
	ApplicationID    string
	CreatedByUserID  string
	SchemaVersion    string
	Data             *string
	Document         *string
	PlacementType    *PlacementType
	Dates            []PlacementDate
	SubmittedAt      *time.Time
	Decision         *PlacementApplicationDecision
	DecisionMadeAt   *time.Time
	IsWithdrawn      bool
	WithdrawalReason *string
	CreatedAt        time.Time

	// PlacementRequests are the requests created from this application.
	PlacementRequests []PlacementRequest
}

// CanBeWithdrawn is true iff no linked placement request has a booking.
func (p *PlacementApplication) CanBeWithdrawn() bool {
	for i := range p.PlacementRequests {
		if p.PlacementRequests[i].HasBooking() {
			return false
		}
	}
	return true
}
