package domain

import "time"

// ApplicationStatus is the stored CAS1 application status.
type ApplicationStatus string

const (
	AppStatusStarted            ApplicationStatus = "STARTED"
	AppStatusSubmitted          ApplicationStatus = "SUBMITTED"
	AppStatusAwaitingPlacement  ApplicationStatus = "AWAITING_PLACEMENT"
	AppStatusPlacementAllocated ApplicationStatus = "PLACEMENT_ALLOCATED"
	AppStatusRejected           ApplicationStatus = "REJECTED"
	AppStatusWithdrawn          ApplicationStatus = "WITHDRAWN"
)

// ApType is the approved premises type requested.
type ApType string

const (
	ApTypeNormal ApType = "normal"
	ApTypePIPE   ApType = "pipe"
	ApTypeESAP   ApType = "esap"
	ApTypeRFAP   ApType = "rfap"
	ApTypeMHAP   ApType = "mhapStJosephs"
)

// Gender of the premises or the placement.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Application is a request for accommodation. Exactly one of AP or TA is set
// for the CAS1 and CAS3 services respectively. CAS2 applications have their
// own type.
type Application struct {
	ID              string
	Service         ServiceName
	CRN             string
	NomsNumber      *string
	Data            *string
	Document        *string
	SchemaVersion   string
	CreatedByUserID string
	CreatedAt       time.Time
	SubmittedAt     *time.Time

	AP *ApprovedPremisesDetails
	TA *TemporaryAccommodationDetails
}

// ApprovedPremisesDetails are the CAS1-only application fields.
type ApprovedPremisesDetails struct {
	ApType                ApType
	IsWomensApplication   bool
	IsEmergency           bool
	ReleaseType           string
	TargetLocation        string
	ArrivalDate           *time.Time
	Status                ApplicationStatus
	IsWithdrawn           bool
	WithdrawalReason      *string
	WithdrawalOtherReason *string
}

// TemporaryAccommodationDetails are the CAS3-only application fields.
type TemporaryAccommodationDetails struct {
	ProbationRegionID      string
	ArrivalDate            *time.Time
	IsDutyToReferSubmitted bool
}

// IsSubmitted reports whether the application left the in-progress state.
func (a *Application) IsSubmitted() bool { return a.SubmittedAt != nil }

// IsWithdrawn is only ever true for CAS1 applications.
func (a *Application) IsWithdrawn() bool { return a.AP != nil && a.AP.IsWithdrawn }

// SetStatus updates the stored CAS1 status; a no-op for other services.
func (a *Application) SetStatus(s ApplicationStatus) {
	if a.AP != nil {
		a.AP.Status = s
	}
}

// Status returns the stored CAS1 status, or "" for other services.
func (a *Application) Status() ApplicationStatus {
	if a.AP == nil {
		return ""
	}
	return a.AP.Status
}

// ProbationRegionID returns the CAS3 region, if any.
func (a *Application) ProbationRegionID() string {
	if a.TA == nil {
		return ""
	}
	return a.TA.ProbationRegionID
}

// OfflineApplication stands in for an application made outside the service,
// created when a CAS1 booking is made for a CRN without one.
type OfflineApplication struct {
	ID          string
	Service     ServiceName
	CRN         string
	EventNumber *string
	CreatedAt   time.Time
	SubmittedAt *time.Time
}
