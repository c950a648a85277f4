package domain

import (
	"encoding/json"
	"time"
)

// EventType is the routing key and persisted type of a domain event.
type EventType string

const (
	EventApplicationSubmitted          EventType = "approved-premises.application.submitted"
	EventApplicationAssessed           EventType = "approved-premises.application.assessed"
	EventApplicationWithdrawn          EventType = "approved-premises.application.withdrawn"
	EventAssessmentAllocated           EventType = "approved-premises.assessment.allocated"
	EventBookingMade                   EventType = "approved-premises.booking.made"
	EventPersonArrived                 EventType = "approved-premises.person.arrived"
	EventPersonNotArrived              EventType = "approved-premises.person.not-arrived"
	EventPersonDeparted                EventType = "approved-premises.person.departed"
	EventBookingCancelled              EventType = "approved-premises.booking.cancelled"
	EventMatchRequestWithdrawn         EventType = "approved-premises.match-request.withdrawn"
	EventPlacementApplicationWithdrawn EventType = "approved-premises.placement-application.withdrawn"
	EventCas2ApplicationSubmitted      EventType = "applications.cas2.application.submitted"
	EventCas2StatusUpdated             EventType = "applications.cas2.application.status-updated"
)

var eventDescriptions = map[EventType]string{
	EventApplicationSubmitted:          "An application has been submitted for an Approved Premises placement",
	EventApplicationAssessed:           "An application has been assessed for an Approved Premises placement",
	EventApplicationWithdrawn:          "An Approved Premises Application has been withdrawn",
	EventAssessmentAllocated:           "An Approved Premises Assessment has been allocated",
	EventBookingMade:                   "An Approved Premises booking has been made",
	EventPersonArrived:                 "Someone has arrived at an Approved Premises for their Booking",
	EventPersonNotArrived:              "Someone has failed to arrive at an Approved Premises for their Booking",
	EventPersonDeparted:                "Someone has left an Approved Premises",
	EventBookingCancelled:              "An Approved Premises Booking has been cancelled",
	EventMatchRequestWithdrawn:         "An Approved Premises Match Request has been withdrawn",
	EventPlacementApplicationWithdrawn: "An Approved Premises Request for Placement has been withdrawn",
	EventCas2ApplicationSubmitted:      "An application for short-term accommodation has been submitted",
	EventCas2StatusUpdated:             "An assessor has updated the status of a CAS2 application",
}

// Description is the human text sent with published notifications.
func (t EventType) Description() string { return eventDescriptions[t] }

// Service returns the service line that emits t.
func (t EventType) Service() ServiceName {
	switch t {
	case EventCas2ApplicationSubmitted, EventCas2StatusUpdated:
		return ServiceCAS2
	}
	return ServiceCAS1
}

// DomainEvent is an immutable record of a state transition. Rows are
// appended and never updated or deleted.
type DomainEvent struct {
	ID                string
	ApplicationID     *string
	AssessmentID      *string
	BookingID         *string
	CRN               string
	NomsNumber        *string
	Type              EventType
	OccurredAt        time.Time
	CreatedAt         time.Time
	Data              string
	TriggeredByUserID *string
	Service           ServiceName
}

// Envelope is the persisted event body: id, timestamp and typed details.
type Envelope struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	EventType    EventType       `json:"eventType"`
	EventDetails json.RawMessage `json:"eventDetails"`
}

// StaffMember identifies who triggered an event.
type StaffMember struct {
	StaffCode string `json:"staffCode,omitempty"`
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
}

// PersonRef identifies the person an event is about.
type PersonRef struct {
	CRN        string `json:"crn"`
	NomsNumber string `json:"nomsNumber,omitempty"`
}

// PremisesRef names the premises involved in a booking event.
type PremisesRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	ApCode string `json:"apCode,omitempty"`
}

type ApplicationSubmittedDetails struct {
	ApplicationID       string      `json:"applicationId"`
	ApplicationURL      string      `json:"applicationUrl"`
	PersonReference     PersonRef   `json:"personReference"`
	TargetLocation      string      `json:"targetLocation,omitempty"`
	ReleaseType         string      `json:"releaseType,omitempty"`
	SubmittedAt         time.Time   `json:"submittedAt"`
	SubmittedBy         StaffMember `json:"submittedBy"`
	IsWomensApplication bool        `json:"isWomensApplication"`
}

type ApplicationAssessedDetails struct {
	ApplicationID      string      `json:"applicationId"`
	ApplicationURL     string      `json:"applicationUrl"`
	PersonReference    PersonRef   `json:"personReference"`
	AssessedAt         time.Time   `json:"assessedAt"`
	AssessedBy         StaffMember `json:"assessedBy"`
	Decision           string      `json:"decision"`
	DecisionRationale  string      `json:"decisionRationale,omitempty"`
	ArrivalDate        *string     `json:"arrivalDate,omitempty"`
	PlacementRequestID *string     `json:"placementRequestId,omitempty"`
}

type ApplicationWithdrawnDetails struct {
	ApplicationID         string      `json:"applicationId"`
	ApplicationURL        string      `json:"applicationUrl"`
	PersonReference       PersonRef   `json:"personReference"`
	WithdrawnAt           time.Time   `json:"withdrawnAt"`
	WithdrawnBy           StaffMember `json:"withdrawnBy"`
	WithdrawalReason      string      `json:"withdrawalReason"`
	OtherWithdrawalReason *string     `json:"otherWithdrawalReason,omitempty"`
}

type AssessmentAllocatedDetails struct {
	AssessmentID    string       `json:"assessmentId"`
	AssessmentURL   string       `json:"assessmentUrl"`
	PersonReference PersonRef    `json:"personReference"`
	AllocatedAt     time.Time    `json:"allocatedAt"`
	AllocatedTo     StaffMember  `json:"allocatedTo"`
	AllocatedBy     *StaffMember `json:"allocatedBy,omitempty"`
}

type BookingMadeDetails struct {
	ApplicationID   *string     `json:"applicationId,omitempty"`
	BookingID       string      `json:"bookingId"`
	PersonReference PersonRef   `json:"personReference"`
	Premises        PremisesRef `json:"premises"`
	ArrivalOn       string      `json:"arrivalOn"`
	DepartureOn     string      `json:"departureOn"`
	BookedAt        time.Time   `json:"bookedAt"`
	BookedBy        StaffMember `json:"bookedBy"`
}

type PersonArrivedDetails struct {
	ApplicationID       *string     `json:"applicationId,omitempty"`
	BookingID           string      `json:"bookingId"`
	PersonReference     PersonRef   `json:"personReference"`
	Premises            PremisesRef `json:"premises"`
	ArrivedAt           time.Time   `json:"arrivedAt"`
	ExpectedDepartureOn string      `json:"expectedDepartureOn"`
	Notes               *string     `json:"notes,omitempty"`
	RecordedBy          StaffMember `json:"recordedBy"`
}

type PersonNotArrivedDetails struct {
	ApplicationID   *string     `json:"applicationId,omitempty"`
	BookingID       string      `json:"bookingId"`
	PersonReference PersonRef   `json:"personReference"`
	Premises        PremisesRef `json:"premises"`
	ExpectedArrival string      `json:"expectedArrivalOn"`
	ReasonID        string      `json:"reasonId"`
	Notes           *string     `json:"notes,omitempty"`
	RecordedBy      StaffMember `json:"recordedBy"`
}

type PersonDepartedDetails struct {
	ApplicationID    *string     `json:"applicationId,omitempty"`
	BookingID        string      `json:"bookingId"`
	PersonReference  PersonRef   `json:"personReference"`
	Premises         PremisesRef `json:"premises"`
	DepartedAt       time.Time   `json:"departedAt"`
	ReasonID         string      `json:"reasonId"`
	MoveOnCategoryID string      `json:"moveOnCategoryId"`
	RecordedBy       StaffMember `json:"recordedBy"`
}

type BookingCancelledDetails struct {
	ApplicationID   *string     `json:"applicationId,omitempty"`
	BookingID       string      `json:"bookingId"`
	PersonReference PersonRef   `json:"personReference"`
	Premises        PremisesRef `json:"premises"`
	CancelledAt     string      `json:"cancelledAt"`
	ReasonID        string      `json:"cancellationReasonId"`
	CancelledBy     StaffMember `json:"cancelledBy"`
}

type MatchRequestWithdrawnDetails struct {
	ApplicationID      string      `json:"applicationId"`
	PlacementRequestID string      `json:"matchRequestId"`
	PersonReference    PersonRef   `json:"personReference"`
	WithdrawnAt        time.Time   `json:"withdrawnAt"`
	WithdrawnBy        StaffMember `json:"withdrawnBy"`
	WithdrawalReason   string      `json:"withdrawalReason"`
}

type PlacementApplicationWithdrawnDetails struct {
	ApplicationID          string      `json:"applicationId"`
	PlacementApplicationID string      `json:"placementApplicationId"`
	PersonReference        PersonRef   `json:"personReference"`
	WithdrawnAt            time.Time   `json:"withdrawnAt"`
	WithdrawnBy            StaffMember `json:"withdrawnBy"`
	WithdrawalReason       string      `json:"withdrawalReason"`
}

type Cas2ApplicationSubmittedDetails struct {
	ApplicationID       string      `json:"applicationId"`
	ApplicationURL      string      `json:"applicationUrl"`
	PersonReference     PersonRef   `json:"personReference"`
	ReferringPrisonCode string      `json:"referringPrisonCode,omitempty"`
	SubmittedAt         time.Time   `json:"submittedAt"`
	SubmittedBy         StaffMember `json:"submittedBy"`
}

type Cas2StatusUpdatedDetails struct {
	ApplicationID   string      `json:"applicationId"`
	ApplicationURL  string      `json:"applicationUrl"`
	PersonReference PersonRef   `json:"personReference"`
	NewStatus       string      `json:"newStatus"`
	NewStatusLabel  string      `json:"newStatusLabel"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	UpdatedBy       StaffMember `json:"updatedBy"`
}

// EventNotification is the lightweight message exchanged on the broker. It
// carries identifiers only; consumers fetch the detail URL for the payload.
type EventNotification struct {
	EventType             string                 `json:"eventType"`
	Version               int                    `json:"version"`
	Description           string                 `json:"description"`
	DetailURL             string                 `json:"detailUrl"`
	OccurredAt            time.Time              `json:"occurredAt"`
	AdditionalInformation map[string]any         `json:"additionalInformation"`
	PersonReference       NotificationPersonRefs `json:"personReference"`
}

// NotificationPersonRefs is the typed identifier list of a notification.
type NotificationPersonRefs struct {
	Identifiers []PersonIdentifier `json:"identifiers"`
}

// PersonIdentifier is one {type,value} pair, e.g. CRN or NOMS.
type PersonIdentifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Identifier returns the value of the first identifier of the given type.
func (r NotificationPersonRefs) Identifier(kind string) string {
	for _, id := range r.Identifiers {
		if id.Type == kind {
			return id.Value
		}
	}
	return ""
}
