package handlers

import (
	"encoding/json"
	"time"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/service"
)

// Response bodies. Domain types carry no JSON tags; these views fix the
// wire names.

type UserView struct {
	ID                string            `json:"id"`
	DeliusUsername    string            `json:"deliusUsername"`
	Name              string            `json:"name"`
	Email             string            `json:"email,omitempty"`
	ProbationRegionID *string           `json:"probationRegionId,omitempty"`
	PrisonCode        *string           `json:"prisonCode,omitempty"`
	Roles             []domain.UserRole `json:"roles"`
}

func userView(u *domain.User) UserView {
	roles := u.Roles
	if roles == nil {
		roles = []domain.UserRole{}
	}
	return UserView{
		ID:                u.ID,
		DeliusUsername:    u.DeliusUsername,
		Name:              u.Name,
		Email:             u.Email,
		ProbationRegionID: u.ProbationRegionID,
		PrisonCode:        u.PrisonCode,
		Roles:             roles,
	}
}

type ApplicationView struct {
	ID                     string             `json:"id"`
	Type                   domain.ServiceName `json:"type"`
	CRN                    string             `json:"crn"`
	NomsNumber             *string            `json:"nomsNumber,omitempty"`
	CreatedByUserID        string             `json:"createdByUserId"`
	SchemaVersion          string             `json:"schemaVersion"`
	OutdatedSchema         bool               `json:"outdatedSchema"`
	CreatedAt              time.Time          `json:"createdAt"`
	SubmittedAt            *time.Time         `json:"submittedAt,omitempty"`
	Status                 string             `json:"status"`
	Data                   json.RawMessage    `json:"data,omitempty"`
	Document               json.RawMessage    `json:"document,omitempty"`
	ApType                 domain.ApType      `json:"apType,omitempty"`
	IsWomensApplication    *bool              `json:"isWomensApplication,omitempty"`
	IsEmergencyApplication *bool              `json:"isEmergencyApplication,omitempty"`
	ReleaseType            string             `json:"releaseType,omitempty"`
	TargetLocation         string             `json:"targetLocation,omitempty"`
	ArrivalDate            *Date              `json:"arrivalDate,omitempty"`
	IsWithdrawn            bool               `json:"isWithdrawn"`
	WithdrawalReason       *string            `json:"withdrawalReason,omitempty"`
	ProbationRegionID      string             `json:"probationRegionId,omitempty"`
	IsDutyToReferSubmitted *bool              `json:"isDutyToReferSubmitted,omitempty"`
}

func (s *Server) applicationView(a *domain.Application) ApplicationView {
	v := ApplicationView{
		ID:              a.ID,
		Type:            a.Service,
		CRN:             a.CRN,
		NomsNumber:      a.NomsNumber,
		CreatedByUserID: a.CreatedByUserID,
		SchemaVersion:   a.SchemaVersion,
		OutdatedSchema:  s.schemaOutdated(a),
		CreatedAt:       a.CreatedAt,
		SubmittedAt:     a.SubmittedAt,
		Status:          string(a.Status()),
		Data:            rawJSON(a.Data),
		Document:        rawJSON(a.Document),
		IsWithdrawn:     a.IsWithdrawn(),
	}
	if ap := a.AP; ap != nil {
		v.ApType = ap.ApType
		v.IsWomensApplication = &ap.IsWomensApplication
		v.IsEmergencyApplication = &ap.IsEmergency
		v.ReleaseType = ap.ReleaseType
		v.TargetLocation = ap.TargetLocation
		v.ArrivalDate = optionalDate(ap.ArrivalDate)
		v.WithdrawalReason = ap.WithdrawalReason
	}
	if ta := a.TA; ta != nil {
		v.ProbationRegionID = ta.ProbationRegionID
		v.ArrivalDate = optionalDate(ta.ArrivalDate)
		v.IsDutyToReferSubmitted = &ta.IsDutyToReferSubmitted
	}
	return v
}

func (s *Server) applicationViews(list []domain.Application) []ApplicationView {
	out := make([]ApplicationView, 0, len(list))
	for i := range list {
		out = append(out, s.applicationView(&list[i]))
	}
	return out
}

type ClarificationNoteView struct {
	ID                 string    `json:"id"`
	CreatedByUserID    string    `json:"createdByStaffMemberId"`
	Query              string    `json:"query"`
	Response           *string   `json:"response,omitempty"`
	ResponseReceivedOn *Date     `json:"responseReceivedOn,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

func clarificationNoteView(n *domain.ClarificationNote) ClarificationNoteView {
	return ClarificationNoteView{
		ID:                 n.ID,
		CreatedByUserID:    n.CreatedByUserID,
		Query:              n.Query,
		Response:           n.Response,
		ResponseReceivedOn: optionalDate(n.ResponseReceivedOn),
		CreatedAt:          n.CreatedAt,
	}
}

type AssessmentView struct {
	ID                 string                     `json:"id"`
	ApplicationID      string                     `json:"applicationId"`
	Type               domain.ServiceName         `json:"type"`
	AllocatedToUserID  *string                    `json:"allocatedToStaffMemberId,omitempty"`
	AllocatedAt        *time.Time                 `json:"allocatedAt,omitempty"`
	SchemaVersion      string                     `json:"schemaVersion"`
	Data               json.RawMessage            `json:"data,omitempty"`
	Decision           *domain.AssessmentDecision `json:"decision,omitempty"`
	RejectionRationale *string                    `json:"rejectionRationale,omitempty"`
	SubmittedAt        *time.Time                 `json:"submittedAt,omitempty"`
	CreatedAt          time.Time                  `json:"createdAt"`
	Status             domain.AssessmentStatus    `json:"status"`
	ReferralStatus     domain.ReferralStatus      `json:"referralStatus,omitempty"`
	ClarificationNotes []ClarificationNoteView    `json:"clarificationNotes"`
}

func assessmentView(a *domain.Assessment) AssessmentView {
	notes := make([]ClarificationNoteView, 0, len(a.ClarificationNotes))
	for i := range a.ClarificationNotes {
		notes = append(notes, clarificationNoteView(&a.ClarificationNotes[i]))
	}
	return AssessmentView{
		ID:                 a.ID,
		ApplicationID:      a.ApplicationID,
		Type:               a.Service,
		AllocatedToUserID:  a.AllocatedToUserID,
		AllocatedAt:        a.AllocatedAt,
		SchemaVersion:      a.SchemaVersion,
		Data:               rawJSON(a.Data),
		Decision:           a.Decision,
		RejectionRationale: a.RejectionRationale,
		SubmittedAt:        a.SubmittedAt,
		CreatedAt:          a.CreatedAt,
		Status:             domain.DeriveAssessmentStatus(a),
		ReferralStatus:     a.ReferralStatus,
		ClarificationNotes: notes,
	}
}

func assessmentViews(list []domain.Assessment) []AssessmentView {
	out := make([]AssessmentView, 0, len(list))
	for i := range list {
		out = append(out, assessmentView(&list[i]))
	}
	return out
}

type PlacementDateView struct {
	ExpectedArrival Date `json:"expectedArrival"`
	Duration        int  `json:"duration"`
}

type PlacementRequestView struct {
	ID                     string    `json:"id"`
	ApplicationID          string    `json:"applicationId"`
	AssessmentID           string    `json:"assessmentId"`
	PlacementApplicationID *string   `json:"placementApplicationId,omitempty"`
	ExpectedArrival        Date      `json:"expectedArrival"`
	ExpectedDeparture      Date      `json:"expectedDeparture"`
	Duration               int       `json:"duration"`
	Notes                  *string   `json:"notes,omitempty"`
	BookingID              *string   `json:"bookingId,omitempty"`
	AllocatedToUserID      *string   `json:"allocatedToStaffMemberId,omitempty"`
	IsWithdrawn            bool      `json:"isWithdrawn"`
	WithdrawalReason       *string   `json:"withdrawalReason,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
}

func placementRequestView(p *domain.PlacementRequest) PlacementRequestView {
	return PlacementRequestView{
		ID:                     p.ID,
		ApplicationID:          p.ApplicationID,
		AssessmentID:           p.AssessmentID,
		PlacementApplicationID: p.PlacementApplicationID,
		ExpectedArrival:        dateOf(p.ExpectedArrival),
		ExpectedDeparture:      dateOf(p.ExpectedDeparture()),
		Duration:               p.Duration,
		Notes:                  p.Notes,
		BookingID:              p.SpaceBookingID,
		AllocatedToUserID:      p.AllocatedToUserID,
		IsWithdrawn:            p.IsWithdrawn,
		WithdrawalReason:       p.WithdrawalReason,
		CreatedAt:              p.CreatedAt,
	}
}

type PlacementApplicationView struct {
	ID                string                               `json:"id"`
	ApplicationID     string                               `json:"applicationId"`
	CreatedByUserID   string                               `json:"createdByUserId"`
	SchemaVersion     string                               `json:"schemaVersion"`
	Data              json.RawMessage                      `json:"data,omitempty"`
	Document          json.RawMessage                      `json:"document,omitempty"`
	PlacementType     *domain.PlacementType                `json:"placementType,omitempty"`
	PlacementDates    []PlacementDateView                  `json:"placementDates"`
	SubmittedAt       *time.Time                           `json:"submittedAt,omitempty"`
	Decision          *domain.PlacementApplicationDecision `json:"decision,omitempty"`
	DecisionMadeAt    *time.Time                           `json:"decisionMadeAt,omitempty"`
	IsWithdrawn       bool                                 `json:"isWithdrawn"`
	WithdrawalReason  *string                              `json:"withdrawalReason,omitempty"`
	CanBeWithdrawn    bool                                 `json:"canBeWithdrawn"`
	PlacementRequests []PlacementRequestView               `json:"placementRequests"`
	CreatedAt         time.Time                            `json:"createdAt"`
}

func placementApplicationView(p *domain.PlacementApplication) PlacementApplicationView {
	dates := make([]PlacementDateView, 0, len(p.Dates))
	for _, d := range p.Dates {
		dates = append(dates, PlacementDateView{ExpectedArrival: dateOf(d.ExpectedArrival), Duration: d.Duration})
	}
	requests := make([]PlacementRequestView, 0, len(p.PlacementRequests))
	for i := range p.PlacementRequests {
		requests = append(requests, placementRequestView(&p.PlacementRequests[i]))
	}
	return PlacementApplicationView{
		ID:                p.ID,
		ApplicationID:     p.ApplicationID,
		CreatedByUserID:   p.CreatedByUserID,
		SchemaVersion:     p.SchemaVersion,
		Data:              rawJSON(p.Data),
		Document:          rawJSON(p.Document),
		PlacementType:     p.PlacementType,
		PlacementDates:    dates,
		SubmittedAt:       p.SubmittedAt,
		Decision:          p.Decision,
		DecisionMadeAt:    p.DecisionMadeAt,
		IsWithdrawn:       p.IsWithdrawn,
		WithdrawalReason:  p.WithdrawalReason,
		CanBeWithdrawn:    p.CanBeWithdrawn(),
		PlacementRequests: requests,
		CreatedAt:         p.CreatedAt,
	}
}

type ArrivalView struct {
	ArrivalDate           Date    `json:"arrivalDate"`
	ExpectedDepartureDate Date    `json:"expectedDepartureDate"`
	Notes                 *string `json:"notes,omitempty"`
}

type DepartureView struct {
	DateTime         time.Time `json:"dateTime"`
	ReasonID         string    `json:"reasonId"`
	MoveOnCategoryID string    `json:"moveOnCategoryId"`
	Notes            *string   `json:"notes,omitempty"`
}

type DatedReasonView struct {
	Date     Date    `json:"date"`
	ReasonID string  `json:"reasonId"`
	Notes    *string `json:"notes,omitempty"`
}

type ConfirmationView struct {
	DateTime time.Time `json:"dateTime"`
	Notes    *string   `json:"notes,omitempty"`
}

type ExtensionView struct {
	PreviousDepartureDate Date    `json:"previousDepartureDate"`
	NewDepartureDate      Date    `json:"newDepartureDate"`
	Notes                 *string `json:"notes,omitempty"`
}

type BookingView struct {
	ID                    string               `json:"id"`
	ServiceName           domain.ServiceName   `json:"serviceName"`
	PremisesID            string               `json:"premisesId"`
	BedID                 *string              `json:"bedId,omitempty"`
	CRN                   string               `json:"crn"`
	NomsNumber            *string              `json:"nomsNumber,omitempty"`
	ArrivalDate           Date                 `json:"arrivalDate"`
	DepartureDate         Date                 `json:"departureDate"`
	OriginalArrivalDate   Date                 `json:"originalArrivalDate"`
	OriginalDepartureDate Date                 `json:"originalDepartureDate"`
	ApplicationID         *string              `json:"applicationId,omitempty"`
	Status                domain.BookingStatus `json:"status"`
	CreatedAt             time.Time            `json:"createdAt"`
	Arrival               *ArrivalView         `json:"arrival,omitempty"`
	Departure             *DepartureView       `json:"departure,omitempty"`
	NonArrival            *DatedReasonView     `json:"nonArrival,omitempty"`
	Cancellation          *DatedReasonView     `json:"cancellation,omitempty"`
	Confirmation          *ConfirmationView    `json:"confirmation,omitempty"`
	Extensions            []ExtensionView      `json:"extensions"`
}

// bookingView fails only when the stored sub-states contradict each other.
func bookingView(b *domain.Booking) (BookingView, error) {
	status, err := domain.DeriveBookingStatus(b)
	if err != nil {
		return BookingView{}, err
	}
	v := BookingView{
		ID:                    b.ID,
		ServiceName:           b.Service,
		PremisesID:            b.PremisesID,
		BedID:                 b.BedID,
		CRN:                   b.CRN,
		NomsNumber:            b.NomsNumber,
		ArrivalDate:           dateOf(b.ArrivalDate),
		DepartureDate:         dateOf(b.DepartureDate),
		OriginalArrivalDate:   dateOf(b.OriginalArrivalDate),
		OriginalDepartureDate: dateOf(b.OriginalDepartureDate),
		ApplicationID:         b.ApplicationID,
		Status:                status,
		CreatedAt:             b.CreatedAt,
		Extensions:            make([]ExtensionView, 0, len(b.Extensions)),
	}
	if a := b.Arrival; a != nil {
		v.Arrival = &ArrivalView{ArrivalDate: dateOf(a.ArrivalDate), ExpectedDepartureDate: dateOf(a.ExpectedDepartureDate), Notes: a.Notes}
	}
	if d := b.Departure; d != nil {
		v.Departure = &DepartureView{DateTime: d.DateTime, ReasonID: d.ReasonID, MoveOnCategoryID: d.MoveOnCategoryID, Notes: d.Notes}
	}
	if n := b.NonArrival; n != nil {
		v.NonArrival = &DatedReasonView{Date: dateOf(n.Date), ReasonID: n.ReasonID, Notes: n.Notes}
	}
	if c := b.Cancellation; c != nil {
		v.Cancellation = &DatedReasonView{Date: dateOf(c.Date), ReasonID: c.ReasonID, Notes: c.Notes}
	}
	if c := b.Confirmation; c != nil {
		v.Confirmation = &ConfirmationView{DateTime: c.DateTime, Notes: c.Notes}
	}
	for _, e := range b.Extensions {
		v.Extensions = append(v.Extensions, ExtensionView{
			PreviousDepartureDate: dateOf(e.PreviousDepartureDate),
			NewDepartureDate:      dateOf(e.NewDepartureDate),
			Notes:                 e.Notes,
		})
	}
	return v, nil
}

type OutOfServiceBedView struct {
	ID                string     `json:"id"`
	PremisesID        string     `json:"premisesId"`
	BedID             string     `json:"bedId"`
	StartDate         Date       `json:"startDate"`
	EndDate           Date       `json:"endDate"`
	Reason            string     `json:"reason"`
	ReferenceNumber   *string    `json:"referenceNumber,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	CancelledAt       *time.Time `json:"cancelledAt,omitempty"`
	CancellationNotes *string    `json:"cancellationNotes,omitempty"`
}

func outOfServiceBedView(o *domain.OutOfServiceBed) OutOfServiceBedView {
	status := "active"
	if !o.IsActive() {
		status = "cancelled"
	}
	return OutOfServiceBedView{
		ID:                o.ID,
		PremisesID:        o.PremisesID,
		BedID:             o.BedID,
		StartDate:         dateOf(o.StartDate),
		EndDate:           dateOf(o.EndDate),
		Reason:            o.Reason,
		ReferenceNumber:   o.ReferenceNumber,
		Notes:             o.Notes,
		Status:            status,
		CreatedAt:         o.CreatedAt,
		CancelledAt:       o.CancelledAt,
		CancellationNotes: o.CancellationNotes,
	}
}

func outOfServiceBedViews(list []domain.OutOfServiceBed) []OutOfServiceBedView {
	out := make([]OutOfServiceBedView, 0, len(list))
	for i := range list {
		out = append(out, outOfServiceBedView(&list[i]))
	}
	return out
}

type SpaceBookingView struct {
	ID                     string               `json:"id"`
	PremisesID             string               `json:"premisesId"`
	PlacementRequestID     *string              `json:"placementRequestId,omitempty"`
	ApplicationID          *string              `json:"applicationId,omitempty"`
	CRN                    string               `json:"crn"`
	ExpectedArrivalDate    Date                 `json:"expectedArrivalDate"`
	ExpectedDepartureDate  Date                 `json:"expectedDepartureDate"`
	ActualArrivalDate      *time.Time           `json:"actualArrivalDateTime,omitempty"`
	ActualDepartureDate    *time.Time           `json:"actualDepartureDateTime,omitempty"`
	CanonicalArrivalDate   Date                 `json:"canonicalArrivalDate"`
	CanonicalDepartureDate Date                 `json:"canonicalDepartureDate"`
	NonArrivalReasonID     *string              `json:"nonArrivalReasonId,omitempty"`
	DepartureReasonID      *string              `json:"departureReasonId,omitempty"`
	MoveOnCategoryID       *string              `json:"moveOnCategoryId,omitempty"`
	CancellationReasonID   *string              `json:"cancellationReasonId,omitempty"`
	CancellationOccurredAt *Date                `json:"cancellationOccurredAt,omitempty"`
	Status                 domain.BookingStatus `json:"status"`
	CreatedAt              time.Time            `json:"createdAt"`
}

func spaceBookingView(s *domain.SpaceBooking) (SpaceBookingView, error) {
	status, err := domain.DeriveSpaceBookingStatus(s)
	if err != nil {
		return SpaceBookingView{}, err
	}
	return SpaceBookingView{
		ID:                     s.ID,
		PremisesID:             s.PremisesID,
		PlacementRequestID:     s.PlacementRequestID,
		ApplicationID:          s.ApplicationID,
		CRN:                    s.CRN,
		ExpectedArrivalDate:    dateOf(s.ExpectedArrivalDate),
		ExpectedDepartureDate:  dateOf(s.ExpectedDepartureDate),
		ActualArrivalDate:      s.ActualArrivalDate,
		ActualDepartureDate:    s.ActualDepartureDate,
		CanonicalArrivalDate:   dateOf(s.CanonicalArrivalDate),
		CanonicalDepartureDate: dateOf(s.CanonicalDepartureDate),
		NonArrivalReasonID:     s.NonArrivalReasonID,
		DepartureReasonID:      s.DepartureReasonID,
		MoveOnCategoryID:       s.DepartureMoveOnCategoryID,
		CancellationReasonID:   s.CancellationReasonID,
		CancellationOccurredAt: optionalDate(s.CancellationOccurredAt),
		Status:                 status,
		CreatedAt:              s.CreatedAt,
	}, nil
}

type PremisesSummaryView struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	ApCode          string        `json:"apCode"`
	Postcode        string        `json:"postcode"`
	ApType          domain.ApType `json:"apType"`
	Gender          domain.Gender `json:"gender"`
	Characteristics []string      `json:"characteristics"`
}

type SpaceSearchResultView struct {
	Premises      PremisesSummaryView `json:"premises"`
	DistanceMiles float64             `json:"distanceInMiles"`
}

func searchResultViews(results []service.SpaceSearchResult) []SpaceSearchResultView {
	out := make([]SpaceSearchResultView, 0, len(results))
	for _, r := range results {
		p := r.Premises
		chars := p.Characteristics
		if chars == nil {
			chars = []string{}
		}
		out = append(out, SpaceSearchResultView{
			Premises: PremisesSummaryView{
				ID:              p.ID,
				Name:            p.Name,
				ApCode:          p.ApCode,
				Postcode:        p.Postcode,
				ApType:          p.ApType,
				Gender:          p.Gender,
				Characteristics: chars,
			},
			DistanceMiles: r.DistanceMiles,
		})
	}
	return out
}

type Cas2AssignmentView struct {
	PrisonCode         string    `json:"prisonCode"`
	AllocatedPomUserID *string   `json:"allocatedPomUserId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

type Cas2StatusUpdateView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	UpdatedByID string    `json:"updatedById"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func cas2StatusUpdateView(u *domain.Cas2StatusUpdate) Cas2StatusUpdateView {
	return Cas2StatusUpdateView{
		ID:          u.ID,
		Name:        u.StatusName,
		Label:       u.Label,
		Description: u.Description,
		UpdatedByID: u.AssessorID,
		UpdatedAt:   u.CreatedAt,
	}
}

type Cas2ApplicationView struct {
	ID                     string                  `json:"id"`
	CRN                    string                  `json:"crn"`
	NomsNumber             string                  `json:"nomsNumber"`
	CreatedByUserID        string                  `json:"createdByUserId"`
	SchemaVersion          string                  `json:"schemaVersion"`
	OutdatedSchema         bool                    `json:"outdatedSchema"`
	Data                   json.RawMessage         `json:"data,omitempty"`
	Document               json.RawMessage         `json:"document,omitempty"`
	CreatedAt              time.Time               `json:"createdAt"`
	SubmittedAt            *time.Time              `json:"submittedAt,omitempty"`
	AbandonedAt            *time.Time              `json:"abandonedAt,omitempty"`
	CurrentPrisonCode      string                  `json:"currentPrisonCode,omitempty"`
	PreferredAreas         *string                 `json:"preferredAreas,omitempty"`
	HDCEligibilityDate     *Date                   `json:"hdcEligibilityDate,omitempty"`
	ConditionalReleaseDate *Date                   `json:"conditionalReleaseDate,omitempty"`
	TelephoneNumber        *string                 `json:"telephoneNumber,omitempty"`
	Assignments            []Cas2AssignmentView    `json:"assignments"`
	StatusUpdates          *[]Cas2StatusUpdateView `json:"statusUpdates,omitempty"`
}

func (s *Server) cas2ApplicationView(a *domain.Cas2Application) Cas2ApplicationView {
	assignments := make([]Cas2AssignmentView, 0, len(a.Assignments))
	for _, as := range a.Assignments {
		assignments = append(assignments, Cas2AssignmentView{
			PrisonCode:         as.PrisonCode,
			AllocatedPomUserID: as.AllocatedPomUserID,
			CreatedAt:          as.CreatedAt,
		})
	}
	return Cas2ApplicationView{
		ID:                     a.ID,
		CRN:                    a.CRN,
		NomsNumber:             a.NomsNumber,
		CreatedByUserID:        a.CreatedByUserID,
		SchemaVersion:          a.SchemaVersion,
		OutdatedSchema:         s.schemas.IsOutdated(jsonschema.TypeCas2Application, a.SchemaVersion),
		Data:                   rawJSON(a.Data),
		Document:               rawJSON(a.Document),
		CreatedAt:              a.CreatedAt,
		SubmittedAt:            a.SubmittedAt,
		AbandonedAt:            a.AbandonedAt,
		CurrentPrisonCode:      a.CurrentPrisonCode(),
		PreferredAreas:         a.PreferredAreas,
		HDCEligibilityDate:     optionalDate(a.HDCEligibilityDate),
		ConditionalReleaseDate: optionalDate(a.ConditionalReleaseDate),
		TelephoneNumber:        a.TelephoneNumber,
		Assignments:            assignments,
	}
}
