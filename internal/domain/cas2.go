package domain

import "time"

// Cas2Application is a short-term accommodation referral made by prison staff.
type Cas2Application struct {
	ID                     string
	CRN                    string
	NomsNumber             string
	CreatedByUserID        string
	Data                   *string
	Document               *string
	SchemaVersion          string
	CreatedAt              time.Time
	SubmittedAt            *time.Time
	AbandonedAt            *time.Time
	ReferringPrisonCode    *string
	PreferredAreas         *string
	HDCEligibilityDate     *time.Time
	ConditionalReleaseDate *time.Time
	TelephoneNumber        *string

	// Assignments are ordered oldest first.
	Assignments []Cas2ApplicationAssignment
}

// CurrentPrisonCode is the prison of the latest assignment, falling back to
// the referring prison.
func (a *Cas2Application) CurrentPrisonCode() string {
	if n := len(a.Assignments); n > 0 {
		return a.Assignments[n-1].PrisonCode
	}
	if a.ReferringPrisonCode != nil {
		return *a.ReferringPrisonCode
	}
	return ""
}

// Cas2ApplicationAssignment records which prison and POM hold the case.
type Cas2ApplicationAssignment struct {
	ID                 string
	ApplicationID      string
	PrisonCode         string
	AllocatedPomUserID *string
	CreatedAt          time.Time
}

// Cas2Assessment is created when a CAS2 application is submitted.
type Cas2Assessment struct {
	ID              string
	ApplicationID   string
	NacroReferralID *string
	AssessorName    *string
	CreatedAt       time.Time
}

// Cas2StatusUpdate is a status posted by an external assessor.
type Cas2StatusUpdate struct {
	ID            string
	AssessmentID  string
	ApplicationID string
	StatusName    string
	Label         string
	Description   string
	AssessorID    string
	CreatedAt     time.Time
}

// Cas2Status is an entry of the fixed status catalogue.
type Cas2Status struct {
	ID          string
	Name        string
	Label       string
	Description string
}

// Cas2StatusCatalogue is the list of statuses an assessor can post.
var Cas2StatusCatalogue = []Cas2Status{
	{ID: "f5cd423b-08eb-4efb-96ff-5cc6bb073905", Name: "moreInfoRequested", Label: "More information requested", Description: "The prison offender manager (POM) must provide information requested for the application to progress."},
	{ID: "ba4d8432-250b-4ab9-81ec-7eb4b16e5dd1", Name: "awaitingDecision", Label: "Awaiting decision", Description: "All information has been received and the application is awaiting assessment."},
	{ID: "176d0f5f-7a34-4d8e-b6f3-0bb40ff0b5b3", Name: "onWaitingList", Label: "On waiting list", Description: "The accommodation provider is full at the moment and the person is waiting for a place."},
	{ID: "fe254d88-ce1d-4cd8-8bd6-88de88f39019", Name: "placeOffered", Label: "Place offered", Description: "The applicant has been offered a place but has not yet accepted it."},
	{ID: "c6f7d9b5-3d9e-4b4c-9f6a-3d0a3f6b2f4e", Name: "offerAccepted", Label: "Offer accepted", Description: "The accommodation is arranged for the agreed date."},
	{ID: "9a381bc6-22d3-41d6-804d-4e49f428c1de", Name: "offerDeclined", Label: "Offer declined or withdrawn", Description: "The accommodation offer was declined or withdrawn."},
	{ID: "758eee61-2a6d-46b9-8bdd-869536d77f1b", Name: "withdrawn", Label: "Referral withdrawn", Description: "The referral has been withdrawn by the prison offender manager (POM)."},
	{ID: "4ad9bbfa-e5b0-456f-b746-146f7fd511dd", Name: "cancelled", Label: "Referral cancelled", Description: "The application has been cancelled."},
	{ID: "89458555-3219-44a2-9584-c4f715d6b565", Name: "awaitingArrival", Label: "Awaiting arrival", Description: "The accommodation provider is preparing for the applicant's arrival."},
}

// FindCas2Status looks up a catalogue entry by name.
func FindCas2Status(name string) (Cas2Status, bool) {
	for _, s := range Cas2StatusCatalogue {
		if s.Name == name {
			return s, true
		}
	}
	return Cas2Status{}, false
}
