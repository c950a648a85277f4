package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDeriveBookingStatus_CAS1(t *testing.T) {
	day := Date(2026, 3, 1)
	arrival := &Arrival{ArrivalDate: day}
	departure := &Departure{DateTime: day.AddDate(0, 0, 5)}
	nonArrival := &NonArrival{Date: day}
	cancellation := &Cancellation{Date: day}

	tests := []struct {
		name string
		b    Booking
		want BookingStatus
	}{
		{"none", Booking{}, BookingAwaitingArrival},
		{"arrived", Booking{Arrival: arrival}, BookingArrived},
		{"departed", Booking{Arrival: arrival, Departure: departure}, BookingDeparted},
		{"not arrived", Booking{NonArrival: nonArrival}, BookingNotArrived},
		{"cancelled", Booking{Cancellation: cancellation}, BookingCancelled},
		{"non-arrival wins over cancellation", Booking{NonArrival: nonArrival, Cancellation: cancellation}, BookingNotArrived},
		{"arrived then cancelled", Booking{Arrival: arrival, Cancellation: cancellation}, BookingArrived},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.b.Service = ServiceCAS1
			got, err := DeriveBookingStatus(&tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Every combination of the four sub-states maps to a status.
func TestDeriveBookingStatus_CAS1NeverIndeterminate(t *testing.T) {
	for mask := 0; mask < 16; mask++ {
		b := Booking{Service: ServiceCAS1}
		if mask&1 != 0 {
			b.Arrival = &Arrival{}
		}
		if mask&2 != 0 {
			b.Departure = &Departure{}
		}
		if mask&4 != 0 {
			b.NonArrival = &NonArrival{}
		}
		if mask&8 != 0 {
			b.Cancellation = &Cancellation{}
		}
		_, err := DeriveBookingStatus(&b)
		assert.NoError(t, err, "mask %04b", mask)
	}
}

func TestDeriveBookingStatus_CAS3(t *testing.T) {
	tests := []struct {
		name string
		b    Booking
		want BookingStatus
	}{
		{"provisional", Booking{}, BookingProvisional},
		{"confirmed", Booking{Confirmation: &Confirmation{}}, BookingConfirmed},
		{"arrived", Booking{Confirmation: &Confirmation{}, Arrival: &Arrival{}}, BookingArrived},
		{"closed", Booking{Arrival: &Arrival{}, Departure: &Departure{}}, BookingClosed},
		{"not arrived", Booking{NonArrival: &NonArrival{}}, BookingNotArrived},
		{"cancelled", Booking{Confirmation: &Confirmation{}, Cancellation: &Cancellation{}}, BookingCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.b.Service = ServiceCAS3
			got, err := DeriveBookingStatus(&tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveBookingStatus_UnknownService(t *testing.T) {
	_, err := DeriveBookingStatus(&Booking{ID: "b1", Service: ServiceCAS2})
	require.Error(t, err)
}

func TestSpaceBooking_CanonicalDatesAndStatus(t *testing.T) {
	sb := SpaceBooking{
		ExpectedArrivalDate:   Date(2026, 4, 1),
		ExpectedDepartureDate: Date(2026, 4, 30),
	}
	sb.UpdateCanonicalDates()
	assert.Equal(t, Date(2026, 4, 1), sb.CanonicalArrivalDate)

	status, err := DeriveSpaceBookingStatus(&sb)
	require.NoError(t, err)
	assert.Equal(t, BookingAwaitingArrival, status)

	arrived := time.Date(2026, 4, 2, 14, 30, 0, 0, time.UTC)
	sb.ActualArrivalDate = &arrived
	sb.UpdateCanonicalDates()
	assert.Equal(t, Date(2026, 4, 2), sb.CanonicalArrivalDate)
	assert.Equal(t, Date(2026, 4, 30), sb.CanonicalDepartureDate)

	status, err = DeriveSpaceBookingStatus(&sb)
	require.NoError(t, err)
	assert.Equal(t, BookingArrived, status)
}

func TestDeriveAssessmentStatus(t *testing.T) {
	now := time.Now()
	accepted := DecisionAccepted

	tests := []struct {
		name string
		a    Assessment
		want AssessmentStatus
	}{
		{"not started", Assessment{}, AssessmentNotStarted},
		{"in progress", Assessment{Data: strPtr(`{}`)}, AssessmentInProgress},
		{"awaiting response", Assessment{Data: strPtr(`{}`), ClarificationNotes: []ClarificationNote{{Query: "?"}}}, AssessmentAwaitingResponse},
		{"answered note", Assessment{Data: strPtr(`{}`), ClarificationNotes: []ClarificationNote{{Query: "?", Response: strPtr("ok")}}}, AssessmentInProgress},
		{"reallocated", Assessment{ReallocatedAt: &now}, AssessmentReallocated},
		{"completed", Assessment{Decision: &accepted, ReallocatedAt: &now}, AssessmentCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveAssessmentStatus(&tt.a))
		})
	}
}

func TestReferralStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, ReferralUnallocated.CanTransitionTo(ReferralInReview))
	assert.True(t, ReferralInReview.CanTransitionTo(ReferralReadyToPlace))
	assert.True(t, ReferralInReview.CanTransitionTo(ReferralRejected))
	assert.True(t, ReferralReadyToPlace.CanTransitionTo(ReferralClosed))
	assert.False(t, ReferralUnallocated.CanTransitionTo(ReferralClosed))
	assert.False(t, ReferralRejected.CanTransitionTo(ReferralInReview))
	assert.False(t, ReferralClosed.CanTransitionTo(ReferralReadyToPlace))
}

func TestPlacementApplication_CanBeWithdrawn(t *testing.T) {
	booked := PlacementRequest{ID: "pr-1", SpaceBookingID: strPtr("sb-1")}
	open := PlacementRequest{ID: "pr-2"}

	assert.True(t, (&PlacementApplication{}).CanBeWithdrawn())
	assert.True(t, (&PlacementApplication{PlacementRequests: []PlacementRequest{open}}).CanBeWithdrawn())
	assert.False(t, (&PlacementApplication{PlacementRequests: []PlacementRequest{booked}}).CanBeWithdrawn())
	assert.False(t, (&PlacementApplication{PlacementRequests: []PlacementRequest{open, booked}}).CanBeWithdrawn())
}

func TestDateRange_Overlaps(t *testing.T) {
	r := DateRange{Start: Date(2026, 1, 10), End: Date(2026, 1, 20)}
	assert.True(t, r.Overlaps(DateRange{Start: Date(2026, 1, 20), End: Date(2026, 1, 25)}))
	assert.True(t, r.Overlaps(DateRange{Start: Date(2026, 1, 1), End: Date(2026, 1, 10)}))
	assert.True(t, r.Overlaps(DateRange{Start: Date(2026, 1, 12), End: Date(2026, 1, 13)}))
	assert.False(t, r.Overlaps(DateRange{Start: Date(2026, 1, 21), End: Date(2026, 1, 25)}))
	assert.False(t, r.Overlaps(DateRange{Start: Date(2026, 1, 1), End: Date(2026, 1, 9)}))
}

func TestUserAccess(t *testing.T) {
	var access UserAccess
	region := "region-1"
	prison := "LEI"

	creator := &User{ID: "u-creator"}
	assessor := &User{ID: "u-assessor", Roles: []UserRole{RoleCAS1Assessor}}
	cas3Assessor := &User{ID: "u-cas3", Roles: []UserRole{RoleCAS3Assessor}, ProbationRegionID: &region}
	stranger := &User{ID: "u-stranger"}

	cas1 := &Application{Service: ServiceCAS1, CreatedByUserID: creator.ID, AP: &ApprovedPremisesDetails{}}
	assert.True(t, access.CanViewApplication(creator, cas1))
	assert.True(t, access.CanViewApplication(assessor, cas1))
	assert.False(t, access.CanViewApplication(stranger, cas1))

	cas3 := &Application{Service: ServiceCAS3, CreatedByUserID: creator.ID, TA: &TemporaryAccommodationDetails{ProbationRegionID: region}}
	assert.True(t, access.CanViewApplication(cas3Assessor, cas3))
	cas3.TA.ProbationRegionID = "elsewhere"
	assert.False(t, access.CanViewApplication(cas3Assessor, cas3))

	allocated := assessor.ID
	a := &Assessment{Service: ServiceCAS1, AllocatedToUserID: &allocated}
	assert.True(t, access.CanViewAssessment(assessor, a, cas1))
	assert.False(t, access.CanViewAssessment(stranger, a, cas1))
	wm := &User{ID: "wm", Roles: []UserRole{RoleCAS1WorkflowManager}}
	assert.True(t, access.CanViewAssessment(wm, a, cas1))

	pom := &User{ID: "pom", Roles: []UserRole{RoleCAS2POM}, PrisonCode: &prison}
	cas2 := &Cas2Application{CreatedByUserID: creator.ID, ReferringPrisonCode: strPtr("BXI")}
	assert.False(t, access.CanViewCas2Application(pom, cas2))
	cas2.Assignments = append(cas2.Assignments, Cas2ApplicationAssignment{PrisonCode: prison})
	assert.True(t, access.CanViewCas2Application(pom, cas2))
	assert.True(t, access.CanViewCas2Application(creator, cas2))
}

func TestEventDispatcher_Dispatch(t *testing.T) {
	d := NewEventDispatcher()
	var calls []string
	d.Register("a.b", func(ctx context.Context, e *EventNotification) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Register("a.b", func(ctx context.Context, e *EventNotification) error {
		calls = append(calls, "second")
		return nil
	})

	err := d.Dispatch(context.Background(), &EventNotification{EventType: "a.b"})
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.True(t, d.Handles("a.b"))
	assert.False(t, d.Handles("x.y"))

	require.NoError(t, d.Dispatch(context.Background(), &EventNotification{EventType: "x.y"}))
}

func TestNotificationPersonRefs_Identifier(t *testing.T) {
	refs := NotificationPersonRefs{Identifiers: []PersonIdentifier{
		{Type: "CRN", Value: "X320741"},
		{Type: "NOMS", Value: "A1234AI"},
	}}
	assert.Equal(t, "A1234AI", refs.Identifier("NOMS"))
	assert.Equal(t, "", refs.Identifier("PNC"))
}

func TestFindCas2Status(t *testing.T) {
	s, ok := FindCas2Status("placeOffered")
	require.True(t, ok)
	assert.Equal(t, "Place offered", s.Label)
	_, ok = FindCas2Status("nope")
	assert.False(t, ok)
	assert.Len(t, Cas2StatusCatalogue, 9)
}
