package domain

import "time"

// SpaceBooking is the CAS1 booking of a space in a premises, made from a
// placement request.
type SpaceBooking struct {
	ID                   string
	PremisesID           string
	PlacementRequestID   *string
	ApplicationID        *string
	OfflineApplicationID *string
	CRN                  string
	CreatedByUserID      string
	CreatedAt            time.Time

	ExpectedArrivalDate    time.Time
	ExpectedDepartureDate  time.Time
	ActualArrivalDate      *time.Time
	ActualDepartureDate    *time.Time
	CanonicalArrivalDate   time.Time
	CanonicalDepartureDate time.Time

	NonArrivalConfirmedAt *time.Time
	NonArrivalReasonID    *string
	NonArrivalNotes       *string

	DepartureReasonID         *string
	DepartureMoveOnCategoryID *string
	DepartureNotes            *string

	CancellationOccurredAt *time.Time
	CancellationRecordedAt *time.Time
	CancellationReasonID   *string
	CancellationNotes      *string
}

// UpdateCanonicalDates prefers actual dates over expected ones.
func (s *SpaceBooking) UpdateCanonicalDates() {
	s.CanonicalArrivalDate = s.ExpectedArrivalDate
	if s.ActualArrivalDate != nil {
		s.CanonicalArrivalDate = DateOf(*s.ActualArrivalDate)
	}
	s.CanonicalDepartureDate = s.ExpectedDepartureDate
	if s.ActualDepartureDate != nil {
		s.CanonicalDepartureDate = DateOf(*s.ActualDepartureDate)
	}
}

// Range returns the canonical booked period.
func (s *SpaceBooking) Range() DateRange {
	return DateRange{Start: s.CanonicalArrivalDate, End: s.CanonicalDepartureDate}
}

func (s *SpaceBooking) HasArrival() bool { return s.ActualArrivalDate != nil }
func (s *SpaceBooking) HasDeparture() bool { return s.ActualDepartureDate != nil }
func (s *SpaceBooking) HasNonArrival() bool { return s.NonArrivalConfirmedAt != nil }
func (s *SpaceBooking) IsCancelled() bool { return s.CancellationOccurredAt != nil }

// DeriveSpaceBookingStatus applies the CAS1 booking status rules.
func DeriveSpaceBookingStatus(s *SpaceBooking) (BookingStatus, error) {
	return deriveCAS1Status(s.HasArrival(), s.HasDeparture(), s.HasNonArrival(), s.IsCancelled())
}
