package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrIndeterminateStatus is returned when booking sub-states match no status.
var ErrIndeterminateStatus = errors.New("booking status is indeterminate")

// BookingStatus is derived from a booking's sub-states and never stored.
type BookingStatus string

const (
	BookingAwaitingArrival BookingStatus = "awaiting-arrival"
	BookingArrived         BookingStatus = "arrived"
	BookingNotArrived      BookingStatus = "not-arrived"
	BookingDeparted        BookingStatus = "departed"
	BookingCancelled       BookingStatus = "cancelled"
	BookingProvisional     BookingStatus = "provisional"
	BookingConfirmed       BookingStatus = "confirmed"
	BookingClosed          BookingStatus = "closed"
)

// Booking is the legacy bed booking used by CAS1 and CAS3.
type Booking struct {
	ID                    string
	Service               ServiceName
	PremisesID            string
	BedID                 *string
	CRN                   string
	NomsNumber            *string
	ArrivalDate           time.Time
	DepartureDate         time.Time
	OriginalArrivalDate   time.Time
	OriginalDepartureDate time.Time
	ApplicationID         *string
	OfflineApplicationID  *string
	CreatedAt             time.Time

	Arrival      *Arrival
	Departure    *Departure
	NonArrival   *NonArrival
	Cancellation *Cancellation
	Confirmation *Confirmation
	Extensions   []Extension
}

// Range returns the booked period.
func (b *Booking) Range() DateRange { return DateRange{Start: b.ArrivalDate, End: b.DepartureDate} }

// IsCancelled reports whether the booking holds a cancellation.
func (b *Booking) IsCancelled() bool { return b.Cancellation != nil }

type Arrival struct {
	ID                    string
	ArrivalDate           time.Time
	ExpectedDepartureDate time.Time
	Notes                 *string
	CreatedAt             time.Time
}

type Departure struct {
	ID               string
	DateTime         time.Time
	ReasonID         string
	MoveOnCategoryID string
	Notes            *string
	CreatedAt        time.Time
}

type NonArrival struct {
	ID        string
	Date      time.Time
	ReasonID  string
	Notes     *string
	CreatedAt time.Time
}

type Cancellation struct {
	ID        string
	Date      time.Time
	ReasonID  string
	Notes     *string
	CreatedAt time.Time
}

// Confirmation is CAS3 only.
type Confirmation struct {
	ID        string
	DateTime  time.Time
	Notes     *string
	CreatedAt time.Time
}

type Extension struct {
	ID                    string
	PreviousDepartureDate time.Time
	NewDepartureDate      time.Time
	Notes                 *string
	CreatedAt             time.Time
}

// DeriveBookingStatus computes the status for the booking's service.
func DeriveBookingStatus(b *Booking) (BookingStatus, error) {
	switch b.Service {
	case ServiceCAS1:
		return deriveCAS1Status(b.Arrival != nil, b.Departure != nil, b.NonArrival != nil, b.Cancellation != nil)
	case ServiceCAS3:
		return deriveCAS3Status(b), nil
	default:
		return "", fmt.Errorf("derive status for booking %s: unknown service %q", b.ID, b.Service)
	}
}

func deriveCAS1Status(arrived, departed, notArrived, cancelled bool) (BookingStatus, error) {
	switch {
	case notArrived:
		return BookingNotArrived, nil
	case arrived && !departed:
		return BookingArrived, nil
	case departed:
		return BookingDeparted, nil
	case cancelled:
		return BookingCancelled, nil
	case !arrived && !notArrived:
		return BookingAwaitingArrival, nil
	default:
		return "", ErrIndeterminateStatus
	}
}

func deriveCAS3Status(b *Booking) BookingStatus {
	switch {
	case b.Cancellation != nil:
		return BookingCancelled
	case b.Departure != nil:
		return BookingClosed
	case b.Arrival != nil:
		return BookingArrived
	case b.NonArrival != nil:
		return BookingNotArrived
	case b.Confirmation != nil:
		return BookingConfirmed
	default:
		return BookingProvisional
	}
}
