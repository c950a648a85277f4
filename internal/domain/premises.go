package domain

import "time"

// Premises is a building offering beds to one service.
type Premises struct {
	ID                string
	Name              string
	Service           ServiceName
	ProbationRegionID string
	Postcode          string
	Latitude          *float64
	Longitude         *float64
	ApCode            string
	ApType            ApType
	Gender            Gender
	Characteristics   []string
	Status            string
}

// Bed belongs to a premises. A bed with an EndDate in the past is archived.
type Bed struct {
	ID              string
	PremisesID      string
	Name            string
	Code            string
	Characteristics []string
	EndDate         *time.Time
}

// OutOfServiceBed takes a bed out of use for an inclusive date range.
type OutOfServiceBed struct {
	ID                string
	PremisesID        string
	BedID             string
	StartDate         time.Time
	EndDate           time.Time
	Reason            string
	ReferenceNumber   *string
	Notes             *string
	CreatedAt         time.Time
	CancelledAt       *time.Time
	CancellationNotes *string
}

// Range returns the out-of-service period.
func (o *OutOfServiceBed) Range() DateRange { return DateRange{Start: o.StartDate, End: o.EndDate} }

// IsActive reports whether the record still blocks the bed.
func (o *OutOfServiceBed) IsActive() bool { return o.CancelledAt == nil }
