package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"approvedpremises.io/cas/internal/domain"
)

const bookingColumns = `b.id, b.service, b.premises_id, b.bed_id, b.crn, b.noms_number, b.arrival_date,
	b.departure_date, b.original_arrival_date, b.original_departure_date, b.application_id,
	b.offline_application_id, b.created_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b       domain.Booking
		service string
	)
	if err := row.Scan(&b.ID, &service, &b.PremisesID, &b.BedID, &b.CRN, &b.NomsNumber, &b.ArrivalDate,
		&b.DepartureDate, &b.OriginalArrivalDate, &b.OriginalDepartureDate, &b.ApplicationID,
		&b.OfflineApplicationID, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Service = domain.ServiceName(service)
	return &b, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *domain.Booking) error {
	_, err := s.db.Exec(ctx, `INSERT INTO bookings (
		id, service, premises_id, bed_id, crn, noms_number, arrival_date, departure_date,
		original_arrival_date, original_departure_date, application_id, offline_application_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, string(b.Service), b.PremisesID, b.BedID, b.CRN, b.NomsNumber, b.ArrivalDate, b.DepartureDate,
		b.OriginalArrivalDate, b.OriginalDepartureDate, b.ApplicationID, b.OfflineApplicationID, b.CreatedAt)
	return one(err, "create booking")
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id))
	if err := one(err, "get booking"); err != nil {
		return nil, err
	}
	list := []domain.Booking{*b}
	if err := s.loadBookingStates(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (s *Store) UpdateBookingDates(ctx context.Context, b *domain.Booking) error {
	tag, err := s.db.Exec(ctx, `UPDATE bookings SET arrival_date = $2, departure_date = $3 WHERE id = $1`,
		b.ID, b.ArrivalDate, b.DepartureDate)
	return mustAffect(tag, err, "update booking dates")
}

func (s *Store) ListBookingsForPremises(ctx context.Context, premisesID string) ([]domain.Booking, error) {
	rows, err := s.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings b
		WHERE b.premises_id = $1 ORDER BY b.arrival_date`, premisesID)
	bookings, err := collect(rows, err, "list bookings", scanBooking)
	if err != nil {
		return nil, err
	}
	if err := s.loadBookingStates(ctx, bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// FindConflictingBooking uses inclusive date overlap. A booking with a
// cancellation or non-arrival row never conflicts.
func (s *Store) FindConflictingBooking(ctx context.Context, bedID string, r domain.DateRange, excludeID string) (*domain.Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b
		WHERE b.bed_id = $1 AND b.id <> $2
		  AND b.arrival_date <= $4 AND b.departure_date >= $3
		  AND NOT EXISTS (SELECT 1 FROM cancellations c WHERE c.booking_id = b.id)
		  AND NOT EXISTS (SELECT 1 FROM non_arrivals n WHERE n.booking_id = b.id)
		ORDER BY b.arrival_date LIMIT 1`, bedID, excludeID, r.Start, r.End))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conflicting booking: %w", err)
	}
	return b, nil
}

// loadBookingStates fills the sub-state fields of every booking in place,
// one query per sub-state table.
func (s *Store) loadBookingStates(ctx context.Context, bookings []domain.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	ids := make([]string, len(bookings))
	index := make(map[string]*domain.Booking, len(bookings))
	for i := range bookings {
		ids[i] = bookings[i].ID
		index[bookings[i].ID] = &bookings[i]
	}

	type loader struct {
		what  string
		query string
		scan  func(rows pgx.Rows) (string, func(b *domain.Booking), error)
	}
	loaders := []loader{
		{"arrivals", `SELECT booking_id, id, arrival_date, expected_departure_date, notes, created_at
			FROM arrivals WHERE booking_id = ANY($1)`,
			func(rows pgx.Rows) (string, func(*domain.Booking), error) {
				var (
					bookingID string
					a         domain.Arrival
				)
				err := rows.Scan(&bookingID, &a.ID, &a.ArrivalDate, &a.ExpectedDepartureDate, &a.Notes, &a.CreatedAt)
				return bookingID, func(b *domain.Booking) { b.Arrival = &a }, err
			}},
		{"departures", `SELECT booking_id, id, date_time, reason_id, move_on_category_id, notes, created_at
			FROM departures WHERE booking_id = ANY($1)`,
			func(rows pgx.Rows) (string, func(*domain.Booking), error) {
				var (
					bookingID string
					d         domain.Departure
				)
				err := rows.Scan(&bookingID, &d.ID, &d.DateTime, &d.ReasonID, &d.MoveOnCategoryID, &d.Notes, &d.CreatedAt)
				return bookingID, func(b *domain.Booking) { b.Departure = &d }, err
			}},
		{"non-arrivals", `SELECT booking_id, id, date, reason_id, notes, created_at
			FROM non_arrivals WHERE booking_id = ANY($1)`,
			func(rows pgx.Rows) (string, func(*domain.Booking), error) {
				var (
					bookingID string
					n         domain.NonArrival
				)
				err := rows.Scan(&bookingID, &n.ID, &n.Date, &n.ReasonID, &n.Notes, &n.CreatedAt)
				return bookingID, func(b *domain.Booking) { b.NonArrival = &n }, err
			}},
		{"cancellations", `SELECT booking_id, id, date, reason_id, notes, created_at
			FROM cancellations WHERE booking_id = ANY($1)`,
			func(rows pgx.Rows) (string, func(*domain.Booking), error) {
				var (
					bookingID string
					c         domain.Cancellation
				)
				err := rows.Scan(&bookingID, &c.ID, &c.Date, &c.ReasonID, &c.Notes, &c.CreatedAt)
				return bookingID, func(b *domain.Booking) { b.Cancellation = &c }, err
			}},
		{"confirmations", `SELECT booking_id, id, date_time, notes, created_at
			FROM confirmations WHERE booking_id = ANY($1)`,
			func(rows pgx.Rows) (string, func(*domain.Booking), error) {
				var (
					bookingID string
					c         domain.Confirmation
				)
				err := rows.Scan(&bookingID, &c.ID, &c.DateTime, &c.Notes, &c.CreatedAt)
				return bookingID, func(b *domain.Booking) { b.Confirmation = &c }, err
			}},
		{"extensions", `SELECT booking_id, id, previous_departure_date, new_departure_date, notes, created_at
			FROM extensions WHERE booking_id = ANY($1) ORDER BY created_at`,
			func(rows pgx.Rows) (string, func(*domain.Booking), error) {
				var (
					bookingID string
					e         domain.Extension
				)
				err := rows.Scan(&bookingID, &e.ID, &e.PreviousDepartureDate, &e.NewDepartureDate, &e.Notes, &e.CreatedAt)
				return bookingID, func(b *domain.Booking) { b.Extensions = append(b.Extensions, e) }, err
			}},
	}
	for _, l := range loaders {
		if err := s.applyRows(ctx, l.what, l.query, ids, index, l.scan); err != nil {
			return err
		}
	}
	return nil
}

// applyRows runs a sub-state query for ids and applies each row to the
// booking it belongs to.
func (s *Store) applyRows(ctx context.Context, what, query string, ids []string, index map[string]*domain.Booking,
	scan func(rows pgx.Rows) (string, func(b *domain.Booking), error),
) error {
	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	defer rows.Close()
	for rows.Next() {
		bookingID, apply, err := scan(rows)
		if err != nil {
			return fmt.Errorf("load %s: scan: %w", what, err)
		}
		if b, ok := index[bookingID]; ok {
			apply(b)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}

func (s *Store) CreateArrival(ctx context.Context, bookingID string, a *domain.Arrival) error {
	_, err := s.db.Exec(ctx, `INSERT INTO arrivals
		(id, booking_id, arrival_date, expected_departure_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, bookingID, a.ArrivalDate, a.ExpectedDepartureDate, a.Notes, a.CreatedAt)
	return one(err, "create arrival")
}

func (s *Store) CreateDeparture(ctx context.Context, bookingID string, d *domain.Departure) error {
	_, err := s.db.Exec(ctx, `INSERT INTO departures
		(id, booking_id, date_time, reason_id, move_on_category_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, bookingID, d.DateTime, d.ReasonID, d.MoveOnCategoryID, d.Notes, d.CreatedAt)
	return one(err, "create departure")
}

func (s *Store) CreateNonArrival(ctx context.Context, bookingID string, n *domain.NonArrival) error {
	_, err := s.db.Exec(ctx, `INSERT INTO non_arrivals (id, booking_id, date, reason_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, bookingID, n.Date, n.ReasonID, n.Notes, n.CreatedAt)
	return one(err, "create non-arrival")
}

func (s *Store) CreateCancellation(ctx context.Context, bookingID string, c *domain.Cancellation) error {
	_, err := s.db.Exec(ctx, `INSERT INTO cancellations (id, booking_id, date, reason_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, bookingID, c.Date, c.ReasonID, c.Notes, c.CreatedAt)
	return one(err, "create cancellation")
}

func (s *Store) CreateConfirmation(ctx context.Context, bookingID string, c *domain.Confirmation) error {
	_, err := s.db.Exec(ctx, `INSERT INTO confirmations (id, booking_id, date_time, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, bookingID, c.DateTime, c.Notes, c.CreatedAt)
	return one(err, "create confirmation")
}

func (s *Store) CreateExtension(ctx context.Context, bookingID string, e *domain.Extension) error {
	_, err := s.db.Exec(ctx, `INSERT INTO extensions
		(id, booking_id, previous_departure_date, new_departure_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, bookingID, e.PreviousDepartureDate, e.NewDepartureDate, e.Notes, e.CreatedAt)
	return one(err, "create extension")
}
