// Package memstore is an in-memory repository.Store for service tests.
//
// Transactions are serialized by one mutex and rolled back by restoring a
// snapshot, which also stands in for row locks. Values are deep-copied on
// the way in and out so callers never share memory with the store.
//
// Import Path: approvedpremises.io/cas/internal/repository/memstore
package memstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/riverqueue/river"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

type state struct {
	users         map[string]*domain.User
	apps          map[string]*domain.Application
	offline       map[string]*domain.OfflineApplication
	assessments   map[string]*domain.Assessment
	notes         map[string]*domain.ClarificationNote
	statusChanges []domain.AssessmentStatusChange
	requirements  map[string]*domain.PlacementRequirements
	requests      map[string]*domain.PlacementRequest
	placementApps map[string]*domain.PlacementApplication
	premises      map[string]*domain.Premises
	beds          map[string]*domain.Bed
	bookings      map[string]*domain.Booking
	spaceBookings map[string]*domain.SpaceBooking
	oosBeds       map[string]*domain.OutOfServiceBed
	cas2Apps      map[string]*domain.Cas2Application
	cas2Assess    map[string]*domain.Cas2Assessment
	cas2Updates   []domain.Cas2StatusUpdate
	events        []*domain.DomainEvent
	jobs          []river.JobArgs
	reference     map[domain.ReferenceKind][]domain.ReferenceData
	districts     map[string]*domain.PostcodeDistrict
}

func newState() *state {
	return &state{
		users:         map[string]*domain.User{},
		apps:          map[string]*domain.Application{},
		offline:       map[string]*domain.OfflineApplication{},
		assessments:   map[string]*domain.Assessment{},
		notes:         map[string]*domain.ClarificationNote{},
		requirements:  map[string]*domain.PlacementRequirements{},
		requests:      map[string]*domain.PlacementRequest{},
		placementApps: map[string]*domain.PlacementApplication{},
		premises:      map[string]*domain.Premises{},
		beds:          map[string]*domain.Bed{},
		bookings:      map[string]*domain.Booking{},
		spaceBookings: map[string]*domain.SpaceBooking{},
		oosBeds:       map[string]*domain.OutOfServiceBed{},
		cas2Apps:      map[string]*domain.Cas2Application{},
		cas2Assess:    map[string]*domain.Cas2Assessment{},
		reference:     map[domain.ReferenceKind][]domain.ReferenceData{},
		districts:     map[string]*domain.PostcodeDistrict{},
	}
}

// snapshot copies the containers. Stored values are never mutated in place,
// so sharing the pointers is safe.
func (s *state) snapshot() *state {
	return &state{
		users:         maps.Clone(s.users),
		apps:          maps.Clone(s.apps),
		offline:       maps.Clone(s.offline),
		assessments:   maps.Clone(s.assessments),
		notes:         maps.Clone(s.notes),
		statusChanges: slices.Clone(s.statusChanges),
		requirements:  maps.Clone(s.requirements),
		requests:      maps.Clone(s.requests),
		placementApps: maps.Clone(s.placementApps),
		premises:      maps.Clone(s.premises),
		beds:          maps.Clone(s.beds),
		bookings:      maps.Clone(s.bookings),
		spaceBookings: maps.Clone(s.spaceBookings),
		oosBeds:       maps.Clone(s.oosBeds),
		cas2Apps:      maps.Clone(s.cas2Apps),
		cas2Assess:    maps.Clone(s.cas2Assess),
		cas2Updates:   slices.Clone(s.cas2Updates),
		events:        slices.Clone(s.events),
		jobs:          slices.Clone(s.jobs),
		reference:     maps.Clone(s.reference),
		districts:     maps.Clone(s.districts),
	}
}

// Store implements repository.Store and repository.ReferenceDataRepository.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state
}

var (
	_ repository.Store                   = (*Store)(nil)
	_ repository.ReferenceDataRepository = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

type txStore struct {
	*Store
}

// InTx on a bound store joins the running transaction.
func (t txStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

// InTx runs fn with every other transaction excluded and restores the
// previous state when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	saved := s.st.snapshot()
	s.mu.Unlock()

	if err := fn(txStore{s}); err != nil {
		s.mu.Lock()
		s.st = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

// Enqueue records the job. It is discarded if the transaction rolls back.
func (s *Store) Enqueue(ctx context.Context, args river.JobArgs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.jobs = append(s.st.jobs, args)
	return nil
}

// Jobs returns every committed job in insertion order.
func (s *Store) Jobs() []river.JobArgs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.jobs)
}

// Events returns every persisted domain event in insertion order.
func (s *Store) Events() []domain.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DomainEvent, 0, len(s.st.events))
	for _, e := range s.st.events {
		out = append(out, *clone(e))
	}
	return out
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		panic("memstore: clone: " + err.Error())
	}
	out := new(T)
	if err := gob.NewDecoder(&buf).Decode(out); err != nil {
		panic("memstore: clone: " + err.Error())
	}
	return out
}

func get[T any](s *Store, m func(*state) map[string]*T, id string) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := m(s.st)[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(v), nil
}

func put[T any](s *Store, m func(*state) map[string]*T, id string, v *T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m(s.st)[id] = clone(v)
}

func update[T any](s *Store, m func(*state) map[string]*T, id string, v *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := m(s.st)[id]; !ok {
		return repository.ErrNotFound
	}
	m(s.st)[id] = clone(v)
	return nil
}

func list[T any](s *Store, m func(*state) map[string]*T, keep func(*T) bool, less func(a, b *T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	var picked []*T
	for _, v := range m(s.st) {
		if keep == nil || keep(v) {
			picked = append(picked, v)
		}
	}
	if less != nil {
		sort.Slice(picked, func(i, j int) bool { return less(picked[i], picked[j]) })
	}
	out := make([]T, 0, len(picked))
	for _, v := range picked {
		out = append(out, *clone(v))
	}
	return out
}

func usersOf(s *state) map[string]*domain.User { return s.users }
func appsOf(s *state) map[string]*domain.Application { return s.apps }
func offlineOf(s *state) map[string]*domain.OfflineApplication { return s.offline }
func assessmentsOf(s *state) map[string]*domain.Assessment { return s.assessments }
func notesOf(s *state) map[string]*domain.ClarificationNote { return s.notes }
func requirementsOf(s *state) map[string]*domain.PlacementRequirements { return s.requirements }
func requestsOf(s *state) map[string]*domain.PlacementRequest { return s.requests }
func placementAppsOf(s *state) map[string]*domain.PlacementApplication { return s.placementApps }
func premisesOf(s *state) map[string]*domain.Premises { return s.premises }
func bedsOf(s *state) map[string]*domain.Bed { return s.beds }
func bookingsOf(s *state) map[string]*domain.Booking { return s.bookings }
func spaceBookingsOf(s *state) map[string]*domain.SpaceBooking { return s.spaceBookings }
func oosBedsOf(s *state) map[string]*domain.OutOfServiceBed { return s.oosBeds }
func cas2AppsOf(s *state) map[string]*domain.Cas2Application { return s.cas2Apps }
func cas2AssessOf(s *state) map[string]*domain.Cas2Assessment { return s.cas2Assess }

func byCreated[T any](at func(*T) time.Time) func(a, b *T) bool {
	return func(a, b *T) bool { return at(a).Before(at(b)) }
}
