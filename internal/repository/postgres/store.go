// Package postgres implements repository.Store on a pgx connection pool.
//
// Every write of a request runs in one pgx.Tx; River jobs are inserted
// with InsertTx on the same transaction so they commit together with the
// rows that caused them.
//
// Import Path: approvedpremises.io/cas/internal/repository/postgres
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"approvedpremises.io/cas/internal/repository"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobInserter is the part of *river.Client[pgx.Tx] the store needs.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// jobsRef is shared by a pool store and every transaction store made from
// it, so the River client can be attached after construction.
type jobsRef struct {
	inserter JobInserter
}

// Store implements repository.Store.
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
	tx   pgx.Tx
	jobs *jobsRef
}

var _ repository.Store = (*Store)(nil)

// New creates a pool-bound Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool, jobs: &jobsRef{}}
}

// SetJobInserter attaches the River client once workers are registered.
func (s *Store) SetJobInserter(j JobInserter) {
	s.jobs.inserter = j
}

// WithTx returns a Store bound to tx.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{pool: s.pool, db: tx, tx: tx, jobs: s.jobs}
}

// InTx implements repository.Store.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if s.pool == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Enqueue implements repository.Store.
func (s *Store) Enqueue(ctx context.Context, args river.JobArgs) error {
	if s.jobs == nil || s.jobs.inserter == nil {
		return fmt.Errorf("enqueue %s: job client not initialized", args.Kind())
	}
	var err error
	if s.tx != nil {
		_, err = s.jobs.inserter.InsertTx(ctx, s.tx, args, nil)
	} else {
		_, err = s.jobs.inserter.Insert(ctx, args, nil)
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", args.Kind(), err)
	}
	return nil
}

// one maps pgx.ErrNoRows to repository.ErrNotFound.
func one(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

// mustAffect turns a zero-row update into repository.ErrNotFound.
func mustAffect(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, err error, what string, scan func(pgx.Row) (*T, error)) ([]T, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", what, err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return out, nil
}

// nullIfEmpty stores "" as NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
