// Package seed loads reference and estate data from CSV files.
//
// A run reads one file from the seed directory inside one transaction.
// Structural problems abort the run and roll everything back; business-rule
// problems on a row are collected and the remaining rows still commit.
//
// Import Path: approvedpremises.io/cas/internal/seed
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/pkg/worker"
	"approvedpremises.io/cas/internal/repository/sqlstore"
)

var tracer = otel.Tracer("approvedpremises.io/cas/internal/seed")

var (
	// ErrStructural aborts a run: unreadable file, missing headers or a
	// value that cannot be deserialised.
	ErrStructural = errors.New("seed file is structurally invalid")
	// ErrInvalidFileName rejects names that would leave the seed directory.
	ErrInvalidFileName = errors.New("seed file name must not contain a path")
	// ErrUnknownType is returned for an unsupported seed type.
	ErrUnknownType = errors.New("unknown seed type")
)

// Type names a seed job.
type Type string

const (
	TypeCharacteristics     Type = "characteristics"
	TypeCancellationReasons Type = "cancellation_reasons"
	TypeDepartureReasons    Type = "departure_reasons"
	TypeMoveOnCategories    Type = "move_on_categories"
	TypeNonArrivalReasons   Type = "non_arrival_reasons"
	TypeProbationRegions    Type = "probation_regions"
	TypePostcodeDistricts   Type = "postcode_districts"
	TypeUsers               Type = "users"
	TypeApprovedPremises    Type = "approved_premises"
	TypeBeds                Type = "beds"
)

// Writer is the set of upserts a seed run needs. *sqlstore.Store
// implements it.
type Writer interface {
	UpsertReferenceData(ctx context.Context, r domain.ReferenceData) error
	UpsertPostcodeDistrict(ctx context.Context, d domain.PostcodeDistrict) error
	UpsertUser(ctx context.Context, u domain.User) error
	UpsertPremises(ctx context.Context, p domain.Premises) error
	UpsertBed(ctx context.Context, b domain.Bed) error
	PremisesExists(ctx context.Context, id string) (bool, error)
}

// Transactor runs fn inside one transaction and commits when it succeeds.
type Transactor func(ctx context.Context, fn func(w Writer) error) error

// SQLTransactor adapts a sqlstore.Store.
func SQLTransactor(s *sqlstore.Store) Transactor {
	return func(ctx context.Context, fn func(w Writer) error) error {
		return s.InTx(ctx, func(tx *sqlstore.Store) error { return fn(tx) })
	}
}

// Invalidator drops cached reference lists; implemented by
// service.ReferenceDataService.
type Invalidator interface {
	Invalidate(ctx context.Context, kind domain.ReferenceKind) error
}

// RowError is a business-rule failure on one data row. Row counts data rows
// from 1, excluding the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Report summarises a completed run.
type Report struct {
	SeedType  Type       `json:"seedType"`
	FileName  string     `json:"fileName"`
	Rows      int        `json:"rows"`
	Applied   int        `json:"applied"`
	RowErrors []RowError `json:"rowErrors,omitempty"`
}

// Runner executes seed jobs.
type Runner struct {
	dir     string
	inTx    Transactor
	cache   Invalidator
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRunner creates a runner reading from dir. cache and m may be nil.
func NewRunner(dir string, inTx Transactor, cache Invalidator, m *metrics.Metrics) *Runner {
	return &Runner{dir: dir, inTx: inTx, cache: cache, metrics: m, now: time.Now}
}

// Run seeds one file and returns the report. Row errors do not fail the run.
func (r *Runner) Run(ctx context.Context, seedType Type, fileName string) (*Report, error) {
	ctx, span := tracer.Start(ctx, "seed.Run")
	defer span.End()
	span.SetAttributes(attribute.String("seed.type", string(seedType)), attribute.String("seed.file", fileName))

	report, err := r.run(ctx, seedType, fileName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seed run failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("seed.rows", report.Rows), attribute.Int("seed.row_errors", len(report.RowErrors)))
	return report, nil
}

func (r *Runner) run(ctx context.Context, seedType Type, fileName string) (*Report, error) {
	job, ok := jobs[seedType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, seedType)
	}
	if err := checkFileName(fileName); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(r.dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStructural, fileName, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header of %s: %v", ErrStructural, fileName, err)
	}
	cols, err := indexHeader(header, job.required)
	if err != nil {
		return nil, err
	}

	report := &Report{SeedType: seedType, FileName: fileName}
	err = r.inTx(ctx, func(w Writer) error {
		report.Rows, report.Applied, report.RowErrors = 0, 0, nil
		for {
			fields, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			report.Rows++
			if err != nil {
				return fmt.Errorf("%w: row %d: %v", ErrStructural, report.Rows, err)
			}
			rec := record{row: report.Rows, cols: cols, fields: fields}
			msg, err := job.apply(ctx, w, rec, r.now())
			if err != nil {
				return err
			}
			if msg != "" {
				report.RowErrors = append(report.RowErrors, RowError{Row: rec.row, Message: msg})
				r.metrics.SeedRow(string(seedType), "error")
				continue
			}
			report.Applied++
			r.metrics.SeedRow(string(seedType), "applied")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("seed %s from %s: %w", seedType, fileName, err)
	}

	if job.kind != "" && r.cache != nil {
		if err := r.cache.Invalidate(ctx, job.kind); err != nil {
			logger.FromContext(ctx).Warn("Reference cache invalidation failed",
				zap.String("kind", string(job.kind)), zap.Error(err))
		}
	}

	log := logger.FromContext(ctx).With(zap.String("seed_type", string(seedType)), zap.String("file", fileName))
	for _, e := range report.RowErrors {
		log.Warn("Seed row rejected", zap.Int("row", e.Row), zap.String("message", e.Message))
	}
	log.Info("Seed run completed",
		zap.Int("rows", report.Rows),
		zap.Int("applied", report.Applied),
		zap.Int("row_errors", len(report.RowErrors)),
	)
	return report, nil
}

// RunDetached runs the job on the seed pool. It fails fast when the pool is
// busy.
func (r *Runner) RunDetached(pools *worker.Pools, seedType Type, fileName string) error {
	if _, ok := jobs[seedType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, seedType)
	}
	if err := checkFileName(fileName); err != nil {
		return err
	}
	return pools.SubmitDetached(worker.PoolSeed, func(ctx context.Context) {
		if _, err := r.Run(ctx, seedType, fileName); err != nil {
			logger.Error("Seed run failed",
				zap.String("seed_type", string(seedType)),
				zap.String("file", fileName),
				zap.Error(err),
			)
		}
	})
}

// Types lists every seed type in dependency order: regions before users and
// premises, premises before beds.
func Types() []Type {
	return []Type{
		TypeProbationRegions,
		TypeCharacteristics,
		TypeCancellationReasons,
		TypeDepartureReasons,
		TypeMoveOnCategories,
		TypeNonArrivalReasons,
		TypePostcodeDistricts,
		TypeUsers,
		TypeApprovedPremises,
		TypeBeds,
	}
}

// ParseType validates a seed type name.
func ParseType(raw string) (Type, bool) {
	t := Type(strings.TrimSpace(raw))
	_, ok := jobs[t]
	return t, ok
}

func checkFileName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return nil
}

func indexHeader(header, required []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing headers: %s", ErrStructural, strings.Join(missing, ", "))
	}
	return cols, nil
}
