// Package main runs CSV seed jobs outside the HTTP server.
//
// A single file is seeded with -type and -file. With -all every known seed
// type is run in dependency order from <type>.csv in the seed directory;
// types without a file are skipped.
//
// Import Path: approvedpremises.io/cas/cmd/seed
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/cache"
	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/infrastructure"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/seed"
	"approvedpremises.io/cas/internal/service"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

// step is one seed file to run.
type step struct {
	seedType seed.Type
	file     string
}

type options struct {
	seedType string
	file     string
	all      bool
	dir      string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.seedType, "type", "", "seed type, e.g. approved_premises")
	fs.StringVar(&o.file, "file", "", "CSV file name inside the seed directory")
	fs.BoolVar(&o.all, "all", false, "seed every type from <type>.csv in dependency order")
	fs.StringVar(&o.dir, "dir", "", "seed directory (defaults to seed.directory)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

// plan resolves the flags into the ordered list of files to seed.
func plan(o options, dir string) ([]step, error) {
	if o.all {
		if o.seedType != "" || o.file != "" {
			return nil, errors.New("-all cannot be combined with -type or -file")
		}
		var steps []step
		for _, t := range seed.Types() {
			name := string(t) + ".csv"
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("stat %s: %w", name, err)
			}
			steps = append(steps, step{seedType: t, file: name})
		}
		if len(steps) == 0 {
			return nil, fmt.Errorf("no seed files found in %s", dir)
		}
		return steps, nil
	}

	t, ok := seed.ParseType(o.seedType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", seed.ErrUnknownType, o.seedType)
	}
	if o.file == "" {
		return nil, errors.New("-file is required with -type")
	}
	return []step{{seedType: t, file: o.file}}, nil
}

func run(args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	dir := cfg.Seed.Directory
	if opts.dir != "" {
		dir = opts.dir
	}
	steps, err := plan(opts, dir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	// Schema migrations are expected to have run before seeding.
	var refCache cache.ReferenceCache = cache.Nop{}
	if cfg.Redis.URL != "" {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, cached reference data will expire on its own", zap.Error(err))
		} else {
			defer client.Close()
			refCache = cache.NewRedis(client, cfg.Redis.TTL)
		}
	}
	m := metrics.New()
	reference := service.NewReferenceDataService(db.Reference, refCache, m)
	runner := seed.NewRunner(dir, seed.SQLTransactor(db.Reference), reference, m)

	for _, s := range steps {
		report, err := runner.Run(ctx, s.seedType, s.file)
		if err != nil {
			return err
		}
		printReport(out, report)
	}
	return nil
}

func printReport(out io.Writer, r *seed.Report) {
	fmt.Fprintf(out, "%s (%s): %d rows, %d applied, %d rejected\n",
		r.SeedType, r.FileName, r.Rows, r.Applied, len(r.RowErrors))
	for _, e := range r.RowErrors {
		fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Message)
	}
}
