// Package loader reads module record files concurrently and returns their
// records in input order.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/sv-hier/internal/facts"
	"github.com/robert-at-pretension-io/sv-hier/internal/logging"
	"github.com/robert-at-pretension-io/sv-hier/internal/record"
	"github.com/robert-at-pretension-io/sv-hier/internal/registry"
	"github.com/robert-at-pretension-io/sv-hier/internal/validator"
)

// Options configures Load.
type Options struct {
	// MaxParallel bounds concurrent file reads (0 = GOMAXPROCS).
	MaxParallel int
	// Validator checks each entry against the record contract. Nil skips it.
	Validator *validator.RecordValidator
	Logger    *slog.Logger
}

// ParseError is a file that could not be used at all.
type ParseError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func (e ParseError) Error() string {
	return e.File + ": " + e.Message
}

// FileRecords holds the records of one file, in file order.
type FileRecords struct {
	Path    string
	Records []record.ModuleRecord
}

// Result is everything read from one set of files.
type Result struct {
	Files       []FileRecords
	ParseErrors []ParseError
	// Rejected holds entries that were readable but malformed.
	Rejected []registry.Rejection
	// Skipped lists files holding fact output rather than records.
	Skipped []string
}

// Records flattens the loaded records in file order.
func (r *Result) Records() []record.ModuleRecord {
	var out []record.ModuleRecord
	for _, f := range r.Files {
		out = append(out, f.Records...)
	}
	return out
}

type fileResult struct {
	records  []record.ModuleRecord
	rejected []registry.Rejection
	parseErr *ParseError
	skipped  bool
}

// Load reads files concurrently. Per-file problems never fail the load; they
// come back as ParseErrors or Rejected rows. The only error is cancellation.
func Load(ctx context.Context, files []string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	limit := opts.MaxParallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = loadFile(file, opts.Validator, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading record files: %w", err)
	}

	res := &Result{
		Files:       make([]FileRecords, 0, len(files)),
		ParseErrors: []ParseError{},
		Rejected:    []registry.Rejection{},
		Skipped:     []string{},
	}
	for i, file := range files {
		r := results[i]
		if r.parseErr != nil {
			res.ParseErrors = append(res.ParseErrors, *r.parseErr)
			continue
		}
		if r.skipped {
			res.Skipped = append(res.Skipped, file)
			continue
		}
		res.Files = append(res.Files, FileRecords{Path: file, Records: r.records})
		res.Rejected = append(res.Rejected, r.rejected...)
	}
	return res, nil
}

func loadFile(path string, v *validator.RecordValidator, logger *slog.Logger) fileResult {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("cannot read record file", slog.String("file", path), slog.String("error", err.Error()))
		return fileResult{parseErr: &ParseError{File: path, Message: err.Error()}}
	}

	if facts.IsDocument(data) {
		logger.Info("skipping fact tables file", slog.String("file", path))
		return fileResult{skipped: true}
	}

	var check record.EntryCheck
	if v != nil {
		check = func(raw json.RawMessage) error {
			if problems := v.ValidationErrors(raw); len(problems) > 0 {
				return fmt.Errorf("schema: %s", strings.Join(problems, "; "))
			}
			return nil
		}
	}

	records, malformed, err := record.Decode(path, data, check)
	if err != nil {
		logger.Warn("cannot decode record file", slog.String("file", path), slog.String("error", err.Error()))
		return fileResult{parseErr: &ParseError{File: path, Message: err.Error()}}
	}

	out := fileResult{records: records}
	for _, merr := range malformed {
		logger.Warn("malformed module record", slog.String("file", path), slog.Int("index", merr.Index), slog.String("error", merr.Reason))
		out.rejected = append(out.rejected, registry.RejectionFrom(merr, path))
	}
	logger.Debug("loaded record file", slog.String("file", path), slog.Int("records", len(out.records)))
	return out
}
