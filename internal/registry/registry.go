// Package registry indexes module records by name for one analysis run.
package registry

import (
	"errors"
	"log/slog"

	"github.com/robert-at-pretension-io/sv-hier/internal/record"
)

// Registry owns the module records of one analysis run. Enumeration order is
// first-insertion order; a later record with the same name replaces the
// earlier one in place.
//
// A Registry is not safe for concurrent mutation. Once fully built, read-only
// queries from several goroutines are safe.
type Registry struct {
	logger    *slog.Logger
	order     []string
	byName    map[string]*record.ModuleRecord
	overrides []Override
}

// Override records that a module declaration replaced an earlier one.
type Override struct {
	Name         string `json:"name"`
	PreviousPath string `json:"previous_path"`
	Path         string `json:"path"`
}

// Rejection is a record that was refused by Build.
type Rejection struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// New returns an empty registry. A nil logger discards output.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger: logger,
		byName: make(map[string]*record.ModuleRecord),
	}
}

// Build registers records in order, skipping and reporting malformed ones.
func Build(records []record.ModuleRecord, logger *slog.Logger) (*Registry, []Rejection) {
	reg := New(logger)
	var rejected []Rejection
	for _, rec := range records {
		if err := reg.Add(rec); err != nil {
			rejected = append(rejected, RejectionFrom(err, rec.Path))
		}
	}
	return reg, rejected
}

// RejectionFrom converts a malformed-record error into a Rejection row.
func RejectionFrom(err error, path string) Rejection {
	var merr *record.MalformedError
	if errors.As(err, &merr) {
		return Rejection{Path: merr.Path, Name: merr.Name, Reason: merr.Reason}
	}
	return Rejection{Path: path, Reason: err.Error()}
}

// Add registers rec. Malformed records are refused with an error wrapping
// record.ErrMalformedRecord and leave the registry unchanged.
func (r *Registry) Add(rec record.ModuleRecord) error {
	if err := rec.Validate(); err != nil {
		r.logger.Warn("rejecting module record",
			slog.String("path", rec.Path),
			slog.String("error", err.Error()))
		return err
	}

	stored := rec
	if prev, ok := r.byName[rec.Name]; ok {
		r.overrides = append(r.overrides, Override{Name: rec.Name, PreviousPath: prev.Path, Path: rec.Path})
		r.logger.Warn("module redefined, later declaration wins",
			slog.String("module", rec.Name),
			slog.String("previous", prev.Path),
			slog.String("path", rec.Path))
	} else {
		r.order = append(r.order, rec.Name)
	}
	r.byName[rec.Name] = &stored
	return nil
}

// Lookup returns the record registered under name. Absence is a normal
// outcome: instance types often name black-box modules.
func (r *Registry) Lookup(name string) (*record.ModuleRecord, bool) {
	rec, ok := r.byName[name]
	return rec, ok
}

// Names returns all registered module names in enumeration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Records returns all records in enumeration order.
func (r *Registry) Records() []*record.ModuleRecord {
	out := make([]*record.ModuleRecord, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.order)
}

// Overrides lists every redefinition seen while building, in order.
func (r *Registry) Overrides() []Override {
	out := make([]Override, len(r.overrides))
	copy(out, r.overrides)
	return out
}

// ParentsOf returns, in enumeration order, every record with at least one
// instance of type name. A self-instantiating module is its own parent.
func (r *Registry) ParentsOf(name string) []*record.ModuleRecord {
	var parents []*record.ModuleRecord
	for _, candidate := range r.order {
		rec := r.byName[candidate]
		if rec.Instantiates(name) {
			r.logger.Debug("parent found",
				slog.String("module", name),
				slog.String("parent", rec.Name))
			parents = append(parents, rec)
		}
	}
	return parents
}
