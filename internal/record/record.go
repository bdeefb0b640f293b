// Package record holds the flat module description produced once per module
// declaration by the external parser integration, and decodes the JSON files
// that carry it.
package record

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is wrapped by every MalformedError.
var ErrMalformedRecord = errors.New("malformed module record")

// ModuleRecord is one module declaration: identity, interface names and the
// ordered list of sub-instances it declares.
type ModuleRecord struct {
	// Path is the originating file, informational only.
	Path       string
	Name       string
	Ports      []string
	Parameters []string
	Imports    []string
	// Instances is in declaration order.
	Instances []Instance
}

// Instance is a named usage of another module inside a module body.
// Type may be empty when the extractor could not determine it; an empty
// Type never references a module.
type Instance struct {
	Name string
	Type string
}

// MalformedError describes a record that cannot enter a registry.
type MalformedError struct {
	Path   string
	Name   string
	Index  int // position in the file, -1 when unknown
	Reason string
}

func (e *MalformedError) Error() string {
	where := e.Path
	if e.Index >= 0 {
		where = fmt.Sprintf("%s[%d]", e.Path, e.Index)
	}
	if e.Name != "" {
		return fmt.Sprintf("%s: module %q: %s", where, e.Name, e.Reason)
	}
	return fmt.Sprintf("%s: %s", where, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedRecord
}

// Validate reports whether the record may be registered.
func (r ModuleRecord) Validate() error {
	if r.Name == "" {
		return &MalformedError{Path: r.Path, Index: -1, Reason: "empty module name"}
	}
	return nil
}

// HasInstances reports whether the module declares any sub-instance.
func (r ModuleRecord) HasInstances() bool {
	return len(r.Instances) > 0
}

// Instantiates reports whether any instance of r has the given type.
func (r ModuleRecord) Instantiates(typeName string) bool {
	if typeName == "" {
		return false
	}
	for _, inst := range r.Instances {
		if inst.Type == typeName {
			return true
		}
	}
	return false
}
