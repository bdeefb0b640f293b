package validator

// =============================================================================
// VALIDATOR PHILOSOPHY: CHECK THE CONTRACT AT EVERY BOUNDARY
// =============================================================================
//
// Records arrive from an external parser integration we do not control, and
// our JSON report is consumed by renderers we do not control. CUE schemas
// pin down both ends:
//
// - record_schema.cue: every entry of every record file. An entry that does
//   not match is rejected as a malformed record, the rest of the file stays.
// - output_schema.cue: the report printed with --json. A mismatch here is a
//   bug in this program and fails the command.
// - facts_schema.cue: relational fact tables and deltas written to disk.
//
// When validation fails, fix the producer. Don't loosen the schema to make an
// error go away.
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed record_schema.cue
var recordSchemaFS embed.FS

//go:embed output_schema.cue
var outputSchemaFS embed.FS

//go:embed facts_schema.cue
var factsSchemaFS embed.FS

// schema is one compiled CUE file.
type schema struct {
	ctx   *cue.Context
	value cue.Value
}

func compile(fs embed.FS, name string) (schema, error) {
	ctx := cuecontext.New()

	schemaBytes, err := fs.ReadFile(name)
	if err != nil {
		return schema{}, fmt.Errorf("loading embedded schema %s: %w", name, err)
	}

	value := ctx.CompileBytes(schemaBytes)
	if value.Err() != nil {
		return schema{}, fmt.Errorf("compiling schema %s: %w", name, value.Err())
	}

	return schema{ctx: ctx, value: value}, nil
}

func (s schema) unify(jsonBytes []byte, path string) (cue.Value, error) {
	dataValue := s.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	def := s.value.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}

	return def.Unify(dataValue), nil
}

func (s schema) validateJSON(jsonBytes []byte, path string) error {
	unified, err := s.unify(jsonBytes, path)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func (s schema) validate(data interface{}, path string) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return s.validateJSON(jsonBytes, path)
}

// RecordValidator checks module record entries against record_schema.cue.
type RecordValidator struct {
	schema schema
}

// NewRecordValidator compiles the embedded record schema.
func NewRecordValidator() (*RecordValidator, error) {
	s, err := compile(recordSchemaFS, "record_schema.cue")
	if err != nil {
		return nil, err
	}
	return &RecordValidator{schema: s}, nil
}

// ValidationErrors returns every problem with a record entry, one per line
// of CUE output. Nil means the entry is valid.
func (v *RecordValidator) ValidationErrors(jsonBytes []byte) []string {
	unified, err := v.schema.unify(jsonBytes, "#ModuleRecord")
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// OutputValidator validates the JSON report against output_schema.cue.
type OutputValidator struct {
	schema schema
}

// NewOutputValidator creates a validator for the report.
func NewOutputValidator() (*OutputValidator, error) {
	s, err := compile(outputSchemaFS, "output_schema.cue")
	if err != nil {
		return nil, err
	}
	return &OutputValidator{schema: s}, nil
}

// Validate checks that the report conforms to #Report.
func (v *OutputValidator) Validate(data interface{}) error {
	if err := v.schema.validate(data, "#Report"); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// FactsValidator validates relational fact tables against facts_schema.cue.
type FactsValidator struct {
	schema schema
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	s, err := compile(factsSchemaFS, "facts_schema.cue")
	if err != nil {
		return nil, err
	}
	return &FactsValidator{schema: s}, nil
}

// Validate checks that the fact tables conform to #FactTables.
func (v *FactsValidator) Validate(data interface{}) error {
	if err := v.schema.validate(data, "#FactTables"); err != nil {
		return fmt.Errorf("facts: %w", err)
	}
	return nil
}

// ValidateDelta checks a delta against #Delta.
func (v *FactsValidator) ValidateDelta(data interface{}) error {
	if err := v.schema.validate(data, "#Delta"); err != nil {
		return fmt.Errorf("delta: %w", err)
	}
	return nil
}
