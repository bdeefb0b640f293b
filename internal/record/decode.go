package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireRecord is the serialized form written by the parser integration.
// Instances travel as two positionally paired arrays.
type wireRecord struct {
	Path       string        `json:"path,omitempty"`
	File       string        `json:"file,omitempty"`
	Name       string        `json:"name"`
	Ports      []string      `json:"ports"`
	Parameters []string      `json:"parameters"`
	Imports    []string      `json:"imports"`
	Instances  wireInstances `json:"instances"`
}

type wireInstances struct {
	Name []string `json:"name"`
	Type []string `json:"type"`
}

// MarshalJSON writes the record in the wire form it was read from.
func (r ModuleRecord) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Path:       r.Path,
		Name:       r.Name,
		Ports:      nonNil(r.Ports),
		Parameters: nonNil(r.Parameters),
		Imports:    nonNil(r.Imports),
		Instances: wireInstances{
			Name: make([]string, 0, len(r.Instances)),
			Type: make([]string, 0, len(r.Instances)),
		},
	}
	for _, inst := range r.Instances {
		w.Instances.Name = append(w.Instances.Name, inst.Name)
		w.Instances.Type = append(w.Instances.Type, inst.Type)
	}
	return json.Marshal(w)
}

// EntryCheck inspects a raw entry before it is decoded. A non-nil error
// rejects the entry, with the error text as the reason.
type EntryCheck func(raw json.RawMessage) error

// Decode reads one record file. Three shapes are accepted: a single record
// object, an array of records, or an object mapping module name to record.
// Records come back in file order. Entries that fail check or cannot be
// registered are returned as MalformedErrors; a non-nil error means the file
// as a whole is unusable. A nil check accepts every entry.
func Decode(path string, data []byte, check EntryCheck) ([]ModuleRecord, []*MalformedError, error) {
	raws, err := Split(path, data)
	if err != nil {
		return nil, nil, err
	}

	var records []ModuleRecord
	var malformed []*MalformedError
	for i, raw := range raws {
		if check != nil {
			if err := check(raw); err != nil {
				malformed = append(malformed, &MalformedError{Path: path, Index: i, Reason: err.Error()})
				continue
			}
		}
		rec, merr := DecodeEntry(path, i, raw)
		if merr != nil {
			malformed = append(malformed, merr)
			continue
		}
		records = append(records, rec)
	}
	return records, malformed, nil
}

// Split returns the raw record entries of a file in file order.
func Split(path string, data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decoding %s: empty input", path)
	}

	var raws []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	case '{':
		single, err := isSingleRecord(trimmed)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		if single {
			return []json.RawMessage{trimmed}, nil
		}
		raws, err = orderedValues(trimmed)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("decoding %s: expected object or array", path)
	}
	return raws, nil
}

// DecodeEntry converts one raw entry of file path, at position index.
func DecodeEntry(path string, index int, raw json.RawMessage) (ModuleRecord, *MalformedError) {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return ModuleRecord{}, &MalformedError{Path: path, Index: index, Reason: err.Error()}
	}
	return fromWire(path, index, w)
}

func fromWire(path string, index int, w wireRecord) (ModuleRecord, *MalformedError) {
	origin := w.Path
	if origin == "" {
		origin = w.File
	}
	if origin == "" {
		origin = path
	}

	if w.Name == "" {
		return ModuleRecord{}, &MalformedError{Path: origin, Index: index, Reason: "empty module name"}
	}
	if len(w.Instances.Name) != len(w.Instances.Type) {
		return ModuleRecord{}, &MalformedError{
			Path:   origin,
			Name:   w.Name,
			Index:  index,
			Reason: fmt.Sprintf("instance name/type count mismatch (%d names, %d types)", len(w.Instances.Name), len(w.Instances.Type)),
		}
	}

	rec := ModuleRecord{
		Path:       origin,
		Name:       w.Name,
		Ports:      nonNil(w.Ports),
		Parameters: nonNil(w.Parameters),
		Imports:    nonNil(w.Imports),
		Instances:  make([]Instance, len(w.Instances.Name)),
	}
	for i := range w.Instances.Name {
		rec.Instances[i] = Instance{Name: w.Instances.Name[i], Type: w.Instances.Type[i]}
	}
	return rec, nil
}

// isSingleRecord tells a lone record object apart from a name->record mapping.
// A mapping only ever holds object values. A record's "name" is a string, so
// a mapping may still carry a module called "name".
func isSingleRecord(data []byte) (bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return true, nil
	}
	for _, v := range fields {
		v = bytes.TrimSpace(v)
		if len(v) == 0 || v[0] != '{' {
			return true, nil
		}
	}
	return false, nil
}

// orderedValues returns the values of a JSON object in key order.
func orderedValues(data []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var values []json.RawMessage
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		values = append(values, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return values, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
