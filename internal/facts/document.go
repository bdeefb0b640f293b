package facts

import "encoding/json"

// IsDocument reports whether data is fact tables, a delta or a snapshot as
// written by this package. Record loading uses it to skip fact output that
// sits next to record files.
func IsDocument(data []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	switch {
	case hasExactly(fields, "modules", "instances", "tops", "trees"):
		return true
	case hasExactly(fields, "added", "removed"):
		return IsDocument(fields["added"])
	case hasExactly(fields, "version", "tables"):
		return IsDocument(fields["tables"])
	}
	return false
}

func hasExactly(fields map[string]json.RawMessage, keys ...string) bool {
	if len(fields) != len(keys) {
		return false
	}
	for _, k := range keys {
		if _, ok := fields[k]; !ok {
			return false
		}
	}
	return true
}
