package schema

import "fmt"

// ValidationError reports a payload that does not satisfy its schema.
type ValidationError struct {
	Schema   string // top-level schema being parsed
	Path     string // upstream path, e.g. competitions[3].area.name
	Field    string // upstream key of the offending field
	RecordID any    // id of the nearest enclosing record, nil if unknown
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.RecordID != nil {
		return fmt.Sprintf("validate %s: record %v: %s: %s", e.Schema, e.RecordID, e.Path, e.Reason)
	}
	return fmt.Sprintf("validate %s: %s: %s", e.Schema, e.Path, e.Reason)
}
