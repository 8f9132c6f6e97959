package schema

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ── Resource Schema ────────────────────────────────────────
// Declarative description of one upstream JSON shape.
// Inspired by pydantic-style contracts, expressed as plain descriptors so
// required/optional/alias metadata stays explicit.

// Kind is the expected type of a field value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindDate      // "2006-01-02"
	KindTimestamp // RFC 3339
	KindObject    // nested record, validated against Elem
	KindList      // list of nested records; free-form objects when Elem is nil
	KindMap       // free-form object kept as-is
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes a single attribute of a resource.
type Field struct {
	Name     string // internal (normalized) name
	Alias    string // upstream JSON key, defaults to Name
	Kind     Kind
	Optional bool
	Elem     *ResourceSchema // for KindObject / KindList
}

// Key returns the upstream JSON key for the field.
func (f Field) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// From sets the upstream alias.
func (f Field) From(alias string) Field {
	f.Alias = alias
	return f
}

// Of sets the nested schema for object and list fields.
func (f Field) Of(s *ResourceSchema) Field {
	f.Elem = s
	return f
}

// Req declares a required field.
func Req(name string, kind Kind) Field {
	return Field{Name: name, Kind: kind}
}

// Opt declares a field that may be absent or null.
func Opt(name string, kind Kind) Field {
	return Field{Name: name, Kind: kind, Optional: true}
}

// ResourceSchema is a named, versioned record shape.
type ResourceSchema struct {
	Name    string
	Version int
	Fields  []Field
	// IDField is the upstream key used to identify a record in errors.
	// Defaults to "id".
	IDField string
}

// New builds a version-1 schema.
func New(name string, fields ...Field) *ResourceSchema {
	return &ResourceSchema{Name: name, Version: 1, Fields: fields}
}

func (s *ResourceSchema) idKey() string {
	if s.IDField != "" {
		return s.IDField
	}
	return "id"
}

// check verifies the descriptor itself, recursing into nested schemas.
func (s *ResourceSchema) check(seen map[*ResourceSchema]bool) error {
	if seen[s] {
		return nil
	}
	seen[s] = true
	if s.Name == "" {
		return fmt.Errorf("schema without name")
	}
	names := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field without name", s.Name)
		}
		if names[f.Name] {
			return fmt.Errorf("schema %s: duplicate field %q", s.Name, f.Name)
		}
		names[f.Name] = true
		if f.Kind == KindObject && f.Elem == nil {
			return fmt.Errorf("schema %s: object field %q has no nested schema", s.Name, f.Name)
		}
		if f.Elem != nil {
			if err := f.Elem.check(seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// ── Validated values ───────────────────────────────────────

// Record is a validated record: internal field names mapped to typed values.
// Values are string, int64, float64, bool, Date, time.Time, Record,
// []Record, []any (free-form objects), map[string]any or nil.
type Record map[string]any

// Lookup walks a dot-separated path through nested records.
func (r Record) Lookup(path string) (any, bool) {
	var current any = r
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case Record:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
	}
	return current, true
}

// Int returns the integer at path, if present and non-null.
func (r Record) Int(path string) (int64, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// DateLayout is the upstream calendar-date format.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// Value lets dates be bound directly as SQL parameters.
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

func (d Date) String() string { return d.Format(DateLayout) }
