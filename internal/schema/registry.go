package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var payloadJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// ── Registry ───────────────────────────────────────────────
// Schemas are registered once at process start and never mutated.

// Registry holds named resource schemas.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*ResourceSchema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: map[string]*ResourceSchema{}}
}

// Register adds a schema. Names must be unique and descriptors well formed.
func (r *Registry) Register(s *ResourceSchema) error {
	if s == nil {
		return fmt.Errorf("register nil schema")
	}
	if err := s.check(map[*ResourceSchema]bool{}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[s.Name]; exists {
		return fmt.Errorf("schema %q already registered", s.Name)
	}
	r.schemas[s.Name] = s
	return nil
}

// MustRegister is Register for static definitions.
func (r *Registry) MustRegister(schemas ...*ResourceSchema) *Registry {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the schema registered under name.
func (r *Registry) Get(name string) (*ResourceSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema: %q", name)
	}
	return s, nil
}

// Names lists registered schema names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseJSON decodes a raw payload and validates it against the named schema.
func (r *Registry) ParseJSON(data []byte, name string) (Record, error) {
	var raw any
	if err := payloadJSON.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: decode json: %w", name, err)
	}
	return r.Parse(raw, name)
}

// Parse validates an already-decoded JSON value against the named schema.
func (r *Registry) Parse(raw any, name string) (Record, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return Validate(s, raw)
}

// Validate checks raw against s and returns the typed record.
func Validate(s *ResourceSchema, raw any) (Record, error) {
	p := parser{root: s.Name}
	return p.object(s, raw, "", nil)
}

// ── Parser ─────────────────────────────────────────────────

type parser struct {
	root string
}

func (p *parser) fail(path, field string, recordID any, format string, args ...any) error {
	return &ValidationError{
		Schema:   p.root,
		Path:     path,
		Field:    field,
		RecordID: recordID,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func (p *parser) object(s *ResourceSchema, raw any, path string, parentID any) (Record, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, p.fail(path, "", parentID, "expected object for %s, got %s", s.Name, typeName(raw))
	}

	recordID := parentID
	if id, ok := obj[s.idKey()]; ok && id != nil {
		recordID = scalarID(id)
	}

	rec := make(Record, len(s.Fields))
	for _, f := range s.Fields {
		key := f.Key()
		fieldPath := joinPath(path, key)
		v, present := obj[key]
		if !present || v == nil {
			if f.Optional {
				rec[f.Name] = nil
				continue
			}
			if !present {
				return nil, p.fail(fieldPath, key, recordID, "required field missing")
			}
			return nil, p.fail(fieldPath, key, recordID, "required field is null")
		}
		val, err := p.value(f, v, fieldPath, recordID)
		if err != nil {
			return nil, err
		}
		rec[f.Name] = val
	}
	return rec, nil
}

func (p *parser) value(f Field, v any, path string, recordID any) (any, error) {
	key := f.Key()
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, p.fail(path, key, recordID, "expected string, got %s", typeName(v))
		}
		return s, nil

	case KindInt:
		n, ok := toInt(v)
		if !ok {
			return nil, p.fail(path, key, recordID, "expected int, got %s", typeName(v))
		}
		return n, nil

	case KindFloat:
		n, ok := toFloat(v)
		if !ok {
			return nil, p.fail(path, key, recordID, "expected number, got %s", typeName(v))
		}
		return n, nil

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, p.fail(path, key, recordID, "expected bool, got %s", typeName(v))
		}
		return b, nil

	case KindDate:
		s, ok := v.(string)
		if !ok {
			return nil, p.fail(path, key, recordID, "expected date string, got %s", typeName(v))
		}
		d, err := parseDate(s)
		if err != nil {
			return nil, p.fail(path, key, recordID, "invalid date %q", s)
		}
		return d, nil

	case KindTimestamp:
		s, ok := v.(string)
		if !ok {
			return nil, p.fail(path, key, recordID, "expected timestamp string, got %s", typeName(v))
		}
		ts, err := parseTimestamp(s)
		if err != nil {
			return nil, p.fail(path, key, recordID, "invalid timestamp %q", s)
		}
		return ts, nil

	case KindObject:
		return p.object(f.Elem, v, path, recordID)

	case KindList:
		items, ok := v.([]any)
		if !ok {
			return nil, p.fail(path, key, recordID, "expected list, got %s", typeName(v))
		}
		if f.Elem == nil {
			// Free-form list: keep objects, drop anything else.
			out := make([]any, 0, len(items))
			for _, item := range items {
				if m, ok := item.(map[string]any); ok {
					out = append(out, m)
				}
			}
			return out, nil
		}
		out := make([]Record, 0, len(items))
		for i, item := range items {
			rec, err := p.object(f.Elem, item, fmt.Sprintf("%s[%d]", path, i), recordID)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil

	case KindMap:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, p.fail(path, key, recordID, "expected object, got %s", typeName(v))
		}
		return m, nil
	}
	return nil, p.fail(path, key, recordID, "unsupported kind %s", f.Kind)
}

// ── Helpers ────────────────────────────────────────────────

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func scalarID(v any) any {
	if n, ok := toInt(v); ok {
		return n
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func parseDate(s string) (Date, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, err
	}
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp")
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, int, int64:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return strconv.Quote(fmt.Sprintf("%T", v))
	}
}
