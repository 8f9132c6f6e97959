package etl

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"football/internal/schema"
)

// ── Normalizer ─────────────────────────────────────────────
// Flattens validated records into rows. Nested records and lists become
// JSON text with sorted keys; absent or null values stay nil. A mapping may
// expand nested lists so one record yields one row per innermost element.

var columnJSON = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

// ColumnMapping binds one destination column to a value path.
//
// The first path segment may name an expand level (the last segment of an
// Expand entry); the rest of the path is then resolved against the current
// element of that level. Otherwise the path is resolved against the record.
type ColumnMapping struct {
	Name string `json:"name"`
	Path string `json:"path"`
	JSON bool   `json:"json,omitempty"` // encode the value as JSON text
}

// Mapping describes how records of one pipeline become rows of one table.
type Mapping struct {
	Table string `json:"table"`
	// Expand lists nested list paths, outermost first. Each path is resolved
	// against the element of the previous level (the record for the first).
	Expand  []string        `json:"expand,omitempty"`
	Columns []ColumnMapping `json:"columns"`
}

// ColumnNames returns the batch column order: mapped columns, then load_timestamp.
func (m *Mapping) ColumnNames() []string {
	names := make([]string, 0, len(m.Columns)+1)
	for _, c := range m.Columns {
		names = append(names, c.Name)
	}
	return append(names, LoadTimestampColumn)
}

func (m *Mapping) levelNames() []string {
	names := make([]string, len(m.Expand))
	for i, p := range m.Expand {
		names[i] = p[strings.LastIndex(p, ".")+1:]
	}
	return names
}

// Normalizer turns validated records into a Batch.
type Normalizer struct {
	// Now is the clock for load_timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Normalize flattens records according to m. All rows share one
// load_timestamp taken once per call.
func (n *Normalizer) Normalize(records []schema.Record, m *Mapping) (*Batch, error) {
	now := time.Now
	if n != nil && n.Now != nil {
		now = n.Now
	}
	loadedAt := now().UTC()

	batch := &Batch{Table: m.Table, Columns: m.ColumnNames()}
	levels := m.levelNames()
	for i, rec := range records {
		f := flattener{mapping: m, levels: levels, loadedAt: loadedAt}
		rows, err := f.expand(rec, 0, make([]schema.Record, 0, len(levels)))
		if err != nil {
			return nil, fmt.Errorf("normalize %s record %d: %w", m.Table, i, err)
		}
		batch.Rows = append(batch.Rows, rows...)
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return batch, nil
}

type flattener struct {
	mapping  *Mapping
	levels   []string
	loadedAt time.Time
}

// expand walks the expand levels depth-first, emitting a row per innermost element.
func (f *flattener) expand(root schema.Record, depth int, elems []schema.Record) ([]Row, error) {
	if depth == len(f.levels) {
		row, err := f.row(root, elems)
		if err != nil {
			return nil, err
		}
		return []Row{row}, nil
	}

	parent := root
	if depth > 0 {
		parent = elems[depth-1]
	}
	raw, _ := parent.Lookup(f.mapping.Expand[depth])
	items, err := asRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", f.mapping.Expand[depth], err)
	}

	var rows []Row
	for _, item := range items {
		sub, err := f.expand(root, depth+1, append(elems, item))
		if err != nil {
			return nil, err
		}
		rows = append(rows, sub...)
	}
	return rows, nil
}

func (f *flattener) row(root schema.Record, elems []schema.Record) (Row, error) {
	row := make(Row, len(f.mapping.Columns)+1)
	for _, col := range f.mapping.Columns {
		v := f.resolve(root, elems, col.Path)
		out, err := columnValue(v, col.JSON)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		row[col.Name] = out
	}
	row[LoadTimestampColumn] = f.loadedAt
	return row, nil
}

func (f *flattener) resolve(root schema.Record, elems []schema.Record, path string) any {
	head, rest, nested := strings.Cut(path, ".")
	// Innermost level wins when level names repeat.
	for i := len(elems) - 1; i >= 0; i-- {
		if f.levels[i] != head {
			continue
		}
		if !nested {
			return elems[i]
		}
		v, _ := elems[i].Lookup(rest)
		return v
	}
	v, _ := root.Lookup(path)
	return v
}

// ── Helpers ────────────────────────────────────────────────

func asRecords(v any) ([]schema.Record, error) {
	switch items := v.(type) {
	case nil:
		return nil, nil
	case []schema.Record:
		return items, nil
	case []any:
		out := make([]schema.Record, 0, len(items))
		for i, item := range items {
			switch m := item.(type) {
			case schema.Record:
				out = append(out, m)
			case map[string]any:
				out = append(out, schema.Record(m))
			default:
				return nil, fmt.Errorf("item %d is %T, not an object", i, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}

// compact drops null members of nested objects so absent optional fields
// are not written out as explicit nulls.
func compact(v any) any {
	switch val := v.(type) {
	case schema.Record:
		return compact(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if item != nil {
				out[k] = compact(item)
			}
		}
		return out
	case []schema.Record:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = compact(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = compact(item)
		}
		return out
	default:
		return v
	}
}

// columnValue converts a record value into a driver value.
func columnValue(v any, asJSON bool) (any, error) {
	if v == nil {
		return nil, nil
	}
	if asJSON {
		b, err := columnJSON.Marshal(compact(v))
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return string(b), nil
	}
	switch val := v.(type) {
	case string, bool, int64, float64, time.Time:
		return val, nil
	case int:
		return int64(val), nil
	case schema.Date:
		return val.Time, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	default:
		return nil, fmt.Errorf("nested %T value in a scalar column", v)
	}
}
