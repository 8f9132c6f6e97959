package etl

import (
	"fmt"
	"sort"
)

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format between the normalizer and the loader.
// Every row of a batch carries exactly the batch's column set.

// LoadTimestampColumn is stamped on every row by the normalizer.
const LoadTimestampColumn = "load_timestamp"

// Row is one flat destination row: column name → driver value.
// Nested values are already encoded as JSON text; nil means SQL NULL.
type Row map[string]any

// Batch is the complete set of rows destined for one table in one run.
type Batch struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"` // insert order
	Rows    []Row    `json:"rows"`
}

// Validate checks that every row carries exactly the batch's column set.
func (b *Batch) Validate() error {
	if b.Table == "" {
		return fmt.Errorf("batch has no table")
	}
	if len(b.Columns) == 0 {
		return fmt.Errorf("batch for %s has no columns", b.Table)
	}
	want := make(map[string]bool, len(b.Columns))
	for _, c := range b.Columns {
		if want[c] {
			return fmt.Errorf("batch for %s: duplicate column %q", b.Table, c)
		}
		want[c] = true
	}
	for i, row := range b.Rows {
		if len(row) != len(want) {
			return fmt.Errorf("batch for %s: row %d has columns %v, want %v", b.Table, i, row.columns(), b.Columns)
		}
		for c := range row {
			if !want[c] {
				return fmt.Errorf("batch for %s: row %d has unexpected column %q", b.Table, i, c)
			}
		}
	}
	return nil
}

// Values returns row values in the batch's column order.
func (b *Batch) Values(row Row) []any {
	vals := make([]any, len(b.Columns))
	for i, c := range b.Columns {
		vals[i] = row[c]
	}
	return vals
}

func (r Row) columns() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
