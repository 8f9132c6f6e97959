package etl

import "fmt"

// ── Table definitions ──────────────────────────────────────
// Declarative DDL descriptors, one per destination table. Dialects in
// dbclient render them; the pipeline registry checks them at startup.

// LogicalType is a dialect-neutral column type.
type LogicalType string

const (
	TypeText      LogicalType = "text"
	TypeInteger   LogicalType = "integer"
	TypeBigInt    LogicalType = "bigint"
	TypeFloat     LogicalType = "float"
	TypeBoolean   LogicalType = "boolean"
	TypeDate      LogicalType = "date"
	TypeTimestamp LogicalType = "timestamp"
	TypeJSON      LogicalType = "json"
)

// ColumnDef describes one column.
type ColumnDef struct {
	Name     string      `json:"name"`
	Type     LogicalType `json:"type"`
	Nullable bool        `json:"nullable"`
}

// TableDef describes one destination table.
type TableDef struct {
	Name    string      `json:"name"`
	Columns []ColumnDef `json:"columns"`
	// Unique lists composite natural keys. Each becomes a UNIQUE constraint.
	Unique [][]string `json:"unique,omitempty"`
}

// Column returns the named column definition.
func (t *TableDef) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// Validate checks the descriptor is self-consistent.
func (t *TableDef) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table definition has no name")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s: column with empty name", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
		switch c.Type {
		case TypeText, TypeInteger, TypeBigInt, TypeFloat, TypeBoolean, TypeDate, TypeTimestamp, TypeJSON:
		default:
			return fmt.Errorf("table %s: column %s has unknown type %q", t.Name, c.Name, c.Type)
		}
	}
	for _, key := range t.Unique {
		if len(key) == 0 {
			return fmt.Errorf("table %s: empty unique key", t.Name)
		}
		for _, col := range key {
			if !seen[col] {
				return fmt.Errorf("table %s: unique key references unknown column %q", t.Name, col)
			}
		}
	}
	return nil
}
