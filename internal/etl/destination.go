package etl

import "context"

// ── Destination ────────────────────────────────────────────
// A Destination replaces the contents of one warehouse table with a batch.
// Every load is a full refresh: the table's previous rows are discarded.

// Destination writes batches to the warehouse.
type Destination interface {
	// Load ensures schema and table exist, then replaces the table's rows
	// with batch. Returns the number of rows written.
	Load(ctx context.Context, dbSchema string, def *TableDef, batch *Batch) (int, error)
}

// Warehouse is a Destination that can also serve dependency identifiers.
type Warehouse interface {
	Destination
	IDReader
}
