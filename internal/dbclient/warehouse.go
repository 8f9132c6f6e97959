package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"football/internal/etl"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect renders the SQL that differs between warehouse engines.
type dialect interface {
	quote(ident string) string
	tableRef(schema, table string) string
	placeholder(n int) string
	columnType(t etl.LogicalType) string
	schemaExists(ctx context.Context, q querier, schema string) (bool, error)
	tableExists(ctx context.Context, q querier, schema, table string) (bool, error)
	// createSchema returns "" when the engine has no schemas.
	createSchema(schema string) string
	// uniqueIndex renders CREATE UNIQUE INDEX name ON schema.table (parts).
	uniqueIndex(schema, table, name string, parts []string) string
	truncate(ref string) string
	maxParams() int
}

// Load stages, reported in LoadError.
const (
	StageValidate    = "validate"
	StageSchema      = "schema"
	StageCreateTable = "create_table"
	StageTruncate    = "truncate"
	StageInsert      = "insert"
	StageCommit      = "commit"
)

// LoadError reports which step of a table load failed.
type LoadError struct {
	Stage string
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %s: %v", e.Table, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Warehouse loads batches into a SQL database and reads dependency ids back.
type Warehouse struct {
	db      *sql.DB
	dialect dialect
	log     zerolog.Logger
}

var _ etl.Warehouse = (*Warehouse)(nil)

// NewWarehouse wraps an open pool. driver selects the SQL dialect.
func NewWarehouse(db *sql.DB, driver string, log zerolog.Logger) (*Warehouse, error) {
	var d dialect
	switch driver {
	case DriverPostgres:
		d = postgresDialect{}
	case DriverMySQL:
		d = mysqlDialect{}
	case DriverSQLite:
		d = sqliteDialect{}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	return &Warehouse{
		db:      db,
		dialect: d,
		log:     log.With().Str("driver", driver).Logger(),
	}, nil
}

// ── Load ───────────────────────────────────────────────────

// Load replaces the contents of dbSchema.def.Name with batch.
// The delete and every insert share one transaction, so a failed load
// leaves the previous contents in place.
func (w *Warehouse) Load(ctx context.Context, dbSchema string, def *etl.TableDef, batch *etl.Batch) (int, error) {
	start := time.Now()
	fail := func(stage string, err error) (int, error) {
		return 0, &LoadError{Stage: stage, Table: def.Name, Err: err}
	}

	if err := def.Validate(); err != nil {
		return fail(StageValidate, err)
	}
	if err := batch.Validate(); err != nil {
		return fail(StageValidate, err)
	}
	for _, c := range batch.Columns {
		if _, ok := def.Column(c); !ok {
			return fail(StageValidate, fmt.Errorf("column %q is not defined for table %s", c, def.Name))
		}
	}

	if err := w.ensureSchema(ctx, dbSchema); err != nil {
		return fail(StageSchema, err)
	}
	if err := w.ensureTable(ctx, dbSchema, def); err != nil {
		return fail(StageCreateTable, err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(StageTruncate, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	ref := w.dialect.tableRef(dbSchema, def.Name)
	if _, err := tx.ExecContext(ctx, w.dialect.truncate(ref)); err != nil {
		return fail(StageTruncate, err)
	}

	written, err := w.insertRows(ctx, tx, ref, batch)
	if err != nil {
		return fail(StageInsert, err)
	}
	if err := tx.Commit(); err != nil {
		return fail(StageCommit, err)
	}

	w.log.Info().
		Str("schema", dbSchema).
		Str("table", def.Name).
		Int("rows", written).
		Dur("duration", time.Since(start)).
		Msg("table loaded")
	return written, nil
}

func (w *Warehouse) ensureSchema(ctx context.Context, dbSchema string) error {
	exists, err := w.dialect.schemaExists(ctx, w.db, dbSchema)
	if err != nil {
		return fmt.Errorf("check schema %s: %w", dbSchema, err)
	}
	if exists {
		return nil
	}
	stmt := w.dialect.createSchema(dbSchema)
	if stmt == "" {
		return nil
	}
	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create schema %s: %w", dbSchema, err)
	}
	w.log.Info().Str("schema", dbSchema).Msg("schema created")
	return nil
}

func (w *Warehouse) ensureTable(ctx context.Context, dbSchema string, def *etl.TableDef) error {
	exists, err := w.dialect.tableExists(ctx, w.db, dbSchema, def.Name)
	if err != nil {
		return fmt.Errorf("check table %s: %w", def.Name, err)
	}
	if exists {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmts := append([]string{w.createTableSQL(dbSchema, def)}, w.uniqueIndexSQL(dbSchema, def)...)
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	w.log.Info().Str("schema", dbSchema).Str("table", def.Name).Msg("table created")
	return nil
}

// nullableKey reports whether a unique key covers a nullable column.
func nullableKey(def *etl.TableDef, key []string) bool {
	for _, name := range key {
		if c, ok := def.Column(name); ok && c.Nullable {
			return true
		}
	}
	return false
}

func (w *Warehouse) createTableSQL(dbSchema string, def *etl.TableDef) string {
	lines := make([]string, 0, len(def.Columns)+len(def.Unique))
	for _, c := range def.Columns {
		line := w.dialect.quote(c.Name) + " " + w.dialect.columnType(c.Type)
		if !c.Nullable {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}
	for _, key := range def.Unique {
		if nullableKey(def, key) {
			continue
		}
		cols := make([]string, len(key))
		for i, c := range key {
			cols[i] = w.dialect.quote(c)
		}
		lines = append(lines, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)",
		w.dialect.tableRef(dbSchema, def.Name), strings.Join(lines, ",\n\t"))
}

// uniqueIndexSQL renders the unique keys that cover nullable columns. NULLs
// never collide in a UNIQUE constraint, so each nullable column is indexed
// through COALESCE with a sentinel of its type.
func (w *Warehouse) uniqueIndexSQL(dbSchema string, def *etl.TableDef) []string {
	var stmts []string
	for i, key := range def.Unique {
		if !nullableKey(def, key) {
			continue
		}
		parts := make([]string, len(key))
		for j, name := range key {
			c, _ := def.Column(name)
			parts[j] = w.dialect.quote(name)
			if c.Nullable {
				parts[j] = fmt.Sprintf("(COALESCE(%s, %s))", parts[j], nullSentinel(c.Type))
			}
		}
		name := fmt.Sprintf("%s_key%d", def.Name, i+1)
		stmts = append(stmts, w.dialect.uniqueIndex(dbSchema, def.Name, name, parts))
	}
	return stmts
}

func nullSentinel(t etl.LogicalType) string {
	switch t {
	case etl.TypeInteger, etl.TypeBigInt, etl.TypeFloat:
		return "-1"
	default:
		return "''"
	}
}

// insertRows writes the batch as multi-row INSERTs, chunked under the
// driver's bind parameter limit.
func (w *Warehouse) insertRows(ctx context.Context, tx *sql.Tx, ref string, batch *etl.Batch) (int, error) {
	if len(batch.Rows) == 0 {
		return 0, nil
	}
	cols := make([]string, len(batch.Columns))
	for i, c := range batch.Columns {
		cols[i] = w.dialect.quote(c)
	}
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", ref, strings.Join(cols, ", "))

	chunk := w.dialect.maxParams() / len(batch.Columns)
	if chunk < 1 {
		chunk = 1
	}

	written := 0
	for lo := 0; lo < len(batch.Rows); lo += chunk {
		hi := min(lo+chunk, len(batch.Rows))
		var sb strings.Builder
		sb.WriteString(head)
		args := make([]any, 0, (hi-lo)*len(batch.Columns))
		for i, row := range batch.Rows[lo:hi] {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for j, v := range batch.Values(row) {
				if j > 0 {
					sb.WriteString(", ")
				}
				args = append(args, v)
				sb.WriteString(w.dialect.placeholder(len(args)))
			}
			sb.WriteByte(')')
		}
		res, err := tx.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return written, fmt.Errorf("rows %d-%d: %w", lo, hi-1, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += int(n)
		} else {
			written += hi - lo
		}
	}
	return written, nil
}

// ── Dependency reads ───────────────────────────────────────

// DistinctInts returns the sorted distinct non-null values of column.
// A missing or empty table yields etl.ErrMissingDependency.
func (w *Warehouse) DistinctInts(ctx context.Context, dbSchema, table, column string) ([]int64, error) {
	exists, err := w.dialect.tableExists(ctx, w.db, dbSchema, table)
	if err != nil {
		return nil, fmt.Errorf("check table %s: %w", table, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: table %s.%s does not exist", etl.ErrMissingDependency, dbSchema, table)
	}

	col := w.dialect.quote(column)
	rows, err := w.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
		col, w.dialect.tableRef(dbSchema, table), col, col))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: table %s.%s is empty", etl.ErrMissingDependency, dbSchema, table)
	}
	return ids, nil
}
