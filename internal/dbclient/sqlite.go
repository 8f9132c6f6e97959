package dbclient

import (
	"context"
	"strings"

	_ "modernc.org/sqlite"

	"football/internal/etl"
)

// buildSQLiteDSN opens the file in WAL mode with a busy timeout.
func buildSQLiteDSN(conn Connection) string {
	if conn.Host == ":memory:" {
		return conn.Host
	}
	return conn.Host + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// sqliteDialect has no schemas: the schema is folded into the table name
// as schema__table.
type sqliteDialect struct{}

func (sqliteDialect) quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d sqliteDialect) tableRef(schema, table string) string {
	return d.quote(sqliteTableName(schema, table))
}

func sqliteTableName(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "__" + table
}

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) columnType(t etl.LogicalType) string {
	switch t {
	case etl.TypeInteger, etl.TypeBigInt, etl.TypeBoolean:
		return "INTEGER"
	case etl.TypeFloat:
		return "REAL"
	case etl.TypeDate:
		return "DATE"
	case etl.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) schemaExists(context.Context, querier, string) (bool, error) {
	return true, nil
}

func (sqliteDialect) tableExists(ctx context.Context, q querier, schema, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		sqliteTableName(schema, table)).Scan(&n)
	return n > 0, err
}

func (sqliteDialect) createSchema(string) string { return "" }

// Index names share one namespace per database, so they carry the schema
// prefix like tables do.
func (d sqliteDialect) uniqueIndex(schema, table, name string, parts []string) string {
	return "CREATE UNIQUE INDEX " + d.quote(sqliteTableName(schema, name)) +
		" ON " + d.tableRef(schema, table) + " (" + strings.Join(parts, ", ") + ")"
}

func (sqliteDialect) truncate(ref string) string { return "DELETE FROM " + ref }

func (sqliteDialect) maxParams() int { return 32766 }
