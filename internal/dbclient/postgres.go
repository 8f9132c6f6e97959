package dbclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"football/internal/etl"
)

// buildPostgresDSN constructs a Postgres connection string from a Connection.
func buildPostgresDSN(conn Connection) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(conn.Host), port, dsnValue(conn.Username), dsnValue(conn.Password),
		dsnValue(conn.Database), dsnValue(sslMode),
	)
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// dsnValue single-quotes a key=value connection string value so spaces and
// quotes survive.
func dsnValue(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

type postgresDialect struct{}

func (postgresDialect) quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (d postgresDialect) tableRef(schema, table string) string {
	return d.quote(schema) + "." + d.quote(table)
}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) columnType(t etl.LogicalType) string {
	switch t {
	case etl.TypeInteger:
		return "INTEGER"
	case etl.TypeBigInt:
		return "BIGINT"
	case etl.TypeFloat:
		return "DOUBLE PRECISION"
	case etl.TypeBoolean:
		return "BOOLEAN"
	case etl.TypeDate:
		return "DATE"
	case etl.TypeTimestamp:
		return "TIMESTAMPTZ"
	case etl.TypeJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (postgresDialect) schemaExists(ctx context.Context, q querier, schema string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schema).Scan(&exists)
	return exists, err
}

func (postgresDialect) tableExists(ctx context.Context, q querier, schema, table string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		schema, table).Scan(&exists)
	return exists, err
}

func (d postgresDialect) createSchema(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + d.quote(schema)
}

func (d postgresDialect) uniqueIndex(schema, table, name string, parts []string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
		d.quote(name), d.tableRef(schema, table), strings.Join(parts, ", "))
}

func (postgresDialect) truncate(ref string) string { return "TRUNCATE TABLE " + ref }

func (postgresDialect) maxParams() int { return 65535 }
