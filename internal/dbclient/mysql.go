package dbclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"football/internal/etl"
)

// buildMySQLDSN constructs a MySQL DSN from a Connection.
// The database only selects the connection default; tables are always
// addressed as schema.table.
func buildMySQLDSN(conn Connection) string {
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", conn.Host, port)
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if conn.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}

// mysqlDialect treats a schema as a MySQL database.
type mysqlDialect struct{}

func (mysqlDialect) quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (d mysqlDialect) tableRef(schema, table string) string {
	return d.quote(schema) + "." + d.quote(table)
}

func (mysqlDialect) placeholder(int) string { return "?" }

func (mysqlDialect) columnType(t etl.LogicalType) string {
	switch t {
	case etl.TypeInteger:
		return "INT"
	case etl.TypeBigInt:
		return "BIGINT"
	case etl.TypeFloat:
		return "DOUBLE"
	case etl.TypeBoolean:
		return "BOOLEAN"
	case etl.TypeDate:
		return "DATE"
	case etl.TypeTimestamp:
		return "DATETIME(6)"
	case etl.TypeJSON:
		return "JSON"
	default:
		// Unique keys cannot cover unbounded TEXT.
		return "VARCHAR(255)"
	}
}

func (mysqlDialect) schemaExists(ctx context.Context, q querier, schema string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?`,
		schema).Scan(&n)
	return n > 0, err
}

func (mysqlDialect) tableExists(ctx context.Context, q querier, schema, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`,
		schema, table).Scan(&n)
	return n > 0, err
}

func (d mysqlDialect) createSchema(schema string) string {
	return "CREATE DATABASE IF NOT EXISTS " + d.quote(schema)
}

// Expression parts need MySQL 8.0.13 or later.
func (d mysqlDialect) uniqueIndex(schema, table, name string, parts []string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
		d.quote(name), d.tableRef(schema, table), strings.Join(parts, ", "))
}

// TRUNCATE commits implicitly in MySQL, so the replace uses DELETE to stay
// inside the load transaction.
func (mysqlDialect) truncate(ref string) string { return "DELETE FROM " + ref }

func (mysqlDialect) maxParams() int { return 65535 }
