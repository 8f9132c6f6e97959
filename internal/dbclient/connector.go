package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Supported warehouse drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Connection describes how to reach the warehouse.
type Connection struct {
	Driver   string
	Host     string // file path for sqlite
	Port     int
	Username string
	Password string
	Database string
	SSLMode  string
}

// Open connects to the warehouse described by conn.
func Open(conn Connection, log zerolog.Logger) (*Warehouse, error) {
	var dsn string
	switch conn.Driver {
	case DriverPostgres, "":
		conn.Driver = DriverPostgres
		dsn = buildPostgresDSN(conn)
	case DriverMySQL:
		dsn = buildMySQLDSN(conn)
	case DriverSQLite:
		dsn = buildSQLiteDSN(conn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}

	db, err := sql.Open(conn.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conn.Driver, err)
	}
	// One writer per pipeline run.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)
	if conn.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	return NewWarehouse(db, conn.Driver, log)
}

// Ping verifies connectivity.
func (w *Warehouse) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return w.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (w *Warehouse) Close() error {
	return w.db.Close()
}
