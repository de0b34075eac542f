// Package db provides database connection handling and schema capability
// probing for the activity log service.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Capability describes whether the persistence schema is usable.
type Capability int

// Schema capabilities.
const (
	// CapabilityUnknown means the probe could not determine schema state,
	// typically because the database was unreachable.
	CapabilityUnknown Capability = iota

	// CapabilityReady means the required tables exist.
	CapabilityReady

	// CapabilityNeedsSetup means the database is reachable but the
	// required tables are missing, so migrations must be run.
	CapabilityNeedsSetup
)

// String returns a human-readable capability name.
func (c Capability) String() string {
	switch c {
	case CapabilityReady:
		return "ready"
	case CapabilityNeedsSetup:
		return "needs_setup"
	default:
		return "unknown"
	}
}

// requiredTables are the tables the service persists into.
var requiredTables = []string{"activity_logs", "transcriptions"}

// Open opens a PostgreSQL connection pool and verifies connectivity.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Probe checks whether the required tables exist and returns a typed
// Capability. It replaces error-string sniffing at query time: the schema
// state is determined once, up front, and surfaced through health checks
// and persistence outcomes.
func Probe(ctx context.Context, conn *sql.DB) Capability {
	for _, table := range requiredTables {
		var regclass sql.NullString
		err := conn.QueryRowContext(ctx, `SELECT to_regclass($1)`, table).Scan(&regclass)
		if err != nil {
			return CapabilityUnknown
		}
		if !regclass.Valid {
			return CapabilityNeedsSetup
		}
	}
	return CapabilityReady
}
