package sessionstore

import (
	"context"
)

// DDL used for sqlite deployments and for tests. The production MySQL schema
// ships in resources/schema.sql
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mac_address TEXT NOT NULL UNIQUE,
		last_seen INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS routers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		ip_address TEXT NOT NULL UNIQUE,
		shared_secret TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL REFERENCES devices(id),
		package_id INTEGER NOT NULL REFERENCES packages(id),
		payment_id TEXT NOT NULL,
		router_id INTEGER NOT NULL REFERENCES routers(id),
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL,
		active INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_device_active ON sessions(device_id, active)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_active_end_time ON sessions(active, end_time)`,
}

// Creates the tables if they do not exist yet
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if _, err := s.dbHandle.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}
