package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// InitDB opens/creates the calibration SQLite file and ensures the schema.
func InitDB(path string) (*sql.DB, error) {
	conn, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite handles a single writer best; the engine worker is the only one.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return conn, nil
}

const schemaSessions = `
CREATE TABLE IF NOT EXISTS calibration_sessions (
    session_id INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP,
    operator TEXT,
    client TEXT,
    order_number TEXT,
    ambient_temperature REAL,
    relative_humidity REAL,
    notes TEXT
);
`

const schemaMeasurements = `
CREATE TABLE IF NOT EXISTS measurements (
    measurement_id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    channel INTEGER NOT NULL,
    channel_name TEXT NOT NULL,
    measured_temperature REAL NOT NULL,
    reference_temperature REAL NOT NULL,
    furnace_pv REAL,
    furnace_sp REAL,
    raw_value REAL,
    absolute_error REAL,
    calibration_point REAL,
    FOREIGN KEY (session_id) REFERENCES calibration_sessions(session_id) ON DELETE CASCADE
);
`

const schemaResults = `
CREATE TABLE IF NOT EXISTS calibration_results (
    result_id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL,
    channel_name TEXT NOT NULL,
    point_temperature REAL NOT NULL,
    n_measurements INTEGER NOT NULL,
    avg_measured_temp REAL,
    avg_reference_temp REAL,
    std_dev REAL,
    error REAL,
    max_absolute_error REAL,
    type_a_uncertainty REAL,
    type_b_uncertainty REAL,
    standard_uncertainty REAL,
    expanded_uncertainty REAL,
    sensor_class TEXT,
    is_compliant BOOLEAN,
    FOREIGN KEY (session_id) REFERENCES calibration_sessions(session_id) ON DELETE CASCADE
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(conn *sql.DB) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaSessions,
		schemaMeasurements,
		schemaResults,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
