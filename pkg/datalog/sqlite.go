package datalog

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/NotCoffee418/dbmigrator"

	"github.com/yvesf/mercury-gw/pkg/telemetry"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteSink stores readings in a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies pending
// migrations.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) WriteInstant(at time.Time, v telemetry.Instant) error {
	_, err := s.db.Exec(
		"INSERT INTO instant_readings (timestamp, voltage, current, power) "+
			"VALUES (?, ?, ?, ?)",
		at.Unix(),
		v.Voltage,
		v.Current,
		v.Power,
	)
	if err != nil {
		return fmt.Errorf("insert instant reading: %w", err)
	}
	return nil
}

func (s *SQLiteSink) WriteTariffs(at time.Time, v telemetry.Tariffs) error {
	_, err := s.db.Exec(
		"INSERT INTO tariff_readings (timestamp, tariff_day, tariff_night) "+
			"VALUES (?, ?, ?)",
		at.Unix(),
		v.Day,
		v.Night,
	)
	if err != nil {
		return fmt.Errorf("insert tariff reading: %w", err)
	}
	return nil
}

// InstantReading is a stored row of instant values.
type InstantReading struct {
	At time.Time
	telemetry.Instant
}

// LatestInstant returns up to limit rows, newest first.
func (s *SQLiteSink) LatestInstant(limit int) ([]InstantReading, error) {
	rows, err := s.db.Query(
		"SELECT timestamp, voltage, current, power FROM instant_readings "+
			"ORDER BY timestamp DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query instant readings: %w", err)
	}
	defer rows.Close()

	var out []InstantReading
	for rows.Next() {
		var ts int64
		var r InstantReading
		if err := rows.Scan(&ts, &r.Voltage, &r.Current, &r.Power); err != nil {
			return nil, fmt.Errorf("scan instant reading: %w", err)
		}
		r.At = time.Unix(ts, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}
