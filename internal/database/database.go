package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps sql.DB with the booking queries.
type DB struct {
	*sql.DB
	queries
	path   string
	logger *zerolog.Logger
}

// Tx is an open write transaction. It exposes the same queries as DB so
// read checks can be repeated inside the transaction that writes.
type Tx struct {
	tx *sql.Tx
	queries
}

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q   runner
	loc *time.Location
}

// NewDB opens the SQLite database at path and runs migrations. Booking times
// are converted to and from loc; nil means time.Local.
func NewDB(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// _txlock=immediate makes every BeginTx take the write lock up front,
	// so a transaction's reads cannot be invalidated before it writes.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{
		DB:      sqlDB,
		queries: queries{q: sqlDB, loc: loc},
		path:    path,
		logger:  logger,
	}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS technicians (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			working_hours_start INTEGER NOT NULL DEFAULT 9,
			working_hours_end INTEGER NOT NULL DEFAULT 17,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			CHECK (working_hours_start >= 0 AND working_hours_end <= 24 AND working_hours_start < working_hours_end)
		)`,

		// booking_time holds Unix seconds of an hour-aligned instant.
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			technician_id INTEGER NOT NULL,
			booking_time INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'booked',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (technician_id) REFERENCES technicians(id),
			CHECK (status IN ('booked', 'cancelled'))
		)`,

		// At most one booked row per technician and hour.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_active_slot
			ON bookings(technician_id, booking_time) WHERE status = 'booked'`,

		`CREATE INDEX IF NOT EXISTS idx_technicians_type ON technicians(type, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_technicians_name ON technicians(name)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status_time ON bookings(status, booking_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_technician_time ON bookings(technician_id, booking_time)`,
	}

	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// WithTx runs fn inside a write transaction. The transaction commits when fn
// returns nil and rolls back otherwise, including when ctx is cancelled
// before commit.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Tx{tx: sqlTx, queries: queries{q: sqlTx, loc: db.loc}}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Location is the clock bookings are read back in.
func (db *DB) Location() *time.Location {
	return db.loc
}

// Path is the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrConstraint &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func (q queries) toUnix(t time.Time) int64 {
	return t.Unix()
}

func (q queries) fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).In(q.loc)
}
