package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade an archive one user_version at a time. Entry n
// takes a database from version n to n+1; schema.sql is always applied
// first, so every statement must be idempotent.
var migrations = []string{
	// 1: listings read runs newest first
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC, id DESC)`,
}

var currentSchemaVersion = len(migrations)

// pragmas are set on every connection. SQLite reports journal_mode in
// lower case and the rest as integers.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// RunIDGenerator names new runs.
// Implemented by UUIDv7Generator and the fixed generators in testutil.
type RunIDGenerator interface {
	Generate() string
}

// Clock supplies run timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store archives decoded runs in SQLite.
type Store struct {
	db    *sql.DB
	ids   RunIDGenerator
	clock Clock
}

// Option configures a Store.
type Option func(*Store)

// WithRunIDGenerator replaces the default UUIDv7 run ids.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// Open creates or opens the archive at path, sets the connection pragmas
// and brings the schema up to date. Opening an existing archive again is
// harmless.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// one connection: SQLite has a single writer and the pragmas are per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	s := &Store{db: db, ids: UUIDv7Generator{}, clock: systemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func prepare(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return migrate(db)
}

func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}
	for ; version < len(migrations); version++ {
		if _, err := db.Exec(migrations[version]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// schemaVersion reports PRAGMA user_version. Used by tests.
func (s *Store) schemaVersion() (int, error) {
	return userVersion(s.db)
}

// verifyPragma compares the current value of a pragma. Used by tests.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
