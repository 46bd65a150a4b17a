package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/creastat/convstore"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Dialect selects SQL placeholders and DDL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Store is a conversation log backed by a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the database. An in-memory SQLite database is pinned to a single
// connection so every query sees the same data.
func Open(dialect Dialect, dsn string) (*Store, error) {
	var driverName string
	switch dialect {
	case DialectPostgres:
		driverName = "postgres"
	case DialectSQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("%w: unknown sql dialect %q", convstore.ErrInvalidConfig, dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite && (dsn == ":memory:" || dsn == "") {
		db.SetMaxOpenConns(1)
	}
	return New(db, dialect), nil
}

// New wraps an existing database handle.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	seq := "seq BIGSERIAL PRIMARY KEY"
	if s.dialect == DialectSQLite {
		seq = "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation (
			id            TEXT   PRIMARY KEY,
			owner_handle  TEXT   NOT NULL,
			title         TEXT   NOT NULL DEFAULT 'untitled',
			last_modified BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_owner ON conversation(owner_handle, last_modified)`,
		`CREATE TABLE IF NOT EXISTS message (
			` + seq + `,
			id         TEXT   NOT NULL UNIQUE,
			conv_id    TEXT   NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
			sender     TEXT   NOT NULL,
			content    TEXT   NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_conversation ON message(conv_id, seq)`,
		`CREATE TABLE IF NOT EXISTS user_profile (
			handle        TEXT PRIMARY KEY,
			skill_level   TEXT NOT NULL DEFAULT '',
			goal          TEXT NOT NULL DEFAULT '',
			interest_tags TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// placeholder returns the n-th (1-based) bind parameter for the dialect.
func (s *Store) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}
