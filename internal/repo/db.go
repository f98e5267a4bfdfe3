package repo

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Open connects to the configured database and verifies the connection.
// SQLite is limited to a single connection so writes never contend.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)

	switch Dialect(strings.ToLower(driver)) {
	case Postgres:
		dialect = Postgres
		db, err = sql.Open("pgx", dsn)
	case SQLite:
		dialect = SQLite
		db, err = sql.Open("sqlite", dsn)
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, "", err
	}

	if dialect == SQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				slog.Warn("sqlite pragma failed", "pragma", pragma, "error", err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, dialect, nil
}

var schemas = map[Dialect][]string{
	Postgres: {
		`CREATE TABLE IF NOT EXISTS contacts (
			phone_number       TEXT PRIMARY KEY,
			message_count      BIGINT NOT NULL DEFAULT 0,
			is_registered      BOOLEAN NOT NULL DEFAULT FALSE,
			name               TEXT,
			dni                TEXT,
			student_code       TEXT,
			registered_at      BIGINT,
			registration_state TEXT,
			opted_out          BOOLEAN NOT NULL DEFAULT FALSE,
			opted_out_at       BIGINT,
			created_at         BIGINT NOT NULL,
			last_seen_at       BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contact_messages (
			id           BIGSERIAL PRIMARY KEY,
			phone_number TEXT NOT NULL REFERENCES contacts(phone_number),
			body         TEXT NOT NULL,
			received_at  BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS contact_messages_phone_idx ON contact_messages (phone_number, id)`,
		`CREATE TABLE IF NOT EXISTS media_cache (
			source_url  TEXT PRIMARY KEY,
			media_id    TEXT NOT NULL,
			uploaded_at BIGINT NOT NULL,
			expires_at  BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS media_cache_expires_idx ON media_cache (expires_at)`,
	},
	SQLite: {
		`CREATE TABLE IF NOT EXISTS contacts (
			phone_number       TEXT PRIMARY KEY,
			message_count      INTEGER NOT NULL DEFAULT 0,
			is_registered      BOOLEAN NOT NULL DEFAULT 0,
			name               TEXT,
			dni                TEXT,
			student_code       TEXT,
			registered_at      INTEGER,
			registration_state TEXT,
			opted_out          BOOLEAN NOT NULL DEFAULT 0,
			opted_out_at       INTEGER,
			created_at         INTEGER NOT NULL,
			last_seen_at       INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contact_messages (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			phone_number TEXT NOT NULL REFERENCES contacts(phone_number),
			body         TEXT NOT NULL,
			received_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS contact_messages_phone_idx ON contact_messages (phone_number, id)`,
		`CREATE TABLE IF NOT EXISTS media_cache (
			source_url  TEXT PRIMARY KEY,
			media_id    TEXT NOT NULL,
			uploaded_at INTEGER NOT NULL,
			expires_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS media_cache_expires_idx ON media_cache (expires_at)`,
	},
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts, ok := schemas[dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", dialect)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites "?" placeholders into "$n" for Postgres.
func rebind(dialect Dialect, query string) string {
	if dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
