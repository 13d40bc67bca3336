// Package audit records an append-only trail of submission activity.
//
// Events are best-effort operational records, not part of the submission
// lifecycle: an audit failure never fails the user's request.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/openconf/paperdrop/internal/platform/storage/sqlitemigrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Kind classifies an audit event.
type Kind string

const (
	KindLogin    Kind = "login"
	KindUpload   Kind = "upload"
	KindConfirm  Kind = "confirm"
	KindDownload Kind = "download"
)

// Event is one recorded action.
type Event struct {
	ID        string
	Kind      Kind
	PaperID   int
	Email     string
	Slot      string
	Detail    string
	CreatedAt time.Time
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store persists audit events in a SQLite file.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the audit store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("audit db path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append persists one event.
func (s *Store) Append(ctx context.Context, event Event) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO audit_events (id, kind, paper_id, email, slot, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, event.ID, string(event.Kind), event.PaperID, event.Email, event.Slot, event.Detail, toMillis(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, kind, paper_id, email, slot, detail, created_at
FROM audit_events
ORDER BY created_at DESC, id
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var kind string
		var createdAt int64
		if err := rows.Scan(&event.ID, &kind, &event.PaperID, &event.Email, &event.Slot, &event.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Kind = Kind(kind)
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Emitter records audit events with generated IDs and timestamps.
type Emitter struct {
	store *Store
	clock func() time.Time
}

// NewEmitter creates an emitter over a store. A nil store yields a no-op
// emitter, so audit can be disabled by configuration.
func NewEmitter(store *Store) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records an event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if e == nil || e.store == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		clock := e.clock
		if clock == nil {
			clock = time.Now
		}
		event.CreatedAt = clock().UTC()
	}
	return e.store.Append(ctx, event)
}
