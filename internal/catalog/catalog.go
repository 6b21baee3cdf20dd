// Package catalog persists the named sessions a user can select.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abdullathedruid/termdeck/internal/workspace"
)

// ErrNotFound is returned for sessions that are not in the catalog.
var ErrNotFound = errors.New("session not found")

// timeLayout is fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one named session.
type Entry struct {
	Name      string
	Color     string
	Cwd       string
	Ready     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Selection returns the selection that shows this session.
func (e Entry) Selection() workspace.Selection {
	return workspace.Session(e.Name).WithColor(e.Color).WithCwd(e.Cwd)
}

// Store is a sqlite-backed session catalog.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert adds a session or updates its color and cwd. The ready flag and
// creation time of an existing session are kept.
func (s *Store) Upsert(ctx context.Context, e Entry) error {
	if err := workspace.ValidateName(e.Name); err != nil {
		return err
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(name, color, cwd, ready, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	color=excluded.color,
	cwd=excluded.cwd,
	updated_at=excluded.updated_at
`, e.Name, e.Color, e.Cwd, boolToInt(e.Ready), e.CreatedAt.UTC().Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", e.Name, err)
	}
	return nil
}

// Get returns the named session.
func (s *Store) Get(ctx context.Context, name string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, color, cwd, ready, created_at, updated_at FROM sessions WHERE name = ?`, name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get session %s: %w", name, err)
	}
	return e, nil
}

// List returns all sessions in creation order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, color, cwd, ready, created_at, updated_at FROM sessions ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetReady sets the ready flag of the named session.
func (s *Store) SetReady(ctx context.Context, name string, ready bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET ready = ?, updated_at = ? WHERE name = ?`,
		boolToInt(ready), time.Now().UTC().Format(timeLayout), name)
	if err != nil {
		return fmt.Errorf("set ready %s: %w", name, err)
	}
	return requireRow(res, name)
}

// ToggleReady flips the ready flag and returns the new value.
func (s *Store) ToggleReady(ctx context.Context, name string) (bool, error) {
	e, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	if err := s.SetReady(ctx, name, !e.Ready); err != nil {
		return false, err
	}
	return !e.Ready, nil
}

// Delete removes the named session from the catalog. Its terminals are not touched.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", name, err)
	}
	return requireRow(res, name)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                Entry
		ready            int
		created, updated string
	)
	if err := row.Scan(&e.Name, &e.Color, &e.Cwd, &ready, &created, &updated); err != nil {
		return Entry{}, err
	}
	e.Ready = ready != 0
	e.CreatedAt, _ = time.Parse(timeLayout, created)
	e.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return e, nil
}

func requireRow(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
