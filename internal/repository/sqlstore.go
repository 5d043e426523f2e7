package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"coach-agent/internal/domain"
)

//go:embed schema.sql
var schema string

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// SQLStore keeps sessions in a coach_sessions table on SQLite or Postgres.
type SQLStore struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// NewSQLite opens (and creates if needed) a SQLite database at path.
func NewSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("repository: sqlite path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("repository: create database directory: %w", err)
		}
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite: %w", err)
	}
	// SQLite serializes writers.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, false)
}

// NewPostgres connects to the Postgres database named by dsn.
func NewPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("repository: postgres DSN must not be empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open postgres: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	return newSQLStore(ctx, db, true)
}

func newSQLStore(ctx context.Context, db *sql.DB, postgres bool) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: apply schema: %w", err)
	}
	return &SQLStore{db: db, postgres: postgres, now: time.Now}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Get returns the stored session record, or nil when none exists.
func (s *SQLStore) Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT state, version FROM coach_sessions WHERE session_id = ?`), sessionID)

	var state string
	var version int64
	err := row.Scan(&state, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: Get scan: %w", err)
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(state), &rec); err != nil {
		return nil, fmt.Errorf("repository: unmarshal state: %w", err)
	}
	rec.SessionID = sessionID
	rec.Version = version
	return &rec, nil
}

// Put inserts a new record (Version 0) or updates the row still at
// rec.Version. Zero affected rows means another writer won the race.
func (s *SQLStore) Put(ctx context.Context, rec *domain.SessionRecord) error {
	if rec == nil || strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("repository: Put: session id is required")
	}
	now := s.now().UTC()
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	state, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("repository: Put encode: %w", err)
	}
	next := rec.Version + 1

	var res sql.Result
	if rec.Version == 0 {
		res, err = s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO coach_sessions (session_id, state, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (session_id) DO NOTHING`),
			rec.SessionID, string(state), next, rec.CreatedAt.Unix(), now.Unix())
	} else {
		res, err = s.db.ExecContext(ctx, s.rebind(`
			UPDATE coach_sessions SET state = ?, version = ?, updated_at = ?
			WHERE session_id = ? AND version = ?`),
			string(state), next, now.Unix(), rec.SessionID, rec.Version)
	}
	if err != nil {
		return fmt.Errorf("repository: Put: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: Put rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("repository: Put %s: %w", rec.SessionID, domain.ErrVersionConflict)
	}
	rec.Version = next
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
