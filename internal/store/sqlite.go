package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KevinDz11/nopro/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	submitted_at INTEGER NOT NULL,
	expires_at   INTEGER,
	record       BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_submitted_at ON documents (submitted_at, id);
`

// SQLiteStore persists records in a SQLite database. The full record is
// stored as JSON; status and timestamps are columns for listing and expiry.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenSQLite opens (and creates if needed) the database behind dsn
func OpenSQLite(dsn string, ttl time.Duration, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := sqliteDir(dsn); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	logger.Debug("opening sqlite store", "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY under concurrent workers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteStore{db: db, ttl: ttl, now: time.Now}
	if n, err := s.purge(context.Background()); err != nil {
		logger.Warn("failed to purge expired records", "error", err)
	} else if n > 0 {
		logger.Info("purged expired records", "count", n)
	}
	return s, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.DocumentRecord, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM documents WHERE id = ? AND (expires_at IS NULL OR expires_at > ?)`,
		id, s.now().UnixNano()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DocumentRecord{}, ErrNotFound
		}
		return model.DocumentRecord{}, fmt.Errorf("get record: %w", err)
	}
	return decodeRecord(data)
}

func (s *SQLiteStore) Put(ctx context.Context, rec model.DocumentRecord) error {
	if err := validID(rec.ID); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	var expires sql.NullInt64
	if s.ttl > 0 {
		expires = sql.NullInt64{Int64: s.now().Add(s.ttl).UnixNano(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, status, submitted_at, expires_at, record)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			submitted_at = excluded.submitted_at,
			expires_at = excluded.expires_at,
			record = excluded.record`,
		rec.ID, string(rec.Status), rec.SubmittedAt.UnixNano(), expires, data)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM documents WHERE expires_at IS NULL OR expires_at > ? ORDER BY submitted_at, id`,
		s.now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recs := []model.DocumentRecord{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func decodeRecord(data []byte) (model.DocumentRecord, error) {
	var rec model.DocumentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.DocumentRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// sqliteDir returns the directory holding a file-backed database, or ""
func sqliteDir(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || strings.HasPrefix(p, ":memory:") {
		return ""
	}
	dir := filepath.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}
