package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/KevinDz11/nopro/internal/model"
)

// DiskStore keeps one JSON file per document under dir
type DiskStore struct {
	dir string
	ttl time.Duration
	mu  sync.Mutex
	now func() time.Time
}

// NewDiskStore creates a new disk store. A zero TTL never expires records.
func NewDiskStore(dir string, ttl time.Duration) *DiskStore {
	return &DiskStore{
		dir: dir,
		ttl: ttl,
		now: time.Now,
	}
}

type diskEntry struct {
	Record    model.DocumentRecord `json:"record"`
	ExpiresAt time.Time            `json:"expires_at,omitempty"`
}

func (s *DiskStore) Get(ctx context.Context, id string) (model.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.read(s.path(id))
	if err != nil {
		return model.DocumentRecord{}, err
	}
	if !ok {
		return model.DocumentRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *DiskStore) Put(ctx context.Context, rec model.DocumentRecord) error {
	if err := validID(rec.ID); err != nil {
		return err
	}

	entry := diskEntry{Record: rec}
	if s.ttl > 0 {
		entry.ExpiresAt = s.now().Add(s.ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure directory exists
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	// Write through a temp file so readers never see a partial record
	path := s.path(rec.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit record file: %w", err)
	}
	return nil
}

func (s *DiskStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *DiskStore) List(ctx context.Context) ([]model.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	recs := make([]model.DocumentRecord, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, ok, err := s.read(f)
		if err != nil {
			return nil, err
		}
		if ok {
			recs = append(recs, rec)
		}
	}
	sortRecords(recs)
	return recs, nil
}

func (s *DiskStore) Close() error { return nil }

// read loads one entry; missing and expired entries report ok=false
func (s *DiskStore) read(path string) (model.DocumentRecord, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return model.DocumentRecord{}, false, nil
	}
	if err != nil {
		return model.DocumentRecord{}, false, fmt.Errorf("read record: %w", err)
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return model.DocumentRecord{}, false, fmt.Errorf("decode record %s: %w", filepath.Base(path), err)
	}

	// Check expiration
	if !entry.ExpiresAt.IsZero() && s.now().After(entry.ExpiresAt) {
		_ = os.Remove(path)
		return model.DocumentRecord{}, false, nil
	}
	return entry.Record, true, nil
}

// path generates the file path for a document id
func (s *DiskStore) path(id string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(recordKey(id), ":", "_")+".json")
}
