// Package store persists document records: submission state, the latest
// run and its report.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/KevinDz11/nopro/internal/model"
)

// ErrNotFound is returned when no record exists for an id
var ErrNotFound = errors.New("document not found")

// Store defines the interface for document record storage. Put replaces
// any previous record with the same id.
type Store interface {
	Get(ctx context.Context, id string) (model.DocumentRecord, error)
	Put(ctx context.Context, rec model.DocumentRecord) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.DocumentRecord, error)
	Close() error
}

// New creates the store selected by cfg.Driver
func New(cfg model.StoreConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryStore(cfg.TTL), nil
	case "disk":
		return NewDiskStore(cfg.Dir, cfg.TTL), nil
	case "sqlite":
		return OpenSQLite(cfg.DSN, cfg.TTL, logger)
	case "layered":
		return NewLayeredStore(NewMemoryStore(cfg.TTL), NewDiskStore(cfg.Dir, cfg.TTL)), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: memory, disk, sqlite, layered)", cfg.Driver)
	}
}

// recordKey maps a document id onto a storage-safe key
func recordKey(id string) string {
	hash := sha256.Sum256([]byte(id))
	return "nopro:v1:" + hex.EncodeToString(hash[:])
}

// sortRecords orders records by submission time, then id
func sortRecords(recs []model.DocumentRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].SubmittedAt.Equal(recs[j].SubmittedAt) {
			return recs[i].SubmittedAt.Before(recs[j].SubmittedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("empty document id")
	}
	return nil
}
