package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/KevinDz11/nopro/internal/model"
)

// MemoryStore keeps records in process memory. Records expire after the
// configured TTL; a zero TTL keeps them forever.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a new memory store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (model.DocumentRecord, error) {
	if val, found := s.cache.Get(recordKey(id)); found {
		return val.(model.DocumentRecord), nil
	}
	return model.DocumentRecord{}, ErrNotFound
}

func (s *MemoryStore) Put(ctx context.Context, rec model.DocumentRecord) error {
	if err := validID(rec.ID); err != nil {
		return err
	}
	s.cache.Set(recordKey(rec.ID), rec, gocache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.cache.Delete(recordKey(id))
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]model.DocumentRecord, error) {
	items := s.cache.Items()
	recs := make([]model.DocumentRecord, 0, len(items))
	for _, item := range items {
		recs = append(recs, item.Object.(model.DocumentRecord))
	}
	sortRecords(recs)
	return recs, nil
}

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
