package store

import (
	"context"
	"errors"

	"github.com/KevinDz11/nopro/internal/model"
)

// LayeredStore fronts a durable store with a fast one. Writes go to both;
// reads prefer the front and promote records found only in the back.
type LayeredStore struct {
	front Store
	back  Store
}

// NewLayeredStore creates a new layered store
func NewLayeredStore(front, back Store) *LayeredStore {
	return &LayeredStore{front: front, back: back}
}

func (s *LayeredStore) Get(ctx context.Context, id string) (model.DocumentRecord, error) {
	// Check the front store first
	rec, err := s.front.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.DocumentRecord{}, err
	}

	rec, err = s.back.Get(ctx, id)
	if err != nil {
		return model.DocumentRecord{}, err
	}
	// Promote to the front store
	_ = s.front.Put(ctx, rec)
	return rec, nil
}

func (s *LayeredStore) Put(ctx context.Context, rec model.DocumentRecord) error {
	if err := s.back.Put(ctx, rec); err != nil {
		return err
	}
	return s.front.Put(ctx, rec)
}

func (s *LayeredStore) Delete(ctx context.Context, id string) error {
	if err := s.front.Delete(ctx, id); err != nil {
		return err
	}
	return s.back.Delete(ctx, id)
}

// List reads the durable store, which holds every record
func (s *LayeredStore) List(ctx context.Context) ([]model.DocumentRecord, error) {
	return s.back.List(ctx)
}

func (s *LayeredStore) Close() error {
	return errors.Join(s.front.Close(), s.back.Close())
}
