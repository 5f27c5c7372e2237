package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/KevinDz11/nopro/internal/model"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func record(id string, offset time.Duration, status model.DocumentStatus) model.DocumentRecord {
	return model.DocumentRecord{
		ID:          id,
		Source:      "/inbox/Laptop/TechnicalSheet/" + id + ".pdf",
		Category:    model.CategoryLaptop,
		DocType:     model.DocTypeTechnicalSheet,
		Status:      status,
		RunID:       "run-" + id,
		SubmittedAt: t0.Add(offset),
	}
}

type StoreSuite struct {
	suite.Suite
	open  func(t *testing.T) Store
	store Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(s.T())
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestPutGet() {
	rec := record("a", 0, model.StatusDone)
	rec.Report = &model.Report{
		DocumentID: "a",
		RunID:      "run-a",
		Category:   model.CategoryLaptop,
		DocType:    model.DocTypeTechnicalSheet,
		AnalyzedAt: t0,
		Evidence:   []model.Evidence{},
		Checklist:  []model.ChecklistEntry{},
	}
	s.Require().NoError(s.store.Put(s.ctx, rec))

	got, err := s.store.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(rec.Status, got.Status)
	s.Equal(rec.SubmittedAt, got.SubmittedAt)
	s.Require().NotNil(got.Report)
	s.Equal("run-a", got.Report.RunID)
}

func (s *StoreSuite) TestPutOverwrites() {
	s.Require().NoError(s.store.Put(s.ctx, record("a", 0, model.StatusError)))

	next := record("a", time.Minute, model.StatusQueued)
	next.RunID = "run-2"
	s.Require().NoError(s.store.Put(s.ctx, next))

	got, err := s.store.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(model.StatusQueued, got.Status)
	s.Equal("run-2", got.RunID)

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *StoreSuite) TestDelete() {
	s.Require().NoError(s.store.Put(s.ctx, record("a", 0, model.StatusDone)))
	s.Require().NoError(s.store.Delete(s.ctx, "a"))

	_, err := s.store.Get(s.ctx, "a")
	s.ErrorIs(err, ErrNotFound)

	// deleting twice is not an error
	s.NoError(s.store.Delete(s.ctx, "a"))
}

func (s *StoreSuite) TestListOrder() {
	s.Require().NoError(s.store.Put(s.ctx, record("c", 2*time.Minute, model.StatusQueued)))
	s.Require().NoError(s.store.Put(s.ctx, record("b", time.Minute, model.StatusDone)))
	s.Require().NoError(s.store.Put(s.ctx, record("a", time.Minute, model.StatusError)))

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func (s *StoreSuite) TestOddIDs() {
	id := "../../etc/passwd Laptop/ficha técnica.pdf"
	s.Require().NoError(s.store.Put(s.ctx, record(id, 0, model.StatusQueued)))

	got, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(id, got.ID)
}

func (s *StoreSuite) TestEmptyIDRejected() {
	s.Error(s.store.Put(s.ctx, record("", 0, model.StatusQueued)))
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) Store {
		return NewMemoryStore(time.Hour)
	}})
}

func TestDiskStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) Store {
		return NewDiskStore(t.TempDir(), time.Hour)
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "nopro.db"), time.Hour, nil)
		require.NoError(t, err)
		return s
	}})
}

func TestLayeredStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) Store {
		return NewLayeredStore(NewMemoryStore(time.Hour), NewDiskStore(t.TempDir(), time.Hour))
	}})
}

func TestDiskStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewDiskStore(t.TempDir(), time.Hour)
	s.now = func() time.Time { return t0 }
	require.NoError(t, s.Put(ctx, record("a", 0, model.StatusDone)))

	s.now = func() time.Time { return t0.Add(2 * time.Hour) }
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nopro.db"), time.Hour, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	s.now = func() time.Time { return t0 }
	require.NoError(t, s.Put(ctx, record("a", 0, model.StatusDone)))

	s.now = func() time.Time { return t0.Add(2 * time.Hour) }
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestLayeredStore_PromotesFromBack(t *testing.T) {
	ctx := context.Background()
	front := NewMemoryStore(time.Hour)
	back := NewDiskStore(t.TempDir(), time.Hour)
	require.NoError(t, back.Put(ctx, record("a", 0, model.StatusDone)))

	l := NewLayeredStore(front, back)
	_, err := l.Get(ctx, "a")
	require.NoError(t, err)

	_, err = front.Get(ctx, "a")
	assert.NoError(t, err, "record should be promoted to the front store")
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		driver  string
		wantErr bool
	}{
		{"memory", false},
		{"", false},
		{"disk", false},
		{"layered", false},
		{"sqlite", false},
		{"redis", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s, err := New(model.StoreConfig{
				Driver: tt.driver,
				Dir:    filepath.Join(dir, "store"),
				DSN:    filepath.Join(dir, "nopro.db"),
				TTL:    time.Hour,
			}, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}
}

func TestSQLiteDir(t *testing.T) {
	assert.Equal(t, ".nopro", sqliteDir("file:.nopro/nopro.db"))
	assert.Equal(t, "", sqliteDir("file::memory:?cache=shared"))
	assert.Equal(t, "", sqliteDir("nopro.db"))
	assert.Equal(t, "/var/lib/nopro", sqliteDir("file:/var/lib/nopro/db.sqlite?_pragma=busy_timeout(5000)"))
}
