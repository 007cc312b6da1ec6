package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.EncryptionKey = string(bytes.Repeat([]byte("k"), config.EncryptionKeySize))
	return cfg
}

type fixture struct {
	cfg    *config.Config
	clock  *fakeClock
	rm     repomanager.RepositoryManager
	store  *storage.MemoryStore
	env    *cryptox.Envelope
	shares *ShareService
	files  *FileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, testConfig(), nil, nil)
}

// newFixtureWith wires services over in-memory stores. rm and store
// override the defaults when non-nil; fx.store is always the memory store
// holding the blobs.
func newFixtureWith(t *testing.T, cfg *config.Config, rm repomanager.RepositoryManager, store storage.ObjectStore) *fixture {
	t.Helper()
	clk := newFakeClock()
	if rm == nil {
		rm = repomanager.NewMemoryRepositoryManager(clk.Now)
	}
	var mem *storage.MemoryStore
	switch s := store.(type) {
	case nil:
		mem = storage.NewMemoryStore()
		store = mem
	case *storage.MemoryStore:
		mem = s
	case *brokenStore:
		mem = s.MemoryStore
	default:
		t.Fatalf("unsupported store override %T", store)
	}
	env, err := cryptox.NewEnvelope([]byte(cfg.EncryptionKey))
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	shares := NewShareService(nil, rm, cfg, clk.Now, logging.Nop{})
	return &fixture{
		cfg:    cfg,
		clock:  clk,
		rm:     rm,
		store:  mem,
		env:    env,
		shares: shares,
		files:  NewFileService(nil, rm, store, env, shares, cfg, logging.Nop{}),
	}
}

func intPtr(v int) *int { return &v }

// failingFilesManager wraps a manager and lets tests break single file
// repository calls.
type failingFilesManager struct {
	repomanager.RepositoryManager
	createErr error
	appendErr error
}

func (m *failingFilesManager) Files(db dbx.DBTX) files.Repository {
	return &failingFilesRepo{Repository: m.RepositoryManager.Files(db), m: m}
}

type failingFilesRepo struct {
	files.Repository
	m *failingFilesManager
}

func (r *failingFilesRepo) Create(ctx context.Context, f *models.FileRecord) (*models.FileRecord, error) {
	if r.m.createErr != nil {
		return nil, r.m.createErr
	}
	return r.Repository.Create(ctx, f)
}

func (r *failingFilesRepo) AppendShareToken(ctx context.Context, id string, tok models.ShareToken) error {
	if r.m.appendErr != nil {
		return r.m.appendErr
	}
	return r.Repository.AppendShareToken(ctx, id, tok)
}

// brokenStore fails the configured operations and otherwise delegates.
type brokenStore struct {
	*storage.MemoryStore
	putErr error
	getErr error
}

func (s *brokenStore) Put(ctx context.Context, key string, data []byte, ct string) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, key, data, ct)
}

func (s *brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

var errBoom = errors.New("boom")
