package files

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/timex"
	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by tests and local
// runs without PostgreSQL. Records are copied in and out so callers never
// share memory with the store.
type MemoryRepository struct {
	mu      sync.RWMutex
	clock   timex.Clock
	files   map[string]*models.FileRecord
	byToken map[string]string
	seq     map[string]int64
	next    int64
}

func NewMemoryRepository(clock timex.Clock) *MemoryRepository {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &MemoryRepository{
		clock:   clock,
		files:   make(map[string]*models.FileRecord),
		byToken: make(map[string]string),
		seq:     make(map[string]int64),
	}
}

func (r *MemoryRepository) Create(_ context.Context, file *models.FileRecord) (*models.FileRecord, error) {
	if err := validate(file); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	stored := *file
	stored.ID = uuid.NewString()
	stored.ShareTokens = nil
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.next++
	r.files[stored.ID] = &stored
	r.seq[stored.ID] = r.next

	return copyRecord(&stored), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyRecord(f), nil
}

func (r *MemoryRepository) FindByOwner(_ context.Context, ownerID string) ([]*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*models.FileRecord{}
	for _, f := range r.files {
		if f.OwnerID == ownerID {
			c := copyRecord(f)
			c.ShareTokens = nil
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return r.seq[a.ID] > r.seq[b.ID]
	})
	return result, nil
}

func (r *MemoryRepository) FindByValidShareToken(_ context.Context, token string, now time.Time) (*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	f := r.files[id]
	for _, t := range f.ShareTokens {
		if t.Token == token && t.ValidAt(now) {
			return copyRecord(f), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) AppendShareToken(_ context.Context, fileID string, token models.ShareToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[fileID]
	if !ok {
		return common.ErrNotFound
	}
	if _, dup := r.byToken[token.Token]; dup {
		return fmt.Errorf("%w: duplicate share token", common.ErrStorage)
	}

	f.ShareTokens = append(f.ShareTokens, token)
	f.UpdatedAt = token.CreatedAt
	r.byToken[token.Token] = fileID
	return nil
}

func copyRecord(f *models.FileRecord) *models.FileRecord {
	c := *f
	if f.ShareTokens != nil {
		c.ShareTokens = append([]models.ShareToken(nil), f.ShareTokens...)
	}
	return &c
}
