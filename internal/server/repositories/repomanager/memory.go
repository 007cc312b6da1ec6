package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
	"github.com/dmitrijs2005/filevault/internal/timex"
)

// MemoryRepositoryManager vends process-local repositories. The DBTX
// arguments are ignored; every call returns the same shared store.
type MemoryRepositoryManager struct {
	files *files.MemoryRepository
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager(clock timex.Clock) *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		files: files.NewMemoryRepository(clock),
		users: users.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *MemoryRepositoryManager) Files(dbx.DBTX) files.Repository { return m.files }
