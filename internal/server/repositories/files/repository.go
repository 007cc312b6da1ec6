// Package files is the file record store: file metadata plus the
// append-only list of share tokens issued for each file.
package files

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// Repository persists FileRecords. Lookups that match nothing return
// common.ErrNotFound; backend failures wrap common.ErrStorage.
type Repository interface {
	// Create validates and stores a new record, filling ID and timestamps.
	Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error)
	// FindByID returns the record with its share tokens in creation order.
	FindByID(ctx context.Context, id string) (*models.FileRecord, error)
	// FindByOwner lists the owner's records, newest first. Share tokens are
	// not loaded.
	FindByOwner(ctx context.Context, ownerID string) ([]*models.FileRecord, error)
	// FindByValidShareToken returns the record holding token if that token
	// expires strictly after now.
	FindByValidShareToken(ctx context.Context, token string, now time.Time) (*models.FileRecord, error)
	// AppendShareToken atomically adds token to the file's token list.
	AppendShareToken(ctx context.Context, fileID string, token models.ShareToken) error
}

// validate checks the fields every record must carry before it is stored.
func validate(f *models.FileRecord) error {
	switch {
	case f == nil:
		return fmt.Errorf("%w: nil file record", common.ErrValidation)
	case f.OwnerID == "":
		return fmt.Errorf("%w: owner is required", common.ErrValidation)
	case f.Filename == "" || f.OriginalName == "":
		return fmt.Errorf("%w: filename is required", common.ErrValidation)
	case f.StorageKey == "":
		return fmt.Errorf("%w: storage key is required", common.ErrValidation)
	case f.EncryptionIV == "":
		return fmt.Errorf("%w: encryption iv is required", common.ErrValidation)
	case f.Size < 0:
		return fmt.Errorf("%w: size must not be negative", common.ErrValidation)
	case f.MimeType == "":
		return fmt.Errorf("%w: mime type is required", common.ErrValidation)
	}
	return nil
}
