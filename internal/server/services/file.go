// Package services contains server-side business logic: the upload and
// download orchestrator, share link issuance and account handling.
package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
	"github.com/google/uuid"
)

const (
	storageKeyPrefix = "encrypted-files/"
	blobContentType  = "application/octet-stream"
	defaultMimeType  = "application/octet-stream"
)

// Cipher is the envelope used for blobs at rest.
type Cipher interface {
	Encrypt(plaintext []byte) (ciphertext []byte, iv string, err error)
	Decrypt(ciphertext []byte, iv string) ([]byte, error)
}

// UploadResult describes a stored file.
type UploadResult struct {
	FileID   string
	Filename string
	Size     int64
}

// ShareLink carries the token and the path under which it can be redeemed.
// Scheme and host are added by the HTTP layer.
type ShareLink struct {
	Token     string
	Path      string
	ExpiresAt time.Time
}

// Download is a decrypted file ready to be sent to the client.
type Download struct {
	Data     []byte
	Filename string
	MimeType string
}

type FileService struct {
	db            dbx.DBTX
	repomanager   repomanager.RepositoryManager
	store         storage.ObjectStore
	cipher        Cipher
	shares        *ShareService
	logger        logging.Logger
	maxUploadSize int64
	newKeyID      func() string
}

func NewFileService(db dbx.DBTX, m repomanager.RepositoryManager, store storage.ObjectStore, cipher Cipher,
	shares *ShareService, cfg *config.Config, logger logging.Logger) *FileService {
	return &FileService{
		db:            db,
		repomanager:   m,
		store:         store,
		cipher:        cipher,
		shares:        shares,
		logger:        logger.With("module", "files"),
		maxUploadSize: cfg.MaxUploadSize,
		newKeyID:      uuid.NewString,
	}
}

// Upload encrypts data, stores the blob and then records its metadata. The
// blob is written first so that a record never points at a missing object.
func (s *FileService) Upload(ctx context.Context, ownerID, filename, mimeType string, data []byte) (*UploadResult, error) {
	if int64(len(data)) > s.maxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", common.ErrPayloadTooLarge, len(data), s.maxUploadSize)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrValidation)
	}
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", common.ErrValidation)
	}
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	ciphertext, iv, err := s.cipher.Encrypt(data)
	if err != nil {
		return nil, err
	}

	key := s.storageKey(filename)
	if err := s.store.Put(ctx, key, ciphertext, blobContentType); err != nil {
		s.logger.Error(ctx, "blob upload failed", "storage_key", key, "error", err)
		return nil, err
	}

	record, err := s.repomanager.Files(s.db).Create(ctx, &models.FileRecord{
		Filename:     filename,
		OriginalName: filename,
		StorageKey:   key,
		OwnerID:      ownerID,
		EncryptionIV: iv,
		Size:         int64(len(data)),
		MimeType:     mimeType,
	})
	if err != nil {
		s.logger.Error(ctx, "file record not created, blob orphaned", "storage_key", key, "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "file uploaded", "file_id", record.ID, "owner_id", ownerID, "size", record.Size)
	return &UploadResult{FileID: record.ID, Filename: record.Filename, Size: record.Size}, nil
}

// CreateShareLink issues a token for the requester's file.
func (s *FileService) CreateShareLink(ctx context.Context, requesterID, fileID string, ttlMinutes *int) (*ShareLink, error) {
	issued, err := s.shares.Issue(ctx, fileID, requesterID, ttlMinutes)
	if err != nil {
		return nil, err
	}
	return &ShareLink{
		Token:     issued.Token,
		Path:      common.DownloadPathPrefix + issued.Token,
		ExpiresAt: issued.ExpiresAt,
	}, nil
}

// ListFiles returns the owner's files, newest first.
func (s *FileService) ListFiles(ctx context.Context, ownerID string) ([]models.FileSummary, error) {
	records, err := s.repomanager.Files(s.db).FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := make([]models.FileSummary, 0, len(records))
	for _, r := range records {
		result = append(result, models.FileSummary{
			ID:           r.ID,
			Filename:     r.Filename,
			OriginalName: r.OriginalName,
			Size:         r.Size,
			MimeType:     r.MimeType,
			CreatedAt:    r.CreatedAt,
		})
	}
	return result, nil
}

// DownloadByToken resolves an active share token and returns the decrypted
// file. Any blob fetch failure, a missing object included, is reported as
// ErrRetrieval only: the record exists, so the fault is on the server side
// and must not read as an unknown token.
func (s *FileService) DownloadByToken(ctx context.Context, token string) (*Download, error) {
	record, err := s.shares.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	ciphertext, err := s.store.Get(ctx, record.StorageKey)
	if err != nil {
		s.logger.Error(ctx, "blob retrieval failed", "file_id", record.ID, "storage_key", record.StorageKey, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
	}

	plaintext, err := s.cipher.Decrypt(ciphertext, record.EncryptionIV)
	if err != nil {
		s.logger.Error(ctx, "blob decryption failed", "file_id", record.ID, "error", err)
		if errors.Is(err, common.ErrDecryption) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrDecryption, err)
	}

	return &Download{Data: plaintext, Filename: record.OriginalName, MimeType: record.MimeType}, nil
}

func (s *FileService) storageKey(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return storageKeyPrefix + s.newKeyID() + "-" + name
}
