package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/timex"
)

// shareTokenBytes is the entropy of a share token before hex encoding.
const shareTokenBytes = 32

// maxTTLMinutes is the largest lifetime a time.Duration can hold.
const maxTTLMinutes = math.MaxInt64 / int64(time.Minute)

// IssuedShare is the result of a successful Issue.
type IssuedShare struct {
	Token     string
	ExpiresAt time.Time
}

// ShareService issues share tokens and resolves them back to files. A token
// is active while now < ExpiresAt and expired afterwards; nothing is ever
// revoked or swept.
type ShareService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	clock       timex.Clock
	logger      logging.Logger
	defaultTTL  time.Duration
	maxTTL      time.Duration
	newToken    func() (string, error)
}

func NewShareService(db dbx.DBTX, m repomanager.RepositoryManager, cfg *config.Config, clock timex.Clock, logger logging.Logger) *ShareService {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &ShareService{
		db:          db,
		repomanager: m,
		clock:       clock,
		logger:      logger.With("module", "share"),
		defaultTTL:  cfg.DefaultShareTTL,
		maxTTL:      cfg.MaxShareTTL,
		newToken:    func() (string, error) { return common.MakeRandHexString(shareTokenBytes) },
	}
}

// Issue creates a new token for fileID. Only the owner may share a file.
// A nil ttlMinutes falls back to the configured default.
func (s *ShareService) Issue(ctx context.Context, fileID, requesterID string, ttlMinutes *int) (*IssuedShare, error) {
	ttl, err := s.resolveTTL(ttlMinutes)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Files(s.db)
	file, err := repo.FindByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != requesterID {
		return nil, common.ErrForbidden
	}

	value, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("%w: token generation: %w", common.ErrStorage, err)
	}

	now := s.clock()
	token := models.ShareToken{Token: value, ExpiresAt: now.Add(ttl), CreatedAt: now}
	if err := repo.AppendShareToken(ctx, fileID, token); err != nil {
		s.logger.Error(ctx, "append share token failed", "file_id", fileID, "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "share link issued", "file_id", fileID, "token_prefix", tokenPrefix(value), "expires_at", token.ExpiresAt)
	return &IssuedShare{Token: value, ExpiresAt: token.ExpiresAt}, nil
}

// Resolve returns the file a still-active token points at. Unknown and
// expired tokens are both common.ErrNotFound.
func (s *ShareService) Resolve(ctx context.Context, token string) (*models.FileRecord, error) {
	if token == "" {
		return nil, common.ErrNotFound
	}
	return s.repomanager.Files(s.db).FindByValidShareToken(ctx, token, s.clock())
}

func (s *ShareService) resolveTTL(ttlMinutes *int) (time.Duration, error) {
	if ttlMinutes == nil {
		return s.defaultTTL, nil
	}
	if *ttlMinutes <= 0 {
		return 0, fmt.Errorf("%w: expiresInMinutes must be positive", common.ErrValidation)
	}
	if int64(*ttlMinutes) > maxTTLMinutes {
		return 0, fmt.Errorf("%w: expiresInMinutes exceeds %d", common.ErrValidation, maxTTLMinutes)
	}
	ttl := time.Duration(*ttlMinutes) * time.Minute
	if s.maxTTL > 0 && ttl > s.maxTTL {
		return 0, fmt.Errorf("%w: expiresInMinutes exceeds %d", common.ErrValidation, int(s.maxTTL/time.Minute))
	}
	return ttl, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
