package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/google/uuid"
)

const fileColumns = `f.id, f.filename, f.original_name, f.storage_key, f.owner_id, f.encryption_iv, f.size, f.mime_type, f.created_at, f.updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the record and returns it with the database-assigned id
// and timestamps. Missing required fields fail with common.ErrValidation
// before any query is sent.
func (r *PostgresRepository) Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error) {
	if err := validate(file); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO files (filename, original_name, storage_key, owner_id, encryption_iv, size, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	created := *file
	created.ShareTokens = nil
	err := r.db.QueryRowContext(ctx, query,
		file.Filename, file.OriginalName, file.StorageKey, file.OwnerID, file.EncryptionIV, file.Size, file.MimeType,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert file: %w", common.ErrStorage, err)
	}
	return &created, nil
}

// FindByID loads the record and its share tokens.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.FileRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	query := `SELECT ` + fileColumns + ` FROM files f WHERE f.id = $1`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	tokens, err := r.selectTokens(ctx, id)
	if err != nil {
		return nil, err
	}
	file.ShareTokens = tokens
	return file, nil
}

// FindByOwner returns the owner's records ordered newest first. An owner id
// that is not a UUID owns nothing.
func (r *PostgresRepository) FindByOwner(ctx context.Context, ownerID string) ([]*models.FileRecord, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return []*models.FileRecord{}, nil
	}

	query := `SELECT ` + fileColumns + ` FROM files f WHERE f.owner_id = $1 ORDER BY f.created_at DESC, f.id DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: select files: %w", common.ErrStorage, err)
	}
	defer rows.Close()

	result := []*models.FileRecord{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate files: %w", common.ErrStorage, err)
	}
	return result, nil
}

// FindByValidShareToken matches on the individual token row, so a file with
// several tokens qualifies as soon as one of them is the given, unexpired one.
func (r *PostgresRepository) FindByValidShareToken(ctx context.Context, token string, now time.Time) (*models.FileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		JOIN share_tokens t ON t.file_id = f.id
		WHERE t.token = $1 AND t.expires_at > $2
		LIMIT 1
	`
	return scanFile(r.db.QueryRowContext(ctx, query, token, now))
}

// AppendShareToken inserts the token and bumps the file's updated_at in a
// single statement. No rows inserted means the file does not exist.
func (r *PostgresRepository) AppendShareToken(ctx context.Context, fileID string, token models.ShareToken) error {
	if _, err := uuid.Parse(fileID); err != nil {
		return common.ErrNotFound
	}

	query := `
		WITH f AS (
			UPDATE files SET updated_at = $4 WHERE id = $1 RETURNING id
		)
		INSERT INTO share_tokens (file_id, token, expires_at, created_at)
		SELECT id, $2, $3, $4 FROM f
	`
	res, err := r.db.ExecContext(ctx, query, fileID, token.Token, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert share token: %w", common.ErrStorage, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", common.ErrStorage, err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("%w: unexpected rows affected: %d", common.ErrStorage, n)
	}
}

func (r *PostgresRepository) selectTokens(ctx context.Context, fileID string) ([]models.ShareToken, error) {
	query := `SELECT token, expires_at, created_at FROM share_tokens WHERE file_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: select share tokens: %w", common.ErrStorage, err)
	}
	defer rows.Close()

	var tokens []models.ShareToken
	for rows.Next() {
		var t models.ShareToken
		if err := rows.Scan(&t.Token, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan share token: %w", common.ErrStorage, err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate share tokens: %w", common.ErrStorage, err)
	}
	return tokens, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.FileRecord, error) {
	f := &models.FileRecord{}
	err := row.Scan(&f.ID, &f.Filename, &f.OriginalName, &f.StorageKey, &f.OwnerID,
		&f.EncryptionIV, &f.Size, &f.MimeType, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan file: %w", common.ErrStorage, err)
	}
	return f, nil
}
