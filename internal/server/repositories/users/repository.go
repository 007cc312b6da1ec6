// Package users stores account credentials for the HTTP identity layer.
package users

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	// Create stores a new user. A taken user name fails with common.ErrValidation.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetUserByLogin returns common.ErrNotFound for unknown user names.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
