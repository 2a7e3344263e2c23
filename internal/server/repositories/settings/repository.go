package settings

import (
	"context"

	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
)

// Repository is an append-only log of settings versions.
type Repository interface {
	// Lock serializes writers of the settings log until the enclosing
	// transaction ends.
	Lock(ctx context.Context) error
	Latest(ctx context.Context) (*models.Settings, error)
	Create(ctx context.Context, s *models.Settings) error
	Count(ctx context.Context) (int, error)
}
