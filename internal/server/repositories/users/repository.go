package users

import (
	"context"

	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ActivateByToken(ctx context.Context, tokenHash string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	List(ctx context.Context) ([]*models.User, error)
}
