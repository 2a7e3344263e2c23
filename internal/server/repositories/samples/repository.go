package samples

import (
	"context"
	"time"

	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
)

// Repository persists samples. Date ranges are inclusive calendar dates.
type Repository interface {
	// LockWeek serializes allocations for one ISO week until the enclosing
	// transaction ends.
	LockWeek(ctx context.Context, week models.Week) error
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
	PrimaryKeysBetween(ctx context.Context, from, to time.Time) ([]string, error)
	Create(ctx context.Context, sample *models.Sample) error
	GetByPrimaryKey(ctx context.Context, primaryKey string) (*models.Sample, error)
	List(ctx context.Context, email string) ([]*models.Sample, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.Sample, error)
	MarkResults(ctx context.Context, primaryKey string, fasta, gbk, zip bool) error
}
