package capsules

import (
	"context"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, capsule *models.Capsule) (*models.Capsule, error)
	GetByID(ctx context.Context, id string) (*models.Capsule, error)
	GetByToken(ctx context.Context, token string) (*models.Capsule, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Capsule, error)
	SelectDue(ctx context.Context, now time.Time) ([]*models.Capsule, error)
	Update(ctx context.Context, capsule *models.Capsule) error
	MarkUnlocked(ctx context.Context, id string, token string) (bool, error)
	Delete(ctx context.Context, id string) error
}
