package attachments

import (
	"context"

	"github.com/dmitrijs2005/timecapsule/internal/server/models"
)

type Repository interface {
	Add(ctx context.Context, attachment *models.Attachment) error
	ListByCapsule(ctx context.Context, capsuleID string) ([]models.Attachment, error)
	Get(ctx context.Context, capsuleID string, storedName string) (*models.Attachment, error)
	Remove(ctx context.Context, capsuleID string, storedName string) error
}
