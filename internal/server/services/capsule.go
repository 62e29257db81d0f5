// Package services contains server-side business logic. This file implements
// CapsuleService: capsule creation, owner-initiated updates, attach/detach of
// files, and deletion with storage cascade.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/timecapsule/internal/common"
	"github.com/dmitrijs2005/timecapsule/internal/dbx"
	"github.com/dmitrijs2005/timecapsule/internal/server/config"
	"github.com/dmitrijs2005/timecapsule/internal/server/models"
	"github.com/dmitrijs2005/timecapsule/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/timecapsule/internal/server/storage"
)

// Upload is one incoming file to deposit in a capsule.
type Upload struct {
	Content      io.Reader
	OriginalName string
	ContentType  string
	Size         int64
}

// CapsuleUpdate carries owner-initiated field updates. Nil means "leave as is".
type CapsuleUpdate struct {
	RecipientEmail *string
	Title          *string
	Topic          *string
	UnlockAt       *string
}

// CapsuleService provides the capsule CRUD operations exposed to the API layer.
type CapsuleService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	files       storage.FileStore
	config      *config.Config
}

// NewCapsuleService constructs a CapsuleService using repositories, file
// storage and server config.
func NewCapsuleService(db *sql.DB, m repomanager.RepositoryManager, files storage.FileStore, cfg *config.Config) *CapsuleService {
	return &CapsuleService{db: db, repomanager: m, files: files, config: cfg}
}

// ParseUnlockAt normalizes an unlock instant supplied by a client. Accepted
// forms: RFC3339, "2006-01-02T15:04:05" (treated as UTC), and a bare
// "2006-01-02" which resolves to the end of that day in UTC. The result is
// always UTC; wall-clock-local instants are never stored.
func ParseUnlockAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: unlock date is required", common.ErrorValidation)
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		// end of day, so "2026-01-01" means the capsule opens once the day is over
		return d.Add(24*time.Hour - time.Nanosecond).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid unlock date %q, use YYYY-MM-DD or RFC3339", common.ErrorValidation, raw)
}

// CreateCapsule stores the uploads, then inserts the capsule and its
// attachment rows in one transaction. The status is forced to LOCKED
// regardless of caller input.
func (s *CapsuleService) CreateCapsule(ctx context.Context, ownerID string, recipientEmail string, unlockAtRaw string, title string, topic string, uploads []Upload) (*models.Capsule, error) {
	if strings.TrimSpace(recipientEmail) == "" {
		return nil, fmt.Errorf("%w: recipient email is required", common.ErrorValidation)
	}
	unlockAt, err := ParseUnlockAt(unlockAtRaw)
	if err != nil {
		return nil, err
	}

	capsule := &models.Capsule{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		RecipientEmail: strings.TrimSpace(recipientEmail),
		Title:          strings.TrimSpace(title),
		Topic:          strings.TrimSpace(topic),
		UnlockAt:       unlockAt,
		Status:         models.StatusLocked,
	}

	stored, err := s.storeUploads(ctx, capsule.ID, uploads)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Capsules(tx).Create(ctx, capsule); err != nil {
			return err
		}
		attachRepo := s.repomanager.Attachments(tx)
		for i := range stored {
			if err := attachRepo.Add(ctx, &stored[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// the rows never landed; release the orphaned objects
		s.releaseStorage(ctx, stored)
		return nil, fmt.Errorf("error creating capsule: %w", err)
	}

	capsule.Attachments = stored
	return capsule, nil
}

// GetCapsule returns a capsule with its attachments loaded.
func (s *CapsuleService) GetCapsule(ctx context.Context, id string) (*models.Capsule, error) {
	capsule, err := s.repomanager.Capsules(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withAttachments(ctx, capsule)
}

// GetCapsuleByToken returns the capsule holding a public access token,
// attachments loaded.
func (s *CapsuleService) GetCapsuleByToken(ctx context.Context, token string) (*models.Capsule, error) {
	capsule, err := s.repomanager.Capsules(s.db).GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.withAttachments(ctx, capsule)
}

// ListCapsules returns all capsules owned by ownerID, attachments loaded.
func (s *CapsuleService) ListCapsules(ctx context.Context, ownerID string) ([]*models.Capsule, error) {
	list, err := s.repomanager.Capsules(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		if _, err := s.withAttachments(ctx, c); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// UpdateCapsule applies owner-initiated field updates. Only the owner may
// update, and the unlock instant becomes immutable once the capsule has
// unlocked.
func (s *CapsuleService) UpdateCapsule(ctx context.Context, id string, requesterID string, update CapsuleUpdate) (*models.Capsule, error) {
	repo := s.repomanager.Capsules(s.db)
	capsule, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if capsule.OwnerID != requesterID {
		return nil, common.ErrorForbidden
	}

	if update.RecipientEmail != nil {
		if strings.TrimSpace(*update.RecipientEmail) == "" {
			return nil, fmt.Errorf("%w: recipient email is required", common.ErrorValidation)
		}
		capsule.RecipientEmail = strings.TrimSpace(*update.RecipientEmail)
	}
	if update.Title != nil {
		capsule.Title = strings.TrimSpace(*update.Title)
	}
	if update.Topic != nil {
		capsule.Topic = strings.TrimSpace(*update.Topic)
	}
	if update.UnlockAt != nil {
		if capsule.Unlocked() {
			return nil, common.ErrorCapsuleUnlocked
		}
		unlockAt, err := ParseUnlockAt(*update.UnlockAt)
		if err != nil {
			return nil, err
		}
		capsule.UnlockAt = unlockAt
	}

	if err := repo.Update(ctx, capsule); err != nil {
		return nil, fmt.Errorf("error updating capsule: %w", err)
	}
	return s.withAttachments(ctx, capsule)
}

// DeleteCapsule removes the capsule and releases every attachment's backing
// object. Only the owner may delete.
func (s *CapsuleService) DeleteCapsule(ctx context.Context, id string, requesterID string) error {
	repo := s.repomanager.Capsules(s.db)
	capsule, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if capsule.OwnerID != requesterID {
		return common.ErrorForbidden
	}

	attachments, err := s.repomanager.Attachments(s.db).ListByCapsule(ctx, id)
	if err != nil {
		return err
	}

	if err := repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting capsule: %w", err)
	}

	// rows are gone (attachment rows via cascade); bytes go last so a storage
	// hiccup never resurrects a half-deleted capsule
	s.releaseStorage(ctx, attachments)
	return nil
}

// AttachFiles stores the uploads and appends their rows to an existing
// capsule. Only the owner may attach.
func (s *CapsuleService) AttachFiles(ctx context.Context, capsuleID string, requesterID string, uploads []Upload) ([]models.Attachment, error) {
	capsule, err := s.repomanager.Capsules(s.db).GetByID(ctx, capsuleID)
	if err != nil {
		return nil, err
	}
	if capsule.OwnerID != requesterID {
		return nil, common.ErrorForbidden
	}

	stored, err := s.storeUploads(ctx, capsuleID, uploads)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		attachRepo := s.repomanager.Attachments(tx)
		for i := range stored {
			if err := attachRepo.Add(ctx, &stored[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.releaseStorage(ctx, stored)
		return nil, fmt.Errorf("error attaching files: %w", err)
	}
	return stored, nil
}

// DetachFile removes one attachment row and releases its backing object.
// Only the owner may detach.
func (s *CapsuleService) DetachFile(ctx context.Context, capsuleID string, requesterID string, storedName string) error {
	capsule, err := s.repomanager.Capsules(s.db).GetByID(ctx, capsuleID)
	if err != nil {
		return err
	}
	if capsule.OwnerID != requesterID {
		return common.ErrorForbidden
	}

	attachRepo := s.repomanager.Attachments(s.db)
	if _, err := attachRepo.Get(ctx, capsuleID, storedName); err != nil {
		return err
	}
	if err := attachRepo.Remove(ctx, capsuleID, storedName); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, storedName); err != nil {
		return fmt.Errorf("error releasing file storage: %w", err)
	}
	return nil
}

// OpenAttachment returns the metadata and a reader over the stored bytes.
func (s *CapsuleService) OpenAttachment(ctx context.Context, capsuleID string, storedName string) (*models.Attachment, io.ReadCloser, error) {
	attachment, err := s.repomanager.Attachments(s.db).Get(ctx, capsuleID, storedName)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.files.Load(ctx, storedName)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading file: %w", err)
	}
	return attachment, body, nil
}

// AttachmentURL returns a short-lived presigned download URL for an
// attachment of the given capsule.
func (s *CapsuleService) AttachmentURL(ctx context.Context, capsuleID string, storedName string) (string, error) {
	if _, err := s.repomanager.Attachments(s.db).Get(ctx, capsuleID, storedName); err != nil {
		return "", err
	}
	return s.files.PresignedGetURL(ctx, storedName)
}

// --- helpers below ---

func (s *CapsuleService) withAttachments(ctx context.Context, capsule *models.Capsule) (*models.Capsule, error) {
	attachments, err := s.repomanager.Attachments(s.db).ListByCapsule(ctx, capsule.ID)
	if err != nil {
		return nil, err
	}
	capsule.Attachments = attachments
	return capsule, nil
}

func (s *CapsuleService) storeUploads(ctx context.Context, capsuleID string, uploads []Upload) ([]models.Attachment, error) {
	var stored []models.Attachment
	for _, u := range uploads {
		key, err := s.files.Store(ctx, u.Content, u.OriginalName, u.ContentType)
		if err != nil {
			s.releaseStorage(ctx, stored)
			return nil, fmt.Errorf("error storing file %q: %w", u.OriginalName, err)
		}
		stored = append(stored, models.Attachment{
			CapsuleID:    capsuleID,
			StoredName:   key,
			OriginalName: u.OriginalName,
			ContentType:  u.ContentType,
			Size:         u.Size,
		})
	}
	return stored, nil
}

func (s *CapsuleService) releaseStorage(ctx context.Context, attachments []models.Attachment) {
	for _, a := range attachments {
		// best effort; an orphaned object is preferable to a failed request
		_ = s.files.Delete(ctx, a.StoredName)
	}
}
