// Package capsules provides the PostgreSQL-backed repository for capsule
// persistence, including the due-capsule scan and the conditional unlock write.
package capsules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/common"
	"github.com/dmitrijs2005/timecapsule/internal/dbx"
	"github.com/dmitrijs2005/timecapsule/internal/server/models"
)

// PostgresRepository implements capsule storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const capsuleColumns = `id, owner_id, recipient_email, title, topic, unlock_at, status, public_access_token, created_at, updated_at`

func scanCapsule(row interface{ Scan(dest ...any) error }) (*models.Capsule, error) {
	var c models.Capsule
	var title, topic, token sql.NullString
	if err := row.Scan(
		&c.ID, &c.OwnerID, &c.RecipientEmail, &title, &topic,
		&c.UnlockAt, &c.Status, &token, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Title = title.String
	c.Topic = topic.String
	c.PublicAccessToken = token.String
	return &c, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts a new capsule row. The status stored is whatever the caller
// set; forcing LOCKED at creation is the service's job.
func (r *PostgresRepository) Create(ctx context.Context, capsule *models.Capsule) (*models.Capsule, error) {
	query := `
		INSERT INTO capsules (id, owner_id, recipient_email, title, topic, unlock_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		capsule.ID, capsule.OwnerID, capsule.RecipientEmail,
		nullable(capsule.Title), nullable(capsule.Topic),
		capsule.UnlockAt, capsule.Status,
	).Scan(&capsule.CreatedAt, &capsule.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return capsule, nil
}

// GetByID returns the capsule with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE id = $1`
	c, err := scanCapsule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// GetByToken returns the capsule holding the given public access token
// or common.ErrorNotFound.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE public_access_token = $1`
	c, err := scanCapsule(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// ListByOwner returns all capsules created by ownerID, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SelectDue returns all capsules that are still locked and whose unlock
// instant is at or before now. Ordering is not significant; each row is
// processed independently by the scheduler.
func (r *PostgresRepository) SelectDue(ctx context.Context, now time.Time) ([]*models.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE status = $1 AND unlock_at <= $2`
	rows, err := r.db.QueryContext(ctx, query, models.StatusLocked, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select due capsules: %w", err)
	}
	defer rows.Close()

	var result []*models.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update rewrites the mutable fields of a capsule. The status and token
// columns are deliberately excluded; MarkUnlocked is the only writer of those.
func (r *PostgresRepository) Update(ctx context.Context, capsule *models.Capsule) error {
	query := `
		UPDATE capsules
		SET recipient_email = $2, title = $3, topic = $4, unlock_at = $5, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		capsule.ID, capsule.RecipientEmail, nullable(capsule.Title), nullable(capsule.Topic), capsule.UnlockAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// MarkUnlocked flips a capsule to UNLOCKED and assigns its public access
// token in a single conditional write. The WHERE status = LOCKED clause makes
// the flip a compare-and-swap: a second caller racing on the same capsule
// observes false and must not notify.
func (r *PostgresRepository) MarkUnlocked(ctx context.Context, id string, token string) (bool, error) {
	query := `
		UPDATE capsules
		SET status = $2, public_access_token = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, id, models.StatusUnlocked, token, models.StatusLocked)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// Delete removes the capsule row. Attachment rows go with it via the schema's
// ON DELETE CASCADE; releasing their object storage is the service's job.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM capsules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
