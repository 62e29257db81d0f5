// Package attachments provides the PostgreSQL-backed repository for
// per-capsule file metadata rows.
package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/timecapsule/internal/common"
	"github.com/dmitrijs2005/timecapsule/internal/dbx"
	"github.com/dmitrijs2005/timecapsule/internal/server/models"
)

// PostgresRepository implements attachment storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add inserts one attachment row. Rows are immutable once written.
func (r *PostgresRepository) Add(ctx context.Context, attachment *models.Attachment) error {
	query := `
		INSERT INTO attachments (capsule_id, stored_name, original_name, content_type, size)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query,
		attachment.CapsuleID, attachment.StoredName, attachment.OriginalName,
		attachment.ContentType, attachment.Size); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByCapsule returns the capsule's attachments in upload order.
func (r *PostgresRepository) ListByCapsule(ctx context.Context, capsuleID string) ([]models.Attachment, error) {
	query := `
		SELECT capsule_id, stored_name, original_name, content_type, size, created_at
		FROM attachments
		WHERE capsule_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, capsuleID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.CapsuleID, &a.StoredName, &a.OriginalName, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns one attachment row or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, capsuleID string, storedName string) (*models.Attachment, error) {
	query := `
		SELECT capsule_id, stored_name, original_name, content_type, size, created_at
		FROM attachments
		WHERE capsule_id = $1 AND stored_name = $2
	`
	var a models.Attachment
	err := r.db.QueryRowContext(ctx, query, capsuleID, storedName).
		Scan(&a.CapsuleID, &a.StoredName, &a.OriginalName, &a.ContentType, &a.Size, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &a, nil
}

// Remove deletes one attachment row, returning common.ErrorNotFound if the
// capsule holds no such file.
func (r *PostgresRepository) Remove(ctx context.Context, capsuleID string, storedName string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM attachments WHERE capsule_id = $1 AND stored_name = $2`, capsuleID, storedName)
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
