package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/port"
	"github.com/primar/rendiciones/internal/domain/entity"
	"github.com/primar/rendiciones/internal/infrastructure/persistence/sqlite"
)

// AttachmentRepository implements port.AttachmentRepository
type AttachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger) port.AttachmentRepository {
	return &AttachmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts attachment metadata
func (r *AttachmentRepository) Create(ctx context.Context, att *entity.Attachment) error {
	query := `
		INSERT INTO attachments (
			request_id, file_name, storage_key, content_type, size, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		att.RequestID,
		att.FileName,
		att.StorageKey,
		att.ContentType,
		att.Size,
		att.UploadedAt,
	)
	if err != nil {
		r.logger.Error("failed to create attachment", zap.Int64("request_id", att.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	att.ID = id
	return nil
}

// GetByID retrieves an attachment by ID, returning (nil, nil) when absent
func (r *AttachmentRepository) GetByID(ctx context.Context, id int64) (*entity.Attachment, error) {
	query := `
		SELECT id, request_id, file_name, storage_key, content_type, size, uploaded_at
		FROM attachments
		WHERE id = ?
	`

	var att entity.Attachment
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&att.ID,
		&att.RequestID,
		&att.FileName,
		&att.StorageKey,
		&att.ContentType,
		&att.Size,
		&att.UploadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to get attachment by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}

	return &att, nil
}

// ListByRequest returns a request's attachments in upload order
func (r *AttachmentRepository) ListByRequest(ctx context.Context, requestID int64) ([]*entity.Attachment, error) {
	query := `
		SELECT id, request_id, file_name, storage_key, content_type, size, uploaded_at
		FROM attachments
		WHERE request_id = ?
		ORDER BY id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("failed to list attachments", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*entity.Attachment
	for rows.Next() {
		var att entity.Attachment
		err := rows.Scan(
			&att.ID,
			&att.RequestID,
			&att.FileName,
			&att.StorageKey,
			&att.ContentType,
			&att.Size,
			&att.UploadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &att)
	}

	return attachments, rows.Err()
}

// DeleteByRequest removes all attachment rows for a request
func (r *AttachmentRepository) DeleteByRequest(ctx context.Context, requestID int64) error {
	query := `DELETE FROM attachments WHERE request_id = ?`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("failed to delete attachments", zap.Int64("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to delete attachments: %w", err)
	}

	return nil
}

// Verify interface compliance
var _ port.AttachmentRepository = (*AttachmentRepository)(nil)
