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

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an inbox row
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (user_id, request_id, role_tag, message, read, created_at)
		VALUES (?, ?, ?, ?, 0, CURRENT_TIMESTAMP)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		n.UserID,
		n.RequestID,
		n.RoleTag,
		n.Message,
	)
	if err != nil {
		r.logger.Error("failed to create notification", zap.Int64("user_id", n.UserID), zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	n.ID = id
	return nil
}

// ListByUser returns a user's inbox for one role tag, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, roleTag string) ([]*entity.Notification, error) {
	query := `
		SELECT id, user_id, request_id, role_tag, message, read, created_at
		FROM notifications
		WHERE user_id = ? AND role_tag = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, userID, roleTag)
	if err != nil {
		r.logger.Error("failed to list notifications", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.RequestID,
			&n.RoleTag,
			&n.Message,
			&n.Read,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// CountUnread returns how many unread rows the inbox holds
func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64, roleTag string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND role_tag = ? AND read = 0`

	var count int
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, userID, roleTag).Scan(&count)
	if err != nil {
		r.logger.Error("failed to count unread notifications", zap.Int64("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	return count, nil
}

// MarkRead marks one of the user's notifications as read. A row that does not
// exist or is not the user's own reports port.ErrNotFound.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	query := `UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("failed to mark notification read", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: notification %d for user %d", port.ErrNotFound, id, userID)
	}

	return nil
}

// DeleteByRequest removes all notifications referencing a request
func (r *NotificationRepository) DeleteByRequest(ctx context.Context, requestID int64) error {
	query := `DELETE FROM notifications WHERE request_id = ?`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("failed to delete notifications", zap.Int64("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to delete notifications: %w", err)
	}

	return nil
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
