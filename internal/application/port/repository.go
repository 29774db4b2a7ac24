package port

import (
	"context"
	"errors"

	"github.com/primar/rendiciones/internal/domain/entity"
	"github.com/primar/rendiciones/internal/domain/workflow"
)

// ErrVersionConflict is returned by RequestRepository.Update when the row was
// modified since it was read (optimistic concurrency guard).
var ErrVersionConflict = errors.New("request version conflict")

// ErrNotFound is returned by guarded writes that matched no row, such as
// marking a missing or foreign notification as read.
var ErrNotFound = errors.New("row not found")

// RequestRepository defines persistence operations for Request.
// GetByID returns (nil, nil) when no row exists.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id int64) (*entity.Request, error)

	// Update writes all mutable fields guarded by the version the request
	// was read at, bumping the version on success. Returns
	// ErrVersionConflict when the guarded update matches no row.
	Update(ctx context.Context, req *entity.Request) error

	Delete(ctx context.Context, id int64) error
	TicketExists(ctx context.Context, ticket string) (bool, error)
	ListByOwner(ctx context.Context, ownerID int64, includeDeleted bool) ([]*entity.Request, error)
	ListByStates(ctx context.Context, states ...workflow.State) ([]*entity.Request, error)
	CountByState(ctx context.Context) (map[workflow.State]int, error)
}

// AttachmentRepository defines persistence operations for Attachment
type AttachmentRepository interface {
	Create(ctx context.Context, att *entity.Attachment) error
	GetByID(ctx context.Context, id int64) (*entity.Attachment, error)
	ListByRequest(ctx context.Context, requestID int64) ([]*entity.Attachment, error)
	DeleteByRequest(ctx context.Context, requestID int64) error
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListByUser(ctx context.Context, userID int64, roleTag string) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, userID int64, roleTag string) (int, error)

	// MarkRead marks the user's notification as read. Returns ErrNotFound
	// when the row does not exist or belongs to another user.
	MarkRead(ctx context.Context, id, userID int64) error
	DeleteByRequest(ctx context.Context, requestID int64) error
}

// UserRepository is the read-only query surface over the identity provider's
// user store. GetByID returns (nil, nil) when no row exists.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	ListByRole(ctx context.Context, role workflow.Role) ([]*entity.User, error)
}

// TransactionManager manages database transactions
type TransactionManager interface {
	// WithTransaction executes fn within a transaction. The transaction is
	// carried in the context and picked up by the repositories.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
