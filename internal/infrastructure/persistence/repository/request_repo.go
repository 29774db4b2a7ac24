package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/port"
	"github.com/primar/rendiciones/internal/domain/entity"
	"github.com/primar/rendiciones/internal/domain/workflow"
	"github.com/primar/rendiciones/internal/infrastructure/persistence/sqlite"
)

const requestColumns = `id, ticket, owner_id, first_name, last_name, tax_id, phone,
		job_title, department, title, description, amount, state, version,
		approver1_id, approver2_id, approver_comment,
		reject_reason_stage1, reject_reason_stage2,
		approved_stage1_at, approved_stage2_at, paid_at,
		deleted_by_owner, created_at, updated_at`

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new request. The row starts at version 1.
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	query := `
		INSERT INTO requests (
			ticket, owner_id, first_name, last_name, tax_id, phone,
			job_title, department, title, description, amount, state,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		req.Ticket,
		req.OwnerID,
		req.FirstName,
		req.LastName,
		req.TaxID,
		req.Phone,
		req.JobTitle,
		req.Department,
		req.Title,
		req.Description,
		req.Amount,
		req.State.String(),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create request", zap.String("ticket", req.Ticket), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	req.Version = 1
	return nil
}

// GetByID retrieves a request by ID, returning (nil, nil) when absent
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := scanRequest(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to get request by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return req, nil
}

// Update writes all mutable fields, guarded by the version the caller read.
// Zero affected rows means another writer got there first.
func (r *RequestRepository) Update(ctx context.Context, req *entity.Request) error {
	query := `
		UPDATE requests SET
			title = ?, description = ?, amount = ?, state = ?,
			approver1_id = ?, approver2_id = ?, approver_comment = ?,
			reject_reason_stage1 = ?, reject_reason_stage2 = ?,
			approved_stage1_at = ?, approved_stage2_at = ?, paid_at = ?,
			deleted_by_owner = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		req.Title,
		req.Description,
		req.Amount,
		req.State.String(),
		req.Approver1ID,
		req.Approver2ID,
		req.ApproverComment,
		req.RejectReasonStage1,
		req.RejectReasonStage2,
		req.ApprovedStage1At,
		req.ApprovedStage2At,
		req.PaidAt,
		req.DeletedByOwner,
		req.UpdatedAt,
		req.ID,
		req.Version,
	)
	if err != nil {
		r.logger.Error("failed to update request", zap.Int64("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return port.ErrVersionConflict
	}

	req.Version++
	return nil
}

// Delete removes a request row
func (r *RequestRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM requests WHERE id = ?`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("failed to delete request", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete request: %w", err)
	}

	return nil
}

// TicketExists reports whether a ticket code is already taken
func (r *RequestRepository) TicketExists(ctx context.Context, ticket string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM requests WHERE ticket = ?)`

	var exists bool
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, ticket).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to check ticket", zap.String("ticket", ticket), zap.Error(err))
		return false, fmt.Errorf("failed to check ticket: %w", err)
	}

	return exists, nil
}

// ListByOwner returns an owner's requests, newest first. Soft-deleted rows
// are excluded unless includeDeleted is set.
func (r *RequestRepository) ListByOwner(ctx context.Context, ownerID int64, includeDeleted bool) ([]*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE owner_id = ?`
	if !includeDeleted {
		query += ` AND deleted_by_owner = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, ownerID)
	if err != nil {
		r.logger.Error("failed to list requests by owner", zap.Int64("owner_id", ownerID), zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListByStates returns all requests in any of the given states, newest first
func (r *RequestRepository) ListByStates(ctx context.Context, states ...workflow.State) ([]*entity.Request, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(states)), ", ")
	query := `SELECT ` + requestColumns + ` FROM requests WHERE state IN (` + placeholders + `) ORDER BY created_at DESC`

	args := make([]interface{}, len(states))
	for i, s := range states {
		args[i] = s.String()
	}

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list requests by states", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// CountByState returns request counts grouped by state
func (r *RequestRepository) CountByState(ctx context.Context) (map[workflow.State]int, error) {
	query := `SELECT state, COUNT(*) FROM requests GROUP BY state`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to count requests by state", zap.Error(err))
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[workflow.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[workflow.State(state)] = count
	}

	return counts, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.Request, error) {
	var req entity.Request
	var state string
	var approver1ID, approver2ID sql.NullInt64
	var approvedStage1At, approvedStage2At, paidAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.Ticket,
		&req.OwnerID,
		&req.FirstName,
		&req.LastName,
		&req.TaxID,
		&req.Phone,
		&req.JobTitle,
		&req.Department,
		&req.Title,
		&req.Description,
		&req.Amount,
		&state,
		&req.Version,
		&approver1ID,
		&approver2ID,
		&req.ApproverComment,
		&req.RejectReasonStage1,
		&req.RejectReasonStage2,
		&approvedStage1At,
		&approvedStage2At,
		&paidAt,
		&req.DeletedByOwner,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.State = workflow.State(state)
	if approver1ID.Valid {
		req.Approver1ID = &approver1ID.Int64
	}
	if approver2ID.Valid {
		req.Approver2ID = &approver2ID.Int64
	}
	if approvedStage1At.Valid {
		req.ApprovedStage1At = &approvedStage1At.Time
	}
	if approvedStage2At.Valid {
		req.ApprovedStage2At = &approvedStage2At.Time
	}
	if paidAt.Valid {
		req.PaidAt = &paidAt.Time
	}

	return &req, nil
}

func collectRequests(rows *sql.Rows) ([]*entity.Request, error) {
	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
