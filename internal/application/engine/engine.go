// Package engine implements the rendición approval workflow engine: request
// creation, the two-stage approve/reject/pay transitions, deletion and the
// per-role notification inbox. Every transition runs in one transaction with
// an optimistic version guard; notification fan-out happens strictly after
// commit and can only degrade an outcome, never fail it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/port"
	"github.com/primar/rendiciones/internal/domain/entity"
	"github.com/primar/rendiciones/internal/domain/workflow"
)

// Actor identifies who is performing an operation. Identity and role come
// from the transport; the engine trusts them and only enforces what each
// role may do.
type Actor struct {
	UserID int64
	Role   workflow.Role
}

// CreateInput carries a new request submission
type CreateInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
	Attachments []entity.AttachmentUpload
}

// EditInput carries changes to a pending request. Nil fields are left
// untouched; Attachments are appended.
type EditInput struct {
	Title       *string
	Description *string
	Amount      *decimal.Decimal
	Attachments []entity.AttachmentUpload
}

// ListFilter narrows List results for approver history views
type ListFilter struct {
	State *workflow.State
}

// Outcome is the result of a mutating operation. Degraded is set when the
// committed transition's fan-out partially failed.
type Outcome struct {
	Request  *entity.Request
	Notified int
	Degraded bool
}

// RequestDetail bundles a request with its attachment metadata
type RequestDetail struct {
	Request     *entity.Request
	Attachments []*entity.Attachment
}

// DeleteResult reports whether the deletion was a soft-delete (paid requests
// hidden from the owner's view) or a hard cascade.
type DeleteResult struct {
	Soft bool
}

// TicketSource allocates unique ticket codes
type TicketSource interface {
	Generate(ctx context.Context) (string, error)
}

// Notifier performs the post-commit notification fan-out for each
// transition. Each method returns how many deliveries succeeded; a non-nil
// error means at least one delivery failed.
type Notifier interface {
	RequestCreated(ctx context.Context, req *entity.Request) (int, error)
	Stage1Approved(ctx context.Context, req *entity.Request) (int, error)
	Stage1Rejected(ctx context.Context, req *entity.Request, reason string) (int, error)
	Stage2Approved(ctx context.Context, req *entity.Request) (int, error)
	Stage2Rejected(ctx context.Context, req *entity.Request, reason string) (int, error)
	Paid(ctx context.Context, req *entity.Request) (int, error)
}

// Service is the approval workflow engine's API
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*Outcome, error)
	Get(ctx context.Context, actor Actor, id int64) (*RequestDetail, error)
	List(ctx context.Context, actor Actor, filter ListFilter) ([]*entity.Request, error)
	Edit(ctx context.Context, actor Actor, id int64, input EditInput) (*entity.Request, error)

	ApproveStage1(ctx context.Context, actor Actor, id int64, comment string) (*Outcome, error)
	ApproveStage2(ctx context.Context, actor Actor, id int64, comment string) (*Outcome, error)
	Reject(ctx context.Context, actor Actor, id int64, reason string) (*Outcome, error)
	MarkPaid(ctx context.Context, actor Actor, id int64) (*Outcome, error)

	Delete(ctx context.Context, actor Actor, id int64) (*DeleteResult, error)

	Attachment(ctx context.Context, actor Actor, attachmentID int64) (*entity.Attachment, string, error)

	Notifications(ctx context.Context, actor Actor) ([]*entity.Notification, error)
	UnreadCount(ctx context.Context, actor Actor) (int, error)
	MarkNotificationRead(ctx context.Context, actor Actor, id int64) error

	Summary(ctx context.Context, actor Actor) (map[workflow.State]int, error)
}

// Default reasons recorded when an approver rejects without explaining
const (
	defaultRejectReasonStage1 = "Rechazada por el supervisor"
	defaultRejectReasonStage2 = "Rechazada por el gerente"
)

// Engine implements Service
type Engine struct {
	requests      port.RequestRepository
	attachments   port.AttachmentRepository
	notifications port.NotificationRepository
	users         port.UserRepository
	tx            port.TransactionManager
	blobs         port.BlobStorage
	tickets       TicketSource
	notifier      Notifier
	logger        *zap.Logger
	now           func() time.Time
}

// New creates the approval workflow engine
func New(
	requests port.RequestRepository,
	attachments port.AttachmentRepository,
	notifications port.NotificationRepository,
	users port.UserRepository,
	tx port.TransactionManager,
	blobs port.BlobStorage,
	tickets TicketSource,
	notifier Notifier,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		requests:      requests,
		attachments:   attachments,
		notifications: notifications,
		users:         users,
		tx:            tx,
		blobs:         blobs,
		tickets:       tickets,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

// Create submits a new request on behalf of an employee. The profile
// snapshot is taken here; later profile edits never rewrite it.
func (e *Engine) Create(ctx context.Context, actor Actor, input CreateInput) (*Outcome, error) {
	if actor.Role != workflow.RoleEmployee {
		return nil, ErrForbidden
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount %s is negative", ErrInvalidAmount, input.Amount)
	}

	owner, err := e.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner profile: %w", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, actor.UserID)
	}

	ticket, err := e.tickets.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate ticket: %w", err)
	}

	now := e.now()
	req := &entity.Request{
		Ticket:      ticket,
		OwnerID:     owner.ID,
		FirstName:   owner.FirstName,
		LastName:    owner.LastName,
		TaxID:       owner.TaxID,
		Phone:       owner.Phone,
		JobTitle:    owner.JobTitle,
		Department:  owner.Department,
		Title:       input.Title,
		Description: input.Description,
		Amount:      input.Amount,
		State:       workflow.StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Blobs are written before the transaction so a failed write never
	// leaves a committed row pointing at nothing. On a failed commit the
	// orphaned blobs are removed again.
	atts, keys, err := e.storeUploads(input.Attachments, now)
	if err != nil {
		return nil, err
	}

	err = e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := e.requests.Create(ctx, req); err != nil {
			return err
		}
		for _, att := range atts {
			att.RequestID = req.ID
			if err := e.attachments.Create(ctx, att); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.removeBlobs(keys)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	e.logger.Info("request created",
		zap.String("ticket", req.Ticket),
		zap.Int64("owner_id", req.OwnerID),
		zap.String("amount", req.Amount.String()),
	)

	return e.fanOut(ctx, req, e.notifier.RequestCreated)
}

// Get returns a request with its attachments. Employees may only see their
// own requests; approvers see everything.
func (e *Engine) Get(ctx context.Context, actor Actor, id int64) (*RequestDetail, error) {
	req, err := e.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	atts, err := e.attachments.ListByRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	return &RequestDetail{Request: req, Attachments: atts}, nil
}

// List returns the requests relevant to the actor's role: employees see
// their own (excluding soft-deleted), stage-1 approvers see the pending
// queue plus approved requests awaiting payment, stage-2 approvers see the
// stage-1 outcomes awaiting their decision. Approvers may narrow by state
// for history views.
func (e *Engine) List(ctx context.Context, actor Actor, filter ListFilter) ([]*entity.Request, error) {
	switch actor.Role {
	case workflow.RoleEmployee:
		return e.requests.ListByOwner(ctx, actor.UserID, false)
	case workflow.RoleApprover1:
		if filter.State != nil {
			return e.requests.ListByStates(ctx, *filter.State)
		}
		return e.requests.ListByStates(ctx, workflow.StatePending, workflow.StateApprovedStage2)
	case workflow.RoleApprover2:
		if filter.State != nil {
			return e.requests.ListByStates(ctx, *filter.State)
		}
		return e.requests.ListByStates(ctx, workflow.StateApprovedStage1, workflow.StateRejectedStage1)
	default:
		return nil, ErrForbidden
	}
}

// Edit modifies a pending request. Only the owner may edit, and only while
// the request has not entered the approval flow.
func (e *Engine) Edit(ctx context.Context, actor Actor, id int64, input EditInput) (*entity.Request, error) {
	if actor.Role != workflow.RoleEmployee {
		return nil, ErrForbidden
	}
	if input.Amount != nil && input.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount %s is negative", ErrInvalidAmount, *input.Amount)
	}

	now := e.now()
	atts, keys, err := e.storeUploads(input.Attachments, now)
	if err != nil {
		return nil, err
	}

	var updated *entity.Request
	err = e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		req, err := e.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req == nil {
			return fmt.Errorf("%w: request %d", ErrNotFound, id)
		}
		if req.OwnerID != actor.UserID {
			return ErrForbidden
		}
		if !req.IsEditable() {
			return fmt.Errorf("%w: state %s", ErrNotEditable, req.State)
		}

		if input.Title != nil {
			req.Title = *input.Title
		}
		if input.Description != nil {
			req.Description = *input.Description
		}
		if input.Amount != nil {
			req.Amount = *input.Amount
		}
		req.UpdatedAt = now

		if err := e.requests.Update(ctx, req); err != nil {
			if errors.Is(err, port.ErrVersionConflict) {
				return ErrConcurrentModification
			}
			return err
		}

		for _, att := range atts {
			att.RequestID = req.ID
			if err := e.attachments.Create(ctx, att); err != nil {
				return err
			}
		}

		updated = req
		return nil
	})
	if err != nil {
		e.removeBlobs(keys)
		return nil, err
	}

	return updated, nil
}

// ApproveStage1 moves a pending request to the first approval
func (e *Engine) ApproveStage1(ctx context.Context, actor Actor, id int64, comment string) (*Outcome, error) {
	req, err := e.transition(ctx, actor, id, workflow.TriggerApproveStage1, func(r *entity.Request, now time.Time) {
		t := now
		uid := actor.UserID
		r.ApprovedStage1At = &t
		r.Approver1ID = &uid
		if comment != "" {
			r.ApproverComment = comment
		}
	})
	if err != nil {
		return nil, err
	}
	return e.fanOut(ctx, req, e.notifier.Stage1Approved)
}

// ApproveStage2 gives final approval. It also works from a stage-1
// rejection, overriding it; both stage reasons stay recorded.
func (e *Engine) ApproveStage2(ctx context.Context, actor Actor, id int64, comment string) (*Outcome, error) {
	req, err := e.transition(ctx, actor, id, workflow.TriggerApproveStage2, func(r *entity.Request, now time.Time) {
		t := now
		uid := actor.UserID
		r.ApprovedStage2At = &t
		r.Approver2ID = &uid
		if comment != "" {
			r.ApproverComment = comment
		}
	})
	if err != nil {
		return nil, err
	}
	return e.fanOut(ctx, req, e.notifier.Stage2Approved)
}

// Reject records a rejection at the stage matching the actor's role. An
// empty reason falls back to the stage's default text.
func (e *Engine) Reject(ctx context.Context, actor Actor, id int64, reason string) (*Outcome, error) {
	switch actor.Role {
	case workflow.RoleApprover1:
		if reason == "" {
			reason = defaultRejectReasonStage1
		}
		req, err := e.transition(ctx, actor, id, workflow.TriggerRejectStage1, func(r *entity.Request, now time.Time) {
			uid := actor.UserID
			r.Approver1ID = &uid
			r.RejectReasonStage1 = reason
		})
		if err != nil {
			return nil, err
		}
		return e.fanOut(ctx, req, func(ctx context.Context, r *entity.Request) (int, error) {
			return e.notifier.Stage1Rejected(ctx, r, reason)
		})

	case workflow.RoleApprover2:
		if reason == "" {
			reason = defaultRejectReasonStage2
		}
		req, err := e.transition(ctx, actor, id, workflow.TriggerRejectStage2, func(r *entity.Request, now time.Time) {
			uid := actor.UserID
			r.Approver2ID = &uid
			r.RejectReasonStage2 = reason
		})
		if err != nil {
			return nil, err
		}
		return e.fanOut(ctx, req, func(ctx context.Context, r *entity.Request) (int, error) {
			return e.notifier.Stage2Rejected(ctx, r, reason)
		})

	default:
		return nil, ErrForbidden
	}
}

// MarkPaid records payment of a finally-approved request
func (e *Engine) MarkPaid(ctx context.Context, actor Actor, id int64) (*Outcome, error) {
	req, err := e.transition(ctx, actor, id, workflow.TriggerMarkPaid, func(r *entity.Request, now time.Time) {
		t := now
		r.PaidAt = &t
	})
	if err != nil {
		return nil, err
	}
	return e.fanOut(ctx, req, e.notifier.Paid)
}

// Delete removes a settled request. Paid requests are soft-deleted so
// payment history survives; other terminal outcomes cascade away the
// request, its notifications, attachment rows and blobs. Pending and
// in-flight requests cannot be deleted.
func (e *Engine) Delete(ctx context.Context, actor Actor, id int64) (*DeleteResult, error) {
	var result *DeleteResult
	var keys []string

	err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		req, err := e.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req == nil {
			return fmt.Errorf("%w: request %d", ErrNotFound, id)
		}
		if actor.Role == workflow.RoleEmployee && req.OwnerID != actor.UserID {
			return ErrForbidden
		}

		switch req.State {
		case workflow.StatePaid:
			req.DeletedByOwner = true
			req.UpdatedAt = e.now()
			if err := e.requests.Update(ctx, req); err != nil {
				if errors.Is(err, port.ErrVersionConflict) {
					return ErrConcurrentModification
				}
				return err
			}
			result = &DeleteResult{Soft: true}
			return nil

		case workflow.StateApprovedStage2, workflow.StateRejectedFinal:
			atts, err := e.attachments.ListByRequest(ctx, id)
			if err != nil {
				return err
			}
			for _, att := range atts {
				keys = append(keys, att.StorageKey)
			}
			if err := e.notifications.DeleteByRequest(ctx, id); err != nil {
				return err
			}
			if err := e.attachments.DeleteByRequest(ctx, id); err != nil {
				return err
			}
			if err := e.requests.Delete(ctx, id); err != nil {
				return err
			}
			result = &DeleteResult{Soft: false}
			return nil

		default:
			return fmt.Errorf("%w: cannot delete request in state %s", ErrInvalidTransition, req.State)
		}
	})
	if err != nil {
		return nil, err
	}

	// Blob removal after commit: a missed blob is an orphan to sweep, not
	// a reason to resurrect the deleted request.
	e.removeBlobs(keys)

	return result, nil
}

// Attachment resolves attachment metadata and the local path to serve its
// payload from, applying the same visibility rule as Get.
func (e *Engine) Attachment(ctx context.Context, actor Actor, attachmentID int64) (*entity.Attachment, string, error) {
	att, err := e.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load attachment: %w", err)
	}
	if att == nil {
		return nil, "", fmt.Errorf("%w: attachment %d", ErrNotFound, attachmentID)
	}

	if _, err := e.loadVisible(ctx, actor, att.RequestID); err != nil {
		return nil, "", err
	}

	path, err := e.blobs.Path(att.StorageKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve attachment payload: %w", err)
	}

	return att, path, nil
}

// Notifications returns the actor's inbox for their current role
func (e *Engine) Notifications(ctx context.Context, actor Actor) ([]*entity.Notification, error) {
	if !actor.Role.IsValid() {
		return nil, ErrForbidden
	}
	return e.notifications.ListByUser(ctx, actor.UserID, actor.Role.String())
}

// UnreadCount returns how many unread rows the actor's inbox holds
func (e *Engine) UnreadCount(ctx context.Context, actor Actor) (int, error) {
	if !actor.Role.IsValid() {
		return 0, ErrForbidden
	}
	return e.notifications.CountUnread(ctx, actor.UserID, actor.Role.String())
}

// MarkNotificationRead marks one of the actor's notifications as read. A
// notification that does not exist or belongs to someone else is NotFound.
func (e *Engine) MarkNotificationRead(ctx context.Context, actor Actor, id int64) error {
	err := e.notifications.MarkRead(ctx, id, actor.UserID)
	if errors.Is(err, port.ErrNotFound) {
		return fmt.Errorf("%w: notification %d", ErrNotFound, id)
	}
	return err
}

// Summary returns request counts per state for approver dashboards
func (e *Engine) Summary(ctx context.Context, actor Actor) (map[workflow.State]int, error) {
	if actor.Role != workflow.RoleApprover1 && actor.Role != workflow.RoleApprover2 {
		return nil, ErrForbidden
	}
	return e.requests.CountByState(ctx)
}

// transition runs one guarded state transition in a transaction. The role
// check happens before any state is read so an unauthorized caller learns
// nothing about the request.
func (e *Engine) transition(ctx context.Context, actor Actor, id int64, trigger workflow.Trigger, apply func(r *entity.Request, now time.Time)) (*entity.Request, error) {
	if actor.Role != workflow.RoleFor(trigger) {
		return nil, ErrForbidden
	}

	var req *entity.Request
	err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		r, err := e.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("%w: request %d", ErrNotFound, id)
		}

		machine := workflow.NewLifecycle(r.State)
		if err := machine.Fire(trigger); err != nil {
			return err
		}

		now := e.now()
		apply(r, now)
		r.State = machine.State()
		r.UpdatedAt = now

		if err := e.requests.Update(ctx, r); err != nil {
			if errors.Is(err, port.ErrVersionConflict) {
				return ErrConcurrentModification
			}
			return err
		}

		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("request transitioned",
		zap.String("ticket", req.Ticket),
		zap.String("trigger", trigger.String()),
		zap.String("state", req.State.String()),
		zap.Int64("actor_id", actor.UserID),
	)

	return req, nil
}

// fanOut runs the post-commit notification dispatch. Failures degrade the
// outcome but never the committed transition.
func (e *Engine) fanOut(ctx context.Context, req *entity.Request, send func(ctx context.Context, r *entity.Request) (int, error)) (*Outcome, error) {
	notified, err := send(ctx, req)
	out := &Outcome{Request: req, Notified: notified}
	if err != nil {
		out.Degraded = true
		e.logger.Warn("notification fan-out degraded",
			zap.String("ticket", req.Ticket),
			zap.Int("delivered", notified),
			zap.Error(err),
		)
	}
	return out, nil
}

// loadVisible fetches a request and enforces the per-role visibility rule
func (e *Engine) loadVisible(ctx context.Context, actor Actor, id int64) (*entity.Request, error) {
	req, err := e.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %d", ErrNotFound, id)
	}
	if actor.Role == workflow.RoleEmployee && req.OwnerID != actor.UserID {
		return nil, ErrForbidden
	}
	return req, nil
}

// storeUploads writes upload payloads to blob storage and builds the
// attachment rows, returning the keys for cleanup on a failed commit
func (e *Engine) storeUploads(uploads []entity.AttachmentUpload, now time.Time) ([]*entity.Attachment, []string, error) {
	var atts []*entity.Attachment
	var keys []string

	for _, up := range uploads {
		key, err := e.blobs.Save(up.Content, up.FileName)
		if err != nil {
			e.removeBlobs(keys)
			return nil, nil, fmt.Errorf("failed to store attachment %q: %w", up.FileName, err)
		}
		keys = append(keys, key)
		atts = append(atts, &entity.Attachment{
			FileName:    up.FileName,
			StorageKey:  key,
			ContentType: up.ContentType,
			Size:        int64(len(up.Content)),
			UploadedAt:  now,
		})
	}

	return atts, keys, nil
}

func (e *Engine) removeBlobs(keys []string) {
	for _, key := range keys {
		if err := e.blobs.Delete(key); err != nil {
			e.logger.Warn("failed to remove attachment blob", zap.String("key", key), zap.Error(err))
		}
	}
}

// Verify interface compliance
var _ Service = (*Engine)(nil)
