// Package notification implements the post-commit fan-out of in-app inbox
// rows and emails for each approval transition. The dispatcher owns the
// message texts and recipient selection; delivery failures are collected and
// reported, never propagated into the committed transition.
package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/port"
	"github.com/primar/rendiciones/internal/domain/entity"
	"github.com/primar/rendiciones/internal/domain/workflow"
)

// Dispatcher fans out notifications for committed transitions
type Dispatcher struct {
	notifications port.NotificationRepository
	users         port.UserRepository
	mailer        port.Mailer
	financeEmail  string
	logger        *zap.Logger
}

// NewDispatcher creates the fan-out dispatcher. financeEmail receives the
// payment confirmations; empty disables that delivery.
func NewDispatcher(
	notifications port.NotificationRepository,
	users port.UserRepository,
	mailer port.Mailer,
	financeEmail string,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		users:         users,
		mailer:        mailer,
		financeEmail:  financeEmail,
		logger:        logger,
	}
}

// RequestCreated notifies the stage-1 approver pool of a new submission
func (d *Dispatcher) RequestCreated(ctx context.Context, req *entity.Request) (int, error) {
	msg := fmt.Sprintf("Nueva rendición %s de %s requiere aprobación.", req.Ticket, req.OwnerFullName())
	return d.notifyRole(ctx, workflow.RoleApprover1, req, msg)
}

// Stage1Approved notifies the stage-2 approver pool
func (d *Dispatcher) Stage1Approved(ctx context.Context, req *entity.Request) (int, error) {
	msg := fmt.Sprintf("Rendición %s de %s requiere tu aprobación final.", req.Ticket, req.OwnerFullName())
	return d.notifyRole(ctx, workflow.RoleApprover2, req, msg)
}

// Stage1Rejected notifies the owner with the recorded reason. The request
// stays actionable by the stage-2 approver, so their pool is also told.
func (d *Dispatcher) Stage1Rejected(ctx context.Context, req *entity.Request, reason string) (int, error) {
	var delivered int
	var errs []error

	msg := fmt.Sprintf("Su rendición %s fue rechazada en primera etapa: %s", req.Ticket, reason)
	n, err := d.notifyOwner(ctx, req, msg)
	delivered += n
	if err != nil {
		errs = append(errs, err)
	}

	n, err = d.emailOwner(ctx, req, "Rendición rechazada en primera etapa", msg)
	delivered += n
	if err != nil {
		errs = append(errs, err)
	}

	pool := fmt.Sprintf("Rendición %s de %s fue rechazada en primera etapa y espera tu revisión.", req.Ticket, req.OwnerFullName())
	n, err = d.notifyRole(ctx, workflow.RoleApprover2, req, pool)
	delivered += n
	if err != nil {
		errs = append(errs, err)
	}

	return delivered, errors.Join(errs...)
}

// Stage2Approved notifies the stage-1 pool to proceed with payment and tells
// the owner
func (d *Dispatcher) Stage2Approved(ctx context.Context, req *entity.Request) (int, error) {
	var delivered int
	var errs []error

	pool := fmt.Sprintf("Rendición %s aprobada finalmente. Proceder con el pago.", req.Ticket)
	n, err := d.notifyRole(ctx, workflow.RoleApprover1, req, pool)
	delivered += n
	if err != nil {
		errs = append(errs, err)
	}

	msg := fmt.Sprintf("Su rendición %s fue aprobada finalmente.", req.Ticket)
	n, err = d.notifyOwner(ctx, req, msg)
	delivered += n
	if err != nil {
		errs = append(errs, err)
	}

	return delivered, errors.Join(errs...)
}

// Stage2Rejected notifies the owner of the final rejection
func (d *Dispatcher) Stage2Rejected(ctx context.Context, req *entity.Request, reason string) (int, error) {
	var delivered int
	var errs []error

	msg := fmt.Sprintf("Su rendición %s fue rechazada: %s", req.Ticket, reason)
	n, err := d.notifyOwner(ctx, req, msg)
	delivered += n
	if err != nil {
		errs = append(errs, err)
	}

	n, err = d.emailOwner(ctx, req, "Rendición rechazada", msg)
	delivered += n
	if err != nil {
		errs = append(errs, err)
	}

	return delivered, errors.Join(errs...)
}

// Paid notifies the owner and the finance contact
func (d *Dispatcher) Paid(ctx context.Context, req *entity.Request) (int, error) {
	var delivered int
	var errs []error

	msg := fmt.Sprintf("Su rendición %s ha sido pagada exitosamente.", req.Ticket)
	n, err := d.notifyOwner(ctx, req, msg)
	delivered += n
	if err != nil {
		errs = append(errs, err)
	}

	n, err = d.emailOwner(ctx, req, "Rendición pagada", msg)
	delivered += n
	if err != nil {
		errs = append(errs, err)
	}

	if d.financeEmail != "" {
		body := fmt.Sprintf("La rendición %s de %s ha sido marcada como pagada.", req.Ticket, req.OwnerFullName())
		if err := d.mailer.Send(ctx, d.financeEmail, "Rendición pagada", body); err != nil {
			errs = append(errs, fmt.Errorf("finance email: %w", err))
		} else {
			delivered++
		}
	}

	return delivered, errors.Join(errs...)
}

// notifyRole writes an inbox row for every active user holding the role.
// The recipient list is a point-in-time snapshot of the user store.
func (d *Dispatcher) notifyRole(ctx context.Context, role workflow.Role, req *entity.Request, message string) (int, error) {
	recipients, err := d.users.ListByRole(ctx, role)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s recipients: %w", role, err)
	}

	var delivered int
	var errs []error
	for _, u := range recipients {
		if !u.Active {
			continue
		}
		n := &entity.Notification{
			UserID:    u.ID,
			RequestID: req.ID,
			RoleTag:   role.String(),
			Message:   message,
		}
		if err := d.notifications.Create(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("inbox row for user %d: %w", u.ID, err))
			continue
		}
		delivered++
	}

	return delivered, errors.Join(errs...)
}

func (d *Dispatcher) notifyOwner(ctx context.Context, req *entity.Request, message string) (int, error) {
	n := &entity.Notification{
		UserID:    req.OwnerID,
		RequestID: req.ID,
		RoleTag:   workflow.RoleEmployee.String(),
		Message:   message,
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		return 0, fmt.Errorf("inbox row for owner %d: %w", req.OwnerID, err)
	}
	return 1, nil
}

func (d *Dispatcher) emailOwner(ctx context.Context, req *entity.Request, subject, body string) (int, error) {
	owner, err := d.users.GetByID(ctx, req.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load owner %d: %w", req.OwnerID, err)
	}
	if owner == nil || owner.Email == "" {
		d.logger.Warn("owner has no email address, skipping",
			zap.Int64("owner_id", req.OwnerID),
			zap.String("ticket", req.Ticket),
		)
		return 0, nil
	}

	if err := d.mailer.Send(ctx, owner.Email, subject, body); err != nil {
		return 0, fmt.Errorf("owner email: %w", err)
	}
	return 1, nil
}
