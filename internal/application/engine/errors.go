package engine

import (
	"errors"

	"github.com/primar/rendiciones/internal/domain/workflow"
)

var (
	// ErrNotFound is returned when the referenced request, attachment or
	// notification does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor's role or identity does not
	// permit the operation
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when the requested action is not
	// legal in the request's current state
	ErrInvalidTransition = workflow.ErrInvalidTransition

	// ErrInvalidAmount is returned when a submitted amount is negative
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotEditable is returned when the request has left the editable
	// pending state
	ErrNotEditable = errors.New("request is no longer editable")

	// ErrConcurrentModification is returned when an optimistic version
	// guard fails; the caller may re-read and retry
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrDeliveryDegraded marks partial notification delivery after a
	// committed transition. It is surfaced in the Outcome, never as the
	// operation's error.
	ErrDeliveryDegraded = errors.New("notification delivery degraded")
)

// Condition is a stable machine-readable code for the error taxonomy,
// intended for transport adapters.
type Condition string

const (
	ConditionNone                   Condition = ""
	ConditionNotFound               Condition = "NOT_FOUND"
	ConditionForbidden              Condition = "FORBIDDEN"
	ConditionInvalidTransition      Condition = "INVALID_TRANSITION"
	ConditionInvalidAmount          Condition = "INVALID_AMOUNT"
	ConditionNotEditable            Condition = "NOT_EDITABLE"
	ConditionConcurrentModification Condition = "CONCURRENT_MODIFICATION"
	ConditionDeliveryDegraded       Condition = "DELIVERY_DEGRADED"
	ConditionInternal               Condition = "INTERNAL"
)

// ConditionOf classifies an error against the taxonomy. Unrecognized errors
// map to ConditionInternal; nil maps to ConditionNone.
func ConditionOf(err error) Condition {
	switch {
	case err == nil:
		return ConditionNone
	case errors.Is(err, ErrNotFound):
		return ConditionNotFound
	case errors.Is(err, ErrForbidden):
		return ConditionForbidden
	case errors.Is(err, ErrInvalidTransition):
		return ConditionInvalidTransition
	case errors.Is(err, ErrInvalidAmount):
		return ConditionInvalidAmount
	case errors.Is(err, ErrNotEditable):
		return ConditionNotEditable
	case errors.Is(err, ErrConcurrentModification):
		return ConditionConcurrentModification
	case errors.Is(err, ErrDeliveryDegraded):
		return ConditionDeliveryDegraded
	default:
		return ConditionInternal
	}
}
