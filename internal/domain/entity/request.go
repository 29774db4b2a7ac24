package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/primar/rendiciones/internal/domain/workflow"
)

// Request represents a rendición: an employee expense-reimbursement request
// moving through the two-stage approval lifecycle.
//
// The employee profile fields are a snapshot taken at submission time. Later
// profile edits never rewrite submitted requests.
type Request struct {
	ID      int64  `json:"id"`
	Ticket  string `json:"ticket"`
	OwnerID int64  `json:"owner_id"`

	// Profile snapshot
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	TaxID      string `json:"tax_id"`
	Phone      string `json:"phone"`
	JobTitle   string `json:"job_title"`
	Department string `json:"department"`

	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`

	State   workflow.State `json:"state"`
	Version int64          `json:"version"`

	Approver1ID *int64 `json:"approver1_id,omitempty"`
	Approver2ID *int64 `json:"approver2_id,omitempty"`

	ApproverComment    string `json:"approver_comment,omitempty"`
	RejectReasonStage1 string `json:"reject_reason_stage1,omitempty"`
	RejectReasonStage2 string `json:"reject_reason_stage2,omitempty"`

	ApprovedStage1At *time.Time `json:"approved_stage1_at,omitempty"`
	ApprovedStage2At *time.Time `json:"approved_stage2_at,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`

	DeletedByOwner bool `json:"deleted_by_owner,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnerFullName returns the snapshotted name of the requesting employee
func (r *Request) OwnerFullName() string {
	if r.FirstName == "" {
		return r.LastName
	}
	if r.LastName == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.LastName
}

// IsEditable returns true while the owner may still modify the request
func (r *Request) IsEditable() bool {
	return r.State == workflow.StatePending
}
