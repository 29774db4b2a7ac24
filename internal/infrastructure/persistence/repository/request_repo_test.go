package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/port"
	"github.com/primar/rendiciones/internal/domain/entity"
	"github.com/primar/rendiciones/internal/domain/workflow"
)

var requestColumnNames = []string{
	"id", "ticket", "owner_id", "first_name", "last_name", "tax_id", "phone",
	"job_title", "department", "title", "description", "amount", "state", "version",
	"approver1_id", "approver2_id", "approver_comment",
	"reject_reason_stage1", "reject_reason_stage2",
	"approved_stage1_at", "approved_stage2_at", "paid_at",
	"deleted_by_owner", "created_at", "updated_at",
}

func newRepo(t *testing.T) (port.RequestRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRequestRepository(db, zap.NewNop()), mock
}

func TestCreateAssignsIDAndVersion(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("INSERT INTO requests").
		WillReturnResult(sqlmock.NewResult(42, 1))

	req := &entity.Request{
		Ticket:  "RND-123456",
		OwnerID: 10,
		Amount:  decimal.NewFromInt(150000),
		State:   workflow.StatePending,
	}
	if err := repo.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.ID != 42 {
		t.Errorf("ID = %d, want 42", req.ID)
	}
	if req.Version != 1 {
		t.Errorf("Version = %d, want 1", req.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetByIDMissingReturnsNilNil(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM requests WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(requestColumnNames))

	req, err := repo.GetByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if req != nil {
		t.Errorf("req = %+v, want nil", req)
	}
}

func TestGetByIDScansRow(t *testing.T) {
	repo, mock := newRepo(t)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(requestColumnNames).AddRow(
		int64(7), "RND-654321", int64(10), "María", "Pérez", "12.345.678-9", "+56 9 1234 5678",
		"Analista", "Finanzas", "Viaje", "Taxi y hotel", "150000", "APPROVED_STAGE1", int64(2),
		int64(20), nil, "ok",
		"", "",
		now, nil, nil,
		false, now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM requests WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	req, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if req.State != workflow.StateApprovedStage1 {
		t.Errorf("State = %s", req.State)
	}
	if !req.Amount.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("Amount = %s", req.Amount)
	}
	if req.Approver1ID == nil || *req.Approver1ID != 20 {
		t.Errorf("Approver1ID = %v", req.Approver1ID)
	}
	if req.Approver2ID != nil {
		t.Errorf("Approver2ID = %v, want nil", req.Approver2ID)
	}
	if req.ApprovedStage1At == nil || !req.ApprovedStage1At.Equal(now) {
		t.Errorf("ApprovedStage1At = %v", req.ApprovedStage1At)
	}
}

func TestUpdateBumpsVersion(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("UPDATE requests SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &entity.Request{ID: 7, Version: 2, State: workflow.StateApprovedStage1, Amount: decimal.Zero}
	if err := repo.Update(context.Background(), req); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if req.Version != 3 {
		t.Errorf("Version = %d, want 3", req.Version)
	}
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("UPDATE requests SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := &entity.Request{ID: 7, Version: 1, State: workflow.StateApprovedStage1, Amount: decimal.Zero}
	err := repo.Update(context.Background(), req)
	if !errors.Is(err, port.ErrVersionConflict) {
		t.Errorf("error = %v, want ErrVersionConflict", err)
	}
	if req.Version != 1 {
		t.Errorf("Version = %d, must stay 1 on conflict", req.Version)
	}
}

func TestTicketExists(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("RND-123456").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.TicketExists(context.Background(), "RND-123456")
	if err != nil {
		t.Fatalf("TicketExists: %v", err)
	}
	if !exists {
		t.Error("exists = false, want true")
	}
}

func TestListByOwnerExcludesSoftDeleted(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM requests WHERE owner_id = \\? AND deleted_by_owner = 0").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(requestColumnNames))

	_, err := repo.ListByOwner(context.Background(), 10, false)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCountByState(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT state, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"state", "count"}).
			AddRow("PENDING", 3).
			AddRow("PAID", 1))

	counts, err := repo.CountByState(context.Background())
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if counts[workflow.StatePending] != 3 || counts[workflow.StatePaid] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
