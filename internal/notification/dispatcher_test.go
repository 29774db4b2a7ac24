package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/domain/entity"
	"github.com/primar/rendiciones/internal/domain/workflow"
)

type fakeNotificationRepo struct {
	rows      []*entity.Notification
	createErr error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.rows = append(f.rows, n)
	return nil
}

func (f *fakeNotificationRepo) ListByUser(ctx context.Context, userID int64, roleTag string) ([]*entity.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) CountUnread(ctx context.Context, userID int64, roleTag string) (int, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID int64) error { return nil }

func (f *fakeNotificationRepo) DeleteByRequest(ctx context.Context, requestID int64) error {
	return nil
}

type fakeUserRepo struct {
	byRole map[workflow.Role][]*entity.User
	byID   map[int64]*entity.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return f.byID[id], nil
}

func (f *fakeUserRepo) ListByRole(ctx context.Context, role workflow.Role) ([]*entity.User, error) {
	return f.byRole[role], nil
}

type fakeMailer struct {
	sent    []string // "to|subject"
	sendErr error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

func request() *entity.Request {
	return &entity.Request{
		ID:        7,
		Ticket:    "RND-654321",
		OwnerID:   10,
		FirstName: "María",
		LastName:  "Pérez",
		State:     workflow.StatePending,
	}
}

func setup() (*Dispatcher, *fakeNotificationRepo, *fakeUserRepo, *fakeMailer) {
	notifications := &fakeNotificationRepo{}
	users := &fakeUserRepo{
		byRole: map[workflow.Role][]*entity.User{
			workflow.RoleApprover1: {
				{ID: 20, Email: "sup1@example.com", Active: true},
				{ID: 21, Email: "sup2@example.com", Active: true},
				{ID: 22, Email: "inactive@example.com", Active: false},
			},
			workflow.RoleApprover2: {
				{ID: 30, Email: "ger@example.com", Active: true},
			},
		},
		byID: map[int64]*entity.User{
			10: {ID: 10, Email: "maria@example.com", Active: true},
		},
	}
	mailer := &fakeMailer{}
	d := NewDispatcher(notifications, users, mailer, "finanzas@example.com", zap.NewNop())
	return d, notifications, users, mailer
}

func TestRequestCreatedNotifiesStage1Pool(t *testing.T) {
	d, notifications, _, _ := setup()

	n, err := d.RequestCreated(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered = %d, want 2 (inactive user skipped)", n)
	}

	for _, row := range notifications.rows {
		if row.RoleTag != "aprobador1" {
			t.Errorf("role tag = %q, want aprobador1", row.RoleTag)
		}
		if !strings.Contains(row.Message, "RND-654321") || !strings.Contains(row.Message, "María Pérez") {
			t.Errorf("unexpected message %q", row.Message)
		}
	}
}

func TestStage1ApprovedNotifiesStage2Pool(t *testing.T) {
	d, notifications, _, _ := setup()

	n, err := d.Stage1Approved(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if notifications.rows[0].UserID != 30 || notifications.rows[0].RoleTag != "aprobador2" {
		t.Errorf("unexpected recipient: %+v", notifications.rows[0])
	}
}

func TestStage1RejectedReachesOwnerAndStage2(t *testing.T) {
	d, notifications, _, mailer := setup()

	n, err := d.Stage1Rejected(context.Background(), request(), "falta boleta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Owner row + owner email + one stage-2 approver row
	if n != 3 {
		t.Errorf("delivered = %d, want 3", n)
	}

	ownerRows := 0
	for _, row := range notifications.rows {
		if row.UserID == 10 && row.RoleTag == "empleado" {
			ownerRows++
			if !strings.Contains(row.Message, "falta boleta") {
				t.Errorf("owner message missing reason: %q", row.Message)
			}
		}
	}
	if ownerRows != 1 {
		t.Errorf("owner rows = %d, want 1", ownerRows)
	}
	if len(mailer.sent) != 1 || !strings.HasPrefix(mailer.sent[0], "maria@example.com|") {
		t.Errorf("unexpected emails: %v", mailer.sent)
	}
}

func TestStage2ApprovedTellsStage1ToPay(t *testing.T) {
	d, notifications, _, _ := setup()

	n, err := d.Stage2Approved(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two stage-1 approvers + owner
	if n != 3 {
		t.Errorf("delivered = %d, want 3", n)
	}

	payMsgs := 0
	for _, row := range notifications.rows {
		if strings.Contains(row.Message, "Proceder con el pago") {
			payMsgs++
		}
	}
	if payMsgs != 2 {
		t.Errorf("pay instructions = %d, want 2", payMsgs)
	}
}

func TestPaidNotifiesFinanceContact(t *testing.T) {
	d, _, _, mailer := setup()

	n, err := d.Paid(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Owner row + owner email + finance email
	if n != 3 {
		t.Errorf("delivered = %d, want 3", n)
	}

	financeMails := 0
	for _, s := range mailer.sent {
		if strings.HasPrefix(s, "finanzas@example.com|") {
			financeMails++
		}
	}
	if financeMails != 1 {
		t.Errorf("finance emails = %d, want 1", financeMails)
	}
}

func TestPaidWithoutFinanceContact(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	users := &fakeUserRepo{byID: map[int64]*entity.User{10: {ID: 10, Email: "maria@example.com"}}}
	mailer := &fakeMailer{}
	d := NewDispatcher(notifications, users, mailer, "", zap.NewNop())

	n, err := d.Paid(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered = %d, want 2 (no finance email configured)", n)
	}
}

func TestMailerFailureIsCollectedNotFatal(t *testing.T) {
	d, _, _, mailer := setup()
	mailer.sendErr = errors.New("ses throttled")

	n, err := d.Stage2Rejected(context.Background(), request(), "documentación insuficiente")
	if err == nil {
		t.Fatal("expected a collected delivery error")
	}
	// The inbox row still lands
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
}

func TestOwnerWithoutEmailSkipsQuietly(t *testing.T) {
	d, _, users, _ := setup()
	users.byID[10].Email = ""

	n, err := d.Paid(context.Background(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Owner row + finance email, no owner email
	if n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}
}
