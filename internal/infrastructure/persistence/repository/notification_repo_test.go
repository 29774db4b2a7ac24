package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/port"
)

func newNotificationRepo(t *testing.T) (port.NotificationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewNotificationRepository(db, zap.NewNop()), mock
}

func TestMarkReadUpdatesOwnRow(t *testing.T) {
	repo, mock := newNotificationRepo(t)

	mock.ExpectExec("UPDATE notifications SET read = 1").
		WithArgs(int64(5), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkRead(context.Background(), 5, 10); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkReadMissingOrForeignRowIsNotFound(t *testing.T) {
	repo, mock := newNotificationRepo(t)

	mock.ExpectExec("UPDATE notifications SET read = 1").
		WithArgs(int64(5), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), 5, 11)
	if !errors.Is(err, port.ErrNotFound) {
		t.Errorf("error = %v, want port.ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
