package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/domain/workflow"
	"github.com/primar/rendiciones/internal/infrastructure/persistence/repository"
	"github.com/primar/rendiciones/internal/infrastructure/persistence/sqlite"
	"github.com/primar/rendiciones/migrations"
	"github.com/primar/rendiciones/pkg/database"
)

// newSqliteEngine wires the engine over a real sqlite file so transaction
// behavior under concurrent writers is exercised rather than mocked.
func newSqliteEngine(t *testing.T) (*Engine, *database.DB, *mockNotifier) {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 5,
		MaxIdleConns: 5,
	}, logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.NewMigrator(db, logger).Run(migrations.FS); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	if _, err := db.Exec(`
		INSERT INTO users (id, first_name, last_name, role) VALUES
			(10, 'María', 'Pérez', 'empleado'),
			(20, 'Jorge', 'Soto', 'aprobador1'),
			(30, 'Ana', 'Rojas', 'aprobador2')
	`); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	notifier := &mockNotifier{delivered: 1}
	eng := New(
		repository.NewRequestRepository(db.DB, logger),
		repository.NewAttachmentRepository(db.DB, logger),
		repository.NewNotificationRepository(db.DB, logger),
		repository.NewUserRepository(db.DB, logger),
		sqlite.NewDB(db.DB, logger),
		newMockBlobs(),
		&mockTickets{},
		notifier,
		logger,
	)
	return eng, db, notifier
}

func seedPendingRequest(t *testing.T, db *database.DB, ticket string) int64 {
	t.Helper()

	result, err := db.Exec(`
		INSERT INTO requests (ticket, owner_id, title, amount, state, version, created_at, updated_at)
		VALUES (?, 10, 'Viáticos marzo', '150000', ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, ticket, string(workflow.StatePending))
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("seed request id: %v", err)
	}
	return id
}

// Two approvers deciding on the same request at once: exactly one decision
// commits, the loser sees a concurrency condition instead of an opaque
// database error, and the fan-out for the transition runs once.
func TestConcurrentDecisionsSingleWinner(t *testing.T) {
	eng, db, notifier := newSqliteEngine(t)

	for round := 0; round < 3; round++ {
		id := seedPendingRequest(t, db, fmt.Sprintf("RND-%06d", 700000+round))

		start := make(chan struct{})
		errs := make([]error, 2)
		var wg sync.WaitGroup
		wg.Add(len(errs))
		for i := range errs {
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = eng.ApproveStage1(context.Background(), approver1, id, "")
			}(i)
		}
		close(start)
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			switch ConditionOf(err) {
			case ConditionConcurrentModification, ConditionInvalidTransition:
			default:
				t.Errorf("round %d: loser condition = %s (%v), want CONCURRENT_MODIFICATION or INVALID_TRANSITION",
					round, ConditionOf(err), err)
			}
		}
		if winners != 1 {
			t.Fatalf("round %d: winners = %d, want exactly 1", round, winners)
		}

		var state string
		var version int64
		if err := db.QueryRow(`SELECT state, version FROM requests WHERE id = ?`, id).Scan(&state, &version); err != nil {
			t.Fatalf("round %d: read back: %v", round, err)
		}
		if state != string(workflow.StateApprovedStage1) {
			t.Errorf("round %d: state = %s, want %s", round, state, workflow.StateApprovedStage1)
		}
		if version != 2 {
			t.Errorf("round %d: version = %d, want 2", round, version)
		}
	}

	fanOuts := 0
	for _, call := range notifier.calls {
		if call == "stage1_approved" {
			fanOuts++
		}
	}
	if fanOuts != 3 {
		t.Errorf("stage-1 fan-outs = %d, want one per round", fanOuts)
	}
}
