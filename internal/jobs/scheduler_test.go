package jobs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/casino"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
)

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	r := casino.NewReconciler(economy.NewService(economy.NewMemoryStore()), casino.NewMemoryJournal())

	_, err := NewScheduler(context.Background(), r, Options{ReconcileSchedule: "bad", AuditSchedule: "0 3 * * *"})
	require.Error(t, err)

	_, err = NewScheduler(context.Background(), r, Options{ReconcileSchedule: "*/5 * * * *", AuditSchedule: "* *"})
	require.Error(t, err)
}

func TestReconcileJob(t *testing.T) {
	ctx := context.Background()
	ledger := economy.NewService(economy.NewMemoryStore())
	journal := casino.NewMemoryJournal()
	require.NoError(t, journal.AddOwed(ctx, casino.OwedPayout{PlayID: uuid.New(), UserID: 4, Amount: 25}))

	s, err := NewScheduler(ctx, casino.NewReconciler(ledger, journal), Options{
		ReconcileSchedule: "*/5 * * * *",
		AuditSchedule:     "0 3 * * *",
	})
	require.NoError(t, err)

	s.Reconcile(ctx)
	s.Audit(ctx)

	balance, err := ledger.GetBalance(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, int64(25), balance)

	pending, err := journal.CountPendingOwed(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)

	// Повторный проход ничего не начисляет.
	s.Reconcile(ctx)
	balance, err = ledger.GetBalance(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, int64(25), balance)

	s.Start()
	s.Stop()
}
