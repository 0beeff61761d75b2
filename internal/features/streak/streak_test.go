package streak

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(loc *time.Location) (*Service, *economy.Service, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 10, 9, 30, 0, 0, loc)}
	store := economy.NewMemoryStore()
	store.SetClock(clock.Now)
	ledger := economy.NewService(store)

	svc := NewService(ledger, loc)
	svc.now = clock.Now
	return svc, ledger, clock
}

func TestGetReward(t *testing.T) {
	require.Equal(t, int64(10), GetReward(0))
	require.Equal(t, int64(40), GetReward(3))
	require.Equal(t, int64(70), GetReward(6))
	require.Equal(t, int64(70), GetReward(100))
	require.Equal(t, int64(10), GetReward(-1))
}

func TestClaimDailyStreak(t *testing.T) {
	ctx := context.Background()
	svc, ledger, clock := newTestService(time.UTC)

	want := []int64{10, 20, 30, 40, 50, 60, 70, 70, 70}
	var total int64
	for i, reward := range want {
		claim, err := svc.ClaimDaily(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, i+1, claim.Day)
		require.Equal(t, reward, claim.Reward)
		total += reward
		require.Equal(t, total, claim.Balance)

		_, err = svc.ClaimDaily(ctx, 1)
		require.ErrorIs(t, err, common.ErrDailyAlreadyClaimed)

		clock.now = clock.now.Add(24 * time.Hour)
	}

	// Пропуск дня обнуляет серию.
	clock.now = clock.now.Add(24 * time.Hour)
	claim, err := svc.ClaimDaily(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, claim.Day)
	require.Equal(t, int64(10), claim.Reward)

	txs, err := ledger.History(ctx, economy.Filter{UserID: 1, Categories: []string{economy.CategoryDailyBonus}})
	require.NoError(t, err)
	require.Len(t, txs, len(want)+1)
	require.Equal(t, "Daily bonus - Day 1", txs[0].Description)
}

func TestClaimDailyUsesLocalDay(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("UTC+3", 3*60*60)
	svc, _, clock := newTestService(loc)

	clock.now = time.Date(2026, 3, 10, 23, 0, 0, 0, loc)
	_, err := svc.ClaimDaily(ctx, 1)
	require.NoError(t, err)

	// Через два часа по местному времени уже новые сутки (в UTC — те же).
	clock.now = clock.now.Add(2 * time.Hour)
	claim, err := svc.ClaimDaily(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, claim.Day)
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(time.UTC)

	st, err := svc.GetStatus(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, st.CurrentStreak)
	require.False(t, st.ClaimedToday)
	require.Nil(t, st.LastClaimAt)
	require.Equal(t, int64(10), st.NextReward)

	for i := 0; i < 2; i++ {
		_, err = svc.ClaimDaily(ctx, 1)
		require.NoError(t, err)
		clock.now = clock.now.Add(24 * time.Hour)
	}
	clock.now = clock.now.Add(-24 * time.Hour)

	st, err = svc.GetStatus(ctx, 1)
	require.NoError(t, err)
	require.True(t, st.ClaimedToday)
	require.Equal(t, 2, st.CurrentStreak)
	require.Equal(t, int64(30), st.NextReward)

	clock.now = clock.now.Add(24 * time.Hour)
	st, err = svc.GetStatus(ctx, 1)
	require.NoError(t, err)
	require.False(t, st.ClaimedToday)
	require.Equal(t, 2, st.CurrentStreak)
	require.Equal(t, int64(30), st.NextReward)
}

func TestClaimDailyFromSeveralInstancesPaysOnce(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)}
	store := economy.NewMemoryStore()
	store.SetClock(clock.Now)

	replicas := make([]*Service, 2)
	for i := range replicas {
		replicas[i] = NewService(economy.NewService(store), time.UTC)
		replicas[i].now = clock.Now
	}

	var ok, claimed atomic.Int64
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		svc := replicas[i%len(replicas)]
		g.Go(func() error {
			_, err := svc.ClaimDaily(ctx, 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, common.ErrDailyAlreadyClaimed):
				claimed.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int64(1), ok.Load())
	require.Equal(t, int64(9), claimed.Load())

	balance, err := economy.NewService(store).GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)
}
