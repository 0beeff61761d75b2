package casino

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/db/sqlite"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/perks"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
)

// Розыгрыши колеса по умолчанию (сумма весов 100): Int64N(100)+1 = r.
const (
	drawDouble  = 75 // r=76 → double (×2)
	drawPenalty = 85 // r=86 → penalty (−1×)
)

type harness struct {
	svc     *Service
	ledger  *economy.Service
	journal Journal
	perks   *perks.MemoryStore
}

func newHarness(t *testing.T, store economy.Store, src rewards.Source, lookup perks.Lookup) *harness {
	t.Helper()
	return newHarnessWithJournal(t, store, NewMemoryJournal(), src, lookup)
}

func newHarnessWithJournal(t *testing.T, store economy.Store, journal Journal, src rewards.Source, lookup perks.Lookup) *harness {
	t.Helper()

	registry, err := rewards.NewRegistry(rewards.DefaultTables()...)
	require.NoError(t, err)

	h := &harness{
		ledger:  economy.NewService(store),
		journal: journal,
		perks:   perks.NewMemoryStore(),
	}
	if lookup == nil {
		lookup = h.perks
	}
	h.svc = NewService(
		h.ledger,
		registry,
		rewards.NewSelector(src),
		Wheel{PointerOffset: 90, MinRotations: 8, MaxRotations: 12},
		GridRenderer{DiagonalShare: 0.4, MaxMissAttempts: 32},
		testCalculator(),
		NewPerkModifier(lookup, "lucky_charm", map[string]int64{"golden_avatar": 10}),
		h.journal,
		Options{MinBet: 1, MaxBet: 1000, Enabled: true},
	)
	return h
}

func (h *harness) fund(t *testing.T, userID, amount int64) {
	t.Helper()
	_, err := h.ledger.Credit(context.Background(), economy.CreditRequest{
		UserID: userID, Amount: amount, Category: economy.CategoryAdminGive,
	})
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	b, err := h.ledger.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

// failingStore отклоняет записи выбранной категории, пока fail = true.
type failingStore struct {
	economy.Store
	mu       sync.Mutex
	category string
	fail     bool
}

func (s *failingStore) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func (s *failingStore) Apply(ctx context.Context, userID int64, fn economy.ApplyFunc) (economy.Transaction, int64, error) {
	return s.Store.Apply(ctx, userID, func(balance int64, history economy.HistoryReader) (economy.Transaction, error) {
		tx, err := fn(balance, history)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err == nil && s.fail && tx.Category == s.category {
			return economy.Transaction{}, errors.New("disk full")
		}
		return tx, err
	})
}

// countingSource считает обращения к источнику.
type countingSource struct {
	rewards.Source
	calls int
}

func (s *countingSource) Int64N(n int64) int64 {
	s.calls++
	return s.Source.Int64N(n)
}

type brokenLookup struct{}

func (brokenLookup) HasEntitlement(context.Context, int64, string) (bool, error) {
	return false, errors.New("perks unavailable")
}

func TestPlayWheelWin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, economy.NewMemoryStore(), &fixedSource{ints: []int64{drawDouble, 0}}, nil)
	h.fund(t, 1, 100)

	out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel})
	require.NoError(t, err)

	table, _ := h.svc.registry.Get(rewards.GameWheel)
	require.Equal(t, table.Index("double"), out.SelectedIndex)
	require.Equal(t, "double", out.SelectedEntry.Name)
	require.True(t, out.Win)
	require.Equal(t, int64(20), out.PayoutAmount)
	require.Equal(t, ClassPrize, out.Classification)
	require.Equal(t, int64(110), out.Balance)
	require.Equal(t, int64(110), h.balance(t, 1))

	require.NotNil(t, out.Render.Wheel)
	require.Nil(t, out.Render.Grid)
	require.Equal(t, 8, out.Render.Wheel.Rotations)
	require.Equal(t, out.SelectedIndex, SliceAt(out.Render.Wheel.FinalAngle, len(table.Entries), 90))

	txs, err := h.ledger.History(ctx, economy.Filter{UserID: 1, RelatedEntityID: out.PlayID.String()})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, economy.CategoryCasinoWin, txs[0].Category)
	require.Equal(t, economy.CategoryCasinoBet, txs[1].Category)
	require.Equal(t, "wheel", txs[1].Metadata["game"])
	require.Equal(t, SourceCasino, txs[1].Source)

	stats, err := h.svc.Stats(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalSpins)
	require.Equal(t, int64(20), stats.BiggestWin)
	require.InDelta(t, 200.0, stats.RTP, 1e-9)
}

func TestPlayWheelPenalty(t *testing.T) {
	ctx := context.Background()

	t.Run("full penalty", func(t *testing.T) {
		h := newHarness(t, economy.NewMemoryStore(), &fixedSource{ints: []int64{drawPenalty, 0}}, nil)
		h.fund(t, 1, 100)

		out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel})
		require.NoError(t, err)
		require.Equal(t, "penalty", out.SelectedEntry.Name)
		require.Equal(t, ClassPenalty, out.Classification)
		require.Equal(t, int64(-10), out.PayoutAmount)
		require.False(t, out.Win)
		require.Equal(t, int64(80), h.balance(t, 1))
	})

	t.Run("penalty never goes below zero", func(t *testing.T) {
		h := newHarness(t, economy.NewMemoryStore(), &fixedSource{ints: []int64{drawPenalty, 0}}, nil)
		h.fund(t, 1, 15)

		out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel})
		require.NoError(t, err)
		require.Equal(t, int64(-5), out.PayoutAmount)
		require.Equal(t, int64(0), h.balance(t, 1))
	})

	t.Run("protection replaces penalty", func(t *testing.T) {
		h := newHarness(t, economy.NewMemoryStore(), &fixedSource{ints: []int64{drawPenalty, 0}}, nil)
		h.fund(t, 1, 100)
		require.NoError(t, h.perks.Grant(ctx, 1, "lucky_charm", true))

		out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel})
		require.NoError(t, err)
		require.Equal(t, "lucky_charm", out.PerkApplied)
		require.Equal(t, "refund", out.SelectedEntry.Name)
		require.GreaterOrEqual(t, out.PayoutAmount, int64(0))
		require.Equal(t, int64(100), h.balance(t, 1))

		table, _ := h.svc.registry.Get(rewards.GameWheel)
		require.Equal(t, table.Index("refund"), SliceAt(out.Render.Wheel.FinalAngle, len(table.Entries), 90))
	})
}

func TestPlayBoost(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, economy.NewMemoryStore(), &fixedSource{ints: []int64{drawDouble, 0}}, nil)
	h.fund(t, 1, 100)
	require.NoError(t, h.perks.Grant(ctx, 1, "golden_avatar", true))

	out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 100, Game: rewards.GameWheel})
	require.NoError(t, err)
	require.Equal(t, int64(220), out.PayoutAmount)
	require.Equal(t, []string{"golden_avatar"}, out.Boosts)
	require.Equal(t, int64(220), h.balance(t, 1))
}

func TestPlayBoostRespectsPayoutCap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, economy.NewMemoryStore(), &fixedSource{ints: []int64{drawDouble, 0}}, nil)
	h.svc.calc.MaxPayoutMultiplier = 2
	h.fund(t, 1, 100)
	require.NoError(t, h.perks.Grant(ctx, 1, "golden_avatar", true))

	// double ×2 = 200, +10% = 220, лимит 2 × 100 = 200.
	out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 100, Game: rewards.GameWheel})
	require.NoError(t, err)
	require.Equal(t, int64(200), out.PayoutAmount)
	require.True(t, out.Capped)
	require.Equal(t, []string{"golden_avatar"}, out.Boosts)
	require.Equal(t, int64(200), h.balance(t, 1))
}

func TestPayoutCapHelper(t *testing.T) {
	calc := PayoutCalculator{MaxPayoutMultiplier: 5}

	amount, capped := calc.Cap(60, 10)
	require.Equal(t, int64(50), amount)
	require.True(t, capped)

	amount, capped = calc.Cap(50, 10)
	require.Equal(t, int64(50), amount)
	require.False(t, capped)

	amount, capped = PayoutCalculator{}.Cap(1_000_000, 1)
	require.Equal(t, int64(1_000_000), amount)
	require.False(t, capped)
}

func TestPlayRejectsBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{Source: rewards.NewSeededSource(1, 1)}
	h := newHarness(t, economy.NewMemoryStore(), src, nil)
	h.fund(t, 1, 5)

	tests := []struct {
		name string
		req  PlayRequest
		err  error
	}{
		{"zero wager", PlayRequest{UserID: 1, Wager: 0, Game: rewards.GameSlots}, common.ErrInvalidWager},
		{"negative wager", PlayRequest{UserID: 1, Wager: -5, Game: rewards.GameSlots}, common.ErrInvalidWager},
		{"above max", PlayRequest{UserID: 1, Wager: 1001, Game: rewards.GameSlots}, common.ErrInvalidWager},
		{"unknown game", PlayRequest{UserID: 1, Wager: 1, Game: "roulette"}, common.ErrUnknownGame},
		{"insufficient funds", PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel}, common.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.svc.Play(ctx, tt.req)
			require.ErrorIs(t, err, tt.err)
			require.Nil(t, out)
		})
	}

	require.Zero(t, src.calls, "выбор не должен выполняться")
	require.Equal(t, int64(5), h.balance(t, 1))

	txs, err := h.ledger.History(ctx, economy.Filter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	stats, err := h.svc.Stats(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, stats.TotalSpins)
}

func TestPlayDisabled(t *testing.T) {
	h := newHarness(t, economy.NewMemoryStore(), nil, nil)
	h.svc.opts.Enabled = false

	_, err := h.svc.Play(context.Background(), PlayRequest{UserID: 1, Wager: 1, Game: rewards.GameSlots})
	require.ErrorIs(t, err, common.ErrCasinoDisabled)
}

func TestPlayRefundsWhenResolveFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, economy.NewMemoryStore(), &fixedSource{ints: []int64{drawPenalty, 0}}, brokenLookup{})
	h.fund(t, 1, 100)

	out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel})
	require.Error(t, err)
	require.Nil(t, out)
	require.Equal(t, int64(100), h.balance(t, 1))

	txs, err := h.ledger.History(ctx, economy.Filter{UserID: 1, Categories: []string{economy.CategoryCasinoRefund}})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, int64(10), txs[0].Amount)
}

// cancelingLookup отменяет контекст игры при проверке перка, как при
// обрыве HTTP-запроса посреди розыгрыша.
type cancelingLookup struct {
	cancel context.CancelFunc
	fail   bool
}

func (l cancelingLookup) HasEntitlement(ctx context.Context, _ int64, _ string) (bool, error) {
	l.cancel()
	if l.fail {
		return false, ctx.Err()
	}
	return false, nil
}

func TestPlaySettlesAfterCancellation(t *testing.T) {
	openSQLite := func(t *testing.T) (economy.Store, Journal) {
		db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "casino.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return economy.NewSQLiteStore(db), NewSQLiteJournal(db)
	}

	t.Run("wager is refunded", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store, journal := openSQLite(t)
		h := newHarnessWithJournal(t, store, journal, &fixedSource{ints: []int64{drawPenalty, 0}},
			cancelingLookup{cancel: cancel, fail: true})
		h.fund(t, 1, 100)

		out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel})
		require.ErrorIs(t, err, context.Canceled)
		require.Nil(t, out)
		require.Equal(t, int64(100), h.balance(t, 1))

		txs, err := h.ledger.History(context.Background(), economy.Filter{UserID: 1, Categories: []string{economy.CategoryCasinoRefund}})
		require.NoError(t, err)
		require.Len(t, txs, 1)

		pending, err := h.journal.CountPendingOwed(context.Background())
		require.NoError(t, err)
		require.Zero(t, pending)
	})

	t.Run("win is credited", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store, journal := openSQLite(t)
		h := newHarnessWithJournal(t, store, journal, &fixedSource{ints: []int64{drawDouble, 0}},
			cancelingLookup{cancel: cancel})
		h.fund(t, 1, 100)

		out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel})
		require.NoError(t, err)
		require.Error(t, ctx.Err())
		require.Equal(t, int64(20), out.PayoutAmount)
		require.Equal(t, int64(110), out.Balance)
		require.Equal(t, int64(110), h.balance(t, 1))

		stats, err := h.svc.Stats(context.Background(), 1)
		require.NoError(t, err)
		require.Equal(t, int64(1), stats.TotalSpins)
	})
}

func TestCreditFailureRecordsOwedPayout(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: economy.NewMemoryStore(), category: economy.CategoryCasinoWin, fail: true}
	h := newHarness(t, store, &fixedSource{ints: []int64{drawDouble, 0}}, nil)
	h.fund(t, 1, 100)

	out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel})
	require.ErrorIs(t, err, common.ErrRetryable)
	require.ErrorIs(t, err, common.ErrPersistence)
	require.Nil(t, out)
	require.Equal(t, int64(90), h.balance(t, 1))

	owed, err := h.journal.PendingOwed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, owed, 1)
	require.Equal(t, int64(20), owed[0].Amount)
	require.Equal(t, int64(1), owed[0].UserID)

	reconciler := NewReconciler(h.ledger, h.journal)

	// Хранилище всё ещё недоступно: долг остаётся, попытка засчитана.
	res, err := reconciler.Run(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{Failed: 1}, res)
	owed, err = h.journal.PendingOwed(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, owed[0].Attempts)
	require.NotEmpty(t, owed[0].LastError)

	store.setFail(false)
	res, err = reconciler.Run(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{Resolved: 1}, res)
	require.Equal(t, int64(110), h.balance(t, 1))

	// Повторный проход ничего не начисляет.
	res, err = reconciler.Run(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{}, res)
	require.Equal(t, int64(110), h.balance(t, 1))

	pending, err := reconciler.Pending(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestReconcilerSkipsAlreadyCredited(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, economy.NewMemoryStore(), &fixedSource{ints: []int64{drawDouble, 0}}, nil)
	h.fund(t, 1, 100)

	out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: 10, Game: rewards.GameWheel})
	require.NoError(t, err)

	// Долг по уже начисленной игре: сверка должна только закрыть его.
	require.NoError(t, h.journal.AddOwed(ctx, OwedPayout{PlayID: out.PlayID, UserID: 1, Amount: 20}))

	res, err := NewReconciler(h.ledger, h.journal).Run(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{Resolved: 1}, res)
	require.Equal(t, int64(110), h.balance(t, 1))
}

func TestPlaySlotsConsistency(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, economy.NewMemoryStore(), rewards.NewSeededSource(7, 11), nil)
	const start, wager, plays = 100000, 10, 300
	h.fund(t, 1, start)

	table, err := h.svc.registry.Get(rewards.GameSlots)
	require.NoError(t, err)
	calc := testCalculator()

	var won, misses int64
	for i := 0; i < plays; i++ {
		out, err := h.svc.Play(ctx, PlayRequest{UserID: 1, Wager: wager, Game: rewards.GameSlots})
		require.NoError(t, err)
		require.NotNil(t, out.Render.Grid)
		require.Nil(t, out.Render.Wheel)

		// Выплата всегда выводится из показанной сетки.
		require.Equal(t, calc.Calculate(*out.Render.Grid, wager, table).Amount, out.PayoutAmount)

		if out.SelectedEntry == nil {
			misses++
			require.Equal(t, -1, out.SelectedIndex)
			require.Zero(t, out.PayoutAmount)
			require.Equal(t, ClassLoss, out.Classification)
		} else {
			require.True(t, out.Win)
			require.Positive(t, out.PayoutAmount)
		}
		won += out.PayoutAmount
	}

	require.Positive(t, misses)
	require.Equal(t, int64(start-plays*wager)+won, h.balance(t, 1))

	stats, err := h.svc.Stats(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(plays), stats.TotalSpins)
	require.Equal(t, int64(plays*wager), stats.TotalWagered)
	require.Equal(t, won, stats.TotalWon)
}

func TestPerkModifier(t *testing.T) {
	ctx := context.Background()
	store := perks.NewMemoryStore()
	m := NewPerkModifier(store, "lucky_charm", map[string]int64{"golden_avatar": 10, "vip_frame": 5})
	table := rewards.DefaultWheelTable()

	penalty := table.Index("penalty")
	loseTurn := table.Index("lose_turn")
	double := table.Index("double")
	sel := func(i int) rewards.Selection { return rewards.Selection{Index: i, Entry: table.Entries[i]} }

	// Без перка — без изменений.
	got, applied, err := m.Protect(ctx, 1, table, sel(penalty))
	require.NoError(t, err)
	require.Empty(t, applied)
	require.Equal(t, penalty, got.Index)

	require.NoError(t, store.Grant(ctx, 1, "lucky_charm", true))
	for _, i := range []int{penalty, loseTurn} {
		got, applied, err = m.Protect(ctx, 1, table, sel(i))
		require.NoError(t, err)
		require.Equal(t, "lucky_charm", applied)
		require.False(t, got.Entry.IsPenalty())
		require.GreaterOrEqual(t, got.Entry.PayoutValue, int64(0))
	}

	// Не-штраф не трогается.
	got, applied, err = m.Protect(ctx, 1, table, sel(double))
	require.NoError(t, err)
	require.Empty(t, applied)
	require.Equal(t, double, got.Index)

	payout, boosts, err := m.Boost(ctx, 1, 100)
	require.NoError(t, err)
	require.Equal(t, int64(100), payout)
	require.Empty(t, boosts)

	require.NoError(t, store.Grant(ctx, 1, "golden_avatar", true))
	require.NoError(t, store.Grant(ctx, 1, "vip_frame", true))
	payout, boosts, err = m.Boost(ctx, 1, 100)
	require.NoError(t, err)
	require.Equal(t, int64(115), payout)
	require.Equal(t, []string{"golden_avatar", "vip_frame"}, boosts)

	payout, _, err = m.Boost(ctx, 1, -10)
	require.NoError(t, err)
	require.Equal(t, int64(-10), payout)
}

func exerciseJournal(t *testing.T, j Journal) {
	ctx := context.Background()
	plays := []Play{
		{UserID: 1, Game: rewards.GameSlots, Wager: 10, Payout: 20, Classification: ClassRow, Entry: "cherry"},
		{UserID: 1, Game: rewards.GameSlots, Wager: 10, Payout: 0, Classification: ClassLoss},
		{UserID: 1, Game: rewards.GameWheel, Wager: 10, Payout: -5, Classification: ClassPenalty, Entry: "penalty"},
		{UserID: 2, Game: rewards.GameWheel, Wager: 50, Payout: 100, Classification: ClassPrize, Entry: "double"},
	}
	for i := range plays {
		plays[i].PlayID = uuid.New()
		require.NoError(t, j.RecordPlay(ctx, plays[i]))
	}

	stats, err := j.Stats(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalSpins)
	require.Equal(t, int64(30), stats.TotalWagered)
	require.Equal(t, int64(20), stats.TotalWon)
	require.Equal(t, int64(20), stats.BiggestWin)
	require.InDelta(t, 66.666, stats.RTP, 0.01)

	empty, err := j.Stats(ctx, 99)
	require.NoError(t, err)
	require.Zero(t, empty.TotalSpins)
	require.Zero(t, empty.RTP)

	first := OwedPayout{PlayID: plays[0].PlayID, UserID: 1, Amount: 20, Reason: "disk full"}
	require.NoError(t, j.AddOwed(ctx, first))
	require.NoError(t, j.AddOwed(ctx, first))
	require.NoError(t, j.AddOwed(ctx, OwedPayout{PlayID: plays[3].PlayID, UserID: 2, Amount: 100}))

	n, err := j.CountPendingOwed(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	owed, err := j.PendingOwed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, owed, 1)
	require.Equal(t, plays[0].PlayID, owed[0].PlayID)
	require.Equal(t, "disk full", owed[0].Reason)

	require.NoError(t, j.FailOwed(ctx, owed[0].ID, "still down"))
	require.NoError(t, j.ResolveOwed(ctx, owed[0].ID, 42))

	owed, err = j.PendingOwed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, owed, 1)
	require.Equal(t, int64(2), owed[0].UserID)
}

func TestMemoryJournal(t *testing.T) {
	exerciseJournal(t, NewMemoryJournal())
}

func TestSQLiteJournal(t *testing.T) {
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "casino.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exerciseJournal(t, NewSQLiteJournal(db))
}
