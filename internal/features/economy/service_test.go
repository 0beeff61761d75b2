package economy

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

func credit(userID, amount int64) CreditRequest {
	return CreditRequest{UserID: userID, Amount: amount, Category: CategoryVoting}
}

func debit(userID, amount int64) DebitRequest {
	return DebitRequest{UserID: userID, Amount: amount, Category: CategoryCasinoBet}
}

func TestLedgerScenario(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	r, err := svc.Credit(ctx, credit(1, 100))
	require.NoError(t, err)
	require.Equal(t, int64(0), r.PreviousBalance)
	require.Equal(t, int64(100), r.NewBalance)

	r, err = svc.Debit(ctx, debit(1, 10))
	require.NoError(t, err)
	require.Equal(t, int64(100), r.PreviousBalance)
	require.Equal(t, int64(90), r.NewBalance)

	r, err = svc.Credit(ctx, CreditRequest{UserID: 1, Amount: 30, Category: CategoryCasinoWin})
	require.NoError(t, err)
	require.Equal(t, int64(120), r.NewBalance)

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(120), balance)

	txs, err := svc.History(ctx, Filter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Equal(t, CategoryCasinoWin, txs[0].Category)
	require.Equal(t, DirectionSpending, txs[1].Direction)
	require.Equal(t, SourceCore, txs[2].Source)
}

func TestDebitInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	_, err := svc.Credit(ctx, credit(1, 5))
	require.NoError(t, err)

	_, err = svc.Debit(ctx, debit(1, 10))
	require.ErrorIs(t, err, common.ErrInsufficientFunds)

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)

	txs, err := svc.History(ctx, Filter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestUnknownUserHasZeroBalance(t *testing.T) {
	svc := NewService(NewMemoryStore())

	balance, err := svc.GetBalance(context.Background(), 404)
	require.NoError(t, err)
	require.Zero(t, balance)

	_, err = svc.Debit(context.Background(), debit(404, 1))
	require.ErrorIs(t, err, common.ErrInsufficientFunds)
}

func TestRequestValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)

	_, err := svc.Credit(ctx, credit(1, 0))
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = svc.Debit(ctx, debit(1, -5))
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = svc.Credit(ctx, CreditRequest{UserID: 1, Amount: 1, Category: ""})
	require.ErrorIs(t, err, common.ErrInvalidCategory)

	_, err = svc.Credit(ctx, CreditRequest{UserID: 1, Amount: 1, Category: "Casino Win"})
	require.ErrorIs(t, err, common.ErrInvalidCategory)

	_, err = svc.Credit(ctx, CreditRequest{UserID: 1, Amount: 1, Category: CategoryVoting,
		Metadata: Metadata{"Bad-Key": "x"}})
	require.ErrorIs(t, err, common.ErrInvalidMetadata)

	txs, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Empty(t, txs)
}

func TestMetadataValidate(t *testing.T) {
	require.NoError(t, Metadata(nil).Validate())
	require.NoError(t, Metadata{"play_id": "abc", "game": "slots"}.Validate())

	long := make([]byte, MaxMetadataValueLen+1)
	for i := range long {
		long[i] = 'a'
	}
	require.ErrorIs(t, Metadata{"note": string(long)}.Validate(), common.ErrInvalidMetadata)

	many := Metadata{}
	for i := 0; i <= MaxMetadataKeys; i++ {
		many["k"+string(rune('a'+i%26))+string(rune('a'+i/26))] = "v"
	}
	require.ErrorIs(t, many.Validate(), common.ErrInvalidMetadata)
}

func TestAdjustAndDebitUpTo(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	r, err := svc.Adjust(ctx, CreditRequest{UserID: 3, Amount: 7, Category: CategoryAdminGive})
	require.NoError(t, err)
	require.Equal(t, int64(7), r.NewBalance)

	r, err = svc.DebitUpTo(ctx, DebitRequest{UserID: 3, Amount: 20, Category: CategoryCasinoPenalty})
	require.NoError(t, err)
	require.Equal(t, int64(7), r.PreviousBalance)
	require.Zero(t, r.NewBalance)

	r, err = svc.DebitUpTo(ctx, DebitRequest{UserID: 3, Amount: 20, Category: CategoryCasinoPenalty})
	require.NoError(t, err)
	require.Nil(t, r)

	txs, err := svc.History(ctx, Filter{UserID: 3})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, int64(7), txs[0].Amount)
}

func TestCreditOverflowIsRejected(t *testing.T) {
	ctx := context.Background()

	for name, store := range map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": openSQLiteStore(t),
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewService(store)

			_, err := svc.Credit(ctx, credit(1, math.MaxInt64))
			require.NoError(t, err)

			_, err = svc.Credit(ctx, credit(1, 2))
			require.ErrorIs(t, err, common.ErrInvalidAmount)
			_, err = svc.Adjust(ctx, CreditRequest{UserID: 1, Amount: 1, Category: CategoryAdminGive})
			require.ErrorIs(t, err, common.ErrInvalidAmount)

			balance, err := svc.GetBalance(ctx, 1)
			require.NoError(t, err)
			require.Equal(t, int64(math.MaxInt64), balance)

			txs, err := svc.History(ctx, Filter{UserID: 1})
			require.NoError(t, err)
			require.Len(t, txs, 1)

			// Списание по-прежнему работает.
			r, err := svc.Debit(ctx, debit(1, 1))
			require.NoError(t, err)
			require.Equal(t, int64(math.MaxInt64-1), r.NewBalance)
		})
	}
}

func TestCreditWith(t *testing.T) {
	ctx := context.Background()
	errDenied := errors.New("denied")

	for name, store := range map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": openSQLiteStore(t),
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewService(store)
			_, err := svc.Credit(ctx, credit(1, 3))
			require.NoError(t, err)

			// Сумма решается по журналу внутри блокировки.
			r, err := svc.CreditWith(ctx, CreditRequest{UserID: 1, Category: CategoryDailyBonus},
				func(history HistoryReader, req *Request) error {
					txs, err := history.List(Filter{UserID: 1})
					if err != nil {
						return err
					}
					req.Amount = int64(len(txs)) * 10
					return nil
				})
			require.NoError(t, err)
			require.Equal(t, int64(3), r.PreviousBalance)
			require.Equal(t, int64(13), r.NewBalance)

			_, err = svc.CreditWith(ctx, credit(1, 5), func(HistoryReader, *Request) error { return errDenied })
			require.ErrorIs(t, err, errDenied)
			require.NotErrorIs(t, err, common.ErrPersistence)

			_, err = svc.CreditWith(ctx, CreditRequest{UserID: 1, Category: CategoryDailyBonus},
				func(HistoryReader, *Request) error { return nil })
			require.ErrorIs(t, err, common.ErrInvalidAmount)

			balance, err := svc.GetBalance(ctx, 1)
			require.NoError(t, err)
			require.Equal(t, int64(13), balance)
		})
	}
}

func TestConcurrentDebitsNeverOverspend(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	_, err := svc.Credit(ctx, credit(1, 100))
	require.NoError(t, err)

	var succeeded, rejected atomic.Int64
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := svc.Debit(ctx, debit(1, 10))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, common.ErrInsufficientFunds):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int64(10), succeeded.Load())
	require.Equal(t, int64(40), rejected.Load())

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestConcurrentMixedOperationsMatchFold(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)

	var g errgroup.Group
	for user := int64(1); user <= 4; user++ {
		for i := 0; i < 25; i++ {
			g.Go(func() error {
				if _, err := svc.Credit(ctx, credit(user, 3)); err != nil {
					return err
				}
				_, err := svc.Debit(ctx, debit(user, 2))
				if err != nil && !errors.Is(err, common.ErrInsufficientFunds) {
					return err
				}
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())

	for user := int64(1); user <= 4; user++ {
		txs, err := svc.History(ctx, Filter{UserID: user})
		require.NoError(t, err)

		var fold int64
		for _, tx := range txs {
			fold += tx.Signed()
		}
		balance, err := svc.GetBalance(ctx, user)
		require.NoError(t, err)
		require.Equal(t, fold, balance)
		require.GreaterOrEqual(t, balance, int64(0))
	}
}

type brokenStore struct{ Store }

func (brokenStore) Balance(context.Context, int64) (int64, error) {
	return 0, errors.New("connection reset")
}

func (brokenStore) Apply(context.Context, int64, ApplyFunc) (Transaction, int64, error) {
	return Transaction{}, 0, errors.New("connection reset")
}

func TestStoreFailureIsPersistenceError(t *testing.T) {
	svc := NewService(brokenStore{})

	_, err := svc.GetBalance(context.Background(), 1)
	require.ErrorIs(t, err, common.ErrPersistence)

	_, err = svc.Credit(context.Background(), credit(1, 1))
	require.ErrorIs(t, err, common.ErrPersistence)
}

func TestHistoryFilter(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	_, err := svc.Credit(ctx, CreditRequest{UserID: 1, Amount: 5, Category: CategoryVoting, RelatedEntityID: "42"})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, CreditRequest{UserID: 1, Amount: 10, Category: CategoryDailyBonus})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, CreditRequest{UserID: 2, Amount: 5, Category: CategoryVoting})
	require.NoError(t, err)

	txs, err := svc.History(ctx, Filter{UserID: 1, Categories: []string{CategoryVoting}})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, "42", txs[0].RelatedEntityID)

	txs, err = svc.History(ctx, Filter{UserID: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, CategoryDailyBonus, txs[0].Category)
}
