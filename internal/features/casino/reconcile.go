package casino

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
)

// Reconciler начисляет долги по выигрышам, которые не прошли сразу.
type Reconciler struct {
	ledger  *economy.Service
	journal Journal
}

// NewReconciler создаёт задачу сверки.
func NewReconciler(ledger *economy.Service, journal Journal) *Reconciler {
	return &Reconciler{ledger: ledger, journal: journal}
}

// ReconcileResult — итог одного прохода.
type ReconcileResult struct {
	Resolved int
	Failed   int
}

// Run обрабатывает до batch долгов. Повторный запуск безопасен: если
// в ledger уже есть начисление с тем же play_id, долг просто закрывается.
func (r *Reconciler) Run(ctx context.Context, batch int) (ReconcileResult, error) {
	var res ReconcileResult

	owed, err := r.journal.PendingOwed(ctx, batch)
	if err != nil {
		return res, fmt.Errorf("ошибка получения долгов: %w", err)
	}

	for _, o := range owed {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		logger := log.WithFields(log.Fields{
			"component": "reconcile",
			"owed_id":   o.ID,
			"play_id":   o.PlayID.String(),
			"user_id":   o.UserID,
			"amount":    o.Amount,
		})

		txID, err := r.settle(ctx, o)
		if err != nil {
			res.Failed++
			logger.WithError(err).Warn("Долг не начислен")
			if ferr := r.journal.FailOwed(ctx, o.ID, err.Error()); ferr != nil {
				logger.WithError(ferr).Error("Ошибка обновления долга")
			}
			continue
		}
		if err := r.journal.ResolveOwed(ctx, o.ID, txID); err != nil {
			res.Failed++
			logger.WithError(err).Error("Начислено, но долг не закрыт")
			continue
		}
		res.Resolved++
		logger.WithField("tx_id", txID).Info("Долг начислен")
	}
	return res, nil
}

// settle возвращает id транзакции начисления: существующей или новой.
func (r *Reconciler) settle(ctx context.Context, o OwedPayout) (int64, error) {
	existing, err := r.ledger.History(ctx, economy.Filter{
		UserID:          o.UserID,
		Categories:      []string{economy.CategoryCasinoWin, economy.CategoryCasinoRefund},
		Direction:       economy.DirectionEarning,
		RelatedEntityID: o.PlayID.String(),
		Limit:           1,
	})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}

	receipt, err := r.ledger.Credit(ctx, economy.CreditRequest{
		UserID:          o.UserID,
		Amount:          o.Amount,
		Category:        economy.CategoryCasinoWin,
		Description:     "Начисление отложенного выигрыша",
		Metadata:        economy.Metadata{"play_id": o.PlayID.String(), "reconciled": "true"},
		RelatedEntityID: o.PlayID.String(),
		Source:          SourceCasino,
	})
	if err != nil {
		return 0, err
	}
	return receipt.TransactionID, nil
}

// Pending возвращает число неначисленных долгов.
func (r *Reconciler) Pending(ctx context.Context) (int64, error) {
	return r.journal.CountPendingOwed(ctx)
}
