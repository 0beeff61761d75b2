// Package streak — service.go начисляет ежедневный бонус.
package streak

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
)

// SourceStreak — источник транзакций ежедневного бонуса.
const SourceStreak = "streak"

// Service управляет ежедневным бонусом.
type Service struct {
	ledger *economy.Service
	loc    *time.Location
	now    func() time.Time
}

// NewService создаёт сервис. Сутки считаются в часовом поясе loc.
func NewService(ledger *economy.Service, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{ledger: ledger, loc: loc, now: time.Now}
}

// ClaimDaily начисляет бонус за сегодня: 10 × день серии, максимум 70.
// Повторный запрос в тот же день — ErrDailyAlreadyClaimed. Серия и сумма
// считаются по журналу под блокировкой пользователя в ledger.
func (s *Service) ClaimDaily(ctx context.Context, userID int64) (*Claim, error) {
	today := common.StartOfDay(s.now(), s.loc)

	var day int
	receipt, err := s.ledger.CreditWith(ctx, economy.CreditRequest{
		UserID:   userID,
		Category: economy.CategoryDailyBonus,
		Metadata: economy.Metadata{"day": today.Format(dayKeyLayout)},
		Source:   SourceStreak,
	}, func(history economy.HistoryReader, req *economy.Request) error {
		txs, err := history.List(claimsFilter(userID))
		if err != nil {
			return err
		}
		claims := claimTimes(txs)
		if len(claims) > 0 && !claims[0].Before(today) {
			return common.ErrDailyAlreadyClaimed
		}

		streak := countStreak(claims, today.AddDate(0, 0, -1), s.loc)
		day = streak + 1
		req.Amount = GetReward(streak)
		req.Description = FormatRewardDescription(day)
		return nil
	})
	if err != nil {
		return nil, err
	}
	reward := receipt.NewBalance - receipt.PreviousBalance

	log.WithFields(log.Fields{
		"user_id": userID,
		"day":     day,
		"bonus":   reward,
	}).Debug("Ежедневный бонус начислен")

	return &Claim{UserID: userID, Day: day, Reward: reward, Balance: receipt.NewBalance}, nil
}

// GetStatus возвращает текущую серию и следующий бонус.
func (s *Service) GetStatus(ctx context.Context, userID int64) (*Status, error) {
	claims, err := s.claims(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := common.StartOfDay(s.now(), s.loc)
	st := &Status{UserID: userID}
	if len(claims) > 0 {
		last := claims[0]
		st.LastClaimAt = &last
		st.ClaimedToday = !last.Before(today)
	}

	from := today
	if !st.ClaimedToday {
		from = today.AddDate(0, 0, -1)
	}
	st.CurrentStreak = countStreak(claims, from, s.loc)
	st.NextReward = GetReward(st.CurrentStreak)
	return st, nil
}

// claims возвращает моменты получения бонусов, от новых к старым.
func (s *Service) claims(ctx context.Context, userID int64) ([]time.Time, error) {
	txs, err := s.ledger.History(ctx, claimsFilter(userID))
	if err != nil {
		return nil, err
	}
	return claimTimes(txs), nil
}

func claimsFilter(userID int64) economy.Filter {
	return economy.Filter{
		UserID:     userID,
		Categories: []string{economy.CategoryDailyBonus},
	}
}

func claimTimes(txs []economy.Transaction) []time.Time {
	out := make([]time.Time, len(txs))
	for i, tx := range txs {
		out[i] = tx.CreatedAt
	}
	return out
}
