// Package voting — service.go содержит бизнес-логику голосования.
package voting

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
)

// SourceVoting — источник транзакций голосования.
const SourceVoting = "voting"

// Service управляет голосованием.
type Service struct {
	ledger *economy.Service
	reward int64
	limit  int
	loc    *time.Location
	now    func() time.Time
}

// NewService создаёт сервис голосования. Сутки считаются в часовом поясе loc.
func NewService(ledger *economy.Service, reward int64, dailyLimit int, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		ledger: ledger,
		reward: reward,
		limit:  dailyLimit,
		loc:    loc,
		now:    time.Now,
	}
}

// Vote засчитывает голос voterID за targetID и начисляет награду голосующему.
// Лимит и повторный голос проверяются по журналу под блокировкой голосующего
// в ledger, поэтому параллельные голоса не превышают лимит.
func (s *Service) Vote(ctx context.Context, voterID, targetID int64) (*Vote, error) {
	if voterID == targetID {
		return nil, common.ErrVoteSelf
	}
	if targetID <= 0 {
		return nil, fmt.Errorf("некорректный получатель голоса: %d", targetID)
	}

	target := targetEntity(targetID)
	since := common.StartOfDay(s.now(), s.loc)

	var given int
	receipt, err := s.ledger.CreditWith(ctx, economy.CreditRequest{
		UserID:          voterID,
		Amount:          s.reward,
		Category:        economy.CategoryVoting,
		Description:     fmt.Sprintf("Голос за пользователя %d", targetID),
		Metadata:        economy.Metadata{"target": target},
		RelatedEntityID: target,
		Source:          SourceVoting,
	}, func(history economy.HistoryReader, _ *economy.Request) error {
		today, err := history.List(economy.Filter{
			UserID:     voterID,
			Categories: []string{economy.CategoryVoting},
			Since:      since,
		})
		if err != nil {
			return err
		}
		if len(today) >= s.limit {
			return common.ErrVoteDailyLimit
		}
		for _, tx := range today {
			if tx.RelatedEntityID == target {
				return common.ErrVoteAlreadyGiven
			}
		}
		given = len(today)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"voter_id":  voterID,
		"target_id": targetID,
		"reward":    s.reward,
	}).Debug("Голос засчитан")

	return &Vote{
		VoterID:   voterID,
		TargetID:  targetID,
		Reward:    s.reward,
		Balance:   receipt.NewBalance,
		Remaining: s.limit - given - 1,
	}, nil
}
