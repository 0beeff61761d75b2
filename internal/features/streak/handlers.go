// Package streak — handlers.go обрабатывает команду /daily.
package streak

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// Handler обрабатывает команды ежедневного бонуса.
type Handler struct {
	service *Service
	sender  common.Sender
}

// NewHandler создаёт новый обработчик.
func NewHandler(service *Service, sender common.Sender) *Handler {
	return &Handler{service: service, sender: sender}
}

// HandleDaily обрабатывает /daily — получает бонус за сегодня.
//
// Формат ответа:
//
//	🔥 Ежедневный бонус: +30 coins
//	Серия: 3 дня
//	📊 Баланс: 150 coins
//
// Если бонус уже получен:
//
//	✅ Бонус за сегодня уже получен
//	Серия: 3 дня, завтра: +40 coins
func (h *Handler) HandleDaily(ctx context.Context, chatID, userID int64) {
	claim, err := h.service.ClaimDaily(ctx, userID)
	if errors.Is(err, common.ErrDailyAlreadyClaimed) {
		st, serr := h.service.GetStatus(ctx, userID)
		if serr != nil {
			log.WithError(serr).WithField("user_id", userID).Error("Ошибка получения серии")
			common.SendText(ctx, h.sender, chatID, "✅ Бонус за сегодня уже получен")
			return
		}
		common.SendText(ctx, h.sender, chatID, fmt.Sprintf(
			"✅ Бонус за сегодня уже получен\nСерия: %d %s, завтра: +%s",
			st.CurrentStreak, common.PluralizeDays(st.CurrentStreak), common.FormatBalance(st.NextReward)))
		return
	}
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка начисления ежедневного бонуса")
		common.SendText(ctx, h.sender, chatID, "❌ Ошибка начисления бонуса")
		return
	}

	common.SendText(ctx, h.sender, chatID, fmt.Sprintf(
		"🔥 Ежедневный бонус: %s\nСерия: %d %s\n📊 Баланс: %s",
		common.FormatSignedAmount(claim.Reward),
		claim.Day, common.PluralizeDays(claim.Day),
		common.FormatBalance(claim.Balance)))
}
