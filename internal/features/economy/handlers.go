// Package economy — handlers.go обрабатывает команды бота:
// /balance (баланс), /history (последние транзакции).
package economy

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// HistoryLimit — сколько транзакций показывает /history.
const HistoryLimit = 10

// Handler обрабатывает команды экономики.
type Handler struct {
	service *Service
	sender  common.Sender
	loc     *time.Location
}

// NewHandler создаёт новый обработчик экономических команд.
func NewHandler(service *Service, sender common.Sender, loc *time.Location) *Handler {
	return &Handler{service: service, sender: sender, loc: loc}
}

// HandleBalance обрабатывает /balance.
//
// Формат ответа:
//
//	💰 Баланс: 150 coins
func (h *Handler) HandleBalance(ctx context.Context, chatID, userID int64) {
	balance, err := h.service.GetBalance(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения баланса")
		common.SendText(ctx, h.sender, chatID, "❌ Ошибка получения баланса")
		return
	}
	common.SendText(ctx, h.sender, chatID, fmt.Sprintf("💰 Баланс: %s", common.FormatBalance(balance)))
}

// HandleHistory обрабатывает /history.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	txs, err := h.service.History(ctx, Filter{UserID: userID, Limit: HistoryLimit})
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения транзакций")
		common.SendText(ctx, h.sender, chatID, "❌ Ошибка получения истории транзакций")
		return
	}
	common.SendText(ctx, h.sender, chatID, FormatHistory(txs, h.loc))
}

// FormatHistory форматирует историю транзакций для сообщения.
func FormatHistory(txs []Transaction, loc *time.Location) string {
	if len(txs) == 0 {
		return "📋 У вас пока нет транзакций"
	}
	if loc == nil {
		loc = time.UTC
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Последние %d транзакций:\n\n", len(txs)))
	for i, tx := range txs {
		desc := tx.Description
		if desc == "" {
			desc = tx.Category
		}
		sb.WriteString(fmt.Sprintf("%d. %s | %s | %s\n",
			i+1,
			common.FormatDateTime(tx.CreatedAt, loc),
			common.FormatSignedAmount(tx.Signed()),
			desc,
		))
	}
	return sb.String()
}
