// Package casino — handlers.go обрабатывает команды /slots, /wheel и /stats.
package casino

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
)

// Handler обрабатывает команды казино.
type Handler struct {
	service *Service
	sender  common.Sender
}

// NewHandler создаёт обработчик казино.
func NewHandler(service *Service, sender common.Sender) *Handler {
	return &Handler{service: service, sender: sender}
}

// HandleSlots обрабатывает /slots <ставка>.
//
// Формат ответа:
//
//	🎰 СЛОТЫ 🎰
//
//	🍒 🍋 🍒
//	🍊 🍒 🍇
//	🔔 🍋 🍒
//
//	✅ Линия 4 (diagonal): 🍒 → 30 coins
//	💰 Выплата: 30 coins
//	📊 Баланс: 120 coins
func (h *Handler) HandleSlots(ctx context.Context, chatID, userID int64, args string) {
	h.play(ctx, chatID, userID, rewards.GameSlots, args)
}

// HandleWheel обрабатывает /wheel <ставка>.
func (h *Handler) HandleWheel(ctx context.Context, chatID, userID int64, args string) {
	h.play(ctx, chatID, userID, rewards.GameWheel, args)
}

func (h *Handler) play(ctx context.Context, chatID, userID int64, game rewards.Game, args string) {
	minBet, maxBet := h.service.Limits()
	wager, err := parseWager(args, minBet)
	if err != nil {
		common.SendText(ctx, h.sender, chatID, fmt.Sprintf("❌ Укажите ставку: /%s <от %d до %d>", game, minBet, maxBet))
		return
	}

	out, err := h.service.Play(ctx, PlayRequest{UserID: userID, Wager: wager, Game: game})
	if err != nil {
		common.SendText(ctx, h.sender, chatID, playErrorText(err, wager, minBet, maxBet))
		if !isUserError(err) {
			log.WithError(err).WithFields(log.Fields{"user_id": userID, "game": game}).Error("Ошибка игры")
		}
		return
	}

	common.SendText(ctx, h.sender, chatID, FormatOutcome(out))
}

// HandleStats обрабатывает /stats.
//
// Формат ответа:
//
//	📊 СТАТИСТИКА КАЗИНО
//	Всего игр: 47
//	Поставлено: 2 350 coins
//	Выиграно: 2 120 coins
//	Чистая прибыль: -230 coins
//	💎 Лучший выигрыш: 1 500 coins
//	📈 Твой RTP: 90.21%
func (h *Handler) HandleStats(ctx context.Context, chatID, userID int64) {
	stats, err := h.service.Stats(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения статистики казино")
		common.SendText(ctx, h.sender, chatID, "❌ Ошибка получения статистики")
		return
	}
	common.SendText(ctx, h.sender, chatID, FormatStats(stats))
}

// FormatStats форматирует статистику казино.
func FormatStats(stats *Stats) string {
	if stats.TotalSpins == 0 {
		return "📊 У тебя пока нет статистики казино. Сыграй первую игру!"
	}

	net := stats.TotalWon - stats.TotalWagered
	return fmt.Sprintf(
		"📊 СТАТИСТИКА КАЗИНО\n\n"+
			"Всего игр: %d\n"+
			"Поставлено: %s\n"+
			"Выиграно: %s\n"+
			"Чистая прибыль: %s\n\n"+
			"💎 Лучший выигрыш: %s\n"+
			"📈 Твой RTP: %.2f%%",
		stats.TotalSpins,
		common.FormatBalance(stats.TotalWagered),
		common.FormatBalance(stats.TotalWon),
		common.FormatSignedAmount(net),
		common.FormatBalance(stats.BiggestWin),
		stats.RTP,
	)
}

// FormatOutcome форматирует результат игры для сообщения.
func FormatOutcome(out *Outcome) string {
	var sb strings.Builder

	switch {
	case out.Render.Grid != nil:
		sb.WriteString("🎰 СЛОТЫ 🎰\n\n")
		sb.WriteString(FormatGrid(*out.Render.Grid))
		if len(out.Lines) > 0 {
			sb.WriteString("\n")
		}
		for _, l := range out.Lines {
			sb.WriteString(fmt.Sprintf("✅ Линия %d (%s): %s → %s\n",
				l.Line+1, l.Classification, l.Symbol, common.FormatBalance(l.Payout)))
		}
	case out.Render.Wheel != nil:
		sb.WriteString("🎡 КОЛЕСО ПРИЗОВ 🎡\n\n")
		if out.SelectedEntry != nil {
			sb.WriteString(fmt.Sprintf("Выпало: %s\n", out.SelectedEntry.Glyph()))
		}
		switch out.Special {
		case rewards.SpecialReplay, rewards.SpecialExtraTurn:
			sb.WriteString("🔁 Можно крутить ещё раз!\n")
		case rewards.SpecialLoseTurn:
			sb.WriteString("⏸ Пропуск хода\n")
		}
	}

	if out.PerkApplied != "" {
		sb.WriteString(fmt.Sprintf("🍀 Сработал перк: %s\n", out.PerkApplied))
	}
	if len(out.Boosts) > 0 {
		sb.WriteString(fmt.Sprintf("✨ Бонус перков: %s\n", strings.Join(out.Boosts, ", ")))
	}

	sb.WriteString("\n")
	switch {
	case out.PayoutAmount > 0:
		sb.WriteString(fmt.Sprintf("💰 Выплата: %s\n", common.FormatBalance(out.PayoutAmount)))
	case out.PayoutAmount < 0:
		sb.WriteString(fmt.Sprintf("💥 Штраф: %s\n", common.FormatSignedAmount(out.PayoutAmount)))
	default:
		sb.WriteString("💸 Нет выигрыша\n")
	}
	sb.WriteString(fmt.Sprintf("📊 Баланс: %s", common.FormatBalance(out.Balance)))
	return sb.String()
}

// FormatGrid выводит сетку построчно, символы через пробел.
func FormatGrid(grid Grid) string {
	var sb strings.Builder
	for _, row := range grid {
		sb.WriteString(strings.Join(row[:], " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

// parseWager читает ставку из аргументов; без аргументов — минимальная ставка.
func parseWager(args string, minBet int64) (int64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return minBet, nil
	}
	return strconv.ParseInt(fields[0], 10, 64)
}

func isUserError(err error) bool {
	return errors.Is(err, common.ErrInsufficientFunds) ||
		errors.Is(err, common.ErrInvalidWager) ||
		errors.Is(err, common.ErrCasinoDisabled) ||
		errors.Is(err, common.ErrUnknownGame)
}

func playErrorText(err error, wager, minBet, maxBet int64) string {
	switch {
	case errors.Is(err, common.ErrInsufficientFunds):
		return fmt.Sprintf("❌ Недостаточно монет! Ставка: %s", common.FormatBalance(wager))
	case errors.Is(err, common.ErrInvalidWager):
		return fmt.Sprintf("❌ Ставка должна быть от %d до %d", minBet, maxBet)
	case errors.Is(err, common.ErrCasinoDisabled):
		return "🚫 Казино временно отключено"
	case errors.Is(err, common.ErrRetryable):
		return "⏳ Выигрыш будет начислен чуть позже"
	default:
		return "❌ Ошибка при игре"
	}
}
