// Package voting — handlers.go обрабатывает /vote и «спасибо» в ответе.
package voting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// Handler обрабатывает команды голосования.
type Handler struct {
	service *Service
	sender  common.Sender
}

// NewHandler создаёт обработчик голосования.
func NewHandler(service *Service, sender common.Sender) *Handler {
	return &Handler{service: service, sender: sender}
}

// HandleVote обрабатывает /vote <user_id>.
func (h *Handler) HandleVote(ctx context.Context, chatID, voterID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		common.SendText(ctx, h.sender, chatID, "❌ Укажите пользователя: /vote <user_id>")
		return
	}
	targetID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || targetID <= 0 {
		common.SendText(ctx, h.sender, chatID, "❌ Некорректный id пользователя")
		return
	}
	h.vote(ctx, chatID, voterID, targetID, true)
}

// HandleThankYou засчитывает «спасибо» в ответ на сообщение как голос.
// Отказы не показываются, чтобы не засорять чат.
func (h *Handler) HandleThankYou(ctx context.Context, chatID, voterID, targetID int64) {
	h.vote(ctx, chatID, voterID, targetID, false)
}

func (h *Handler) vote(ctx context.Context, chatID, voterID, targetID int64, verbose bool) {
	v, err := h.service.Vote(ctx, voterID, targetID)
	if err != nil {
		entry := log.WithError(err).WithFields(log.Fields{"voter_id": voterID, "target_id": targetID})
		text, known := voteErrorText(err)
		if !known {
			entry.Error("Ошибка голосования")
		} else {
			entry.Debug("Голос не засчитан")
		}
		if verbose || !known {
			common.SendText(ctx, h.sender, chatID, text)
		}
		return
	}

	common.SendText(ctx, h.sender, chatID, fmt.Sprintf("🗳 Голос засчитан! +%s\nОсталось голосов сегодня: %d",
		common.FormatBalance(v.Reward), v.Remaining))
}

func voteErrorText(err error) (string, bool) {
	switch {
	case errors.Is(err, common.ErrVoteSelf):
		return "❌ Нельзя голосовать за себя", true
	case errors.Is(err, common.ErrVoteDailyLimit):
		return "⏳ Лимит голосов на сегодня исчерпан", true
	case errors.Is(err, common.ErrVoteAlreadyGiven):
		return "❌ Вы уже голосовали за этого пользователя сегодня", true
	default:
		return "❌ Ошибка голосования", false
	}
}
