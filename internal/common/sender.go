package common

import (
	"context"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
)

// Sender — часть Telegram API, нужная обработчикам команд.
// *telego.Bot реализует этот интерфейс; в тестах подставляется заглушка.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// SendText отправляет простое текстовое сообщение и логирует ошибку отправки.
func SendText(ctx context.Context, sender Sender, chatID int64, text string) {
	if sender == nil {
		return
	}
	if _, err := sender.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
