// Package filters решает, в каких чатах бот отвечает на сообщения.
package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает личные сообщения и чаты из списка разрешённых.
// Пустой список — разрешены все групповые чаты.
type ChatFilter struct {
	allowed map[int64]struct{}
}

// NewChatFilter создаёт фильтр по списку id чатов.
func NewChatFilter(allowedChatIDs []int64) *ChatFilter {
	allowed := make(map[int64]struct{}, len(allowedChatIDs))
	for _, id := range allowedChatIDs {
		allowed[id] = struct{}{}
	}
	return &ChatFilter{allowed: allowed}
}

// CheckAccess сообщает, нужно ли обрабатывать сообщение.
func (f *ChatFilter) CheckAccess(message *telego.Message) bool {
	if message == nil {
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (service/channel message?)")
		return false
	}
	if message.From.IsBot {
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	if message.Chat.Type == telego.ChatTypePrivate {
		logger.Debug("allow: private")
		return true
	}
	if len(f.allowed) == 0 {
		logger.Debug("allow: no allowlist")
		return true
	}
	if _, ok := f.allowed[message.Chat.ID]; ok {
		logger.Debug("allow: allowlisted chat")
		return true
	}

	logger.Info("deny: chat not in allowlist")
	return false
}
