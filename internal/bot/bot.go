// Package bot содержит Telegram-поверхность: приём апдейтов, фильтрацию
// и маршрутизацию команд к обработчикам фич.
package bot

import (
	"context"
	"strings"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/bot/filters"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/bot/middleware"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/casino"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/streak"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/voting"
)

const helpText = "Команды:\n" +
	"/balance — баланс\n" +
	"/history — последние транзакции\n" +
	"/slots <ставка> — слоты 3x3\n" +
	"/wheel <ставка> — колесо призов\n" +
	"/stats — статистика казино\n" +
	"/vote <user_id> — голос за участника\n" +
	"/daily — ежедневный бонус\n" +
	"Ответ «спасибо» на сообщение — тоже голос."

// Handlers — обработчики фич. nil — фича выключена.
type Handlers struct {
	Economy *economy.Handler
	Casino  *casino.Handler
	Voting  *voting.Handler
	Streak  *streak.Handler
}

// Options — параметры приёма апдейтов.
type Options struct {
	MaxInflight int
}

// Bot — маршрутизатор апдейтов Telegram.
type Bot struct {
	sender      common.Sender
	handlers    Handlers
	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	parser      *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт бота.
func New(sender common.Sender, handlers Handlers, chatFilter *filters.ChatFilter, rateLimiter *middleware.RateLimiter, opts Options) *Bot {
	maxInFlight := opts.MaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		sender:      sender,
		handlers:    handlers,
		chatFilter:  chatFilter,
		rateLimiter: rateLimiter,
		parser:      NewCommandParser(),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Run обрабатывает апдейты, пока не закроется канал или не отменится ctx.
// Дожидается завершения уже запущенных обработчиков.
func (b *Bot) Run(ctx context.Context, updates <-chan telego.Update) {
	log.WithField("max_inflight", cap(b.inflight)).Info("Бот запущен и ожидает сообщения...")

	defer func() {
		// Ждём, пока освободятся все слоты
		for i := 0; i < cap(b.inflight); i++ {
			b.inflight <- struct{}{}
		}
		log.Info("Бот остановлен")
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(upd telego.Update) {
				defer func() { <-b.inflight }()
				b.HandleUpdate(ctx, upd)
			}(update)
		}
	}
}

// HandleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) HandleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic("bot")

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// «спасибо» в ответ на сообщение — голос за автора
	if b.handlers.Voting != nil && message.ReplyToMessage != nil && message.ReplyToMessage.From != nil {
		if voting.IsThankYou(message.Text) {
			if !b.allow(userID) {
				return
			}
			b.handlers.Voting.HandleThankYou(ctx, chatID, userID, message.ReplyToMessage.From.ID)
			return
		}
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	if !b.allow(userID) {
		return
	}

	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")
	b.routeCommand(ctx, chatID, userID, cmd, strings.Join(args, " "))
}

func (b *Bot) allow(userID int64) bool {
	if b.rateLimiter == nil || b.rateLimiter.Allow(userID) {
		return true
	}
	log.WithField("user_id", userID).Debug("rate limited")
	return false
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, cmd, args string) {
	h := b.handlers
	switch cmd {
	case "start", "help":
		common.SendText(ctx, b.sender, chatID, helpText)

	case "balance", "баланс":
		if h.Economy != nil {
			h.Economy.HandleBalance(ctx, chatID, userID)
		}

	case "history", "транзакции":
		if h.Economy != nil {
			h.Economy.HandleHistory(ctx, chatID, userID)
		}

	case "slots", "слоты":
		if h.Casino != nil {
			h.Casino.HandleSlots(ctx, chatID, userID, args)
		} else {
			common.SendText(ctx, b.sender, chatID, "🎰 Казино временно отключено")
		}

	case "wheel", "колесо":
		if h.Casino != nil {
			h.Casino.HandleWheel(ctx, chatID, userID, args)
		} else {
			common.SendText(ctx, b.sender, chatID, "🎡 Казино временно отключено")
		}

	case "stats", "статслоты":
		if h.Casino != nil {
			h.Casino.HandleStats(ctx, chatID, userID)
		}

	case "vote", "голос":
		if h.Voting != nil {
			h.Voting.HandleVote(ctx, chatID, userID, args)
		}

	case "daily", "бонус":
		if h.Streak != nil {
			h.Streak.HandleDaily(ctx, chatID, userID)
		}
	}
}

// CommandParser парсит команды с префиксами !, . и /
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Суффикс @botname у команды отбрасывается: /slots@coins_bot → slots.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}
	if command == "" {
		return "", nil, false
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
