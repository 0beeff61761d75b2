// Package voting начисляет монеты за голоса (бывшая «карма»).
// Голосующий получает VOTE_REWARD монет; лимиты считаются по истории ledger,
// отдельной таблицы голосов нет.
package voting

import (
	"strconv"
	"strings"
)

// Vote — результат засчитанного голоса.
type Vote struct {
	VoterID   int64 `json:"voter_id"`
	TargetID  int64 `json:"target_id"`
	Reward    int64 `json:"reward"`
	Balance   int64 `json:"balance"`
	Remaining int   `json:"remaining"` // Сколько голосов осталось сегодня
}

// targetEntity — RelatedEntityID транзакции голоса.
func targetEntity(targetID int64) string {
	return strconv.FormatInt(targetID, 10)
}

// IsThankYou сообщает, что ответ на сообщение — благодарность,
// которая засчитывается как голос за автора. Регистр не важен,
// пунктуация в конце допускается.
func IsThankYou(text string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = strings.TrimRight(cleaned, "!.,;:)")
	switch cleaned {
	case "спасибо", "thanks", "thank you", "+1":
		return true
	}
	return false
}
