// Package streak управляет ежедневным бонусом с серией (стриком).
// Серия не хранится отдельно: она выводится из транзакций daily_bonus.
// models.go описывает статус серии и таблицу наград.
package streak

import "time"

// Status — состояние серии пользователя.
type Status struct {
	UserID        int64      `json:"user_id"`
	CurrentStreak int        `json:"current_streak"` // Дней подряд, включая сегодня, если бонус получен
	ClaimedToday  bool       `json:"claimed_today"`
	LastClaimAt   *time.Time `json:"last_claim_at,omitempty"`
	NextReward    int64      `json:"next_reward"`
}

// Claim — результат получения бонуса.
type Claim struct {
	UserID  int64 `json:"user_id"`
	Day     int   `json:"day"`
	Reward  int64 `json:"reward"`
	Balance int64 `json:"balance"`
}

// StreakRewards — бонусы за стрики по дням.
// Индекс массива = длина серии до сегодняшнего дня (0 = первый день).
// С 7-го дня и далее — 70 монет.
var StreakRewards = []int64{10, 20, 30, 40, 50, 60, 70}

// GetReward возвращает бонус за текущий стрик.
// День 1 → 10, День 2 → 20, ..., День 7+ → 70
func GetReward(currentStreak int) int64 {
	if currentStreak < 0 {
		currentStreak = 0
	}
	if currentStreak < len(StreakRewards) {
		return StreakRewards[currentStreak]
	}
	return StreakRewards[len(StreakRewards)-1]
}
