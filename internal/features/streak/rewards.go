// Package streak — rewards.go вычисляет серию по истории бонусов.
package streak

import (
	"fmt"
	"time"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

const dayKeyLayout = "2006-01-02"

// FormatRewardDescription создаёт описание для транзакции бонуса.
// Пример: "Daily bonus - Day 8"
func FormatRewardDescription(day int) string {
	return fmt.Sprintf("Daily bonus - Day %d", day)
}

// countStreak считает серию подряд идущих дней с бонусом, заканчивающуюся
// в день from (включительно). claims — моменты получения бонусов.
func countStreak(claims []time.Time, from time.Time, loc *time.Location) int {
	days := make(map[string]struct{}, len(claims))
	for _, c := range claims {
		days[c.In(loc).Format(dayKeyLayout)] = struct{}{}
	}

	n := 0
	for d := common.StartOfDay(from, loc); ; d = d.AddDate(0, 0, -1) {
		if _, ok := days[d.Format(dayKeyLayout)]; !ok {
			return n
		}
		n++
	}
}
