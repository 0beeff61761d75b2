// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование сумм, работа с часовым поясом, блокировки по ключу.
package common

import (
	"fmt"
	"time"
)

// PluralizeCoins возвращает правильную форму слова «coin» для числа n.
//
// Примеры:
//
//	PluralizeCoins(1)  → "coin"
//	PluralizeCoins(-1) → "coin"
//	PluralizeCoins(5)  → "coins"
func PluralizeCoins(n int64) string {
	if n == 1 || n == -1 {
		return "coin"
	}
	return "coins"
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
//
// Правила:
//   - 1, 21, 31 → "день"
//   - 2-4, 22-24 → "дня"
//   - 5-20, 25-30 → "дней"
func PluralizeDays(n int) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}

// FormatBalance форматирует баланс в читабельную строку.
// Пример: FormatBalance(2350) → "2 350 coins"
func FormatBalance(balance int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(balance), PluralizeCoins(balance))
}

// FormatSignedAmount создаёт строку вида "+100 coins" или "-50 coins".
func FormatSignedAmount(amount int64) string {
	if amount >= 0 {
		return "+" + FormatBalance(amount)
	}
	return FormatBalance(amount)
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}

// LoadLocation возвращает часовой пояс по имени.
// Если tzdata недоступна — используем UTC, чтобы сервис не падал.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDay возвращает полночь дня t в часовом поясе loc.
// Используется для суточных лимитов (голоса, ежедневный бонус).
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется для отображения дат транзакций.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}
