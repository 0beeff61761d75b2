// Package admin реализует админ-операции: ручные начисления и списания,
// выдачу перков. Доступ — по токену, хеш которого (Argon2id) лежит в конфиге.
// models.go описывает запросы админ-операций.
package admin

// AdjustRequest — ручное начисление или списание.
type AdjustRequest struct {
	UserID int64  `json:"-"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// EntitlementRequest — выдача, снятие или отзыв перка.
type EntitlementRequest struct {
	UserID   int64  `json:"-"`
	Key      string `json:"key"`
	Equipped bool   `json:"equipped"`
	Revoke   bool   `json:"revoke"`
}

// Ограничения входа: после MaxFailedAttempts неудач за LockoutWindow
// клиент блокируется до конца окна.
const (
	MaxFailedAttempts = 3
	LockoutSeconds    = 60 * 60
)

// SourceAdmin — источник админ-транзакций.
const SourceAdmin = "admin"
