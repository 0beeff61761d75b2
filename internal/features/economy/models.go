// Package economy управляет виртуальной валютой (coins).
// Баланс нигде не хранится как источник истины: он всегда равен свёртке
// неизменяемого журнала транзакций.
// models.go описывает транзакции, направления, категории и метаданные.
package economy

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// Direction — направление движения монет.
type Direction string

const (
	DirectionEarning    Direction = "earning"    // Начисление
	DirectionSpending   Direction = "spending"   // Списание
	DirectionAdjustment Direction = "adjustment" // Корректировка админом (в плюс)
)

// Valid сообщает, известно ли направление.
func (d Direction) Valid() bool {
	switch d {
	case DirectionEarning, DirectionSpending, DirectionAdjustment:
		return true
	}
	return false
}

// Sign возвращает знак, с которым сумма входит в баланс.
func (d Direction) Sign() int64 {
	if d == DirectionSpending {
		return -1
	}
	return 1
}

// Категории транзакций. Список не закрытый: допускается любое значение
// в snake_case, но подсистемы сервиса используют только эти.
const (
	CategoryVoting           = "voting"            // Награда за голос
	CategoryDailyBonus       = "daily_bonus"       // Ежедневный бонус
	CategoryCasinoBet        = "casino_bet"        // Ставка в казино
	CategoryCasinoWin        = "casino_win"        // Выигрыш в казино
	CategoryCasinoRefund     = "casino_refund"     // Возврат ставки (ошибка)
	CategoryCasinoPenalty    = "casino_penalty"    // Штрафной сектор колеса
	CategoryStorePurchase    = "store_purchase"    // Покупка в магазине
	CategoryDiscountPurchase = "discount_purchase" // Покупка скидки
	CategoryAdminGive        = "admin_give"        // Выдача админом
	CategoryAdminTake        = "admin_take"        // Изъятие админом
	CategoryTransfer         = "transfer"          // Перевод
)

// SourceCore — источник по умолчанию.
const SourceCore = "core"

var (
	categoryPattern    = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
	metadataKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
)

// Ограничения метаданных
const (
	MaxMetadataKeys     = 32
	MaxMetadataValueLen = 512
)

// Metadata — дополнительные поля транзакции (play_id, game, target и т.д.).
type Metadata map[string]string

// Validate проверяет ключи и значения метаданных.
func (m Metadata) Validate() error {
	if len(m) > MaxMetadataKeys {
		return fmt.Errorf("%w: больше %d ключей", common.ErrInvalidMetadata, MaxMetadataKeys)
	}
	for k, v := range m {
		if !metadataKeyPattern.MatchString(k) {
			return fmt.Errorf("%w: ключ %q", common.ErrInvalidMetadata, k)
		}
		if !utf8.ValidString(v) || utf8.RuneCountInString(v) > MaxMetadataValueLen {
			return fmt.Errorf("%w: значение ключа %q", common.ErrInvalidMetadata, k)
		}
	}
	return nil
}

// ValidateCategory проверяет формат категории.
func ValidateCategory(category string) error {
	if !categoryPattern.MatchString(category) {
		return fmt.Errorf("%w: %q", common.ErrInvalidCategory, category)
	}
	return nil
}

// Transaction — одна запись журнала. После записи никогда не меняется.
type Transaction struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Direction       Direction `json:"direction"`
	Category        string    `json:"category"`
	Amount          int64     `json:"amount"` // Всегда > 0
	Description     string    `json:"description"`
	Metadata        Metadata  `json:"metadata,omitempty"`
	RelatedEntityID string    `json:"related_entity_id,omitempty"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

// Signed возвращает сумму со знаком направления.
func (t Transaction) Signed() int64 {
	return t.Direction.Sign() * t.Amount
}

// Receipt — результат успешной операции.
type Receipt struct {
	TransactionID   int64 `json:"transaction_id"`
	PreviousBalance int64 `json:"previous_balance"`
	NewBalance      int64 `json:"new_balance"`
}

// Request — параметры начисления или списания.
type Request struct {
	UserID          int64
	Amount          int64
	Category        string
	Description     string
	Metadata        Metadata
	RelatedEntityID string
	Source          string // Пусто — SourceCore
}

type (
	CreditRequest = Request
	DebitRequest  = Request
)

func (r Request) validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("%w: %d", common.ErrInvalidAmount, r.Amount)
	}
	if err := ValidateCategory(r.Category); err != nil {
		return err
	}
	return r.Metadata.Validate()
}

func (r Request) transaction(direction Direction) Transaction {
	source := r.Source
	if source == "" {
		source = SourceCore
	}
	return Transaction{
		UserID:          r.UserID,
		Direction:       direction,
		Category:        r.Category,
		Amount:          r.Amount,
		Description:     r.Description,
		Metadata:        r.Metadata,
		RelatedEntityID: r.RelatedEntityID,
		Source:          source,
	}
}

// Filter — выборка истории. Результат всегда отсортирован от новых к старым.
type Filter struct {
	UserID          int64
	Categories      []string  // Пусто — любые
	Direction       Direction // Пусто — любое
	RelatedEntityID string
	Since           time.Time // Нулевое — без ограничения
	Limit           int       // 0 — без ограничения
}

// Match сообщает, подходит ли транзакция под фильтр (кроме Limit).
func (f Filter) Match(t Transaction) bool {
	if f.UserID != 0 && t.UserID != f.UserID {
		return false
	}
	if f.Direction != "" && t.Direction != f.Direction {
		return false
	}
	if f.RelatedEntityID != "" && t.RelatedEntityID != f.RelatedEntityID {
		return false
	}
	if !f.Since.IsZero() && t.CreatedAt.Before(f.Since) {
		return false
	}
	if len(f.Categories) > 0 {
		for _, c := range f.Categories {
			if c == t.Category {
				return true
			}
		}
		return false
	}
	return true
}
