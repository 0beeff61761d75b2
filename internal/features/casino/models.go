// Package casino реализует мини-игры на монеты: слоты 3×3 и колесо призов.
// Обе игры используют один Selector из пакета rewards; рендер (угол колеса,
// сетка) однозначно воспроизводит выбранный исход.
// models.go описывает исход игры, журнал и статистику.
package casino

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
)

// PlayRequest — запрос на одну игру.
type PlayRequest struct {
	UserID int64        `json:"user_id"`
	Wager  int64        `json:"wager"`
	Game   rewards.Game `json:"game"`
}

// Render — параметры отображения исхода: ровно одно из полей заполнено.
type Render struct {
	Wheel *WheelRender `json:"wheel,omitempty"`
	Grid  *Grid        `json:"grid,omitempty"`
}

// Outcome — результат одной игры.
type Outcome struct {
	PlayID         uuid.UUID       `json:"play_id"`
	Game           rewards.Game    `json:"game"`
	Wager          int64           `json:"wager"`
	SelectedIndex  int             `json:"selected_index"`
	SelectedEntry  *rewards.Entry  `json:"selected_entry,omitempty"` // nil при проигрышном спине слотов
	Render         Render          `json:"render"`
	Lines          []LineWin       `json:"lines,omitempty"`
	Win            bool            `json:"win"`
	PayoutAmount   int64           `json:"payout_amount"` // < 0 только для штрафа без защиты
	Classification Classification  `json:"classification"`
	PerkApplied    string          `json:"perk_applied,omitempty"`
	Boosts         []string        `json:"boosts,omitempty"`
	Capped         bool            `json:"capped,omitempty"` // выплата урезана лимитом
	Special        rewards.Special `json:"special,omitempty"`
	Balance        int64           `json:"balance"`
}

// Play — запись журнала игр.
type Play struct {
	PlayID         uuid.UUID
	UserID         int64
	Game           rewards.Game
	Wager          int64
	Payout         int64
	Classification Classification
	Entry          string
	PerkApplied    string
	Special        rewards.Special
	CreatedAt      time.Time
}

// OwedPayout — выигрыш, который не удалось начислить сразу.
// Его начисляет задача сверки (Reconciler).
type OwedPayout struct {
	ID           int64
	PlayID       uuid.UUID
	UserID       int64
	Amount       int64
	Reason       string
	Attempts     int
	LastError    string
	ResolvedTxID *int64
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// Stats — статистика казино пользователя.
type Stats struct {
	UserID       int64   `json:"user_id"`
	TotalSpins   int64   `json:"total_spins"`
	TotalWagered int64   `json:"total_wagered"`
	TotalWon     int64   `json:"total_won"`
	BiggestWin   int64   `json:"biggest_win"`
	RTP          float64 `json:"rtp"` // Проценты
}

// CalculateRTP — (выиграно / поставлено) × 100%. Без ставок — 0.
func CalculateRTP(totalWagered, totalWon int64) float64 {
	if totalWagered == 0 {
		return 0
	}
	return float64(totalWon) / float64(totalWagered) * 100
}

// Journal — журнал игр и долгов по выигрышам.
type Journal interface {
	RecordPlay(ctx context.Context, p Play) error
	Stats(ctx context.Context, userID int64) (*Stats, error)

	AddOwed(ctx context.Context, o OwedPayout) error
	PendingOwed(ctx context.Context, limit int) ([]OwedPayout, error)
	ResolveOwed(ctx context.Context, id, txID int64) error
	FailOwed(ctx context.Context, id int64, reason string) error
	CountPendingOwed(ctx context.Context) (int64, error)
}
