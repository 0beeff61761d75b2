package economy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*telego.SendMessageParams
}

func (r *recordingSender) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, params)
	return &telego.Message{}, nil
}

func (r *recordingSender) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1].Text
}

func TestHandleBalance(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())
	sender := &recordingSender{}
	h := NewHandler(svc, sender, time.UTC)

	_, err := svc.Credit(ctx, credit(9, 2350))
	require.NoError(t, err)

	h.HandleBalance(ctx, 100, 9)
	require.Equal(t, "💰 Баланс: 2 350 coins", sender.last())
	require.Equal(t, int64(100), sender.sent[0].ChatID.ID)
}

func TestFormatHistory(t *testing.T) {
	require.Equal(t, "📋 У вас пока нет транзакций", FormatHistory(nil, time.UTC))

	ts := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)
	text := FormatHistory([]Transaction{
		{Direction: DirectionSpending, Category: CategoryCasinoBet, Amount: 10, CreatedAt: ts},
		{Direction: DirectionEarning, Category: CategoryVoting, Amount: 5, Description: "Голос", CreatedAt: ts},
	}, time.UTC)

	require.Contains(t, text, "1. 01.05.2026 12:30 | -10 coins | casino_bet")
	require.Contains(t, text, "2. 01.05.2026 12:30 | +5 coins | Голос")
}
