package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/admin"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/casino"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/perks"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/streak"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/voting"
)

const testToken = "admin-secret"

// constSource всегда выбирает v (по модулю n): на колесе по умолчанию
// v=75 даёт сектор double.
type constSource struct{ v int64 }

func (s constSource) Int64N(n int64) int64 { return s.v % n }
func (s constSource) Float64() float64     { return 0.5 }

func newTestServer(t *testing.T) (*httptest.Server, *economy.Service) {
	t.Helper()

	ledger := economy.NewService(economy.NewMemoryStore())
	perkStore := perks.NewMemoryStore()
	registry, err := rewards.NewRegistry(rewards.DefaultTables()...)
	require.NoError(t, err)

	casinoSvc := casino.NewService(
		ledger,
		registry,
		rewards.NewSelector(constSource{v: 75}),
		casino.Wheel{PointerOffset: 90, MinRotations: 8, MaxRotations: 12},
		casino.GridRenderer{DiagonalShare: 0.4, MaxMissAttempts: 32},
		casino.PayoutCalculator{JackpotMultiplier: 10, DiagonalBonus: 1, MaxPayoutMultiplier: 1000},
		casino.NewPerkModifier(perkStore, "lucky_charm", nil),
		casino.NewMemoryJournal(),
		casino.Options{MinBet: 1, MaxBet: 1000, Enabled: true},
	)

	srv := New(":0", Deps{
		Ledger: ledger,
		Casino: casinoSvc,
		Voting: voting.NewService(ledger, 5, 10, time.UTC),
		Streak: streak.NewService(ledger, time.UTC),
		Admin:  admin.NewService(ledger, perkStore),
		Auth:   admin.NewAuthenticator(admin.HashToken(testToken, []byte("0123456789abcdef"))),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, ledger
}

func do(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthAndTables(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := do(t, ts, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])

	status, body = do(t, ts, http.MethodGet, "/v1/tables", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["tables"], 2)
	require.EqualValues(t, 1000, body["max_bet"])
}

func TestPlayFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := do(t, ts, http.MethodPost, "/v1/admin/users/7/give", testToken, map[string]any{"amount": 100, "reason": "старт"})
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 100, body["new_balance"])

	status, body = do(t, ts, http.MethodPost, "/v1/play", "", map[string]any{"user_id": 7, "game": "wheel", "wager": 10})
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 20, body["payout_amount"])
	require.EqualValues(t, 110, body["balance"])
	require.Equal(t, "prize", body["classification"])

	render := body["render"].(map[string]any)
	wheel := render["wheel"].(map[string]any)
	require.Contains(t, wheel, "final_angle")

	status, body = do(t, ts, http.MethodGet, "/v1/users/7/balance", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 110, body["balance"])

	status, body = do(t, ts, http.MethodGet, "/v1/users/7/transactions?limit=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	txs := body["transactions"].([]any)
	require.Len(t, txs, 2)
	require.Equal(t, economy.CategoryCasinoWin, txs[0].(map[string]any)["category"])

	status, body = do(t, ts, http.MethodGet, "/v1/users/7/transactions?category=casino_bet&direction=spending", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["transactions"], 1)

	status, body = do(t, ts, http.MethodGet, "/v1/users/7/stats", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1, body["total_spins"])
	require.EqualValues(t, 20, body["biggest_win"])
}

func TestPlayErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"insufficient funds", map[string]any{"user_id": 1, "game": "wheel", "wager": 10}, http.StatusPaymentRequired},
		{"zero wager", map[string]any{"user_id": 1, "game": "wheel", "wager": 0}, http.StatusBadRequest},
		{"unknown game", map[string]any{"user_id": 1, "game": "poker", "wager": 5}, http.StatusNotFound},
		{"unknown field", map[string]any{"user_id": 1, "bet": 5}, http.StatusBadRequest},
		{"missing user", map[string]any{"game": "wheel", "wager": 5}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, ts, http.MethodPost, "/v1/play", "", tt.body)
			require.Equal(t, tt.status, status, body)
			require.NotEmpty(t, body["error"])
		})
	}

	status, _ := do(t, ts, http.MethodGet, "/v1/users/abc/balance", "", nil)
	require.Equal(t, http.StatusBadRequest, status)
	status, _ = do(t, ts, http.MethodGet, "/v1/users/1/transactions?category=nope", "", nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestAdminAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	status, _ := do(t, ts, http.MethodPost, "/v1/admin/users/7/give", "", map[string]any{"amount": 5})
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = do(t, ts, http.MethodPost, "/v1/admin/users/7/give", "wrong", map[string]any{"amount": 5})
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = do(t, ts, http.MethodPost, "/v1/admin/users/7/give", "wrong", map[string]any{"amount": 5})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, ts, http.MethodPost, "/v1/admin/users/7/give", testToken, map[string]any{"amount": 5})
	require.Equal(t, http.StatusTooManyRequests, status)
}

func TestAdminTakeAndEntitlements(t *testing.T) {
	ts, _ := newTestServer(t)

	status, _ := do(t, ts, http.MethodPost, "/v1/admin/users/3/take", testToken, map[string]any{"amount": 5})
	require.Equal(t, http.StatusPaymentRequired, status)

	status, body := do(t, ts, http.MethodPost, "/v1/admin/users/3/entitlements", testToken,
		map[string]any{"key": "lucky_charm", "equipped": true})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["entitlements"], 1)

	status, body = do(t, ts, http.MethodGet, "/v1/admin/users/3/entitlements", testToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["entitlements"], 1)

	status, _ = do(t, ts, http.MethodPost, "/v1/admin/users/3/entitlements", testToken, map[string]any{"key": "Bad Key"})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestVotesAndDaily(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := do(t, ts, http.MethodPost, "/v1/users/1/votes", "", map[string]any{"target_id": 2})
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 5, body["balance"])

	status, _ = do(t, ts, http.MethodPost, "/v1/users/1/votes", "", map[string]any{"target_id": 2})
	require.Equal(t, http.StatusConflict, status)
	status, _ = do(t, ts, http.MethodPost, "/v1/users/1/votes", "", map[string]any{"target_id": 1})
	require.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, ts, http.MethodPost, "/v1/users/1/daily", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 10, body["reward"])
	require.EqualValues(t, 15, body["balance"])

	status, _ = do(t, ts, http.MethodPost, "/v1/users/1/daily", "", nil)
	require.Equal(t, http.StatusConflict, status)

	status, body = do(t, ts, http.MethodGet, "/v1/users/1/daily", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["claimed_today"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{common.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("ставка: %w", common.ErrInvalidWager), http.StatusBadRequest},
		{common.ErrUnknownGame, http.StatusNotFound},
		{common.ErrInsufficientFunds, http.StatusPaymentRequired},
		{common.ErrDailyAlreadyClaimed, http.StatusConflict},
		{common.ErrVoteDailyLimit, http.StatusTooManyRequests},
		{common.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: позже", common.ErrRetryable), http.StatusServiceUnavailable},
		{common.ErrPersistence, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		require.Equal(t, tt.status, status, tt.err.Error())
	}
}
