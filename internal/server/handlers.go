package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/admin"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/casino"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/perks"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type balanceResponse struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

type voteRequest struct {
	TargetID int64 `json:"target_id"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		if err := s.deps.Ping(r.Context()); err != nil {
			writeError(w, r, fmt.Errorf("%w: %w", common.ErrPersistence, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) tables(w http.ResponseWriter, r *http.Request) {
	minBet, maxBet := s.deps.Casino.Limits()
	writeJSON(w, http.StatusOK, map[string]any{
		"tables":  s.deps.Casino.Tables(),
		"min_bet": minBet,
		"max_bet": maxBet,
	})
}

func (s *Server) play(w http.ResponseWriter, r *http.Request) {
	req, err := decode[casino.PlayRequest](r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.UserID <= 0 {
		writeBadRequest(w, fmt.Errorf("некорректный user_id %d", req.UserID))
		return
	}
	if s.deps.RateLimiter != nil && !s.deps.RateLimiter.Allow(req.UserID) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "слишком много игр, подождите", Code: "rate_limited"})
		return
	}

	out, err := s.deps.Casino.Play(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	balance, err := s.deps.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{UserID: userID, Balance: balance})
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	filter, err := historyFilter(userID, r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	txs, err := s.deps.Ledger.History(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []economy.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// historyFilter читает ?category=a,b&direction=&related_entity_id=&since=RFC3339&limit=
func historyFilter(userID int64, r *http.Request) (economy.Filter, error) {
	q := r.URL.Query()
	filter := economy.Filter{
		UserID:          userID,
		RelatedEntityID: q.Get("related_entity_id"),
		Limit:           defaultHistoryLimit,
	}

	for _, raw := range q["category"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c == "" {
				continue
			}
			if err := economy.ValidateCategory(c); err != nil {
				return filter, err
			}
			filter.Categories = append(filter.Categories, c)
		}
	}

	if d := q.Get("direction"); d != "" {
		filter.Direction = economy.Direction(d)
		if !filter.Direction.Valid() {
			return filter, fmt.Errorf("некорректное направление %q", d)
		}
	}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filter, fmt.Errorf("некорректный since: %w", err)
		}
		filter.Since = t
	}

	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("некорректный limit %q", l)
		}
		filter.Limit = min(n, maxHistoryLimit)
	}
	return filter, nil
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	stats, err := s.deps.Casino.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) vote(w http.ResponseWriter, r *http.Request) {
	if s.deps.Voting == nil {
		writeFeatureDisabled(w)
		return
	}
	voterID, err := userIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req, err := decode[voteRequest](r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	v, err := s.deps.Voting.Vote(r.Context(), voterID, req.TargetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) dailyStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Streak == nil {
		writeFeatureDisabled(w)
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	status, err := s.deps.Streak.GetStatus(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) claimDaily(w http.ResponseWriter, r *http.Request) {
	if s.deps.Streak == nil {
		writeFeatureDisabled(w)
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	claim, err := s.deps.Streak.ClaimDaily(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (s *Server) adminGive(w http.ResponseWriter, r *http.Request) {
	s.adminAdjust(w, r, s.deps.Admin.Give)
}

func (s *Server) adminTake(w http.ResponseWriter, r *http.Request) {
	s.adminAdjust(w, r, s.deps.Admin.Take)
}

func (s *Server) adminAdjust(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, req admin.AdjustRequest) (*economy.Receipt, error),
) {
	userID, err := userIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req, err := decode[admin.AdjustRequest](r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req.UserID = userID

	receipt, err := op(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) adminEntitlements(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	list, err := s.deps.Admin.Entitlements(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entitlements": nonNil(list)})
}

func (s *Server) adminSetEntitlement(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req, err := decode[admin.EntitlementRequest](r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req.UserID = userID
	if err := perks.ValidateKey(req.Key); err != nil {
		writeBadRequest(w, err)
		return
	}

	list, err := s.deps.Admin.SetEntitlement(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entitlements": nonNil(list)})
}

func writeFeatureDisabled(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "функция отключена", Code: "disabled"})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
