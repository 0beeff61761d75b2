package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

const maxBodyBytes = 1 << 20

// errorResponse — тело ответа с ошибкой.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Ошибка записи ответа")
	}
}

// decode читает JSON-тело запроса; неизвестные поля — ошибка.
func decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("некорректное тело запроса: %w", err)
	}
	return v, nil
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный id пользователя %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"})
}

// statusFor сопоставляет доменную ошибку HTTP-статусу и коду.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrInvalidCategory),
		errors.Is(err, common.ErrInvalidMetadata),
		errors.Is(err, common.ErrInvalidWager),
		errors.Is(err, common.ErrVoteSelf):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, common.ErrUnknownGame):
		return http.StatusNotFound, "unknown_game"
	case errors.Is(err, common.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, common.ErrVoteAlreadyGiven),
		errors.Is(err, common.ErrDailyAlreadyClaimed):
		return http.StatusConflict, "conflict"
	case errors.Is(err, common.ErrVoteDailyLimit),
		errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too_many_requests"
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrRetryable):
		return http.StatusServiceUnavailable, "retryable"
	case errors.Is(err, common.ErrCasinoDisabled):
		return http.StatusServiceUnavailable, "disabled"
	case errors.Is(err, common.ErrPersistence):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError пишет ответ по доменной ошибке. 5xx логируются.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
		}).Error("Ошибка обработки запроса")
	}
	if status == http.StatusServiceUnavailable && code == "retryable" {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}
