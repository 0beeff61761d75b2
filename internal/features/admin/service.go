// Package admin — service.go выполняет ручные корректировки баланса и перков.
package admin

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/perks"
)

// Service выполняет админ-операции.
type Service struct {
	ledger *economy.Service
	perks  perks.Store
}

// NewService создаёт сервис админ-операций.
func NewService(ledger *economy.Service, perkStore perks.Store) *Service {
	return &Service{ledger: ledger, perks: perkStore}
}

// Give начисляет монеты корректировкой (admin_give).
func (s *Service) Give(ctx context.Context, req AdjustRequest) (*economy.Receipt, error) {
	receipt, err := s.ledger.Adjust(ctx, economy.CreditRequest{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Category:    economy.CategoryAdminGive,
		Description: describe("Начисление администратором", req.Reason),
		Source:      SourceAdmin,
	})
	if err != nil {
		return nil, err
	}
	s.audit("give", req, receipt)
	return receipt, nil
}

// Take списывает монеты (admin_take). Баланс не уходит в минус:
// при нехватке — ErrInsufficientFunds.
func (s *Service) Take(ctx context.Context, req AdjustRequest) (*economy.Receipt, error) {
	receipt, err := s.ledger.Debit(ctx, economy.DebitRequest{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Category:    economy.CategoryAdminTake,
		Description: describe("Списание администратором", req.Reason),
		Source:      SourceAdmin,
	})
	if err != nil {
		return nil, err
	}
	s.audit("take", req, receipt)
	return receipt, nil
}

// SetEntitlement выдаёт, надевает/снимает или отзывает перк.
// Возвращает актуальный список перков пользователя.
func (s *Service) SetEntitlement(ctx context.Context, req EntitlementRequest) ([]perks.Entitlement, error) {
	if err := perks.ValidateKey(req.Key); err != nil {
		return nil, err
	}

	var err error
	if req.Revoke {
		err = s.perks.Revoke(ctx, req.UserID, req.Key)
	} else {
		err = s.perks.Grant(ctx, req.UserID, req.Key, req.Equipped)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка изменения перка: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":  req.UserID,
		"key":      req.Key,
		"equipped": req.Equipped,
		"revoke":   req.Revoke,
	}).Info("Админ изменил перк")

	return s.Entitlements(ctx, req.UserID)
}

// Entitlements возвращает перки пользователя.
func (s *Service) Entitlements(ctx context.Context, userID int64) ([]perks.Entitlement, error) {
	list, err := s.perks.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения перков: %w", err)
	}
	return list, nil
}

func (s *Service) audit(action string, req AdjustRequest, receipt *economy.Receipt) {
	log.WithFields(log.Fields{
		"action":  action,
		"user_id": req.UserID,
		"amount":  req.Amount,
		"reason":  req.Reason,
		"tx_id":   receipt.TransactionID,
		"balance": receipt.NewBalance,
	}).Info("Админ-корректировка")
}

func describe(prefix, reason string) string {
	if reason == "" {
		return prefix
	}
	return prefix + ": " + reason
}
