// Package economy — service.go содержит операции ledger:
// начисление, списание, корректировка, баланс и история.
package economy

import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// Service — Coin Ledger. Каждое изменение баланса — одна новая запись журнала.
type Service struct {
	store Store
}

// NewService создаёт ledger поверх хранилища.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// GetBalance возвращает текущий баланс пользователя.
// Пользователь без транзакций имеет баланс 0.
func (s *Service) GetBalance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return 0, persistence(err)
	}
	return balance, nil
}

// Credit начисляет монеты (направление earning).
func (s *Service) Credit(ctx context.Context, req CreditRequest) (*Receipt, error) {
	return s.apply(ctx, DirectionEarning, req, nil)
}

// Prepare решает, каким будет начисление, по журналу пользователя: может
// изменить req или отклонить запись ошибкой. Вызывается под блокировкой
// пользователя в хранилище, поэтому решение и запись атомарны и между
// репликами сервиса.
type Prepare func(history HistoryReader, req *Request) error

// CreditWith начисляет монеты после prepare. Ошибка prepare возвращается
// как есть, журнал не меняется.
func (s *Service) CreditWith(ctx context.Context, req CreditRequest, prepare Prepare) (*Receipt, error) {
	return s.write(ctx, DirectionEarning, req, func(_ int64, history HistoryReader, r *Request) error {
		if err := prepare(history, r); err != nil {
			return err
		}
		return r.validate()
	})
}

// Adjust начисляет монеты как корректировку (направление adjustment).
func (s *Service) Adjust(ctx context.Context, req CreditRequest) (*Receipt, error) {
	return s.apply(ctx, DirectionAdjustment, req, nil)
}

// Debit списывает монеты. Если баланс меньше суммы — ErrInsufficientFunds,
// журнал не меняется. Проверка и запись идут под одной блокировкой пользователя.
func (s *Service) Debit(ctx context.Context, req DebitRequest) (*Receipt, error) {
	return s.apply(ctx, DirectionSpending, req, func(balance int64, _ HistoryReader, r *Request) error {
		if balance < r.Amount {
			return fmt.Errorf("%w: нужно %d, есть %d", common.ErrInsufficientFunds, r.Amount, balance)
		}
		return nil
	})
}

// DebitUpTo списывает min(amount, баланс). При нулевом балансе ничего не пишет
// и возвращает (nil, nil). Используется для штрафов, которые не уводят в минус.
func (s *Service) DebitUpTo(ctx context.Context, req DebitRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var skipped bool
	tx, prev, err := s.store.Apply(ctx, req.UserID, func(balance int64, _ HistoryReader) (Transaction, error) {
		if balance <= 0 {
			skipped = true
			return Transaction{}, errSkip
		}
		capped := req
		capped.Amount = min(req.Amount, balance)
		return capped.transaction(DirectionSpending), nil
	})
	if skipped {
		return nil, nil
	}
	if err != nil {
		return nil, persistence(err)
	}
	s.logApplied(tx, prev)
	return &Receipt{TransactionID: tx.ID, PreviousBalance: prev, NewBalance: prev + tx.Signed()}, nil
}

var errSkip = errors.New("skip")

type checkFunc func(balance int64, history HistoryReader, req *Request) error

func (s *Service) apply(ctx context.Context, direction Direction, req Request, check checkFunc) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.write(ctx, direction, req, check)
}

// write записывает транзакцию. Ошибки check и переполнение баланса
// возвращаются как есть, остальные оборачиваются в ErrPersistence.
func (s *Service) write(ctx context.Context, direction Direction, req Request, check checkFunc) (*Receipt, error) {
	var rejected error
	tx, prev, err := s.store.Apply(ctx, req.UserID, func(balance int64, history HistoryReader) (Transaction, error) {
		r := req
		if check != nil {
			reader := historyFunc(func(filter Filter) ([]Transaction, error) {
				txs, err := history.List(filter)
				if err != nil {
					return nil, persistence(err)
				}
				return txs, nil
			})
			if err := check(balance, reader, &r); err != nil {
				rejected = err
				return Transaction{}, err
			}
		}
		if direction != DirectionSpending && balance > math.MaxInt64-r.Amount {
			rejected = fmt.Errorf("%w: баланс %d + %d не помещается в int64", common.ErrInvalidAmount, balance, r.Amount)
			return Transaction{}, rejected
		}
		return r.transaction(direction), nil
	})
	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		return nil, persistence(err)
	}

	s.logApplied(tx, prev)
	return &Receipt{
		TransactionID:   tx.ID,
		PreviousBalance: prev,
		NewBalance:      prev + tx.Signed(),
	}, nil
}

// History возвращает транзакции по фильтру (от новых к старым).
func (s *Service) History(ctx context.Context, filter Filter) ([]Transaction, error) {
	txs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, persistence(err)
	}
	return txs, nil
}

func (s *Service) logApplied(tx Transaction, prev int64) {
	log.WithFields(log.Fields{
		"user_id":   tx.UserID,
		"tx_id":     tx.ID,
		"direction": tx.Direction,
		"category":  tx.Category,
		"amount":    tx.Amount,
		"balance":   prev + tx.Signed(),
	}).Debug("Транзакция записана")
}

func persistence(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrPersistence, err)
}
