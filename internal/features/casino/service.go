// Package casino — service.go координирует игру от ставки до выплаты.
package casino

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
)

// SourceCasino — источник транзакций казино.
const SourceCasino = "casino"

// settleTimeout ограничивает записи после списания ставки. Они идут
// на контексте без отмены: ставка уже списана и должна быть либо
// разыграна, либо возвращена, либо записана в долг.
const settleTimeout = 10 * time.Second

// Options — ограничения ставок и флаг включения.
type Options struct {
	MinBet  int64
	MaxBet  int64
	Enabled bool
}

// Service управляет казино.
type Service struct {
	ledger   *economy.Service
	registry *rewards.Registry
	selector *rewards.Selector
	wheel    Wheel
	grid     GridRenderer
	calc     PayoutCalculator
	perks    *PerkModifier
	journal  Journal
	opts     Options
}

// NewService создаёт сервис казино.
func NewService(
	ledger *economy.Service,
	registry *rewards.Registry,
	selector *rewards.Selector,
	wheel Wheel,
	grid GridRenderer,
	calc PayoutCalculator,
	perks *PerkModifier,
	journal Journal,
	opts Options,
) *Service {
	return &Service{
		ledger:   ledger,
		registry: registry,
		selector: selector,
		wheel:    wheel,
		grid:     grid,
		calc:     calc,
		perks:    perks,
		journal:  journal,
		opts:     opts,
	}
}

// Tables возвращает загруженные таблицы наград.
func (s *Service) Tables() []*rewards.Table {
	return s.registry.All()
}

// Limits возвращает минимальную и максимальную ставку.
func (s *Service) Limits() (int64, int64) {
	return s.opts.MinBet, s.opts.MaxBet
}

// Play выполняет полный цикл игры: ставка, выбор исхода, перки, рендер,
// выплата. Выбор делается ровно один раз; рендер и выплата выводятся из него.
func (s *Service) Play(ctx context.Context, req PlayRequest) (*Outcome, error) {
	if !s.opts.Enabled {
		return nil, common.ErrCasinoDisabled
	}
	if req.Wager <= 0 || req.Wager < s.opts.MinBet || req.Wager > s.opts.MaxBet {
		return nil, fmt.Errorf("%w: %d, допустимо от %d до %d", common.ErrInvalidWager, req.Wager, s.opts.MinBet, s.opts.MaxBet)
	}
	table, err := s.registry.Get(req.Game)
	if err != nil {
		return nil, err
	}

	playID := uuid.New()
	logger := log.WithFields(log.Fields{
		"user_id": req.UserID,
		"play_id": playID.String(),
		"game":    req.Game,
		"wager":   req.Wager,
	})

	// Списываем ставку
	bet, err := s.ledger.Debit(ctx, economy.DebitRequest{
		UserID:          req.UserID,
		Amount:          req.Wager,
		Category:        economy.CategoryCasinoBet,
		Description:     fmt.Sprintf("Ставка: %s", req.Game),
		Metadata:        playMetadata(playID, req.Game),
		RelatedEntityID: playID.String(),
		Source:          SourceCasino,
	})
	if err != nil {
		return nil, err
	}
	balance := bet.NewBalance

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	out, err := s.resolve(ctx, req, table)
	if err != nil {
		logger.WithError(err).Error("Ошибка розыгрыша, возвращаем ставку")
		s.refund(settleCtx, req, playID)
		return nil, fmt.Errorf("ошибка розыгрыша: %w", err)
	}
	out.PlayID = playID

	// Выплата
	switch {
	case out.PayoutAmount > 0:
		win, err := s.ledger.Credit(settleCtx, economy.CreditRequest{
			UserID:          req.UserID,
			Amount:          out.PayoutAmount,
			Category:        economy.CategoryCasinoWin,
			Description:     fmt.Sprintf("Выигрыш: %s", req.Game),
			Metadata:        playMetadata(playID, req.Game),
			RelatedEntityID: playID.String(),
			Source:          SourceCasino,
		})
		if err != nil {
			s.recordOwed(settleCtx, req.UserID, playID, out.PayoutAmount, err)
			s.recordPlay(settleCtx, req.UserID, out)
			return nil, fmt.Errorf("%w: выигрыш %d будет начислен позже: %w", common.ErrRetryable, out.PayoutAmount, err)
		}
		balance = win.NewBalance

	case out.PayoutAmount < 0:
		penalty, err := s.ledger.DebitUpTo(settleCtx, economy.DebitRequest{
			UserID:          req.UserID,
			Amount:          -out.PayoutAmount,
			Category:        economy.CategoryCasinoPenalty,
			Description:     "Штрафной сектор колеса",
			Metadata:        playMetadata(playID, req.Game),
			RelatedEntityID: playID.String(),
			Source:          SourceCasino,
		})
		switch {
		case err != nil:
			logger.WithError(err).Error("Ошибка списания штрафа")
			out.PayoutAmount = 0
		case penalty == nil:
			out.PayoutAmount = 0
		default:
			out.PayoutAmount = penalty.NewBalance - penalty.PreviousBalance
			balance = penalty.NewBalance
		}
	}

	s.recordPlay(settleCtx, req.UserID, out)

	if current, err := s.ledger.GetBalance(settleCtx, req.UserID); err == nil {
		balance = current
	} else {
		logger.WithError(err).Warn("Не удалось перечитать баланс")
	}
	out.Balance = balance

	logger.WithFields(log.Fields{
		"payout":         out.PayoutAmount,
		"classification": out.Classification,
		"perk":           out.PerkApplied,
	}).Info("Игра завершена")
	return out, nil
}

// resolve выбирает исход, применяет перки, строит рендер и считает выплату.
// Ничего не пишет в ledger.
func (s *Service) resolve(ctx context.Context, req PlayRequest, table *rewards.Table) (*Outcome, error) {
	sel, err := s.selector.Select(table)
	if err != nil {
		return nil, err
	}
	sel, perk, err := s.perks.Protect(ctx, req.UserID, table, sel)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Game:          req.Game,
		Wager:         req.Wager,
		SelectedIndex: sel.Index,
		PerkApplied:   perk,
	}
	if !sel.Miss {
		entry := sel.Entry
		out.SelectedEntry = &entry
		out.Special = entry.Special
	}

	switch table.Game {
	case rewards.GameSlots:
		err = s.resolveSlots(table, sel, out)
	case rewards.GameWheel:
		err = s.resolveWheel(sel, table, out)
	default:
		err = fmt.Errorf("%w: %s", common.ErrUnknownGame, table.Game)
	}
	if err != nil {
		return nil, err
	}

	boosted, boosts, err := s.perks.Boost(ctx, req.UserID, out.PayoutAmount)
	if err != nil {
		return nil, err
	}
	// Лимит выплаты действует и после бонусов перков.
	var capped bool
	out.PayoutAmount, capped = s.calc.Cap(boosted, out.Wager)
	out.Capped = out.Capped || capped
	out.Boosts = boosts
	out.Win = out.PayoutAmount > 0
	return out, nil
}

func (s *Service) resolveSlots(table *rewards.Table, sel rewards.Selection, out *Outcome) error {
	grid, err := s.grid.Render(table, sel, s.selector.Source())
	if err != nil {
		return err
	}
	res := s.calc.Calculate(grid, out.Wager, table)

	// Рендер обязан совпадать с выбором: выигрыш — есть линия, промах — нет.
	if sel.Miss != (len(res.Lines) == 0) {
		return fmt.Errorf("рассинхронизация сетки: промах=%t, линий=%d", sel.Miss, len(res.Lines))
	}

	out.Render = Render{Grid: &grid}
	out.Lines = res.Lines
	out.PayoutAmount = res.Amount
	out.Capped = res.Capped
	out.Classification = res.Classification
	return nil
}

func (s *Service) resolveWheel(sel rewards.Selection, table *rewards.Table, out *Outcome) error {
	if sel.Miss {
		return fmt.Errorf("%w: таблица %s: колесо не может промахнуться", common.ErrConfiguration, table.Name)
	}
	render, err := s.wheel.Render(sel.Index, len(table.Entries), s.selector.Source())
	if err != nil {
		return err
	}

	out.Render = Render{Wheel: &render}
	out.PayoutAmount = sel.Entry.PayoutValue * out.Wager
	switch {
	case out.PayoutAmount > 0:
		out.Classification = ClassPrize
	case sel.Entry.IsPenalty():
		out.Classification = ClassPenalty
	default:
		out.Classification = ClassLoss
	}
	return nil
}

// Stats возвращает статистику казино пользователя.
func (s *Service) Stats(ctx context.Context, userID int64) (*Stats, error) {
	stats, err := s.journal.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return stats, nil
}

func (s *Service) refund(ctx context.Context, req PlayRequest, playID uuid.UUID) {
	_, err := s.ledger.Credit(ctx, economy.CreditRequest{
		UserID:          req.UserID,
		Amount:          req.Wager,
		Category:        economy.CategoryCasinoRefund,
		Description:     "Возврат ставки",
		Metadata:        playMetadata(playID, req.Game),
		RelatedEntityID: playID.String(),
		Source:          SourceCasino,
	})
	if err != nil {
		s.recordOwed(ctx, req.UserID, playID, req.Wager, err)
	}
}

func (s *Service) recordOwed(ctx context.Context, userID int64, playID uuid.UUID, amount int64, cause error) {
	entry := log.WithFields(log.Fields{
		"component": "reconcile",
		"user_id":   userID,
		"play_id":   playID.String(),
		"amount":    amount,
	}).WithError(cause)

	err := s.journal.AddOwed(ctx, OwedPayout{
		PlayID: playID,
		UserID: userID,
		Amount: amount,
		Reason: cause.Error(),
	})
	if err != nil {
		entry.WithField("journal_error", err.Error()).Error("Несоответствие: выплата не начислена и долг не записан")
		return
	}
	entry.Error("Несоответствие: выплата не начислена, записан долг")
}

func (s *Service) recordPlay(ctx context.Context, userID int64, out *Outcome) {
	p := Play{
		PlayID:         out.PlayID,
		UserID:         userID,
		Game:           out.Game,
		Wager:          out.Wager,
		Payout:         out.PayoutAmount,
		Classification: out.Classification,
		PerkApplied:    out.PerkApplied,
		Special:        out.Special,
	}
	if out.SelectedEntry != nil {
		p.Entry = out.SelectedEntry.Name
	}
	if err := s.journal.RecordPlay(ctx, p); err != nil {
		log.WithError(err).WithField("play_id", out.PlayID.String()).Warn("Ошибка сохранения игры")
	}
}

func playMetadata(playID uuid.UUID, game rewards.Game) economy.Metadata {
	return economy.Metadata{"play_id": playID.String(), "game": string(game)}
}
