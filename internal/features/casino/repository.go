// Package casino — repository.go хранит журнал игр и долги по выигрышам в PostgreSQL.
package casino

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository — PostgreSQL-реализация Journal.
type Repository struct {
	db   *pgxpool.Pool
	psql sq.StatementBuilderType
}

// NewRepository создаёт репозиторий казино.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// RecordPlay сохраняет результат игры в casino_plays.
func (r *Repository) RecordPlay(ctx context.Context, p Play) error {
	q := r.psql.Insert("casino_plays").
		Columns("play_id", "user_id", "game", "wager", "payout", "classification", "entry", "perk_applied", "special").
		Values(p.PlayID, p.UserID, string(p.Game), p.Wager, p.Payout, string(p.Classification), p.Entry, p.PerkApplied, string(p.Special)).
		Suffix("ON CONFLICT (play_id) DO NOTHING")

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("ошибка построения запроса: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка сохранения игры: %w", err)
	}
	return nil
}

// Stats считает статистику пользователя по журналу игр.
func (r *Repository) Stats(ctx context.Context, userID int64) (*Stats, error) {
	s := &Stats{UserID: userID}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(wager), 0)::BIGINT,
		       COALESCE(SUM(payout) FILTER (WHERE payout > 0), 0)::BIGINT,
		       COALESCE(MAX(payout) FILTER (WHERE payout > 0), 0)::BIGINT
		FROM casino_plays
		WHERE user_id = $1
	`, userID).Scan(&s.TotalSpins, &s.TotalWagered, &s.TotalWon, &s.BiggestWin)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	s.RTP = CalculateRTP(s.TotalWagered, s.TotalWon)
	return s, nil
}

// AddOwed записывает долг. Повторная запись того же play_id игнорируется.
func (r *Repository) AddOwed(ctx context.Context, o OwedPayout) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO casino_owed_payouts (play_id, user_id, amount, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (play_id) DO NOTHING
	`, o.PlayID, o.UserID, o.Amount, o.Reason)
	if err != nil {
		return fmt.Errorf("ошибка записи долга: %w", err)
	}
	return nil
}

// PendingOwed возвращает неначисленные долги, старые первыми.
func (r *Repository) PendingOwed(ctx context.Context, limit int) ([]OwedPayout, error) {
	q := r.psql.Select("id", "play_id", "user_id", "amount", "reason", "attempts", "last_error", "created_at").
		From("casino_owed_payouts").
		Where(sq.Eq{"resolved_tx_id": nil}).
		OrderBy("id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения долгов: %w", err)
	}
	defer rows.Close()

	var out []OwedPayout
	for rows.Next() {
		var o OwedPayout
		if err := rows.Scan(&o.ID, &o.PlayID, &o.UserID, &o.Amount, &o.Reason, &o.Attempts, &o.LastError, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования долга: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ResolveOwed отмечает долг начисленным.
func (r *Repository) ResolveOwed(ctx context.Context, id, txID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE casino_owed_payouts
		SET resolved_tx_id = $2, resolved_at = NOW()
		WHERE id = $1 AND resolved_tx_id IS NULL
	`, id, txID)
	if err != nil {
		return fmt.Errorf("ошибка закрытия долга: %w", err)
	}
	return nil
}

// FailOwed увеличивает счётчик попыток и сохраняет причину.
func (r *Repository) FailOwed(ctx context.Context, id int64, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE casino_owed_payouts
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("ошибка обновления долга: %w", err)
	}
	return nil
}

// CountPendingOwed возвращает число неначисленных долгов.
func (r *Repository) CountPendingOwed(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM casino_owed_payouts WHERE resolved_tx_id IS NULL`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта долгов: %w", err)
	}
	return n, nil
}
