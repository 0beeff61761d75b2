package casino

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// SQLiteJournal — Journal поверх SQLite.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteJournal создаёт журнал поверх открытой базы с применёнными миграциями.
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db, now: time.Now}
}

// RecordPlay см. Journal.
func (j *SQLiteJournal) RecordPlay(ctx context.Context, p Play) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = j.now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO casino_plays
			(play_id, user_id, game, wager, payout, classification, entry, perk_applied, special, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PlayID.String(), p.UserID, string(p.Game), p.Wager, p.Payout,
		string(p.Classification), p.Entry, p.PerkApplied, string(p.Special), p.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения игры: %w", err)
	}
	return nil
}

// Stats см. Journal.
func (j *SQLiteJournal) Stats(ctx context.Context, userID int64) (*Stats, error) {
	s := &Stats{UserID: userID}
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(wager), 0),
		       COALESCE(SUM(CASE WHEN payout > 0 THEN payout ELSE 0 END), 0),
		       COALESCE(MAX(CASE WHEN payout > 0 THEN payout ELSE 0 END), 0)
		FROM casino_plays
		WHERE user_id = ?`, userID,
	).Scan(&s.TotalSpins, &s.TotalWagered, &s.TotalWon, &s.BiggestWin)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	s.RTP = CalculateRTP(s.TotalWagered, s.TotalWon)
	return s, nil
}

// AddOwed см. Journal.
func (j *SQLiteJournal) AddOwed(ctx context.Context, o OwedPayout) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = j.now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO casino_owed_payouts (play_id, user_id, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.PlayID.String(), o.UserID, o.Amount, o.Reason, o.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ошибка записи долга: %w", err)
	}
	return nil
}

// PendingOwed см. Journal.
func (j *SQLiteJournal) PendingOwed(ctx context.Context, limit int) ([]OwedPayout, error) {
	q := sq.Select("id", "play_id", "user_id", "amount", "reason", "attempts", "last_error", "created_at").
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
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения долгов: %w", err)
	}
	defer rows.Close()

	var out []OwedPayout
	for rows.Next() {
		var (
			o       OwedPayout
			playID  string
			created int64
		)
		if err := rows.Scan(&o.ID, &playID, &o.UserID, &o.Amount, &o.Reason, &o.Attempts, &o.LastError, &created); err != nil {
			return nil, fmt.Errorf("ошибка сканирования долга: %w", err)
		}
		if o.PlayID, err = uuid.Parse(playID); err != nil {
			return nil, fmt.Errorf("некорректный play_id %q: %w", playID, err)
		}
		o.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

// ResolveOwed см. Journal.
func (j *SQLiteJournal) ResolveOwed(ctx context.Context, id, txID int64) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE casino_owed_payouts
		SET resolved_tx_id = ?, resolved_at = ?
		WHERE id = ? AND resolved_tx_id IS NULL`,
		txID, j.now().UTC().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("ошибка закрытия долга: %w", err)
	}
	return nil
}

// FailOwed см. Journal.
func (j *SQLiteJournal) FailOwed(ctx context.Context, id int64, reason string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE casino_owed_payouts SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		reason, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления долга: %w", err)
	}
	return nil
}

// CountPendingOwed см. Journal.
func (j *SQLiteJournal) CountPendingOwed(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM casino_owed_payouts WHERE resolved_tx_id IS NULL`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта долгов: %w", err)
	}
	return n, nil
}
