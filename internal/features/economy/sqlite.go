package economy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// SQLiteStore — Store поверх SQLite (modernc.org/sqlite).
// SQLite не умеет блокировки по ключу, поэтому записи пользователя
// сериализуются внутри процесса; файл базы должен принадлежать одному процессу.
type SQLiteStore struct {
	db    *sql.DB
	locks *common.KeyedMutex
	now   func() time.Time
}

// NewSQLiteStore создаёт хранилище поверх открытой базы с применёнными миграциями.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, locks: common.NewKeyedMutex(), now: time.Now}
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Apply см. Store.
func (s *SQLiteStore) Apply(ctx context.Context, userID int64, fn ApplyFunc) (Transaction, int64, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	balance, err := sqliteFold(ctx, tx, userID)
	if err != nil {
		return Transaction{}, 0, err
	}

	rec, err := fn(balance, historyFunc(func(filter Filter) ([]Transaction, error) {
		return sqliteList(ctx, tx, filter)
	}))
	if err != nil {
		return Transaction{}, balance, err
	}
	rec.UserID = userID
	rec.CreatedAt = time.UnixMilli(toMillis(s.now())).UTC()

	meta, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return Transaction{}, balance, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO coin_transactions
			(user_id, direction, category, amount, description, metadata, related_entity_id, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, string(rec.Direction), rec.Category, rec.Amount, rec.Description,
		meta, nullable(rec.RelatedEntityID), rec.Source, toMillis(rec.CreatedAt),
	)
	if err != nil {
		return Transaction{}, balance, fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return Transaction{}, balance, fmt.Errorf("ошибка получения id транзакции: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Transaction{}, balance, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return rec, balance, nil
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sqliteFold(ctx context.Context, q sqlQuerier, userID int64) (int64, error) {
	var balance int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'spending' THEN -amount ELSE amount END), 0)
		FROM coin_transactions
		WHERE user_id = ?`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return balance, nil
}

// Balance см. Store.
func (s *SQLiteStore) Balance(ctx context.Context, userID int64) (int64, error) {
	return sqliteFold(ctx, s.db, userID)
}

// List см. Store.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	return sqliteList(ctx, s.db, filter)
}

func sqliteList(ctx context.Context, db sqlQuerier, filter Filter) ([]Transaction, error) {
	q := sq.Select(txColumns...).From(txTable).OrderBy(colID + " DESC")
	if filter.UserID != 0 {
		q = q.Where(sq.Eq{colUserID: filter.UserID})
	}
	if len(filter.Categories) > 0 {
		q = q.Where(sq.Eq{colCategory: filter.Categories})
	}
	if filter.Direction != "" {
		q = q.Where(sq.Eq{colDirection: string(filter.Direction)})
	}
	if filter.RelatedEntityID != "" {
		q = q.Where(sq.Eq{colRelated: filter.RelatedEntityID})
	}
	if !filter.Since.IsZero() {
		q = q.Where(sq.GtOrEq{colCreatedAt: toMillis(filter.Since)})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var (
			t         Transaction
			direction string
			meta      string
			related   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &direction, &t.Category, &t.Amount, &t.Description,
			&meta, &related, &t.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		t.Direction = Direction(direction)
		t.RelatedEntityID = related.String
		t.CreatedAt = fromMillis(createdAt)
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
				return nil, fmt.Errorf("ошибка чтения метаданных: %w", err)
			}
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения транзакций: %w", err)
	}
	return txs, nil
}
