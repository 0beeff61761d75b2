// Package economy — repository.go хранит журнал транзакций в PostgreSQL.
// Запись идёт в транзакции БД под advisory-блокировкой пользователя,
// поэтому проверка баланса и вставка строки атомарны.
package economy

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	txTable        = "coin_transactions"
	colID          = "id"
	colUserID      = "user_id"
	colDirection   = "direction"
	colCategory    = "category"
	colAmount      = "amount"
	colDescription = "description"
	colMetadata    = "metadata"
	colRelated     = "related_entity_id"
	colSource      = "source"
	colCreatedAt   = "created_at"
)

var txColumns = []string{
	colID, colUserID, colDirection, colCategory, colAmount, colDescription,
	colMetadata, colRelated, colSource, colCreatedAt,
}

// Repository — PostgreSQL-реализация Store.
type Repository struct {
	db        *pgxpool.Pool
	trManager trm.Manager
	getter    *trmpgx.CtxGetter
	psql      sq.StatementBuilderType
}

// NewRepository создаёт репозиторий журнала.
func NewRepository(db *pgxpool.Pool, trManager trm.Manager) *Repository {
	return &Repository{
		db:        db,
		trManager: trManager,
		getter:    trmpgx.DefaultCtxGetter,
		psql:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Apply см. Store.
func (r *Repository) Apply(ctx context.Context, userID int64, fn ApplyFunc) (Transaction, int64, error) {
	var (
		saved   Transaction
		balance int64
	)

	err := r.trManager.Do(ctx, func(txCtx context.Context) error {
		conn := r.getter.DefaultTrOrDB(txCtx, r.db)

		// Блокировка снимается при COMMIT/ROLLBACK
		if _, err := conn.Exec(txCtx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
			return fmt.Errorf("ошибка блокировки пользователя: %w", err)
		}

		var err error
		balance, err = r.fold(txCtx, userID)
		if err != nil {
			return err
		}

		tx, err := fn(balance, historyFunc(func(filter Filter) ([]Transaction, error) {
			return r.List(txCtx, filter)
		}))
		if err != nil {
			return err
		}
		tx.UserID = userID

		meta, err := marshalMetadata(tx.Metadata)
		if err != nil {
			return err
		}

		query, args, err := r.psql.Insert(txTable).
			Columns(colUserID, colDirection, colCategory, colAmount, colDescription, colMetadata, colRelated, colSource).
			Values(tx.UserID, string(tx.Direction), tx.Category, tx.Amount, tx.Description, meta, nullable(tx.RelatedEntityID), tx.Source).
			Suffix("RETURNING " + colID + ", " + colCreatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("ошибка построения запроса: %w", err)
		}

		if err := conn.QueryRow(txCtx, query, args...).Scan(&tx.ID, &tx.CreatedAt); err != nil {
			return fmt.Errorf("ошибка записи транзакции: %w", err)
		}
		saved = tx
		return nil
	})
	if err != nil {
		return Transaction{}, balance, err
	}
	return saved, balance, nil
}

// Balance см. Store.
func (r *Repository) Balance(ctx context.Context, userID int64) (int64, error) {
	return r.fold(ctx, userID)
}

func (r *Repository) fold(ctx context.Context, userID int64) (int64, error) {
	conn := r.getter.DefaultTrOrDB(ctx, r.db)

	var balance int64
	err := conn.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'spending' THEN -amount ELSE amount END), 0)::BIGINT
		FROM coin_transactions
		WHERE user_id = $1
	`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return balance, nil
}

// List см. Store.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	q := r.psql.Select(txColumns...).From(txTable).OrderBy(colID + " DESC")
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
		q = q.Where(sq.GtOrEq{colCreatedAt: filter.Since})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	conn := r.getter.DefaultTrOrDB(ctx, r.db)
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var (
			t         Transaction
			direction string
			meta      []byte
			related   *string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &direction, &t.Category, &t.Amount, &t.Description,
			&meta, &related, &t.Source, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		t.Direction = Direction(direction)
		if related != nil {
			t.RelatedEntityID = *related
		}
		if t.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения транзакций: %w", err)
	}
	return txs, nil
}

func marshalMetadata(m Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(b []byte) (Metadata, error) {
	if len(b) == 0 || string(b) == "{}" || string(b) == "null" {
		return nil, nil
	}
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("ошибка чтения метаданных: %w", err)
	}
	return m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
