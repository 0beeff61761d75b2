package perks

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository — права в PostgreSQL (таблица perk_entitlements).
type Repository struct {
	db   *pgxpool.Pool
	psql sq.StatementBuilderType
}

// NewRepository создаёт репозиторий прав.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// HasEntitlement см. Lookup.
func (r *Repository) HasEntitlement(ctx context.Context, userID int64, key string) (bool, error) {
	var equipped bool
	err := r.db.QueryRow(ctx, `
		SELECT equipped FROM perk_entitlements
		WHERE user_id = $1 AND entitlement_key = $2
	`, userID, key).Scan(&equipped)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки перка: %w", err)
	}
	return equipped, nil
}

// Grant см. Store.
func (r *Repository) Grant(ctx context.Context, userID int64, key string, equipped bool) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO perk_entitlements (user_id, entitlement_key, equipped)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, entitlement_key) DO UPDATE SET equipped = EXCLUDED.equipped
	`, userID, key, equipped)
	if err != nil {
		return fmt.Errorf("ошибка выдачи перка: %w", err)
	}
	return nil
}

// Revoke см. Store.
func (r *Repository) Revoke(ctx context.Context, userID int64, key string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM perk_entitlements WHERE user_id = $1 AND entitlement_key = $2`, userID, key)
	if err != nil {
		return fmt.Errorf("ошибка удаления перка: %w", err)
	}
	return nil
}

// List см. Store.
func (r *Repository) List(ctx context.Context, userID int64) ([]Entitlement, error) {
	query, args, err := r.psql.Select("user_id", "entitlement_key", "equipped", "granted_at").
		From("perk_entitlements").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("entitlement_key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения перков: %w", err)
	}
	defer rows.Close()

	var out []Entitlement
	for rows.Next() {
		var e Entitlement
		if err := rows.Scan(&e.UserID, &e.Key, &e.Equipped, &e.GrantedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования перка: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
