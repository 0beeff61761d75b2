package perks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore — права в SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore создаёт хранилище поверх открытой базы.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// HasEntitlement см. Lookup.
func (s *SQLiteStore) HasEntitlement(ctx context.Context, userID int64, key string) (bool, error) {
	var equipped bool
	err := s.db.QueryRowContext(ctx,
		`SELECT equipped FROM perk_entitlements WHERE user_id = ? AND entitlement_key = ?`,
		userID, key).Scan(&equipped)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки перка: %w", err)
	}
	return equipped, nil
}

// Grant см. Store.
func (s *SQLiteStore) Grant(ctx context.Context, userID int64, key string, equipped bool) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO perk_entitlements (user_id, entitlement_key, equipped, granted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, entitlement_key) DO UPDATE SET equipped = excluded.equipped`,
		userID, key, equipped, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("ошибка выдачи перка: %w", err)
	}
	return nil
}

// Revoke см. Store.
func (s *SQLiteStore) Revoke(ctx context.Context, userID int64, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM perk_entitlements WHERE user_id = ? AND entitlement_key = ?`, userID, key)
	if err != nil {
		return fmt.Errorf("ошибка удаления перка: %w", err)
	}
	return nil
}

// List см. Store.
func (s *SQLiteStore) List(ctx context.Context, userID int64) ([]Entitlement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, entitlement_key, equipped, granted_at
		FROM perk_entitlements WHERE user_id = ? ORDER BY entitlement_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения перков: %w", err)
	}
	defer rows.Close()

	var out []Entitlement
	for rows.Next() {
		var (
			e         Entitlement
			grantedAt int64
		)
		if err := rows.Scan(&e.UserID, &e.Key, &e.Equipped, &grantedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования перка: %w", err)
		}
		e.GrantedAt = time.UnixMilli(grantedAt).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
