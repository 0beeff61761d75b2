// Package perks хранит права пользователей на перки (аватары, рамки, амулеты).
// Игровой движок видит только Lookup: «надет ли у пользователя перк X».
package perks

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Lookup — проверка права, которую использует казино.
type Lookup interface {
	HasEntitlement(ctx context.Context, userID int64, key string) (bool, error)
}

// Store — хранилище прав.
type Store interface {
	Lookup
	// Grant выдаёт право (повторная выдача обновляет equipped).
	Grant(ctx context.Context, userID int64, key string, equipped bool) error
	// Revoke забирает право.
	Revoke(ctx context.Context, userID int64, key string) error
	// List возвращает права пользователя, отсортированные по ключу.
	List(ctx context.Context, userID int64) ([]Entitlement, error)
}

// Entitlement — право пользователя на перк.
type Entitlement struct {
	UserID    int64     `json:"user_id"`
	Key       string    `json:"key"`
	Equipped  bool      `json:"equipped"`
	GrantedAt time.Time `json:"granted_at"`
}

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateKey проверяет формат ключа перка.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("некорректный ключ перка %q", key)
	}
	return nil
}
