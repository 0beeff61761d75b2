// Package admin — auth.go проверяет админ-токен по хешу Argon2id.
package admin

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// Параметры Argon2id для новых хешей.
const (
	argonMemory      uint32 = 64 * 1024 // 64 MB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLength   uint32 = 32
)

// Authenticator проверяет админ-токен с защитой от перебора.
// Неудачные попытки считаются по ключу клиента (обычно IP).
type Authenticator struct {
	hash string

	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

// NewAuthenticator создаёт проверку по хешу. Пустой хеш — админка выключена.
func NewAuthenticator(encodedHash string) *Authenticator {
	return &Authenticator{
		hash:     strings.TrimSpace(encodedHash),
		failures: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Enabled сообщает, задан ли хеш токена.
func (a *Authenticator) Enabled() bool {
	return a.hash != ""
}

// Verify проверяет токен. 3 неудачи за час — ErrTooManyAttempts до конца окна.
func (a *Authenticator) Verify(client, token string) error {
	if !a.Enabled() {
		return common.ErrUnauthorized
	}

	a.mu.Lock()
	recent := a.recentFailures(client)
	a.mu.Unlock()
	if len(recent) >= MaxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	if token != "" && verifyArgon2id(token, a.hash) {
		a.mu.Lock()
		delete(a.failures, client)
		a.mu.Unlock()
		return nil
	}

	a.mu.Lock()
	a.failures[client] = append(a.recentFailures(client), a.now())
	a.mu.Unlock()

	log.WithField("client", client).Warn("Неверный админ-токен")
	return common.ErrUnauthorized
}

// recentFailures возвращает неудачи в пределах окна. Вызывается под a.mu.
func (a *Authenticator) recentFailures(client string) []time.Time {
	since := a.now().Add(-LockoutSeconds * time.Second)
	kept := a.failures[client][:0]
	for _, t := range a.failures[client] {
		if t.After(since) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(a.failures, client)
		return nil
	}
	a.failures[client] = kept
	return kept
}

// HashToken строит хеш Argon2id в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>.
func HashToken(token string, salt []byte) string {
	hash := argon2.IDKey([]byte(token), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

// verifyArgon2id проверяет токен по хешу Argon2id.
func verifyArgon2id(token, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var (
		memory      uint32
		iterations  uint32
		parallelism uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computed := argon2.IDKey([]byte(token), salt, iterations, memory, parallelism, uint32(len(expected)))

	// Сравнение в постоянном времени
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
