package perks

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memKey struct {
	userID int64
	key    string
}

// MemoryStore — права в памяти процесса.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[memKey]Entitlement
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[memKey]Entitlement)}
}

// HasEntitlement см. Lookup.
func (s *MemoryStore) HasEntitlement(_ context.Context, userID int64, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[memKey{userID, key}]
	return ok && e.Equipped, nil
}

// Grant см. Store.
func (s *MemoryStore) Grant(_ context.Context, userID int64, key string, equipped bool) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memKey{userID, key}
	e, ok := s.items[k]
	if !ok {
		e = Entitlement{UserID: userID, Key: key, GrantedAt: time.Now().UTC()}
	}
	e.Equipped = equipped
	s.items[k] = e
	return nil
}

// Revoke см. Store.
func (s *MemoryStore) Revoke(_ context.Context, userID int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, memKey{userID, key})
	return nil
}

// List см. Store.
func (s *MemoryStore) List(_ context.Context, userID int64) ([]Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entitlement
	for k, e := range s.items {
		if k.userID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
