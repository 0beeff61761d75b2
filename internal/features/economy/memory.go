package economy

import (
	"context"
	"sync"
	"time"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// MemoryStore хранит журнал в памяти процесса.
// Используется в тестах и при STORAGE_DRIVER=memory.
type MemoryStore struct {
	locks *common.KeyedMutex

	mu       sync.RWMutex
	txs      []Transaction
	balances map[int64]int64 // кэш свёртки, обновляется под блокировкой пользователя
	nextID   int64

	now func() time.Time
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:    common.NewKeyedMutex(),
		balances: make(map[int64]int64),
		now:      time.Now,
	}
}

// SetClock подменяет источник времени для новых записей (для тестов).
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Apply см. Store.
func (s *MemoryStore) Apply(ctx context.Context, userID int64, fn ApplyFunc) (Transaction, int64, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return Transaction{}, 0, err
	}

	s.mu.RLock()
	balance := s.balances[userID]
	s.mu.RUnlock()

	tx, err := fn(balance, historyFunc(func(filter Filter) ([]Transaction, error) {
		return s.List(ctx, filter)
	}))
	if err != nil {
		return Transaction{}, balance, err
	}

	s.mu.Lock()
	s.nextID++
	tx.ID = s.nextID
	tx.UserID = userID
	tx.CreatedAt = s.now().UTC()
	tx.Metadata = cloneMetadata(tx.Metadata)
	s.txs = append(s.txs, tx)
	s.balances[userID] = balance + tx.Signed()
	s.mu.Unlock()

	return tx, balance, nil
}

// Balance см. Store.
func (s *MemoryStore) Balance(ctx context.Context, userID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[userID], nil
}

// List см. Store.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		tx := s.txs[i]
		if !filter.Match(tx) {
			continue
		}
		tx.Metadata = cloneMetadata(tx.Metadata)
		out = append(out, tx)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func cloneMetadata(m Metadata) Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
