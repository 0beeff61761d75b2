package casino

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryJournal — журнал игр в памяти процесса.
type MemoryJournal struct {
	mu     sync.RWMutex
	plays  []Play
	owed   []OwedPayout
	nextID int64
}

// NewMemoryJournal создаёт пустой журнал.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// RecordPlay см. Journal.
func (j *MemoryJournal) RecordPlay(_ context.Context, p Play) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.plays = append(j.plays, p)
	return nil
}

// Stats см. Journal.
func (j *MemoryJournal) Stats(_ context.Context, userID int64) (*Stats, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := &Stats{UserID: userID}
	for _, p := range j.plays {
		if p.UserID != userID {
			continue
		}
		s.TotalSpins++
		s.TotalWagered += p.Wager
		if p.Payout > 0 {
			s.TotalWon += p.Payout
			s.BiggestWin = max(s.BiggestWin, p.Payout)
		}
	}
	s.RTP = CalculateRTP(s.TotalWagered, s.TotalWon)
	return s, nil
}

// AddOwed см. Journal. Повторная запись того же PlayID игнорируется.
func (j *MemoryJournal) AddOwed(_ context.Context, o OwedPayout) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, existing := range j.owed {
		if existing.PlayID == o.PlayID {
			return nil
		}
	}
	j.nextID++
	o.ID = j.nextID
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	j.owed = append(j.owed, o)
	return nil
}

// PendingOwed см. Journal.
func (j *MemoryJournal) PendingOwed(_ context.Context, limit int) ([]OwedPayout, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []OwedPayout
	for _, o := range j.owed {
		if o.ResolvedTxID != nil {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ResolveOwed см. Journal.
func (j *MemoryJournal) ResolveOwed(_ context.Context, id, txID int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.owed {
		if j.owed[i].ID == id {
			now := time.Now().UTC()
			j.owed[i].ResolvedTxID = &txID
			j.owed[i].ResolvedAt = &now
			return nil
		}
	}
	return fmt.Errorf("долг %d не найден", id)
}

// FailOwed см. Journal.
func (j *MemoryJournal) FailOwed(_ context.Context, id int64, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.owed {
		if j.owed[i].ID == id {
			j.owed[i].Attempts++
			j.owed[i].LastError = reason
			return nil
		}
	}
	return fmt.Errorf("долг %d не найден", id)
}

// CountPendingOwed см. Journal.
func (j *MemoryJournal) CountPendingOwed(_ context.Context) (int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var n int64
	for _, o := range j.owed {
		if o.ResolvedTxID == nil {
			n++
		}
	}
	return n, nil
}
