package rewards

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// Source — источник случайности. *rand.Rand удовлетворяет интерфейсу.
type Source interface {
	Int64N(n int64) int64
	Float64() float64
}

// lockedSource делает *rand.Rand безопасным для параллельных игр.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Int64N(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Int64N(n)
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// NewSource создаёт PCG-генератор с зерном из crypto/rand.
func NewSource() Source {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand недоступен: %v", err))
	}
	pcg := rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
	return &lockedSource{r: rand.New(pcg)}
}

// NewSeededSource — детерминированный источник (для тестов и воспроизведения).
func NewSeededSource(seed1, seed2 uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed1, seed2))}
}

// Selection — результат выбора.
type Selection struct {
	Index int   // -1 при Miss
	Entry Entry // Пусто при Miss
	Miss  bool  // Выпал вес MissWeight
}

// Selector выполняет взвешенный выбор по таблице.
type Selector struct {
	src Source
}

// NewSelector создаёт селектор; nil — криптографически засеянный PCG.
func NewSelector(src Source) *Selector {
	if src == nil {
		src = NewSource()
	}
	return &Selector{src: src}
}

// Source возвращает источник случайности селектора (его же использует рендер).
func (s *Selector) Source() Source {
	return s.src
}

// Select тянет r ∈ [1, Σweights + MissWeight] и идёт по записям,
// накапливая веса; возвращает первую запись с накопленным весом ≥ r.
// Записи с весом 0 не выпадают никогда.
func (s *Selector) Select(t *Table) (Selection, error) {
	total := t.TotalWeight()
	if total <= 0 {
		return Selection{}, fmt.Errorf("%w: таблица %s: сумма весов 0", common.ErrConfiguration, t.Name)
	}

	r := s.src.Int64N(total+t.MissWeight) + 1

	var cumulative int64
	for i, e := range t.Entries {
		if e.Weight == 0 {
			continue
		}
		cumulative += e.Weight
		if cumulative >= r {
			return Selection{Index: i, Entry: e}, nil
		}
	}
	return Selection{Index: -1, Miss: true}, nil
}
