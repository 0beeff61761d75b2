package casino

import (
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
)

// Grid — сетка 3×3, Grid[row][col] — символ (Entry.Glyph).
type Grid [3][3]string

// LineKind — тип линии.
type LineKind string

const (
	LineRow      LineKind = "row"
	LineDiagonal LineKind = "diagonal"
)

// Line — одна из пяти проверяемых линий.
type Line struct {
	ID    int      `json:"id"` // 0-2 строки, 3 — главная диагональ, 4 — побочная
	Kind  LineKind `json:"kind"`
	Cells [3][2]int `json:"-"`
}

// Lines — три строки и две диагонали.
var Lines = [5]Line{
	{ID: 0, Kind: LineRow, Cells: [3][2]int{{0, 0}, {0, 1}, {0, 2}}},
	{ID: 1, Kind: LineRow, Cells: [3][2]int{{1, 0}, {1, 1}, {1, 2}}},
	{ID: 2, Kind: LineRow, Cells: [3][2]int{{2, 0}, {2, 1}, {2, 2}}},
	{ID: 3, Kind: LineDiagonal, Cells: [3][2]int{{0, 0}, {1, 1}, {2, 2}}},
	{ID: 4, Kind: LineDiagonal, Cells: [3][2]int{{0, 2}, {1, 1}, {2, 0}}},
}

// Classification — тип исхода.
type Classification string

const (
	ClassRow      Classification = "row"
	ClassDiagonal Classification = "diagonal"
	ClassWildLine Classification = "wild_line"
	ClassJackpot  Classification = "jackpot"
	ClassPrize    Classification = "prize"   // колесо: положительный приз
	ClassPenalty  Classification = "penalty" // колесо: штраф без защиты
	ClassLoss     Classification = "loss"
)

// LineWin — выигрыш одной линии.
type LineWin struct {
	Line           int            `json:"line"`
	Kind           LineKind       `json:"kind"`
	Symbol         string         `json:"symbol"`
	Wilds          int            `json:"wilds"`
	Payout         int64          `json:"payout"`
	Classification Classification `json:"classification"`
}

// PayoutResult — итог расчёта по сетке.
type PayoutResult struct {
	Amount         int64          `json:"amount"`
	Classification Classification `json:"classification"`
	Lines          []LineWin      `json:"lines,omitempty"`
	Capped         bool           `json:"capped,omitempty"`
}

// DefaultBaseMultipliers — базовый множитель по редкости.
var DefaultBaseMultipliers = map[rewards.Rarity]int64{
	rewards.RarityCommon:   2,
	rewards.RarityUncommon: 3,
	rewards.RarityRare:     5,
	rewards.RarityEpic:     10,
	rewards.RarityMythical: 20,
}

// PayoutCalculator считает выплату по сетке. Чистая функция сетки,
// ставки и таблицы: повторный вызов всегда даёт тот же результат.
//
// Несколько выигрышных линий суммируются, сумма ограничена
// MaxPayoutMultiplier × ставка.
type PayoutCalculator struct {
	JackpotMultiplier   int64
	DiagonalBonus       int64
	MaxPayoutMultiplier int64
	BaseMultipliers     map[rewards.Rarity]int64
}

func (c PayoutCalculator) base(r rewards.Rarity) int64 {
	m := c.BaseMultipliers
	if m == nil {
		m = DefaultBaseMultipliers
	}
	if v, ok := m[r]; ok {
		return v
	}
	return 1
}

// Calculate проверяет пять линий и возвращает выплату.
func (c PayoutCalculator) Calculate(grid Grid, wager int64, table *rewards.Table) PayoutResult {
	res := PayoutResult{Classification: ClassLoss}
	best := int64(-1)

	for _, line := range Lines {
		win, ok := evaluateLine(grid, line, table)
		if !ok {
			continue
		}
		win.Payout = c.linePayout(win, wager, table)
		res.Amount += win.Payout
		res.Lines = append(res.Lines, win)
		if win.Payout > best {
			best = win.Payout
			res.Classification = win.Classification
		}
	}

	res.Amount, res.Capped = c.Cap(res.Amount, wager)
	return res
}

// Cap ограничивает выплату значением MaxPayoutMultiplier × ставка.
// Второе значение — была ли выплата урезана.
func (c PayoutCalculator) Cap(amount, wager int64) (int64, bool) {
	if limit := c.MaxPayoutMultiplier * wager; c.MaxPayoutMultiplier > 0 && amount > limit {
		return limit, true
	}
	return amount, false
}

func (c PayoutCalculator) linePayout(win LineWin, wager int64, table *rewards.Table) int64 {
	if win.Classification == ClassJackpot {
		return c.JackpotMultiplier * wager * 2
	}
	entry, _ := table.ByGlyph(win.Symbol)
	if entry.Rarity == rewards.RarityMythical {
		return c.JackpotMultiplier * wager * 3 / 2
	}
	mult := c.base(entry.Rarity) + int64(win.Wilds)
	if win.Kind == LineDiagonal {
		mult += c.DiagonalBonus
	}
	return wager * mult
}

// evaluateLine: линия выигрывает, если все три символа попарно совпадают
// (совпадение — равенство или wild с любой стороны).
func evaluateLine(grid Grid, line Line, table *rewards.Table) (LineWin, bool) {
	var cells [3]rewards.Entry
	for i, rc := range line.Cells {
		e, ok := table.ByGlyph(grid[rc[0]][rc[1]])
		if !ok {
			return LineWin{}, false
		}
		cells[i] = e
	}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if !symbolsMatch(cells[i], cells[j]) {
				return LineWin{}, false
			}
		}
	}

	win := LineWin{Line: line.ID, Kind: line.Kind}
	for _, e := range cells {
		if e.IsWild {
			win.Wilds++
		} else if win.Symbol == "" {
			win.Symbol = e.Glyph()
		}
	}

	switch {
	case win.Wilds == 3:
		win.Symbol = cells[0].Glyph()
		win.Classification = ClassJackpot
	case win.Wilds > 0:
		win.Classification = ClassWildLine
	case line.Kind == LineDiagonal:
		win.Classification = ClassDiagonal
	default:
		win.Classification = ClassRow
	}
	return win, true
}

func symbolsMatch(a, b rewards.Entry) bool {
	return a.IsWild || b.IsWild || a.Name == b.Name
}

// HasWinningLine сообщает, есть ли на сетке хоть одна выигрышная линия.
func HasWinningLine(grid Grid, table *rewards.Table) bool {
	for _, line := range Lines {
		if _, ok := evaluateLine(grid, line, table); ok {
			return true
		}
	}
	return false
}
