package casino

import (
	"fmt"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
)

// GridRenderer строит сетку 3×3 для уже выбранного исхода.
// Выплату потом считает PayoutCalculator по самой сетке.
type GridRenderer struct {
	DiagonalShare   float64 // Доля диагоналей среди выигрышных линий (≈0.4)
	MaxMissAttempts int     // Попыток собрать проигрышную сетку до фиксированного шаблона
}

// Render заполняет сетку. Для выигрыша символ записи ставится на всю
// выбранную линию, остальные клетки — равномерно случайные символы таблицы
// (случайные дополнительные линии считаются дополнительным выигрышем).
// Для Miss собирается сетка без единой выигрышной линии.
func (g GridRenderer) Render(table *rewards.Table, sel rewards.Selection, src rewards.Source) (Grid, error) {
	pool := fillPool(table)
	if len(pool) == 0 {
		return Grid{}, fmt.Errorf("таблица %s: нет символов для сетки", table.Name)
	}

	if sel.Miss {
		return g.renderMiss(table, pool, src)
	}

	grid := randomGrid(pool, src)
	line := g.pickLine(src)
	for _, rc := range line.Cells {
		grid[rc[0]][rc[1]] = sel.Entry.Glyph()
	}
	return grid, nil
}

func (g GridRenderer) pickLine(src rewards.Source) Line {
	if src.Float64() < g.DiagonalShare {
		return Lines[3+src.Int64N(2)]
	}
	return Lines[src.Int64N(3)]
}

func (g GridRenderer) renderMiss(table *rewards.Table, pool []string, src rewards.Source) (Grid, error) {
	attempts := g.MaxMissAttempts
	if attempts <= 0 {
		attempts = 32
	}
	for i := 0; i < attempts; i++ {
		grid := randomGrid(pool, src)
		if !HasWinningLine(grid, table) {
			return grid, nil
		}
	}
	return losingPattern(table)
}

// losingPattern — гарантированно проигрышная сетка из двух обычных символов:
//
//	A B A
//	B A B
//	B A B
func losingPattern(table *rewards.Table) (Grid, error) {
	var plain []string
	for _, e := range table.Entries {
		if !e.IsWild {
			plain = append(plain, e.Glyph())
		}
		if len(plain) == 2 {
			break
		}
	}
	if len(plain) < 2 {
		return Grid{}, fmt.Errorf("таблица %s: нужно минимум 2 обычных символа", table.Name)
	}
	a, b := plain[0], plain[1]
	return Grid{
		{a, b, a},
		{b, a, b},
		{b, a, b},
	}, nil
}

// fillPool — символы для случайных клеток: все достижимые записи таблицы.
func fillPool(table *rewards.Table) []string {
	pool := make([]string, 0, len(table.Entries))
	for _, e := range table.Entries {
		if e.Weight > 0 {
			pool = append(pool, e.Glyph())
		}
	}
	return pool
}

func randomGrid(pool []string, src rewards.Source) Grid {
	var grid Grid
	n := int64(len(pool))
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			grid[r][c] = pool[src.Int64N(n)]
		}
	}
	return grid
}
