// Package rewards описывает таблицы наград и взвешенный выбор исхода.
// Одна и та же таблица и один и тот же Selector используются и слотами,
// и колесом.
package rewards

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// Rarity — редкость записи, чем больше, тем реже.
type Rarity int

const (
	RarityCommon Rarity = iota + 1
	RarityUncommon
	RarityRare
	RarityEpic
	RarityMythical
)

var rarityNames = map[Rarity]string{
	RarityCommon:   "common",
	RarityUncommon: "uncommon",
	RarityRare:     "rare",
	RarityEpic:     "epic",
	RarityMythical: "mythical",
}

func (r Rarity) String() string {
	if name, ok := rarityNames[r]; ok {
		return name
	}
	return strconv.Itoa(int(r))
}

// Valid сообщает, что редкость в диапазоне common..mythical.
func (r Rarity) Valid() bool {
	return r >= RarityCommon && r <= RarityMythical
}

// ParseRarity принимает имя ("rare") или номер ("3").
func ParseRarity(s string) (Rarity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range rarityNames {
		if name == s {
			return r, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Rarity(n).Valid() {
		return 0, fmt.Errorf("неизвестная редкость %q", s)
	}
	return Rarity(n), nil
}

// MarshalText пишет редкость именем.
func (r Rarity) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText см. ParseRarity.
func (r *Rarity) UnmarshalText(b []byte) error {
	v, err := ParseRarity(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// UnmarshalYAML принимает и имя, и число.
func (r *Rarity) UnmarshalYAML(node *yaml.Node) error {
	return r.UnmarshalText([]byte(node.Value))
}

// Special — нефинансовый эффект записи.
type Special string

const (
	SpecialNone      Special = ""
	SpecialReplay    Special = "replay"
	SpecialExtraTurn Special = "extra_turn"
	SpecialLoseTurn  Special = "lose_turn"
	SpecialLoseAll   Special = "lose_all"
)

// Valid сообщает, известен ли эффект.
func (s Special) Valid() bool {
	switch s {
	case SpecialNone, SpecialReplay, SpecialExtraTurn, SpecialLoseTurn, SpecialLoseAll:
		return true
	}
	return false
}

// Game — игра, которой принадлежит таблица.
type Game string

const (
	GameSlots Game = "slots"
	GameWheel Game = "wheel"
)

// Valid сообщает, что игра известна.
func (g Game) Valid() bool {
	return g == GameSlots || g == GameWheel
}

// Entry — одна запись таблицы (приз колеса или символ слотов).
type Entry struct {
	Name        string  `yaml:"name" json:"name"`
	Symbol      string  `yaml:"symbol" json:"symbol,omitempty"`
	Rarity      Rarity  `yaml:"rarity" json:"rarity"`
	Weight      int64   `yaml:"weight" json:"weight"`
	PayoutValue int64   `yaml:"payout" json:"payout"`
	Special     Special `yaml:"special" json:"special,omitempty"`
	IsWild      bool    `yaml:"wild" json:"wild,omitempty"`
}

// Glyph — то, что видит пользователь на сетке.
func (e Entry) Glyph() string {
	if e.Symbol != "" {
		return e.Symbol
	}
	return e.Name
}

// IsPenalty — запись отнимает монеты или ход.
func (e Entry) IsPenalty() bool {
	return e.PayoutValue < 0 || e.Special == SpecialLoseTurn || e.Special == SpecialLoseAll
}

// Table — декларативная таблица наград.
type Table struct {
	Name    string  `yaml:"name" json:"name"`
	Game    Game    `yaml:"game" json:"game"`
	Entries []Entry `yaml:"entries" json:"entries"`
	// MissWeight — вес исхода «без выигрышной линии» (только слоты).
	MissWeight int64 `yaml:"miss_weight" json:"miss_weight,omitempty"`
	// Replacement — запись, которой защита заменяет штраф.
	Replacement string `yaml:"replacement" json:"replacement,omitempty"`
}

// TotalWeight — сумма весов записей без MissWeight.
func (t *Table) TotalWeight() int64 {
	var sum int64
	for _, e := range t.Entries {
		sum += e.Weight
	}
	return sum
}

// Index возвращает позицию записи по имени или -1.
func (t *Table) Index(name string) int {
	for i, e := range t.Entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// ByGlyph возвращает запись по символу сетки.
func (t *Table) ByGlyph(glyph string) (Entry, bool) {
	for _, e := range t.Entries {
		if e.Glyph() == glyph {
			return e, true
		}
	}
	return Entry{}, false
}

// SafeReplacement возвращает индекс записи, которой заменяется штраф:
// Replacement, если задан, иначе первая достижимая не-штрафная запись
// с неотрицательной выплатой.
func (t *Table) SafeReplacement() (int, bool) {
	if t.Replacement != "" {
		i := t.Index(t.Replacement)
		if i >= 0 && !t.Entries[i].IsPenalty() && t.Entries[i].PayoutValue >= 0 {
			return i, true
		}
		return -1, false
	}
	for i, e := range t.Entries {
		if e.Weight > 0 && !e.IsPenalty() && e.PayoutValue >= 0 {
			return i, true
		}
	}
	return -1, false
}

// Validate проверяет таблицу. Ошибка фатальна при старте.
func (t *Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: пустое имя таблицы", common.ErrConfiguration)
	}
	if !t.Game.Valid() {
		return fmt.Errorf("%w: таблица %s: неизвестная игра %q", common.ErrConfiguration, t.Name, t.Game)
	}
	if t.MissWeight < 0 {
		return fmt.Errorf("%w: таблица %s: отрицательный miss_weight", common.ErrConfiguration, t.Name)
	}
	if t.Game != GameSlots && t.MissWeight != 0 {
		return fmt.Errorf("%w: таблица %s: miss_weight бывает только у слотов", common.ErrConfiguration, t.Name)
	}

	names := make(map[string]struct{}, len(t.Entries))
	glyphs := make(map[string]struct{}, len(t.Entries))
	var nonWild int
	hasPenalty := false
	for i, e := range t.Entries {
		if e.Name == "" {
			return fmt.Errorf("%w: таблица %s: запись %d без имени", common.ErrConfiguration, t.Name, i)
		}
		if _, dup := names[e.Name]; dup {
			return fmt.Errorf("%w: таблица %s: повтор имени %q", common.ErrConfiguration, t.Name, e.Name)
		}
		names[e.Name] = struct{}{}
		if _, dup := glyphs[e.Glyph()]; dup {
			return fmt.Errorf("%w: таблица %s: повтор символа %q", common.ErrConfiguration, t.Name, e.Glyph())
		}
		glyphs[e.Glyph()] = struct{}{}

		if e.Weight < 0 {
			return fmt.Errorf("%w: таблица %s: отрицательный вес у %q", common.ErrConfiguration, t.Name, e.Name)
		}
		if !e.Rarity.Valid() {
			return fmt.Errorf("%w: таблица %s: некорректная редкость у %q", common.ErrConfiguration, t.Name, e.Name)
		}
		if !e.Special.Valid() {
			return fmt.Errorf("%w: таблица %s: неизвестный эффект %q у %q", common.ErrConfiguration, t.Name, e.Special, e.Name)
		}
		if e.IsWild && t.Game != GameSlots {
			return fmt.Errorf("%w: таблица %s: wild бывает только у слотов", common.ErrConfiguration, t.Name)
		}
		if !e.IsWild {
			nonWild++
		}
		if e.IsPenalty() {
			hasPenalty = true
		}
	}

	if t.TotalWeight() <= 0 {
		return fmt.Errorf("%w: таблица %s: сумма весов должна быть > 0", common.ErrConfiguration, t.Name)
	}
	if t.Game == GameSlots {
		if len(t.Entries) < 3 {
			return fmt.Errorf("%w: таблица %s: для сетки нужно минимум 3 записи", common.ErrConfiguration, t.Name)
		}
		if nonWild < 2 {
			return fmt.Errorf("%w: таблица %s: нужно минимум 2 обычных символа", common.ErrConfiguration, t.Name)
		}
	}
	if t.Game == GameWheel && len(t.Entries) < 2 {
		return fmt.Errorf("%w: таблица %s: у колеса минимум 2 сектора", common.ErrConfiguration, t.Name)
	}

	if t.Replacement != "" && t.Index(t.Replacement) < 0 {
		return fmt.Errorf("%w: таблица %s: replacement %q не найден", common.ErrConfiguration, t.Name, t.Replacement)
	}
	if hasPenalty || t.Replacement != "" {
		if _, ok := t.SafeReplacement(); !ok {
			return fmt.Errorf("%w: таблица %s: нет неотрицательной замены для штрафа", common.ErrConfiguration, t.Name)
		}
	}
	return nil
}
