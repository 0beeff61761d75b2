package rewards

import (
	"fmt"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/common"
)

// File — формат YAML-файла таблиц.
//
//	tables:
//	  - name: classic_slots
//	    game: slots
//	    miss_weight: 150
//	    entries:
//	      - {name: cherry, symbol: "🍒", rarity: common, weight: 30}
type File struct {
	Tables []*Table `yaml:"tables"`
}

// Registry хранит по одной проверенной таблице на игру.
type Registry struct {
	tables map[Game]*Table
}

// NewRegistry проверяет таблицы и собирает реестр.
func NewRegistry(tables ...*Table) (*Registry, error) {
	reg := &Registry{tables: make(map[Game]*Table, len(tables))}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := reg.tables[t.Game]; dup {
			return nil, fmt.Errorf("%w: две таблицы для игры %s", common.ErrConfiguration, t.Game)
		}
		reg.tables[t.Game] = t
	}
	return reg, nil
}

// ParseTables разбирает YAML и проверяет таблицы.
func ParseTables(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("%w: в файле нет таблиц", common.ErrConfiguration)
	}
	return NewRegistry(f.Tables...)
}

// LoadRegistry читает таблицы из файла; пустой путь — встроенные таблицы.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(DefaultTables()...)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: чтение %s: %w", common.ErrConfiguration, path, err)
	}
	reg, err := ParseTables(data)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"path":   path,
		"tables": len(reg.tables),
	}).Info("Таблицы наград загружены")
	return reg, nil
}

// Get возвращает таблицу игры.
func (r *Registry) Get(game Game) (*Table, error) {
	t, ok := r.tables[game]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownGame, game)
	}
	return t, nil
}

// All возвращает таблицы, отсортированные по игре.
func (r *Registry) All() []*Table {
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Game < out[j].Game })
	return out
}
