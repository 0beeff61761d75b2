package casino

import (
	"context"
	"fmt"
	"sort"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/perks"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
)

// PerkModifier меняет исход или выплату по надетым перкам пользователя.
type PerkModifier struct {
	lookup        perks.Lookup
	protectionKey string
	boosts        map[string]int64 // ключ перка → +процент к выигрышу
}

// NewPerkModifier создаёт модификатор. protectionKey — перк, защищающий
// от штрафных исходов; boosts — перки, увеличивающие положительный выигрыш.
func NewPerkModifier(lookup perks.Lookup, protectionKey string, boosts map[string]int64) *PerkModifier {
	return &PerkModifier{lookup: lookup, protectionKey: protectionKey, boosts: boosts}
}

// Protect заменяет штрафной исход неотрицательным, если у пользователя надет
// защитный перк. Возвращает новый выбор и ключ сработавшего перка
// (пусто — ничего не изменилось). Замена никогда не бывает штрафом.
func (m *PerkModifier) Protect(ctx context.Context, userID int64, table *rewards.Table, sel rewards.Selection) (rewards.Selection, string, error) {
	if m == nil || m.lookup == nil || m.protectionKey == "" || sel.Miss || !sel.Entry.IsPenalty() {
		return sel, "", nil
	}

	held, err := m.lookup.HasEntitlement(ctx, userID, m.protectionKey)
	if err != nil {
		return sel, "", fmt.Errorf("ошибка проверки перка %s: %w", m.protectionKey, err)
	}
	if !held {
		return sel, "", nil
	}

	i, ok := table.SafeReplacement()
	if !ok {
		return sel, "", fmt.Errorf("таблица %s: нет неотрицательной замены", table.Name)
	}
	return rewards.Selection{Index: i, Entry: table.Entries[i]}, m.protectionKey, nil
}

// Boost увеличивает положительную выплату на сумму процентов надетых
// бонусных перков. Неположительная выплата не меняется.
func (m *PerkModifier) Boost(ctx context.Context, userID, payout int64) (int64, []string, error) {
	if m == nil || m.lookup == nil || payout <= 0 || len(m.boosts) == 0 {
		return payout, nil, nil
	}

	keys := make([]string, 0, len(m.boosts))
	for k := range m.boosts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		percent int64
		applied []string
	)
	for _, k := range keys {
		held, err := m.lookup.HasEntitlement(ctx, userID, k)
		if err != nil {
			return payout, nil, fmt.Errorf("ошибка проверки перка %s: %w", k, err)
		}
		if held {
			percent += m.boosts[k]
			applied = append(applied, k)
		}
	}
	return payout + payout*percent/100, applied, nil
}
