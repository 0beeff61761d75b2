package rewards

// DefaultSlotsTable — символы слотов 3×3.
// Около 60% спинов выбирают «без линии» (MissWeight).
func DefaultSlotsTable() *Table {
	return &Table{
		Name:       "classic_slots",
		Game:       GameSlots,
		MissWeight: 150,
		Entries: []Entry{
			{Name: "cherry", Symbol: "🍒", Rarity: RarityCommon, Weight: 30},
			{Name: "lemon", Symbol: "🍋", Rarity: RarityCommon, Weight: 25},
			{Name: "orange", Symbol: "🍊", Rarity: RarityUncommon, Weight: 18},
			{Name: "grape", Symbol: "🍇", Rarity: RarityUncommon, Weight: 14},
			{Name: "bell", Symbol: "🔔", Rarity: RarityRare, Weight: 8},
			{Name: "diamond", Symbol: "💎", Rarity: RarityEpic, Weight: 4},
			{Name: "seven", Symbol: "7️⃣", Rarity: RarityMythical, Weight: 1},
			{Name: "wild", Symbol: "⭐", Rarity: RarityRare, Weight: 3, IsWild: true},
		},
	}
}

// DefaultWheelTable — колесо из 8 секторов, сумма весов 100.
// PayoutValue — множитель ставки; отрицательный — штраф в размере ставки.
func DefaultWheelTable() *Table {
	return &Table{
		Name:        "prize_wheel",
		Game:        GameWheel,
		Replacement: "refund",
		Entries: []Entry{
			{Name: "jackpot", Symbol: "💰", Rarity: RarityMythical, Weight: 1, PayoutValue: 10},
			{Name: "refund", Symbol: "🔄", Rarity: RarityCommon, Weight: 20, PayoutValue: 1},
			{Name: "lose_turn", Symbol: "⛔", Rarity: RarityUncommon, Weight: 15, Special: SpecialLoseTurn},
			{Name: "empty", Symbol: "⚪", Rarity: RarityCommon, Weight: 20},
			{Name: "spin_again", Symbol: "🔁", Rarity: RarityUncommon, Weight: 15, Special: SpecialReplay},
			{Name: "double", Symbol: "✌️", Rarity: RarityRare, Weight: 12, PayoutValue: 2},
			{Name: "penalty", Symbol: "💸", Rarity: RarityRare, Weight: 10, PayoutValue: -1},
			{Name: "triple", Symbol: "🔱", Rarity: RarityEpic, Weight: 7, PayoutValue: 3},
		},
	}
}

// DefaultTables — встроенные таблицы, если REWARD_TABLES_PATH не задан.
func DefaultTables() []*Table {
	return []*Table{DefaultSlotsTable(), DefaultWheelTable()}
}
