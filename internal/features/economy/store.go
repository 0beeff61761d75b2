package economy

import "context"

// HistoryReader читает журнал пользователя внутри Apply, под той же
// блокировкой и в той же транзакции БД.
type HistoryReader interface {
	List(filter Filter) ([]Transaction, error)
}

// ApplyFunc получает актуальный баланс пользователя и доступ к его журналу
// и возвращает транзакцию, которую нужно записать. Ошибка отменяет запись целиком.
type ApplyFunc func(balance int64, history HistoryReader) (Transaction, error)

// Store — хранилище журнала транзакций.
//
// Apply выполняется под блокировкой пользователя: между чтением баланса
// и записью транзакции никакая другая запись того же пользователя не пройдёт.
// Разные пользователи друг друга не блокируют.
type Store interface {
	// Apply вызывает fn с текущим балансом и атомарно записывает результат.
	// Возвращает сохранённую транзакцию (с ID и CreatedAt) и баланс до неё.
	Apply(ctx context.Context, userID int64, fn ApplyFunc) (Transaction, int64, error)
	// Balance возвращает свёртку журнала пользователя.
	Balance(ctx context.Context, userID int64) (int64, error)
	// List возвращает транзакции по фильтру, от новых к старым.
	List(ctx context.Context, filter Filter) ([]Transaction, error)
}

// historyFunc адаптирует функцию к HistoryReader.
type historyFunc func(filter Filter) ([]Transaction, error)

func (f historyFunc) List(filter Filter) ([]Transaction, error) { return f(filter) }
