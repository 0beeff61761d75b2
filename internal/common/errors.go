// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам проверять тип ошибки через errors.Is
// и возвращать понятные ответы (HTTP-коды, сообщения в Telegram).
package common

import "errors"

// Ошибки ledger (баланс, транзакции)
var (
	// ErrInvalidAmount — сумма не положительная (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrInsufficientFunds — списание больше текущего баланса
	ErrInsufficientFunds = errors.New("недостаточно монет на счёте")
	// ErrInvalidCategory — пустая или некорректная категория транзакции
	ErrInvalidCategory = errors.New("некорректная категория транзакции")
	// ErrInvalidMetadata — метаданные не прошли проверку схемы
	ErrInvalidMetadata = errors.New("некорректные метаданные транзакции")
	// ErrPersistence — хранилище не смогло выполнить запись или чтение
	ErrPersistence = errors.New("ошибка хранилища")
)

// Ошибки игр
var (
	// ErrConfiguration — невалидная таблица наград (фатально при старте)
	ErrConfiguration = errors.New("некорректная конфигурация таблицы наград")
	// ErrInvalidWager — ставка вне допустимого диапазона
	ErrInvalidWager = errors.New("некорректная ставка")
	// ErrUnknownGame — запрошена игра, для которой нет таблицы
	ErrUnknownGame = errors.New("неизвестная игра")
	// ErrRetryable — выигрыш не удалось начислить, долг записан, нужен повтор
	ErrRetryable = errors.New("временная ошибка, попробуйте ещё раз")
	// ErrCasinoDisabled — казино выключено флагом
	ErrCasinoDisabled = errors.New("казино временно отключено")
)

// Ошибки голосования и бонусов
var (
	// ErrVoteDailyLimit — лимит голосов на сегодня исчерпан
	ErrVoteDailyLimit = errors.New("лимит голосов на сегодня исчерпан")
	// ErrVoteSelf — попытка проголосовать за себя
	ErrVoteSelf = errors.New("нельзя голосовать за себя")
	// ErrVoteAlreadyGiven — уже голосовал за этого пользователя сегодня
	ErrVoteAlreadyGiven = errors.New("вы уже голосовали за этого пользователя сегодня")
	// ErrDailyAlreadyClaimed — ежедневный бонус уже получен
	ErrDailyAlreadyClaimed = errors.New("ежедневный бонус уже получен сегодня")
)

// Ошибки админки
var (
	// ErrUnauthorized — неверный или отсутствующий админ-токен
	ErrUnauthorized = errors.New("нет прав администратора")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите")
)
