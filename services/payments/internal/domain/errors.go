package domain

import "errors"

// Доменные ошибки платёжного ядра.
var (
	// ErrTransactionNotFound — транзакция не найдена.
	ErrTransactionNotFound = errors.New("транзакция не найдена")

	// ErrUserNotFound — пользователь не найден.
	ErrUserNotFound = errors.New("пользователь не найден")

	// ErrUserRequired — не указан владелец транзакции.
	ErrUserRequired = errors.New("user_id обязателен")

	// ErrInvalidAmount — некорректная сумма платежа.
	ErrInvalidAmount = errors.New("сумма платежа должна быть больше нуля")

	// ErrGatewayRequired — не указан шлюз транзакции.
	ErrGatewayRequired = errors.New("шлюз транзакции обязателен")

	// ErrUnknownGateway — неизвестный платёжный шлюз.
	ErrUnknownGateway = errors.New("неизвестный платёжный шлюз")

	// ErrUnknownEnvironment — неизвестное окружение провайдера.
	ErrUnknownEnvironment = errors.New("неизвестное окружение провайдера")

	// ErrSettingsNotFound — запись payment_settings отсутствует.
	ErrSettingsNotFound = errors.New("настройки платёжного ядра не найдены")

	// ErrWrongStage — пользователь не на этапе оплаты.
	ErrWrongStage = errors.New("пользователь не находится на этапе оплаты")

	// ErrAlreadyPaid — оплата уже подтверждена.
	ErrAlreadyPaid = errors.New("оплата уже подтверждена")

	// ErrAccessDenied — доступ к транзакции запрещён.
	ErrAccessDenied = errors.New("доступ к транзакции запрещён")

	// ErrNotSandbox — операция доступна только в sandbox окружении.
	ErrNotSandbox = errors.New("операция доступна только в sandbox окружении")

	// ErrInvalidSignature — подпись вебхука не прошла проверку.
	ErrInvalidSignature = errors.New("подпись вебхука недействительна")

	// ErrNotRefundable — транзакция не в оплаченном статусе.
	ErrNotRefundable = errors.New("возврат возможен только для оплаченной транзакции")
)
