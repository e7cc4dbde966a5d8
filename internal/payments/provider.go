package payments

import "context"

// Provider — минимальный контракт платёжного провайдера: создать счёт
// и проверить его статус. Всё остальное (зачисление баланса, продление)
// делает вызывающая сторона.
type Provider interface {
	// Start создаёт счёт на amount минорных единиц и возвращает ссылку
	// на оплату и внешний идентификатор транзакции
	Start(ctx context.Context, userID int64, amount int64, currency string) (redirectURL, externalID string, err error)
	// Check сообщает, оплачен ли счёт
	Check(ctx context.Context, externalID string) (bool, error)
	// Name — имя провайдера для записи Payment
	Name() string
}
