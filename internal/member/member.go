// Package member предоставляет доступ к сервису участников: просмотр профиля
// и операции с балансом кэшпоинтов.
package member

import (
	"context"
	"errors"

	"github.com/mmeshcher/commerce-system/internal/model"
)

var (
	// ErrNotFound возвращается, если участник не найден.
	ErrNotFound = errors.New("member not found")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient cashpoint balance")
	// ErrUnavailable возвращается, когда сервис участников недоступен или не ответил вовремя.
	ErrUnavailable = errors.New("member service unavailable")
)

// Service описывает контракт сервиса участников, используемый координатором
// заказов и процессором кэшпоинтов. Ключ идемпотентности защищает повторно
// отправленные операции от двойного применения.
type Service interface {
	Lookup(ctx context.Context, memberID int64) (*model.Member, error)
	DeductBalance(ctx context.Context, memberID, amount int64, idempotencyKey string) error
	RefundBalance(ctx context.Context, memberID, amount int64, idempotencyKey string) error
}
