// Package product предоставляет доступ к сервису товаров: каталог,
// проверка наличия и операции со складским остатком.
package product

import (
	"context"
	"errors"

	"github.com/mmeshcher/commerce-system/internal/model"
)

var (
	// ErrNotFound возвращается, если товар не найден.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock возвращается при попытке списания остатка сверх доступного.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnavailable возвращается, когда сервис товаров недоступен или не ответил вовремя.
	ErrUnavailable = errors.New("product service unavailable")
)

// Service описывает контракт сервиса товаров, используемый координатором заказов.
// Ключ идемпотентности защищает повторно отправленные операции от двойного применения.
type Service interface {
	LookupBatch(ctx context.Context, ids []int64) ([]model.Product, error)
	CheckStock(ctx context.Context, productID, quantity int64) (bool, error)
	DeductStock(ctx context.Context, productID, quantity int64, idempotencyKey string) (int64, error)
	RestoreStock(ctx context.Context, productID, quantity int64, idempotencyKey string) (int64, error)
}
