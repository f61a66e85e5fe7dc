package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/commerce-system/internal/ledger"
	"github.com/mmeshcher/commerce-system/internal/model"
)

// Store описывает чтение данных товаров, используемое локальной реализацией.
type Store interface {
	GetProducts(ctx context.Context, ids []int64) ([]model.Product, error)
}

// Local реализует сервис товаров внутри процесса. Остаток изменяется
// только через леджер с ограниченным числом повторов при конфликте.
type Local struct {
	store    Store
	ledger   ledger.Ledger
	attempts int
}

// NewLocal создаёт локальную реализацию сервиса товаров.
func NewLocal(store Store, l ledger.Ledger, retryAttempts int) *Local {
	return &Local{store: store, ledger: l, attempts: retryAttempts}
}

// LookupBatch возвращает товары по списку идентификаторов.
// Отсутствующие идентификаторы в результат не попадают, отсутствие не считается ошибкой.
func (s *Local) LookupBatch(ctx context.Context, ids []int64) ([]model.Product, error) {
	products, err := s.store.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}
	return products, nil
}

// CheckStock проверяет, достаточно ли остатка активного товара для списания.
func (s *Local) CheckStock(ctx context.Context, productID, quantity int64) (bool, error) {
	if quantity <= 0 {
		return false, nil
	}

	products, err := s.store.GetProducts(ctx, []int64{productID})
	if err != nil {
		return false, fmt.Errorf("check stock: %w", err)
	}
	if len(products) == 0 {
		return false, fmt.Errorf("%w: id %d", ErrNotFound, productID)
	}

	p := products[0]
	return p.Status == model.ProductStatusActive && p.StockQuantity >= quantity, nil
}

// DeductStock списывает остаток активного товара и возвращает новое значение.
func (s *Local) DeductStock(ctx context.Context, productID, quantity int64, idempotencyKey string) (int64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: deduct quantity must be positive", ErrInsufficientStock)
	}

	err := ledger.Apply(ctx, s.ledger, productID, -quantity, ledger.NonNegativeActive(), s.attempts)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrEntityNotFound):
			return 0, fmt.Errorf("%w: id %d", ErrNotFound, productID)
		case errors.Is(err, ledger.ErrRejected):
			return 0, fmt.Errorf("%w: product %d, quantity %d", ErrInsufficientStock, productID, quantity)
		default:
			return 0, fmt.Errorf("deduct stock: %w", err)
		}
	}

	return s.currentStock(ctx, productID)
}

// RestoreStock возвращает остаток товара и возвращает новое значение.
// Восстановление выполняется и для неактивного товара: компенсация не должна
// блокироваться статусом.
func (s *Local) RestoreStock(ctx context.Context, productID, quantity int64, idempotencyKey string) (int64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("restore quantity must be positive, got %d", quantity)
	}

	err := ledger.Apply(ctx, s.ledger, productID, quantity, ledger.Guard{MinResult: 0}, s.attempts)
	if err != nil {
		if errors.Is(err, ledger.ErrEntityNotFound) {
			return 0, fmt.Errorf("%w: id %d", ErrNotFound, productID)
		}
		return 0, fmt.Errorf("restore stock: %w", err)
	}

	return s.currentStock(ctx, productID)
}

func (s *Local) currentStock(ctx context.Context, productID int64) (int64, error) {
	products, err := s.store.GetProducts(ctx, []int64{productID})
	if err != nil || len(products) == 0 {
		// Списание уже применено, остаток вернуть не удалось.
		return 0, nil
	}
	return products[0].StockQuantity, nil
}
