package member

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/commerce-system/internal/ledger"
	"github.com/mmeshcher/commerce-system/internal/model"
	"github.com/mmeshcher/commerce-system/internal/repository"
)

// Store описывает чтение данных участников, используемое локальной реализацией.
type Store interface {
	GetMember(ctx context.Context, memberID int64) (*model.Member, error)
}

// Local реализует сервис участников внутри процесса. Баланс изменяется
// только через леджер с ограниченным числом повторов при конфликте.
type Local struct {
	store    Store
	ledger   ledger.Ledger
	attempts int
}

// NewLocal создаёт локальную реализацию сервиса участников.
func NewLocal(store Store, l ledger.Ledger, retryAttempts int) *Local {
	return &Local{store: store, ledger: l, attempts: retryAttempts}
}

// Lookup возвращает участника по идентификатору.
func (s *Local) Lookup(ctx context.Context, memberID int64) (*model.Member, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, memberID)
		}
		return nil, fmt.Errorf("lookup member: %w", err)
	}
	return m, nil
}

// DeductBalance списывает кэшпоинты при достаточном балансе активного участника.
func (s *Local) DeductBalance(ctx context.Context, memberID, amount int64, idempotencyKey string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deduct amount must be positive", ErrInsufficientBalance)
	}

	err := ledger.Apply(ctx, s.ledger, memberID, -amount, ledger.NonNegativeActive(), s.attempts)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrEntityNotFound):
			return fmt.Errorf("%w: id %d", ErrNotFound, memberID)
		case errors.Is(err, ledger.ErrRejected):
			return fmt.Errorf("%w: member %d, amount %d", ErrInsufficientBalance, memberID, amount)
		default:
			return fmt.Errorf("deduct balance: %w", err)
		}
	}
	return nil
}

// RefundBalance возвращает кэшпоинты участнику. Возврат выполняется и для
// неактивного участника: компенсация не должна блокироваться статусом.
func (s *Local) RefundBalance(ctx context.Context, memberID, amount int64, idempotencyKey string) error {
	if amount <= 0 {
		return fmt.Errorf("refund amount must be positive, got %d", amount)
	}

	err := ledger.Apply(ctx, s.ledger, memberID, amount, ledger.Guard{MinResult: 0}, s.attempts)
	if err != nil {
		if errors.Is(err, ledger.ErrEntityNotFound) {
			return fmt.Errorf("%w: id %d", ErrNotFound, memberID)
		}
		return fmt.Errorf("refund balance: %w", err)
	}
	return nil
}
