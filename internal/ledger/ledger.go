// Package ledger реализует безопасное изменение числовых значений под конкуренцией:
// баланс участника и складской остаток изменяются только через условное применение
// дельты, проверяемое атомарно относительно зафиксированного значения.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrRejected возвращается, когда условие не выполняется для зафиксированного значения.
	ErrRejected = errors.New("ledger guard rejected operation")
	// ErrConcurrencyConflict возвращается при проигрыше гонки конкурентной записи.
	// Операцию допустимо повторить ограниченное число раз.
	ErrConcurrencyConflict = errors.New("ledger concurrent update conflict")
	// ErrEntityNotFound возвращается, если сущность отсутствует в леджере.
	ErrEntityNotFound = errors.New("ledger entity not found")
)

// Guard описывает условие, проверяемое атомарно вместе с применением дельты.
type Guard struct {
	// MinResult задаёт нижнюю границу итогового значения.
	MinResult int64
	// RequireActive требует, чтобы сущность была в активном статусе.
	RequireActive bool
}

// NonNegativeActive возвращает стандартное условие: итог не ниже нуля,
// сущность активна.
func NonNegativeActive() Guard {
	return Guard{MinResult: 0, RequireActive: true}
}

// Ledger применяет дельту к значению сущности при выполнении условия.
// Проверка условия и запись выполняются неделимо относительно зафиксированного
// значения, потерянные обновления исключены.
type Ledger interface {
	TryApply(ctx context.Context, entityID int64, delta int64, guard Guard) error
}

// Apply выполняет TryApply с ограниченным числом повторов при ErrConcurrencyConflict.
// Исчерпание бюджета повторов возвращает последний конфликт вызывающему,
// молча он не поглощается.
func Apply(ctx context.Context, l Ledger, entityID, delta int64, guard Guard, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(5*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := l.TryApply(ctx, entityID, delta, guard); err != nil {
			if errors.Is(err, ErrConcurrencyConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			return fmt.Errorf("retry budget exhausted: %w", err)
		}
		return err
	}
	return nil
}
