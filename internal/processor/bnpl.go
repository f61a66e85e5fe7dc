package processor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/commerce-system/internal/model"
)

// BNPL имитирует проверку кредитного лимита провайдера отложенной оплаты.
// Ограничение "только единственный способ" проверяется инвариантом платежа,
// а не обработчиком.
type BNPL struct {
	successRate int
	latency     time.Duration
}

// NewBNPL создаёт обработчик BNPL-платежей. successRate задаётся в процентах.
func NewBNPL(successRate int, latency time.Duration) *BNPL {
	return &BNPL{successRate: successRate, latency: latency}
}

// Supports возвращает true для типа BNPL.
func (b *BNPL) Supports(methodType model.PaymentMethodType) bool {
	return methodType == model.MethodBNPL
}

// Process имитирует кредитную проверку провайдера.
func (b *BNPL) Process(ctx context.Context, method *model.PaymentMethod, memberID int64) (Result, error) {
	if err := simulateLatency(ctx, b.latency); err != nil {
		return Result{}, fmt.Errorf("bnpl provider call: %w", err)
	}

	if rand.Intn(100) >= b.successRate {
		return Result{}, fmt.Errorf("%w: credit limit exceeded", ErrDeclined)
	}

	return Result{ExternalTransactionID: "BNPL-" + uuid.NewString()}, nil
}

// Cancel имитирует аннулирование кредитной записи у провайдера.
func (b *BNPL) Cancel(ctx context.Context, method *model.PaymentMethod, memberID int64) error {
	if err := simulateLatency(ctx, b.latency/2); err != nil {
		return fmt.Errorf("bnpl provider cancel: %w", err)
	}
	return nil
}
