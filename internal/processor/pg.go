package processor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/commerce-system/internal/model"
)

// PG имитирует внешний платёжный шлюз с задержкой и настраиваемой
// вероятностью успеха.
type PG struct {
	successRate int
	latency     time.Duration
}

// NewPG создаёт обработчик PG-платежей. successRate задаётся в процентах.
func NewPG(successRate int, latency time.Duration) *PG {
	return &PG{successRate: successRate, latency: latency}
}

// Supports возвращает true для типа PG.
func (p *PG) Supports(methodType model.PaymentMethodType) bool {
	return methodType == model.MethodPG
}

// Process имитирует авторизацию в платёжном шлюзе.
func (p *PG) Process(ctx context.Context, method *model.PaymentMethod, memberID int64) (Result, error) {
	if err := simulateLatency(ctx, p.latency); err != nil {
		return Result{}, fmt.Errorf("pg gateway call: %w", err)
	}

	if rand.Intn(100) >= p.successRate {
		return Result{}, fmt.Errorf("%w: card issuer rejected the authorization", ErrDeclined)
	}

	return Result{ExternalTransactionID: "PG-" + uuid.NewString()}, nil
}

// Cancel имитирует отмену авторизации в платёжном шлюзе.
func (p *PG) Cancel(ctx context.Context, method *model.PaymentMethod, memberID int64) error {
	if err := simulateLatency(ctx, p.latency/2); err != nil {
		return fmt.Errorf("pg gateway cancel: %w", err)
	}
	return nil
}
