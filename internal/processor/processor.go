// Package processor содержит обработчики способов оплаты и реестр их выбора.
// Каждый обработчик умеет провести способ оплаты и компенсировать его эффект.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/commerce-system/internal/model"
)

var (
	// ErrProcessorNotFound возвращается, если для способа оплаты нет обработчика.
	ErrProcessorNotFound = errors.New("payment processor not found")
	// ErrDuplicateProcessor возвращается при регистрации двух обработчиков одного типа.
	// Это ошибка конфигурации на старте, а не неоднозначность времени выполнения.
	ErrDuplicateProcessor = errors.New("duplicate payment processor registration")
	// ErrDeclined возвращается при отказе внешней стороны провести оплату.
	ErrDeclined = errors.New("payment declined")
)

// Result содержит результат успешного проведения способа оплаты.
// ExternalTransactionID служит ключом компенсации.
type Result struct {
	ExternalTransactionID string
}

// Processor проводит и компенсирует один способ оплаты.
type Processor interface {
	Supports(methodType model.PaymentMethodType) bool
	Process(ctx context.Context, method *model.PaymentMethod, memberID int64) (Result, error)
	Cancel(ctx context.Context, method *model.PaymentMethod, memberID int64) error
}

// Registry выбирает обработчик по типу способа оплаты.
type Registry struct {
	processors []Processor
}

// NewRegistry создаёт реестр и проверяет, что ни один тип способа оплаты
// не поддерживается более чем одним обработчиком.
func NewRegistry(processors ...Processor) (*Registry, error) {
	knownTypes := []model.PaymentMethodType{
		model.MethodPG, model.MethodCashpoint, model.MethodCoupon, model.MethodBNPL,
	}
	for _, t := range knownTypes {
		count := 0
		for _, p := range processors {
			if p.Supports(t) {
				count++
			}
		}
		if count > 1 {
			return nil, fmt.Errorf("%w: method type %s", ErrDuplicateProcessor, t)
		}
	}
	return &Registry{processors: processors}, nil
}

// Resolve возвращает первый обработчик, поддерживающий указанный тип.
func (r *Registry) Resolve(methodType model.PaymentMethodType) (Processor, error) {
	for _, p := range r.processors {
		if p.Supports(methodType) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: method type %s", ErrProcessorNotFound, methodType)
}

// simulateLatency имитирует задержку внешнего вызова, учитывая дедлайн контекста.
func simulateLatency(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
