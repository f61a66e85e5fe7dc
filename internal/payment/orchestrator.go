// Package payment реализует оркестратор платежей. Способы оплаты проводятся
// последовательно, при сбое любого из них уже проведённые способы
// компенсируются в обратном порядке.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/commerce-system/internal/events"
	"github.com/mmeshcher/commerce-system/internal/model"
	"github.com/mmeshcher/commerce-system/internal/processor"
)

// ErrPaymentFailed возвращается, когда один из способов оплаты не прошёл
// и платёж переведён в FAILED после компенсации.
var ErrPaymentFailed = errors.New("payment failed")

// Repository описывает хранилище платежей, достаточное для оркестратора.
type Repository interface {
	SavePayment(ctx context.Context, payment *model.Payment) error
	UpdatePayment(ctx context.Context, payment *model.Payment) error
	GetPaymentByKey(ctx context.Context, paymentKey string) (*model.Payment, error)
}

// Request описывает запрос на проведение платежа.
type Request struct {
	PaymentKey  string
	OrderID     int64
	MemberID    int64
	TotalAmount int64
	Type        model.PaymentType
	Methods     []model.PaymentMethod
}

// Orchestrator проводит платежи через зарегистрированные обработчики.
type Orchestrator struct {
	repo      Repository
	registry  *processor.Registry
	publisher events.Publisher
	logger    *zap.Logger
	timeout   time.Duration
}

// NewOrchestrator создаёт оркестратор платежей.
func NewOrchestrator(repo Repository, registry *processor.Registry, publisher events.Publisher, logger *zap.Logger, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
	}
}

// ProcessPayment создаёт платёж и последовательно проводит его способы оплаты.
// Нарушение инвариантов платежа возвращает ошибку без побочных эффектов.
// При сбое любого способа уже проведённые компенсируются в обратном порядке,
// платёж фиксируется как FAILED, публикуется событие и возвращается ошибка
// с причиной из сработавшего способа. Возвращаемый платёж в обоих случаях
// отражает финальные статусы способов.
func (o *Orchestrator) ProcessPayment(ctx context.Context, req Request) (*model.Payment, error) {
	p, err := model.NewPayment(req.PaymentKey, req.OrderID, req.MemberID, req.TotalAmount, req.Type, req.Methods)
	if err != nil {
		return nil, err
	}

	if err := o.repo.SavePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	var completed []int
	for i := range p.Methods {
		m := &p.Methods[i]

		proc, err := o.registry.Resolve(m.Type)
		if err == nil {
			err = o.processMethod(ctx, proc, m, p.MemberID)
		}
		if err != nil {
			m.Fail()
			o.logger.Warn("payment method failed",
				zap.String("payment_key", p.PaymentKey),
				zap.String("method_type", string(m.Type)),
				zap.Error(err),
			)
			return o.failPayment(ctx, p, completed, err)
		}

		o.logger.Info("payment method completed",
			zap.String("payment_key", p.PaymentKey),
			zap.String("method_type", string(m.Type)),
			zap.Int64("amount", m.Amount),
		)
		completed = append(completed, i)
	}

	if err := p.Complete(); err != nil {
		return nil, err
	}
	if err := o.repo.UpdatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	o.publisher.Publish(ctx, model.PaymentCompletedEvent{
		PaymentKey: p.PaymentKey,
		OrderID:    p.OrderID,
		Amount:     p.TotalAmount,
		MemberID:   p.MemberID,
		Timestamp:  time.Now(),
	})
	return p, nil
}

// failPayment компенсирует проведённые способы в обратном порядке и фиксирует
// платёж как FAILED. Ошибки компенсации только логируются: повторная попытка
// отката важнее прерывания, неоткатившиеся транзакции разбираются вручную.
// Откат и фиксация идут на отвязанном контексте: отмена исходного запроса
// могла сама вызвать сбой и не должна прерывать компенсацию.
func (o *Orchestrator) failPayment(ctx context.Context, p *model.Payment, completed []int, cause error) (*model.Payment, error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(completed) - 1; i >= 0; i-- {
		m := &p.Methods[completed[i]]
		if err := o.cancelMethod(ctx, m, p.MemberID); err != nil {
			o.logger.Error("payment method compensation failed",
				zap.String("payment_key", p.PaymentKey),
				zap.String("method_type", string(m.Type)),
				zap.String("external_transaction_id", m.ExternalTransactionID),
				zap.Error(err),
			)
			continue
		}
		m.Fail()
	}

	if err := p.Fail(); err != nil {
		return nil, err
	}
	if err := o.repo.UpdatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("update failed payment: %w", err)
	}

	o.publisher.Publish(ctx, model.PaymentFailedEvent{
		PaymentKey: p.PaymentKey,
		OrderID:    p.OrderID,
		Amount:     p.TotalAmount,
		Reason:     cause.Error(),
		Timestamp:  time.Now(),
	})
	return p, fmt.Errorf("%w: %s", ErrPaymentFailed, cause.Error())
}

func (o *Orchestrator) processMethod(ctx context.Context, proc processor.Processor, m *model.PaymentMethod, memberID int64) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := proc.Process(ctx, m, memberID)
	if err != nil {
		return err
	}
	m.Complete(res.ExternalTransactionID)
	return nil
}

func (o *Orchestrator) cancelMethod(ctx context.Context, m *model.PaymentMethod, memberID int64) error {
	proc, err := o.registry.Resolve(m.Type)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	return proc.Cancel(ctx, m, memberID)
}

// CancelPayment отменяет завершённый платёж: компенсирует проведённые способы
// и переводит платёж в CANCELLED. Отмена возможна только из статуса COMPLETED.
func (o *Orchestrator) CancelPayment(ctx context.Context, paymentKey, reason string) (*model.Payment, error) {
	p, err := o.repo.GetPaymentByKey(ctx, paymentKey)
	if err != nil {
		return nil, err
	}

	if err := p.Cancel(); err != nil {
		return nil, err
	}

	for i := len(p.Methods) - 1; i >= 0; i-- {
		m := &p.Methods[i]
		if m.Status != model.MethodStatusCompleted {
			continue
		}
		if err := o.cancelMethod(ctx, m, p.MemberID); err != nil {
			o.logger.Error("payment method cancellation failed",
				zap.String("payment_key", p.PaymentKey),
				zap.String("method_type", string(m.Type)),
				zap.String("external_transaction_id", m.ExternalTransactionID),
				zap.Error(err),
			)
		}
	}

	if err := o.repo.UpdatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("update cancelled payment: %w", err)
	}

	o.publisher.Publish(ctx, model.PaymentCancelledEvent{
		PaymentKey: p.PaymentKey,
		OrderID:    p.OrderID,
		Amount:     p.TotalAmount,
		Reason:     reason,
		Timestamp:  time.Now(),
	})
	return p, nil
}

// GetPayment возвращает платёж по ключу.
func (o *Orchestrator) GetPayment(ctx context.Context, paymentKey string) (*model.Payment, error) {
	return o.repo.GetPaymentByKey(ctx, paymentKey)
}
