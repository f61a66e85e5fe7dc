package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPayment возвращается при нарушении инвариантов платежа.
var ErrInvalidPayment = errors.New("invalid payment")

// PaymentType описывает тип платежа: одним способом или комбинацией способов.
type PaymentType string

const (
	PaymentTypeSingle   PaymentType = "SINGLE"
	PaymentTypeCombined PaymentType = "COMBINED"
)

// PaymentMethodType описывает способ оплаты.
type PaymentMethodType string

const (
	MethodPG        PaymentMethodType = "PG"
	MethodCashpoint PaymentMethodType = "CASHPOINT"
	MethodCoupon    PaymentMethodType = "COUPON"
	MethodBNPL      PaymentMethodType = "BNPL"
)

// PaymentStatus описывает статус платежа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// PaymentMethodStatus описывает статус отдельного способа оплаты внутри платежа.
type PaymentMethodStatus string

const (
	MethodStatusPending   PaymentMethodStatus = "PENDING"
	MethodStatusCompleted PaymentMethodStatus = "COMPLETED"
	MethodStatusFailed    PaymentMethodStatus = "FAILED"
)

// PaymentMethod описывает один способ оплаты в составе платежа.
// ExternalTransactionID заполняется при успешном проведении и служит
// ключом компенсации при откате.
type PaymentMethod struct {
	ID                    int64
	Type                  PaymentMethodType
	Amount                int64
	Status                PaymentMethodStatus
	ExternalTransactionID string
	AdditionalInfo        map[string]string
}

// Complete помечает способ оплаты завершённым с идентификатором внешней транзакции.
func (m *PaymentMethod) Complete(externalTransactionID string) {
	m.Status = MethodStatusCompleted
	m.ExternalTransactionID = externalTransactionID
}

// Fail помечает способ оплаты неуспешным.
func (m *PaymentMethod) Fail() {
	m.Status = MethodStatusFailed
}

// Payment описывает платёж по заказу. Ссылается на заказ по OrderID,
// уникальность попытки обеспечивает PaymentKey. MemberID сохраняется,
// чтобы компенсация балансовых способов знала владельца средств.
type Payment struct {
	ID          int64
	PaymentKey  string
	OrderID     int64
	MemberID    int64
	TotalAmount int64
	Type        PaymentType
	Methods     []PaymentMethod
	Status      PaymentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPayment создаёт платёж в статусе PENDING, проверяя инварианты:
// сумма способов равна общей сумме, купон не может быть единственным способом,
// комбинированный платёж требует PG и не допускает BNPL.
func NewPayment(paymentKey string, orderID, memberID, totalAmount int64, paymentType PaymentType, methods []PaymentMethod) (*Payment, error) {
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: payment methods are empty", ErrInvalidPayment)
	}
	if totalAmount <= 0 {
		return nil, fmt.Errorf("%w: total amount must be positive", ErrInvalidPayment)
	}

	var methodTotal int64
	for _, m := range methods {
		if m.Amount <= 0 {
			return nil, fmt.Errorf("%w: method amount must be positive", ErrInvalidPayment)
		}
		methodTotal += m.Amount
	}
	if methodTotal != totalAmount {
		return nil, fmt.Errorf("%w: methods sum %d does not match total %d", ErrInvalidPayment, methodTotal, totalAmount)
	}

	if err := validateMethodRules(paymentType, methods); err != nil {
		return nil, err
	}

	p := &Payment{
		PaymentKey:  paymentKey,
		OrderID:     orderID,
		MemberID:    memberID,
		TotalAmount: totalAmount,
		Type:        paymentType,
		Methods:     make([]PaymentMethod, len(methods)),
		Status:      PaymentStatusPending,
	}
	copy(p.Methods, methods)
	for i := range p.Methods {
		p.Methods[i].Status = MethodStatusPending
	}
	return p, nil
}

// ValidateMethodRules проверяет сочетание способов оплаты без построения платежа.
// Используется координатором заказа как предварительная проверка до сохранения.
func ValidateMethodRules(paymentType PaymentType, methods []PaymentMethod) error {
	return validateMethodRules(paymentType, methods)
}

func validateMethodRules(paymentType PaymentType, methods []PaymentMethod) error {
	switch paymentType {
	case PaymentTypeSingle:
		if len(methods) != 1 {
			return fmt.Errorf("%w: single payment requires exactly one method", ErrInvalidPayment)
		}
		if methods[0].Type == MethodCoupon {
			return fmt.Errorf("%w: coupon cannot be the sole payment method", ErrInvalidPayment)
		}
	case PaymentTypeCombined:
		if len(methods) < 2 {
			return fmt.Errorf("%w: combined payment requires more than one method", ErrInvalidPayment)
		}
		var hasPG, hasBNPL bool
		for _, m := range methods {
			if m.Type == MethodPG {
				hasPG = true
			}
			if m.Type == MethodBNPL {
				hasBNPL = true
			}
		}
		if !hasPG {
			return fmt.Errorf("%w: combined payment requires a PG method", ErrInvalidPayment)
		}
		if hasBNPL {
			return fmt.Errorf("%w: BNPL is allowed only as a single payment", ErrInvalidPayment)
		}
	default:
		return fmt.Errorf("%w: unsupported payment type %q", ErrInvalidPayment, paymentType)
	}
	return nil
}

// Complete переводит платёж из PENDING в COMPLETED.
func (p *Payment) Complete() error {
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("%w: cannot complete payment in status %s", ErrInvalidTransition, p.Status)
	}
	p.Status = PaymentStatusCompleted
	return nil
}

// Fail переводит платёж из PENDING в FAILED.
func (p *Payment) Fail() error {
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("%w: cannot fail payment in status %s", ErrInvalidTransition, p.Status)
	}
	p.Status = PaymentStatusFailed
	return nil
}

// Cancel переводит платёж из COMPLETED в CANCELLED.
func (p *Payment) Cancel() error {
	if p.Status != PaymentStatusCompleted {
		return fmt.Errorf("%w: cannot cancel payment in status %s", ErrInvalidTransition, p.Status)
	}
	p.Status = PaymentStatusCancelled
	return nil
}
