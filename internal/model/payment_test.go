package model

import (
	"errors"
	"testing"
)

func method(t PaymentMethodType, amount int64) PaymentMethod {
	return PaymentMethod{Type: t, Amount: amount}
}

func TestNewPayment_MethodsSumMustMatchTotal(t *testing.T) {
	_, err := NewPayment("PAY-1", 1, 42, 10000, PaymentTypeCombined,
		[]PaymentMethod{method(MethodPG, 8000), method(MethodCashpoint, 1000)})
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for amount mismatch, got %v", err)
	}

	p, err := NewPayment("PAY-2", 1, 42, 10000, PaymentTypeCombined,
		[]PaymentMethod{method(MethodPG, 8000), method(MethodCashpoint, 2000)})
	if err != nil {
		t.Fatalf("NewPayment error: %v", err)
	}

	var sum int64
	for _, m := range p.Methods {
		sum += m.Amount
	}
	if sum != p.TotalAmount {
		t.Fatalf("methods sum %d != total %d", sum, p.TotalAmount)
	}
}

func TestNewPayment_SingleCouponRejected(t *testing.T) {
	_, err := NewPayment("PAY-1", 1, 42, 5000, PaymentTypeSingle,
		[]PaymentMethod{method(MethodCoupon, 5000)})
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for single coupon, got %v", err)
	}
}

func TestNewPayment_SingleRequiresOneMethod(t *testing.T) {
	_, err := NewPayment("PAY-1", 1, 42, 10000, PaymentTypeSingle,
		[]PaymentMethod{method(MethodPG, 5000), method(MethodCashpoint, 5000)})
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment, got %v", err)
	}
}

func TestNewPayment_CombinedRequiresPG(t *testing.T) {
	_, err := NewPayment("PAY-1", 1, 42, 10000, PaymentTypeCombined,
		[]PaymentMethod{method(MethodCashpoint, 5000), method(MethodCoupon, 5000)})
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for combined without PG, got %v", err)
	}
}

func TestNewPayment_CombinedRejectsBNPL(t *testing.T) {
	_, err := NewPayment("PAY-1", 1, 42, 10000, PaymentTypeCombined,
		[]PaymentMethod{method(MethodPG, 5000), method(MethodBNPL, 5000)})
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for combined with BNPL, got %v", err)
	}
}

func TestNewPayment_SingleBNPLAllowed(t *testing.T) {
	p, err := NewPayment("PAY-1", 1, 42, 10000, PaymentTypeSingle,
		[]PaymentMethod{method(MethodBNPL, 10000)})
	if err != nil {
		t.Fatalf("single BNPL must be allowed: %v", err)
	}
	if p.Status != PaymentStatusPending {
		t.Fatalf("Status = %s, want PENDING", p.Status)
	}
}

func TestPaymentTransitions(t *testing.T) {
	p, err := NewPayment("PAY-1", 1, 42, 10000, PaymentTypeSingle,
		[]PaymentMethod{method(MethodPG, 10000)})
	if err != nil {
		t.Fatalf("NewPayment error: %v", err)
	}

	if err := p.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Cancel on PENDING must fail, got %v", err)
	}

	if err := p.Complete(); err != nil {
		t.Fatalf("Complete on PENDING: %v", err)
	}
	if err := p.Fail(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fail on COMPLETED must fail, got %v", err)
	}
	if err := p.Cancel(); err != nil {
		t.Fatalf("Cancel on COMPLETED: %v", err)
	}
	if err := p.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Cancel on CANCELLED must fail, got %v", err)
	}
}

func TestPaymentMethodComplete(t *testing.T) {
	m := method(MethodPG, 100)
	m.Complete("PG-abc")
	if m.Status != MethodStatusCompleted || m.ExternalTransactionID != "PG-abc" {
		t.Fatalf("unexpected method state: %+v", m)
	}
}
