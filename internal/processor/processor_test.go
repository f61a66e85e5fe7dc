package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/mmeshcher/commerce-system/internal/model"
)

func TestRegistry_ResolvesByType(t *testing.T) {
	reg, err := NewRegistry(
		NewPG(100, 0),
		NewCoupon(0),
		NewBNPL(100, 0),
	)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}

	p, err := reg.Resolve(model.MethodPG)
	if err != nil {
		t.Fatalf("Resolve(PG) error: %v", err)
	}
	if !p.Supports(model.MethodPG) {
		t.Fatalf("resolved processor does not support PG")
	}

	_, err = reg.Resolve(model.MethodCashpoint)
	if !errors.Is(err, ErrProcessorNotFound) {
		t.Fatalf("expected ErrProcessorNotFound, got %v", err)
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	_, err := NewRegistry(NewPG(100, 0), NewPG(50, 0))
	if !errors.Is(err, ErrDuplicateProcessor) {
		t.Fatalf("expected ErrDuplicateProcessor, got %v", err)
	}
}

func TestPG_SuccessAndDecline(t *testing.T) {
	method := &model.PaymentMethod{Type: model.MethodPG, Amount: 1000}

	res, err := NewPG(100, 0).Process(context.Background(), method, 1)
	if err != nil {
		t.Fatalf("PG with 100%% success rate failed: %v", err)
	}
	if res.ExternalTransactionID == "" {
		t.Fatalf("expected external transaction id")
	}

	_, err = NewPG(0, 0).Process(context.Background(), method, 1)
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("PG with 0%% success rate must decline, got %v", err)
	}
}

func TestBNPL_SuccessAndDecline(t *testing.T) {
	method := &model.PaymentMethod{Type: model.MethodBNPL, Amount: 1000}

	res, err := NewBNPL(100, 0).Process(context.Background(), method, 1)
	if err != nil {
		t.Fatalf("BNPL with 100%% success rate failed: %v", err)
	}
	if res.ExternalTransactionID == "" {
		t.Fatalf("expected external transaction id")
	}

	_, err = NewBNPL(0, 0).Process(context.Background(), method, 1)
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("BNPL with 0%% success rate must decline, got %v", err)
	}
}

func TestCoupon_Validation(t *testing.T) {
	c := NewCoupon(0)

	valid := &model.PaymentMethod{
		Type:           model.MethodCoupon,
		Amount:         500,
		AdditionalInfo: map[string]string{"couponCode": "WELCOME10"},
	}
	res, err := c.Process(context.Background(), valid, 1)
	if err != nil {
		t.Fatalf("valid coupon rejected: %v", err)
	}
	if res.ExternalTransactionID == "" {
		t.Fatalf("expected external transaction id")
	}

	missing := &model.PaymentMethod{Type: model.MethodCoupon, Amount: 500}
	_, err = c.Process(context.Background(), missing, 1)
	if !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("expected ErrInvalidCoupon, got %v", err)
	}
}

type stubMembers struct {
	deducted []int64
	refunded []int64

	deductErr error
}

func (s *stubMembers) Lookup(ctx context.Context, memberID int64) (*model.Member, error) {
	return nil, nil
}

func (s *stubMembers) DeductBalance(ctx context.Context, memberID, amount int64, idempotencyKey string) error {
	if s.deductErr != nil {
		return s.deductErr
	}
	s.deducted = append(s.deducted, amount)
	return nil
}

func (s *stubMembers) RefundBalance(ctx context.Context, memberID, amount int64, idempotencyKey string) error {
	s.refunded = append(s.refunded, amount)
	return nil
}

func TestCashpoint_ProcessAndCancel(t *testing.T) {
	members := &stubMembers{}
	c := NewCashpoint(members)

	method := &model.PaymentMethod{Type: model.MethodCashpoint, Amount: 2000}

	res, err := c.Process(context.Background(), method, 7)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if res.ExternalTransactionID == "" {
		t.Fatalf("expected external transaction id")
	}
	if len(members.deducted) != 1 || members.deducted[0] != 2000 {
		t.Fatalf("unexpected deductions: %v", members.deducted)
	}

	method.Complete(res.ExternalTransactionID)
	if err := c.Cancel(context.Background(), method, 7); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if len(members.refunded) != 1 || members.refunded[0] != 2000 {
		t.Fatalf("unexpected refunds: %v", members.refunded)
	}
}

func TestCashpoint_ProcessPropagatesFailure(t *testing.T) {
	members := &stubMembers{deductErr: errors.New("insufficient cashpoint balance")}
	c := NewCashpoint(members)

	method := &model.PaymentMethod{Type: model.MethodCashpoint, Amount: 2000}
	_, err := c.Process(context.Background(), method, 7)
	if err == nil {
		t.Fatalf("expected error from deduct failure")
	}
}
