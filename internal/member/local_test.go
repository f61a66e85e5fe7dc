package member

import (
	"context"
	"errors"
	"testing"

	"github.com/mmeshcher/commerce-system/internal/ledger"
	"github.com/mmeshcher/commerce-system/internal/model"
	"github.com/mmeshcher/commerce-system/internal/repository"
)

type stubStore struct {
	members map[int64]*model.Member
}

func (s *stubStore) GetMember(ctx context.Context, memberID int64) (*model.Member, error) {
	m, ok := s.members[memberID]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	return m, nil
}

func newLocalWithBalance(memberID, balance int64, active bool) (*Local, *ledger.Memory) {
	led := ledger.NewMemory()
	led.Put(memberID, balance, active)

	status := model.MemberStatusActive
	if !active {
		status = model.MemberStatusInactive
	}

	store := &stubStore{members: map[int64]*model.Member{
		memberID: {ID: memberID, Name: "member", CashpointBalance: balance, Status: status},
	}}
	return NewLocal(store, led, 3), led
}

func TestLocalLookup_NotFound(t *testing.T) {
	svc, _ := newLocalWithBalance(1, 100, true)

	_, err := svc.Lookup(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalDeduct_InsufficientBalanceKeepsValue(t *testing.T) {
	svc, led := newLocalWithBalance(1, 50000, true)

	err := svc.DeductBalance(context.Background(), 1, 60000, "tx-1")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	v, _ := led.Value(1)
	if v != 50000 {
		t.Fatalf("balance = %d, want 50000 unchanged", v)
	}
}

func TestLocalDeductAndRefund_RoundTrip(t *testing.T) {
	svc, led := newLocalWithBalance(1, 10000, true)

	if err := svc.DeductBalance(context.Background(), 1, 4000, "tx-1"); err != nil {
		t.Fatalf("DeductBalance error: %v", err)
	}
	v, _ := led.Value(1)
	if v != 6000 {
		t.Fatalf("balance after deduct = %d, want 6000", v)
	}

	if err := svc.RefundBalance(context.Background(), 1, 4000, "tx-1"); err != nil {
		t.Fatalf("RefundBalance error: %v", err)
	}
	v, _ = led.Value(1)
	if v != 10000 {
		t.Fatalf("balance after refund = %d, want 10000", v)
	}
}

func TestLocalDeduct_InactiveMember(t *testing.T) {
	svc, _ := newLocalWithBalance(1, 10000, false)

	err := svc.DeductBalance(context.Background(), 1, 100, "tx-1")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance for inactive member, got %v", err)
	}
}

func TestLocalRefund_WorksForInactiveMember(t *testing.T) {
	svc, led := newLocalWithBalance(1, 100, false)

	if err := svc.RefundBalance(context.Background(), 1, 50, "tx-1"); err != nil {
		t.Fatalf("refund for inactive member must work: %v", err)
	}
	v, _ := led.Value(1)
	if v != 150 {
		t.Fatalf("balance = %d, want 150", v)
	}
}
