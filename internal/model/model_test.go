package model

import (
	"errors"
	"testing"
)

func TestNewOrder_ComputesTotal(t *testing.T) {
	item, err := NewOrderItem(1, 2, 10000)
	if err != nil {
		t.Fatalf("NewOrderItem error: %v", err)
	}

	order, err := NewOrder("ORD-1", 42, []OrderItem{item}, 0)
	if err != nil {
		t.Fatalf("NewOrder error: %v", err)
	}

	if order.TotalAmount != 20000 {
		t.Fatalf("TotalAmount = %d, want 20000", order.TotalAmount)
	}
	if order.FinalAmount != 20000 {
		t.Fatalf("FinalAmount = %d, want 20000", order.FinalAmount)
	}
	if order.Status != OrderStatusPending {
		t.Fatalf("Status = %s, want PENDING", order.Status)
	}
}

func TestNewOrder_EmptyItems(t *testing.T) {
	_, err := NewOrder("ORD-1", 42, nil, 0)
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestNewOrder_DiscountExceedsTotal(t *testing.T) {
	item, _ := NewOrderItem(1, 1, 100)
	_, err := NewOrder("ORD-1", 42, []OrderItem{item}, 200)
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestNewOrderItem_Validation(t *testing.T) {
	if _, err := NewOrderItem(1, 0, 100); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for zero quantity, got %v", err)
	}
	if _, err := NewOrderItem(1, 1, 0); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for zero price, got %v", err)
	}
}

func TestOrderTransitions(t *testing.T) {
	item, _ := NewOrderItem(1, 1, 100)
	order, _ := NewOrder("ORD-1", 1, []OrderItem{item}, 0)

	if err := order.Confirm(); err != nil {
		t.Fatalf("Confirm on PENDING: %v", err)
	}
	if order.Status != OrderStatusConfirmed {
		t.Fatalf("Status = %s, want CONFIRMED", order.Status)
	}

	if err := order.Confirm(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Confirm must fail with ErrInvalidTransition, got %v", err)
	}

	if err := order.Complete(); err != nil {
		t.Fatalf("Complete on CONFIRMED: %v", err)
	}

	if err := order.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Cancel on COMPLETED must fail, got %v", err)
	}
}

func TestOrderCancelFromPendingAndConfirmed(t *testing.T) {
	item, _ := NewOrderItem(1, 1, 100)

	pending, _ := NewOrder("ORD-1", 1, []OrderItem{item}, 0)
	if err := pending.Cancel(); err != nil {
		t.Fatalf("Cancel on PENDING: %v", err)
	}

	confirmed, _ := NewOrder("ORD-2", 1, []OrderItem{item}, 0)
	_ = confirmed.Confirm()
	if err := confirmed.Cancel(); err != nil {
		t.Fatalf("Cancel on CONFIRMED: %v", err)
	}
}
