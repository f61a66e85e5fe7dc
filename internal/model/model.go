// Package model содержит доменные сущности коммерческой системы заказов.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition возвращается при попытке недопустимого перехода статуса.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrInvalidOrder возвращается при нарушении инвариантов заказа.
var ErrInvalidOrder = errors.New("invalid order")

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderItem описывает позицию заказа с зафиксированной ценой на момент оформления.
// После создания позиция не изменяется.
type OrderItem struct {
	ProductID  int64
	Quantity   int64
	UnitPrice  int64
	TotalPrice int64
}

// NewOrderItem создаёт позицию заказа и проверяет её инварианты.
func NewOrderItem(productID, quantity, unitPrice int64) (OrderItem, error) {
	if quantity <= 0 {
		return OrderItem{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if unitPrice <= 0 {
		return OrderItem{}, fmt.Errorf("%w: unit price must be positive", ErrInvalidOrder)
	}
	return OrderItem{
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice * quantity,
	}, nil
}

// Order описывает заказ покупателя. Платёж ссылается на заказ по OrderID,
// обратной ссылки на платёж заказ не хранит.
type Order struct {
	ID             int64
	OrderNumber    string
	MemberID       int64
	Items          []OrderItem
	TotalAmount    int64
	DiscountAmount int64
	FinalAmount    int64
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrder создаёт заказ в статусе PENDING, вычисляя итоговую сумму по позициям.
func NewOrder(orderNumber string, memberID int64, items []OrderItem, discountAmount int64) (*Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order items are empty", ErrInvalidOrder)
	}
	if discountAmount < 0 {
		return nil, fmt.Errorf("%w: discount must not be negative", ErrInvalidOrder)
	}

	var total int64
	for _, it := range items {
		total += it.TotalPrice
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total amount must be positive", ErrInvalidOrder)
	}

	final := total - discountAmount
	if final < 0 {
		return nil, fmt.Errorf("%w: final amount must not be negative", ErrInvalidOrder)
	}

	return &Order{
		OrderNumber:    orderNumber,
		MemberID:       memberID,
		Items:          items,
		TotalAmount:    total,
		DiscountAmount: discountAmount,
		FinalAmount:    final,
		Status:         OrderStatusPending,
	}, nil
}

// Confirm переводит заказ из PENDING в CONFIRMED.
func (o *Order) Confirm() error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: cannot confirm order in status %s", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusConfirmed
	return nil
}

// Cancel переводит заказ из PENDING или CONFIRMED в CANCELLED.
func (o *Order) Cancel() error {
	if o.Status != OrderStatusPending && o.Status != OrderStatusConfirmed {
		return fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusCancelled
	return nil
}

// Complete переводит заказ из CONFIRMED в COMPLETED.
func (o *Order) Complete() error {
	if o.Status != OrderStatusConfirmed {
		return fmt.Errorf("%w: cannot complete order in status %s", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusCompleted
	return nil
}

// MemberStatus описывает статус участника.
type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "ACTIVE"
	MemberStatusInactive  MemberStatus = "INACTIVE"
	MemberStatusSuspended MemberStatus = "SUSPENDED"
)

// Member описывает участника системы с балансом кэшпоинтов.
// Баланс изменяется только через леджер, другие пути записи запрещены.
type Member struct {
	ID               int64
	Name             string
	CashpointBalance int64
	Status           MemberStatus
}

// ProductStatus описывает статус товара.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusSoldOut  ProductStatus = "SOLD_OUT"
)

// Product описывает товар с текущей ценой и остатком на складе.
type Product struct {
	ID            int64
	Name          string
	Price         int64
	StockQuantity int64
	Status        ProductStatus
}
