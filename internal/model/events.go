package model

import "time"

// Event описывает доменное событие заказа или платежа.
// Kind возвращает строковый тип события для маршрутизации потребителями.
type Event interface {
	Kind() string
	OccurredAt() time.Time
}

// OrderCreatedEvent публикуется после успешного оформления заказа.
type OrderCreatedEvent struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	MemberID    int64     `json:"member_id"`
	TotalAmount int64     `json:"total_amount"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e OrderCreatedEvent) Kind() string          { return "order.created" }
func (e OrderCreatedEvent) OccurredAt() time.Time { return e.Timestamp }

// OrderConfirmedEvent публикуется при подтверждении заказа.
type OrderConfirmedEvent struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e OrderConfirmedEvent) Kind() string          { return "order.confirmed" }
func (e OrderConfirmedEvent) OccurredAt() time.Time { return e.Timestamp }

// OrderCancelledEvent публикуется при отмене заказа с указанием причины.
type OrderCancelledEvent struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e OrderCancelledEvent) Kind() string          { return "order.cancelled" }
func (e OrderCancelledEvent) OccurredAt() time.Time { return e.Timestamp }

// OrderCompletedEvent публикуется при завершении заказа.
type OrderCompletedEvent struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e OrderCompletedEvent) Kind() string          { return "order.completed" }
func (e OrderCompletedEvent) OccurredAt() time.Time { return e.Timestamp }

// PaymentCompletedEvent публикуется после успешного проведения всех способов оплаты.
type PaymentCompletedEvent struct {
	PaymentKey string    `json:"payment_key"`
	OrderID    int64     `json:"order_id"`
	Amount     int64     `json:"amount"`
	MemberID   int64     `json:"member_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e PaymentCompletedEvent) Kind() string          { return "payment.completed" }
func (e PaymentCompletedEvent) OccurredAt() time.Time { return e.Timestamp }

// PaymentFailedEvent публикуется при неуспехе платежа после отката способов оплаты.
type PaymentFailedEvent struct {
	PaymentKey string    `json:"payment_key"`
	OrderID    int64     `json:"order_id"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e PaymentFailedEvent) Kind() string          { return "payment.failed" }
func (e PaymentFailedEvent) OccurredAt() time.Time { return e.Timestamp }

// PaymentCancelledEvent публикуется при отмене завершённого платежа.
type PaymentCancelledEvent struct {
	PaymentKey string    `json:"payment_key"`
	OrderID    int64     `json:"order_id"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e PaymentCancelledEvent) Kind() string          { return "payment.cancelled" }
func (e PaymentCancelledEvent) OccurredAt() time.Time { return e.Timestamp }
