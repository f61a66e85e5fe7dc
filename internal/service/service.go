// Package service реализует координатор саги оформления заказа.
// Оформление выполняется как одна синхронная попытка без автоповторов:
// провал любого шага отменяет заказ целиком.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/commerce-system/internal/events"
	"github.com/mmeshcher/commerce-system/internal/member"
	"github.com/mmeshcher/commerce-system/internal/model"
	"github.com/mmeshcher/commerce-system/internal/payment"
	"github.com/mmeshcher/commerce-system/internal/product"
)

var (
	// ErrMemberNotFound возвращается, если участник не существует.
	ErrMemberNotFound = errors.New("member not found")
	// ErrMemberInactive возвращается, если участник не активен.
	ErrMemberInactive = errors.New("member is not active")
	// ErrProductNotFound возвращается, если хотя бы один товар заказа не существует.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock возвращается при нехватке остатка по первому же товару.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrAmountMismatch возвращается, если сумма способов оплаты не равна сумме заказа.
	ErrAmountMismatch = errors.New("payment amount does not match order amount")
)

// OrderRepository описывает хранилище заказов, используемое координатором.
type OrderRepository interface {
	SaveOrder(ctx context.Context, order *model.Order) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	GetOrdersByMember(ctx context.Context, memberID int64) ([]model.Order, error)
}

// PaymentOrchestrator описывает часть оркестратора платежей, нужную координатору.
type PaymentOrchestrator interface {
	ProcessPayment(ctx context.Context, req payment.Request) (*model.Payment, error)
}

// ItemRequest описывает одну позицию запроса на оформление заказа.
type ItemRequest struct {
	ProductID int64
	Quantity  int64
}

// PaymentSpec описывает способ оплаты заказа, выбранный покупателем.
type PaymentSpec struct {
	Type    model.PaymentType
	Methods []model.PaymentMethod
}

// CreateOrderRequest описывает запрос на оформление заказа.
type CreateOrderRequest struct {
	MemberID       int64
	Items          []ItemRequest
	DiscountAmount int64
	Payment        PaymentSpec
}

// OrderService координирует оформление заказа: проверки участника и товаров,
// проведение платежа и смену статусов заказа с публикацией событий.
type OrderService struct {
	repo      OrderRepository
	members   member.Service
	products  product.Service
	payments  PaymentOrchestrator
	publisher events.Publisher
	logger    *zap.Logger
	timeout   time.Duration
}

// NewOrderService создаёт координатор заказов.
func NewOrderService(
	repo OrderRepository,
	members member.Service,
	products product.Service,
	payments PaymentOrchestrator,
	publisher events.Publisher,
	logger *zap.Logger,
	timeout time.Duration,
) *OrderService {
	return &OrderService{
		repo:      repo,
		members:   members,
		products:  products,
		payments:  payments,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
	}
}

// CreateOrder оформляет заказ одной синхронной попыткой. До сохранения
// выполняются все дешёвые проверки: участник, товары, остатки, сумма оплаты
// и допустимость сочетания способов. Заказ сохраняется в статусе PENDING,
// затем платёж передаётся оркестратору. Неуспех платежа отменяет заказ,
// успех подтверждает его.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order items are empty", model.ErrInvalidOrder)
	}

	m, err := s.lookupMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}

	productByID, err := s.fetchProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, ir := range req.Items {
		p := productByID[ir.ProductID]
		if err := s.checkStock(ctx, p, ir.Quantity); err != nil {
			return nil, err
		}
		item, err := model.NewOrderItem(ir.ProductID, ir.Quantity, p.Price)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	order, err := model.NewOrder("ORD-"+uuid.NewString(), req.MemberID, items, req.DiscountAmount)
	if err != nil {
		return nil, err
	}

	if err := s.validatePaymentSpec(m, order, req.Payment); err != nil {
		return nil, err
	}

	if err := s.repo.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	paymentKey := "PAY-" + uuid.NewString()
	_, payErr := s.payments.ProcessPayment(ctx, payment.Request{
		PaymentKey:  paymentKey,
		OrderID:     order.ID,
		MemberID:    req.MemberID,
		TotalAmount: order.FinalAmount,
		Type:        req.Payment.Type,
		Methods:     req.Payment.Methods,
	})
	if payErr != nil {
		return nil, s.cancelAfterPaymentFailure(ctx, order, payErr)
	}

	if err := order.Confirm(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateOrderStatus(ctx, order.ID, order.Status); err != nil {
		return nil, fmt.Errorf("confirm order: %w", err)
	}

	// порядок событий важен: создание раньше подтверждения
	s.publisher.Publish(ctx, model.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		MemberID:    order.MemberID,
		TotalAmount: order.TotalAmount,
		Timestamp:   time.Now(),
	})
	s.publisher.Publish(ctx, model.OrderConfirmedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Timestamp:   time.Now(),
	})

	s.logger.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("member_id", order.MemberID),
		zap.Int64("final_amount", order.FinalAmount),
	)
	return order, nil
}

func (s *OrderService) lookupMember(ctx context.Context, memberID int64) (*model.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	m, err := s.members.Lookup(ctx, memberID)
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrMemberNotFound, memberID)
		}
		return nil, fmt.Errorf("lookup member %d: %w", memberID, err)
	}
	if m.Status != model.MemberStatusActive {
		return nil, fmt.Errorf("%w: id %d", ErrMemberInactive, memberID)
	}
	return m, nil
}

// fetchProducts загружает все товары заказа одним запросом. Отсутствие
// любого запрошенного товара отменяет оформление целиком.
func (s *OrderService) fetchProducts(ctx context.Context, items []ItemRequest) (map[int64]model.Product, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	products, err := s.products.LookupBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}

	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
		}
	}
	return byID, nil
}

func (s *OrderService) checkStock(ctx context.Context, p model.Product, quantity int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.products.CheckStock(ctx, p.ID, quantity)
	if err != nil {
		return fmt.Errorf("check stock of product %d: %w", p.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
	}
	return nil
}

// validatePaymentSpec выполняет предварительные проверки оплаты до любого
// сохранения: сумма способов равна сумме заказа, сочетание способов допустимо,
// баланса кэшпоинтов хватает на кэшпоинт-способы.
func (s *OrderService) validatePaymentSpec(m *model.Member, order *model.Order, spec PaymentSpec) error {
	var methodTotal, cashpointTotal int64
	for _, pm := range spec.Methods {
		methodTotal += pm.Amount
		if pm.Type == model.MethodCashpoint {
			cashpointTotal += pm.Amount
		}
	}
	if methodTotal != order.FinalAmount {
		return fmt.Errorf("%w: methods sum %d, order amount %d", ErrAmountMismatch, methodTotal, order.FinalAmount)
	}
	if err := model.ValidateMethodRules(spec.Type, spec.Methods); err != nil {
		return err
	}
	if cashpointTotal > m.CashpointBalance {
		return fmt.Errorf("%w: requested %d, balance %d", member.ErrInsufficientBalance, cashpointTotal, m.CashpointBalance)
	}
	return nil
}

func (s *OrderService) cancelAfterPaymentFailure(ctx context.Context, order *model.Order, cause error) error {
	if err := order.Cancel(); err != nil {
		return err
	}
	if err := s.repo.UpdateOrderStatus(ctx, order.ID, order.Status); err != nil {
		s.logger.Error("cancel order after payment failure",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		return fmt.Errorf("cancel order: %w", err)
	}

	s.publisher.Publish(ctx, model.OrderCancelledEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Reason:      cause.Error(),
		Timestamp:   time.Now(),
	})

	s.logger.Warn("order cancelled after payment failure",
		zap.String("order_number", order.OrderNumber),
		zap.Error(cause),
	)
	return cause
}

// ConfirmOrder подтверждает заказ. Допустим только переход PENDING → CONFIRMED.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.Confirm(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateOrderStatus(ctx, order.ID, order.Status); err != nil {
		return nil, fmt.Errorf("confirm order: %w", err)
	}
	s.publisher.Publish(ctx, model.OrderConfirmedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Timestamp:   time.Now(),
	})
	return order, nil
}

// CancelOrder отменяет заказ. Допустимы переходы PENDING и CONFIRMED → CANCELLED.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64, reason string) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.Cancel(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateOrderStatus(ctx, order.ID, order.Status); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	s.publisher.Publish(ctx, model.OrderCancelledEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Reason:      reason,
		Timestamp:   time.Now(),
	})
	return order, nil
}

// CompleteOrder завершает заказ. Допустим только переход CONFIRMED → COMPLETED.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.Complete(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateOrderStatus(ctx, order.ID, order.Status); err != nil {
		return nil, fmt.Errorf("complete order: %w", err)
	}
	s.publisher.Publish(ctx, model.OrderCompletedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Timestamp:   time.Now(),
	})
	return order, nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// GetOrderByNumber возвращает заказ по номеру.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return s.repo.GetOrderByNumber(ctx, orderNumber)
}

// GetOrdersByMember возвращает заказы участника.
func (s *OrderService) GetOrdersByMember(ctx context.Context, memberID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByMember(ctx, memberID)
}
