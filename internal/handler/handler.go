// Package handler содержит HTTP-обработчики API сервиса заказов и платежей.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/commerce-system/internal/member"
	"github.com/mmeshcher/commerce-system/internal/model"
	"github.com/mmeshcher/commerce-system/internal/payment"
	"github.com/mmeshcher/commerce-system/internal/product"
	"github.com/mmeshcher/commerce-system/internal/repository"
	"github.com/mmeshcher/commerce-system/internal/service"
)

// OrderService определяет контракт координатора заказов, используемый обработчиками.
type OrderService interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*model.Order, error)
	ConfirmOrder(ctx context.Context, orderID int64) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID int64, reason string) (*model.Order, error)
	CompleteOrder(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	GetOrdersByMember(ctx context.Context, memberID int64) ([]model.Order, error)
}

// PaymentService определяет контракт оркестратора платежей, используемый обработчиками.
type PaymentService interface {
	GetPayment(ctx context.Context, paymentKey string) (*model.Payment, error)
	CancelPayment(ctx context.Context, paymentKey, reason string) (*model.Payment, error)
}

// Handler реализует HTTP-обработчики API сервиса.
type Handler struct {
	orders   OrderService
	payments PaymentService
	members  member.Service
	products product.Service
	logger   *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(orders OrderService, payments PaymentService, members member.Service, products product.Service, logger *zap.Logger) *Handler {
	return &Handler{
		orders:   orders,
		payments: payments,
		members:  members,
		products: products,
		logger:   logger,
	}
}

type itemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type methodRequest struct {
	Type           string            `json:"type"`
	Amount         int64             `json:"amount"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty"`
}

type paymentSpecRequest struct {
	Type    string          `json:"type"`
	Methods []methodRequest `json:"methods"`
}

type createOrderRequest struct {
	MemberID       int64              `json:"member_id"`
	Items          []itemRequest      `json:"items"`
	DiscountAmount int64              `json:"discount_amount"`
	Payment        paymentSpecRequest `json:"payment"`
}

type orderItemResponse struct {
	ProductID  int64 `json:"product_id"`
	Quantity   int64 `json:"quantity"`
	UnitPrice  int64 `json:"unit_price"`
	TotalPrice int64 `json:"total_price"`
}

type orderResponse struct {
	ID             int64               `json:"id"`
	OrderNumber    string              `json:"order_number"`
	MemberID       int64               `json:"member_id"`
	TotalAmount    int64               `json:"total_amount"`
	DiscountAmount int64               `json:"discount_amount"`
	FinalAmount    int64               `json:"final_amount"`
	Status         string              `json:"status"`
	Items          []orderItemResponse `json:"items"`
	CreatedAt      string              `json:"created_at,omitempty"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		})
	}
	resp := orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		MemberID:       o.MemberID,
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount,
		Status:         string(o.Status),
		Items:          items,
	}
	if !o.CreatedAt.IsZero() {
		resp.CreatedAt = o.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

type methodResponse struct {
	Type                  string `json:"type"`
	Amount                int64  `json:"amount"`
	Status                string `json:"status"`
	ExternalTransactionID string `json:"external_transaction_id,omitempty"`
}

type paymentResponse struct {
	PaymentKey  string           `json:"payment_key"`
	OrderID     int64            `json:"order_id"`
	MemberID    int64            `json:"member_id"`
	TotalAmount int64            `json:"total_amount"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	Methods     []methodResponse `json:"methods"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	methods := make([]methodResponse, 0, len(p.Methods))
	for _, m := range p.Methods {
		methods = append(methods, methodResponse{
			Type:                  string(m.Type),
			Amount:                m.Amount,
			Status:                string(m.Status),
			ExternalTransactionID: m.ExternalTransactionID,
		})
	}
	return paymentResponse{
		PaymentKey:  p.PaymentKey,
		OrderID:     p.OrderID,
		MemberID:    p.MemberID,
		TotalAmount: p.TotalAmount,
		Type:        string(p.Type),
		Status:      string(p.Status),
		Methods:     methods,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// writeError сопоставляет ошибки бизнес-логики с HTTP-статусами:
// отсутствие сущности — 404, некорректный запрос — 400, конфликт бизнес-правила
// или недопустимый переход — 409, неуспех платежа — 402, остальное — 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, member.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrMemberNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidOrder),
		errors.Is(err, model.ErrInvalidPayment),
		errors.Is(err, service.ErrAmountMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, payment.ErrPaymentFailed):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, service.ErrMemberInactive),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, member.ErrInsufficientBalance),
		errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, model.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// CreateOrder оформляет новый заказ с оплатой.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.MemberID <= 0 || len(req.Items) == 0 || len(req.Payment.Methods) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]service.ItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	methods := make([]model.PaymentMethod, 0, len(req.Payment.Methods))
	for _, m := range req.Payment.Methods {
		methods = append(methods, model.PaymentMethod{
			Type:           model.PaymentMethodType(m.Type),
			Amount:         m.Amount,
			AdditionalInfo: m.AdditionalInfo,
		})
	}

	order, err := h.orders.CreateOrder(r.Context(), service.CreateOrderRequest{
		MemberID:       req.MemberID,
		Items:          items,
		DiscountAmount: req.DiscountAmount,
		Payment: service.PaymentSpec{
			Type:    model.PaymentType(req.Payment.Type),
			Methods: methods,
		},
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func orderIDFromRequest(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDFromRequest(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetOrderByNumber возвращает заказ по номеру.
func (h *Handler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrderByNumber(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetOrders возвращает заказы участника, указанного в параметре member.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	memberID, err := strconv.ParseInt(r.URL.Query().Get("member"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	orders, err := h.orders.GetOrdersByMember(r.Context(), memberID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ConfirmOrder подтверждает заказ.
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, h.orders.ConfirmOrder)
}

// CompleteOrder завершает заказ.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, h.orders.CompleteOrder)
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) (*model.Order, error)) {
	orderID, err := orderIDFromRequest(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := op(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder отменяет заказ с указанием причины.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDFromRequest(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "cancelled by request"
	}

	order, err := h.orders.CancelOrder(r.Context(), orderID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetPayment возвращает платёж по ключу.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.GetPayment(r.Context(), chi.URLParam(r, "paymentKey"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

// CancelPayment отменяет завершённый платёж.
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "cancelled by request"
	}

	p, err := h.payments.CancelPayment(r.Context(), chi.URLParam(r, "paymentKey"), req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

type memberResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	CashpointBalance int64  `json:"cashpoint_balance"`
	Status           string `json:"status"`
}

// GetMember возвращает участника по идентификатору.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := strconv.ParseInt(chi.URLParam(r, "memberID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	m, err := h.members.Lookup(r.Context(), memberID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, memberResponse{
		ID:               m.ID,
		Name:             m.Name,
		CashpointBalance: m.CashpointBalance,
		Status:           string(m.Status),
	})
}

type balanceRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// DeductBalance списывает кэшпоинты участника.
func (h *Handler) DeductBalance(w http.ResponseWriter, r *http.Request) {
	h.applyBalance(w, r, h.members.DeductBalance)
}

// RefundBalance возвращает кэшпоинты участнику.
func (h *Handler) RefundBalance(w http.ResponseWriter, r *http.Request) {
	h.applyBalance(w, r, h.members.RefundBalance)
}

func (h *Handler) applyBalance(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int64, string) error) {
	memberID, err := strconv.ParseInt(chi.URLParam(r, "memberID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req balanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := op(r.Context(), memberID, req.Amount, req.IdempotencyKey); err != nil {
		if errors.Is(err, member.ErrInsufficientBalance) {
			http.Error(w, err.Error(), http.StatusPaymentRequired)
			return
		}
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type productResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	StockQuantity int64  `json:"stock_quantity"`
	Status        string `json:"status"`
}

// GetProducts возвращает товары по списку идентификаторов в параметре ids.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	rawIDs := strings.Split(r.URL.Query().Get("ids"), ",")
	ids := make([]int64, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		ids = append(ids, id)
	}

	products, err := h.products.LookupBatch(r.Context(), ids)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productResponse{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price,
			StockQuantity: p.StockQuantity,
			Status:        string(p.Status),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CheckStock проверяет достаточность остатка товара.
func (h *Handler) CheckStock(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil || quantity <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	available, err := h.products.CheckStock(r.Context(), productID, quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

type stockRequest struct {
	Quantity       int64  `json:"quantity"`
	IdempotencyKey string `json:"idempotency_key"`
}

type stockResponse struct {
	StockQuantity int64 `json:"stock_quantity"`
}

// DeductStock списывает остаток товара.
func (h *Handler) DeductStock(w http.ResponseWriter, r *http.Request) {
	h.applyStock(w, r, h.products.DeductStock)
}

// RestoreStock восстанавливает остаток товара.
func (h *Handler) RestoreStock(w http.ResponseWriter, r *http.Request) {
	h.applyStock(w, r, h.products.RestoreStock)
}

func (h *Handler) applyStock(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int64, string) (int64, error)) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	stock, err := op(r.Context(), productID, req.Quantity, req.IdempotencyKey)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stockResponse{StockQuantity: stock})
}
