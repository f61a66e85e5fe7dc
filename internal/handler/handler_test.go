package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/commerce-system/internal/member"
	"github.com/mmeshcher/commerce-system/internal/model"
	"github.com/mmeshcher/commerce-system/internal/payment"
	"github.com/mmeshcher/commerce-system/internal/repository"
	"github.com/mmeshcher/commerce-system/internal/service"
)

type stubOrders struct {
	order     *model.Order
	orders    []model.Order
	createErr error
	getErr    error
}

func (s *stubOrders) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*model.Order, error) {
	return s.order, s.createErr
}

func (s *stubOrders) ConfirmOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.order, s.getErr
}

func (s *stubOrders) CancelOrder(ctx context.Context, orderID int64, reason string) (*model.Order, error) {
	return s.order, s.getErr
}

func (s *stubOrders) CompleteOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.order, s.getErr
}

func (s *stubOrders) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.order, s.getErr
}

func (s *stubOrders) GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return s.order, s.getErr
}

func (s *stubOrders) GetOrdersByMember(ctx context.Context, memberID int64) ([]model.Order, error) {
	return s.orders, s.getErr
}

type stubPaymentsService struct {
	payment   *model.Payment
	getErr    error
	cancelErr error
}

func (s *stubPaymentsService) GetPayment(ctx context.Context, key string) (*model.Payment, error) {
	return s.payment, s.getErr
}

func (s *stubPaymentsService) CancelPayment(ctx context.Context, key, reason string) (*model.Payment, error) {
	return s.payment, s.cancelErr
}

type stubMemberService struct {
	member    *model.Member
	lookupErr error
	deductErr error
}

func (s *stubMemberService) Lookup(ctx context.Context, memberID int64) (*model.Member, error) {
	return s.member, s.lookupErr
}

func (s *stubMemberService) DeductBalance(ctx context.Context, memberID, amount int64, key string) error {
	return s.deductErr
}

func (s *stubMemberService) RefundBalance(ctx context.Context, memberID, amount int64, key string) error {
	return nil
}

type stubProductService struct {
	products []model.Product
	stock    int64
	checkOK  bool
	err      error
}

func (s *stubProductService) LookupBatch(ctx context.Context, ids []int64) ([]model.Product, error) {
	return s.products, s.err
}

func (s *stubProductService) CheckStock(ctx context.Context, productID, quantity int64) (bool, error) {
	return s.checkOK, s.err
}

func (s *stubProductService) DeductStock(ctx context.Context, productID, quantity int64, key string) (int64, error) {
	return s.stock, s.err
}

func (s *stubProductService) RestoreStock(ctx context.Context, productID, quantity int64, key string) (int64, error) {
	return s.stock, s.err
}

type handlerStubs struct {
	orders   *stubOrders
	payments *stubPaymentsService
	members  *stubMemberService
	products *stubProductService
}

func newTestRouter(t *testing.T, stubs handlerStubs) http.Handler {
	t.Helper()

	if stubs.orders == nil {
		stubs.orders = &stubOrders{}
	}
	if stubs.payments == nil {
		stubs.payments = &stubPaymentsService{}
	}
	if stubs.members == nil {
		stubs.members = &stubMemberService{}
	}
	if stubs.products == nil {
		stubs.products = &stubProductService{}
	}

	h := NewHandler(stubs.orders, stubs.payments, stubs.members, stubs.products, zap.NewNop())
	return h.SetupRouter()
}

func testOrder(t *testing.T) *model.Order {
	t.Helper()

	item, err := model.NewOrderItem(1, 2, 5000)
	if err != nil {
		t.Fatalf("NewOrderItem error: %v", err)
	}
	o, err := model.NewOrder("ORD-test", 42, []model.OrderItem{item}, 0)
	if err != nil {
		t.Fatalf("NewOrder error: %v", err)
	}
	o.ID = 1
	return o
}

func createOrderBody(t *testing.T) []byte {
	t.Helper()

	body, err := json.Marshal(createOrderRequest{
		MemberID: 42,
		Items:    []itemRequest{{ProductID: 1, Quantity: 2}},
		Payment: paymentSpecRequest{
			Type:    "SINGLE",
			Methods: []methodRequest{{Type: "PG", Amount: 10000}},
		},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return body
}

func TestCreateOrder_Created(t *testing.T) {
	router := newTestRouter(t, handlerStubs{orders: &stubOrders{order: testOrder(t)}})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(createOrderBody(t)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OrderNumber != "ORD-test" || resp.TotalAmount != 10000 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateOrder_PaymentFailure(t *testing.T) {
	router := newTestRouter(t, handlerStubs{orders: &stubOrders{
		createErr: fmt.Errorf("%w: payment declined", payment.ErrPaymentFailed),
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(createOrderBody(t)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"member not found", service.ErrMemberNotFound, http.StatusNotFound},
		{"product not found", service.ErrProductNotFound, http.StatusNotFound},
		{"member inactive", service.ErrMemberInactive, http.StatusConflict},
		{"insufficient stock", service.ErrInsufficientStock, http.StatusConflict},
		{"amount mismatch", service.ErrAmountMismatch, http.StatusBadRequest},
		{"invalid payment", model.ErrInvalidPayment, http.StatusBadRequest},
		{"insufficient balance", member.ErrInsufficientBalance, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, handlerStubs{orders: &stubOrders{createErr: tt.err}})

			req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(createOrderBody(t)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	router := newTestRouter(t, handlerStubs{orders: &stubOrders{getErr: repository.ErrOrderNotFound}})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetOrders_NoContent(t *testing.T) {
	router := newTestRouter(t, handlerStubs{orders: &stubOrders{orders: []model.Order{}}})

	req := httptest.NewRequest(http.MethodGet, "/api/orders?member=42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestCancelPayment_InvalidTransition(t *testing.T) {
	router := newTestRouter(t, handlerStubs{payments: &stubPaymentsService{
		cancelErr: fmt.Errorf("%w: cannot cancel payment in status PENDING", model.ErrInvalidTransition),
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/PAY-1/cancel", bytes.NewReader([]byte(`{"reason":"test"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestGetPayment_JSONResponse(t *testing.T) {
	p, err := model.NewPayment("PAY-1", 1, 42, 10000, model.PaymentTypeSingle,
		[]model.PaymentMethod{{Type: model.MethodPG, Amount: 10000}})
	if err != nil {
		t.Fatalf("NewPayment error: %v", err)
	}
	router := newTestRouter(t, handlerStubs{payments: &stubPaymentsService{payment: p}})

	req := httptest.NewRequest(http.MethodGet, "/api/payments/PAY-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp paymentResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentKey != "PAY-1" || resp.MemberID != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDeductBalance_PaymentRequiredOnInsufficient(t *testing.T) {
	router := newTestRouter(t, handlerStubs{members: &stubMemberService{deductErr: member.ErrInsufficientBalance}})

	body := []byte(`{"amount":60000,"idempotency_key":"k1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/members/42/cashpoint/deduct", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}
}

func TestCheckStock_Available(t *testing.T) {
	router := newTestRouter(t, handlerStubs{products: &stubProductService{checkOK: true}})

	req := httptest.NewRequest(http.MethodGet, "/api/products/1/stock/check?quantity=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(rec.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Available {
		t.Fatal("available = false, want true")
	}
}
