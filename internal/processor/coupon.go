package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/commerce-system/internal/model"
)

// ErrInvalidCoupon возвращается для отсутствующего или пустого кода купона.
var ErrInvalidCoupon = errors.New("invalid coupon")

// additionalInfoCouponCode — ключ кода купона в дополнительных данных способа оплаты.
const additionalInfoCouponCode = "couponCode"

// Coupon применяет купон из дополнительных данных способа оплаты.
// Запрет купона как единственного способа оплаты проверяется инвариантом
// платежа, а не обработчиком.
type Coupon struct {
	latency time.Duration
}

// NewCoupon создаёт обработчик купонов.
func NewCoupon(latency time.Duration) *Coupon {
	return &Coupon{latency: latency}
}

// Supports возвращает true для типа COUPON.
func (c *Coupon) Supports(methodType model.PaymentMethodType) bool {
	return methodType == model.MethodCoupon
}

// Process проверяет код купона и помечает его применённым.
func (c *Coupon) Process(ctx context.Context, method *model.PaymentMethod, memberID int64) (Result, error) {
	if err := simulateLatency(ctx, c.latency); err != nil {
		return Result{}, fmt.Errorf("coupon validation: %w", err)
	}

	code := method.AdditionalInfo[additionalInfoCouponCode]
	if code == "" {
		return Result{}, fmt.Errorf("%w: coupon code is missing", ErrInvalidCoupon)
	}

	return Result{ExternalTransactionID: "COUPON-" + code + "-" + uuid.NewString()}, nil
}

// Cancel восстанавливает купон для повторного использования.
func (c *Coupon) Cancel(ctx context.Context, method *model.PaymentMethod, memberID int64) error {
	if err := simulateLatency(ctx, c.latency/2); err != nil {
		return fmt.Errorf("coupon restore: %w", err)
	}
	return nil
}
