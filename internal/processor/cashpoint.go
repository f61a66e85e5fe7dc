package processor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/commerce-system/internal/member"
	"github.com/mmeshcher/commerce-system/internal/model"
)

// Cashpoint проводит оплату кэшпоинтами через сервис участников.
// Сам баланс изменяется леджером на стороне владельца данных.
type Cashpoint struct {
	members member.Service
}

// NewCashpoint создаёт обработчик оплаты кэшпоинтами.
func NewCashpoint(members member.Service) *Cashpoint {
	return &Cashpoint{members: members}
}

// Supports возвращает true для типа CASHPOINT.
func (c *Cashpoint) Supports(methodType model.PaymentMethodType) bool {
	return methodType == model.MethodCashpoint
}

// Process списывает кэшпоинты участника. Сгенерированный идентификатор
// транзакции служит ключом идемпотентности и ключом последующей компенсации.
func (c *Cashpoint) Process(ctx context.Context, method *model.PaymentMethod, memberID int64) (Result, error) {
	transactionID := "CP-" + uuid.NewString()

	if err := c.members.DeductBalance(ctx, memberID, method.Amount, transactionID); err != nil {
		return Result{}, fmt.Errorf("cashpoint deduct: %w", err)
	}

	return Result{ExternalTransactionID: transactionID}, nil
}

// Cancel возвращает списанные кэшпоинты по ключу исходной транзакции.
func (c *Cashpoint) Cancel(ctx context.Context, method *model.PaymentMethod, memberID int64) error {
	transactionID := method.ExternalTransactionID
	if transactionID == "" {
		transactionID = "CP-REFUND-" + uuid.NewString()
	}

	if err := c.members.RefundBalance(ctx, memberID, method.Amount, transactionID); err != nil {
		return fmt.Errorf("cashpoint refund: %w", err)
	}
	return nil
}
