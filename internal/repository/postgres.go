// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/commerce-system/internal/ledger"
	"github.com/mmeshcher/commerce-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrMemberNotFound возвращается, если участник не найден.
	ErrMemberNotFound = errors.New("member not found")
	// ErrDuplicateKey возвращается при нарушении уникальности номера заказа или ключа платежа.
	ErrDuplicateKey = errors.New("duplicate key")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool          *pgxpool.Pool
	memberLedger  *ledger.Postgres
	productLedger *ledger.Postgres
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool: pool,
		memberLedger: ledger.NewPostgres(pool, ledger.TableSpec{
			Table:        "members",
			IDColumn:     "id",
			ValueColumn:  "cashpoint_balance",
			StatusColumn: "status",
			ActiveStatus: string(model.MemberStatusActive),
		}),
		productLedger: ledger.NewPostgres(pool, ledger.TableSpec{
			Table:        "products",
			IDColumn:     "id",
			ValueColumn:  "stock_quantity",
			StatusColumn: "status",
			ActiveStatus: string(model.ProductStatusActive),
		}),
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// MemberLedger возвращает леджер баланса участников.
// Единственный путь записи в members.cashpoint_balance.
func (r *PostgresRepository) MemberLedger() ledger.Ledger {
	return r.memberLedger
}

// ProductLedger возвращает леджер складских остатков.
// Единственный путь записи в products.stock_quantity.
func (r *PostgresRepository) ProductLedger() ledger.Ledger {
	return r.productLedger
}

// SaveOrder сохраняет новый заказ вместе с позициями и присваивает ему идентификатор.
func (r *PostgresRepository) SaveOrder(ctx context.Context, order *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (order_number, member_id, total_amount, discount_amount, final_amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		order.OrderNumber, order.MemberID, order.TotalAmount, order.DiscountAmount, order.FinalAmount, string(order.Status),
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, order.OrderNumber)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		it := &order.Items[i]
		err = tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			order.ID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice,
		).Scan(new(int64))
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateOrderStatus сохраняет новый статус заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
	}
	return nil
}

// GetOrder возвращает заказ с позициями по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return r.getOrder(ctx, `SELECT id, order_number, member_id, total_amount, discount_amount, final_amount, status, created_at, updated_at
		 FROM orders WHERE id = $1`, orderID)
}

// GetOrderByNumber возвращает заказ с позициями по номеру заказа.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.getOrder(ctx, `SELECT id, order_number, member_id, total_amount, discount_amount, final_amount, status, created_at, updated_at
		 FROM orders WHERE order_number = $1`, orderNumber)
}

func (r *PostgresRepository) getOrder(ctx context.Context, query string, arg any) (*model.Order, error) {
	var o model.Order
	var status string
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&o.ID, &o.OrderNumber, &o.MemberID, &o.TotalAmount, &o.DiscountAmount, &o.FinalAmount,
		&status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	o.Status = model.OrderStatus(status)

	items, err := r.getOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

func (r *PostgresRepository) getOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity, unit_price, total_price
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// GetOrdersByMember возвращает заказы участника, новые первыми.
func (r *PostgresRepository) GetOrdersByMember(ctx context.Context, memberID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_number, member_id, total_amount, discount_amount, final_amount, status, created_at, updated_at
		 FROM orders
		 WHERE member_id = $1
		 ORDER BY created_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var status string
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.MemberID, &o.TotalAmount, &o.DiscountAmount,
			&o.FinalAmount, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		items, err := r.getOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// SavePayment сохраняет новый платёж вместе со способами оплаты.
func (r *PostgresRepository) SavePayment(ctx context.Context, payment *model.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO payments (payment_key, order_id, member_id, total_amount, payment_type, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		payment.PaymentKey, payment.OrderID, payment.MemberID, payment.TotalAmount, string(payment.Type), string(payment.Status),
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, payment.PaymentKey)
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	for i := range payment.Methods {
		m := &payment.Methods[i]
		err = tx.QueryRow(ctx,
			`INSERT INTO payment_methods (payment_id, method_type, amount, status, external_transaction_id, additional_info)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
			 RETURNING id`,
			payment.ID, string(m.Type), m.Amount, string(m.Status), m.ExternalTransactionID, m.AdditionalInfo,
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("insert payment method: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdatePayment сохраняет статус платежа и состояние его способов оплаты.
func (r *PostgresRepository) UpdatePayment(ctx context.Context, payment *model.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`,
		payment.ID, string(payment.Status),
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrPaymentNotFound, payment.ID)
	}

	for i := range payment.Methods {
		m := &payment.Methods[i]
		_, err = tx.Exec(ctx,
			`UPDATE payment_methods SET status = $2, external_transaction_id = NULLIF($3, '') WHERE id = $1`,
			m.ID, string(m.Status), m.ExternalTransactionID,
		)
		if err != nil {
			return fmt.Errorf("update payment method: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetPaymentByKey возвращает платёж со способами оплаты по ключу платежа.
func (r *PostgresRepository) GetPaymentByKey(ctx context.Context, paymentKey string) (*model.Payment, error) {
	var p model.Payment
	var paymentType, status string
	err := r.pool.QueryRow(ctx,
		`SELECT id, payment_key, order_id, member_id, total_amount, payment_type, status, created_at, updated_at
		 FROM payments WHERE payment_key = $1`,
		paymentKey,
	).Scan(&p.ID, &p.PaymentKey, &p.OrderID, &p.MemberID, &p.TotalAmount, &paymentType, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("select payment: %w", err)
	}
	p.Type = model.PaymentType(paymentType)
	p.Status = model.PaymentStatus(status)

	rows, err := r.pool.Query(ctx,
		`SELECT id, method_type, amount, status, COALESCE(external_transaction_id, ''), additional_info
		 FROM payment_methods
		 WHERE payment_id = $1
		 ORDER BY id`,
		p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payment methods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.PaymentMethod
		var methodType, methodStatus string
		if err := rows.Scan(&m.ID, &methodType, &m.Amount, &methodStatus, &m.ExternalTransactionID, &m.AdditionalInfo); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		m.Type = model.PaymentMethodType(methodType)
		m.Status = model.PaymentMethodStatus(methodStatus)
		p.Methods = append(p.Methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &p, nil
}

// GetMember возвращает участника по идентификатору.
func (r *PostgresRepository) GetMember(ctx context.Context, memberID int64) (*model.Member, error) {
	var m model.Member
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, cashpoint_balance, status FROM members WHERE id = $1`,
		memberID,
	).Scan(&m.ID, &m.Name, &m.CashpointBalance, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("select member: %w", err)
	}
	m.Status = model.MemberStatus(status)
	return &m, nil
}

// GetProducts возвращает товары по списку идентификаторов одним запросом.
// Отсутствующие идентификаторы в результат не попадают.
func (r *PostgresRepository) GetProducts(ctx context.Context, ids []int64) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price, stock_quantity, status FROM products WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &status); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Status = model.ProductStatus(status)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return products, nil
}
