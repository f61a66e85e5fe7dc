package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TableSpec описывает таблицу и колонки, к которым привязан леджер.
// Имена подставляются в SQL как есть и задаются только кодом сервиса.
type TableSpec struct {
	Table        string
	IDColumn     string
	ValueColumn  string
	StatusColumn string
	ActiveStatus string
}

// Postgres реализует леджер одним условным UPDATE: проверка условия и запись
// выполняются одним оператором относительно зафиксированного значения строки.
type Postgres struct {
	pool *pgxpool.Pool
	spec TableSpec
}

// NewPostgres создаёт леджер поверх указанной таблицы.
func NewPostgres(pool *pgxpool.Pool, spec TableSpec) *Postgres {
	return &Postgres{pool: pool, spec: spec}
}

// TryApply применяет дельту условным UPDATE и требует ровно одну изменённую строку.
// Классификация отказа (строки нет либо условие не выполнено) выполняется тем же
// оператором по тому же снимку данных, что и сам UPDATE.
// Ошибки сериализации и взаимоблокировки транслируются в ErrConcurrencyConflict.
func (p *Postgres) TryApply(ctx context.Context, entityID int64, delta int64, guard Guard) error {
	query, args := p.buildApply(entityID, delta, guard)

	var applied, present bool
	err := p.pool.QueryRow(ctx, query, args...).Scan(&applied, &present)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) &&
			(pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected) {
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Code)
		}
		return fmt.Errorf("ledger update %s: %w", p.spec.Table, err)
	}

	switch {
	case applied:
		return nil
	case !present:
		return fmt.Errorf("%w: id %d", ErrEntityNotFound, entityID)
	default:
		return fmt.Errorf("%w: id %d", ErrRejected, entityID)
	}
}

// buildApply собирает условный UPDATE с классификацией результата в одном операторе.
func (p *Postgres) buildApply(entityID int64, delta int64, guard Guard) (string, []any) {
	condition := ""
	args := []any{delta, entityID, guard.MinResult}
	if guard.RequireActive {
		condition = fmt.Sprintf(` AND %s = $4`, p.spec.StatusColumn)
		args = append(args, p.spec.ActiveStatus)
	}

	query := fmt.Sprintf(
		`WITH applied AS (
			UPDATE %s SET %s = %s + $1, updated_at = now()
			WHERE %s = $2 AND %s + $1 >= $3%s
			RETURNING %s
		)
		SELECT EXISTS (SELECT 1 FROM applied),
		       EXISTS (SELECT 1 FROM %s WHERE %s = $2)`,
		p.spec.Table, p.spec.ValueColumn, p.spec.ValueColumn,
		p.spec.IDColumn, p.spec.ValueColumn, condition,
		p.spec.IDColumn,
		p.spec.Table, p.spec.IDColumn,
	)
	return query, args
}
