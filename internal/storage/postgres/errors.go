package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Коды SQLSTATE, на которые мы реагируем осмысленно.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgSerializationFail   = "40001"
	pgDeadlockDetected    = "40P01"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

// translateTxError переводит низкоуровневые ошибки транзакции в доменную
// таксономию: таймаут и обрыв соединения — временная недоступность,
// serialization failure и deadlock — конфликт конкурентных записей.
func translateTxError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, domain.ErrStoreUnavailable)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFail, pgDeadlockDetected:
			return fmt.Errorf("%s: %w", op, domain.ErrVersionConflict)
		case pgCheckViolation:
			// CHECK (stock_quantity >= 0) — последний рубеж; сюда попадаем,
			// только если политика резервирования дала сбой.
			return fmt.Errorf("%s: stock check violated: %w", op, domain.ErrVersionConflict)
		}
	}
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrStoreUnavailable)
	}

	return fmt.Errorf("%s: %w", op, err)
}
