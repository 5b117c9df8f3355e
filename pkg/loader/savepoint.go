package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
)

// ErrDuplicate - операция под savepoint'ом нарушила уникальность и была откачена
var ErrDuplicate = errors.New("duplicate key")

// Execer реализуется *sql.Tx, *sql.Conn и *sql.DB
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Protect выполняет fn под savepoint'ом name.
// Нарушение уникальности откатывает изменения только до savepoint'а, транзакция
// остается рабочей, а вызывающий получает ошибку, совместимую с ErrDuplicate.
// Любая другая ошибка возвращается без отката: откатывать всю транзакцию будет вызывающий.
func Protect(ctx context.Context, tx Execer, d adapters.Dialect, name string, fn func() error) error {
	return underSavepoint(ctx, tx, d, name, fn, d.IsUniqueViolation)
}

// recoverAll выполняет fn под savepoint'ом и откатывается до него при любой ошибке.
// Используется для попыток, провал которых ожидаем (варианты вставки справочника, patch).
func recoverAll(ctx context.Context, tx Execer, d adapters.Dialect, name string, fn func() error) error {
	return underSavepoint(ctx, tx, d, name, fn, func(error) bool { return true })
}

func underSavepoint(ctx context.Context, tx Execer, d adapters.Dialect, name string, fn func() error, recoverable func(error) bool) error {
	if _, err := tx.ExecContext(ctx, d.SavepointSQL(name)); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}

	err := fn()
	if err == nil {
		if release := d.ReleaseSavepointSQL(name); release != "" {
			if _, err := tx.ExecContext(ctx, release); err != nil {
				return fmt.Errorf("release savepoint %s: %w", name, err)
			}
		}
		return nil
	}

	if !recoverable(err) {
		return err
	}
	if _, rbErr := tx.ExecContext(ctx, d.RollbackToSavepointSQL(name)); rbErr != nil {
		return fmt.Errorf("rollback to savepoint %s: %w (after: %v)", name, rbErr, err)
	}
	if d.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// inTx выполняет fn в транзакции на соединении conn: commit при успехе, rollback при ошибке
func inTx(ctx context.Context, conn *sql.Conn, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
