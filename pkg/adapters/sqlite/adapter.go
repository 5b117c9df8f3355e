package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	moderncsqlite "modernc.org/sqlite"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
)

// AdapterType идентификатор SQLite адаптера
const AdapterType = "sqlite"

// Расширенные коды результата SQLite
const (
	sqliteConstraint           = 19
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

var (
	_ adapters.Dialect     = Dialect{}
	_ adapters.ConnectHook = Dialect{}
)

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return adapters.NewSQLAdapter(Dialect{})
	})
}

// Dialect реализует adapters.Dialect для SQLite (драйвер modernc.org/sqlite, без CGO)
type Dialect struct{}

func (Dialect) Name() string          { return AdapterType }
func (Dialect) DriverName() string    { return "sqlite" }
func (Dialect) DefaultSchema() string { return "main" }
func (Dialect) VersionQuery() string  { return "SELECT 'SQLite ' || sqlite_version()" }

func (Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) QualifiedTable(schemaName, table string) string {
	if schemaName == "" || strings.EqualFold(schemaName, "main") {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schemaName) + "." + d.QuoteIdentifier(table)
}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) LimitRows(query string, n int) string {
	return fmt.Sprintf("SELECT * FROM (%s) t LIMIT %d", query, n)
}

func (Dialect) OnConflictDoNothing() string { return " ON CONFLICT DO NOTHING" }

func (d Dialect) Upsert(table string, cols, values, keyCols, updateCols []string) string {
	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		q := d.QuoteIdentifier(c)
		sets[i] = q + " = excluded." + q
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		d.QuoteIdentifier(table), d.quoteList(cols), strings.Join(values, ", "),
		d.quoteList(keyCols), strings.Join(sets, ", "))
}

// InsertReturningID: RETURNING поддерживается начиная с SQLite 3.35
func (d Dialect) InsertReturningID(table string, cols, values []string, idCol string) (string, bool) {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		d.QuoteIdentifier(table), d.quoteList(cols), strings.Join(values, ", "), d.QuoteIdentifier(idCol)), false
}

func (Dialect) SavepointSQL(name string) string           { return "SAVEPOINT " + name }
func (Dialect) RollbackToSavepointSQL(name string) string { return "ROLLBACK TO SAVEPOINT " + name }
func (Dialect) ReleaseSavepointSQL(name string) string    { return "RELEASE SAVEPOINT " + name }

// IsUniqueViolation распознает SQLITE_CONSTRAINT_UNIQUE / _PRIMARYKEY.
// Если расширенные коды выключены, приходит базовый SQLITE_CONSTRAINT - тогда
// смотрим на текст ошибки.
func (Dialect) IsUniqueViolation(err error) bool {
	var sqlErr *moderncsqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	switch sqlErr.Code() {
	case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
		return true
	case sqliteConstraint:
		msg := sqlErr.Error()
		return strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "PRIMARY KEY constraint failed")
	}
	return false
}

// AfterConnect применяет PRAGMA для работы мигратора:
// WAL позволяет читать во время транзакции загрузчика, busy_timeout сглаживает блокировки.
// PRAGMA действуют на соединение; для пула рекомендуется задавать _pragma в DSN.
func (Dialect) AfterConnect(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (d Dialect) quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
