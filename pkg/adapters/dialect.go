package adapters

import (
	"context"
	"database/sql"

	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

// Dialect инкапсулирует синтаксис конкретной СУБД.
// Все построители возвращают текст с плейсхолдерами диалекта;
// значения всегда передаются параметрами.
type Dialect interface {
	schema.Catalog

	// Name возвращает тип СУБД
	Name() string

	// QuoteIdentifier экранирует идентификатор
	// PostgreSQL/SQLite: "name", MySQL: `name`, MS SQL: [name]
	QuoteIdentifier(name string) string

	// QualifiedTable возвращает schema.table с экранированием
	QualifiedTable(schemaName, table string) string

	// Placeholder возвращает плейсхолдер для n-го параметра (с 1)
	Placeholder(n int) string

	// LimitRows оборачивает SELECT ограничением количества строк
	LimitRows(query string, n int) string

	// OnConflictDoNothing возвращает суффикс INSERT, игнорирующий конфликт уникальности.
	// Пустая строка - диалект не поддерживает такой суффикс.
	OnConflictDoNothing() string

	// Upsert строит INSERT с обновлением updateCols при конфликте по keyCols.
	// values - SQL-выражения (плейсхолдеры или литералы) в порядке cols.
	Upsert(table string, cols, values, keyCols, updateCols []string) string

	// InsertReturningID строит INSERT, возвращающий идентификатор новой строки.
	// useLastInsertID=true: выполнять через Exec и брать LastInsertId().
	InsertReturningID(table string, cols, values []string, idCol string) (query string, useLastInsertID bool)

	// SavepointSQL / RollbackToSavepointSQL / ReleaseSavepointSQL - команды savepoint'ов.
	// ReleaseSavepointSQL может вернуть "" (MS SQL не освобождает savepoint'ы).
	SavepointSQL(name string) string
	RollbackToSavepointSQL(name string) string
	ReleaseSavepointSQL(name string) string

	// IsUniqueViolation классифицирует ошибку драйвера как нарушение уникальности
	IsUniqueViolation(err error) bool

	// VersionQuery - запрос версии сервера
	VersionQuery() string

	// DriverName - имя драйвера database/sql
	DriverName() string
}

// ConnectHook - необязательная настройка соединения сразу после подключения
// (например, PRAGMA для SQLite)
type ConnectHook interface {
	AfterConnect(ctx context.Context, db *sql.DB) error
}
