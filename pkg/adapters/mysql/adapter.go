package mysql

import (
	"errors"
	"fmt"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
)

// AdapterType идентификатор MySQL адаптера
const AdapterType = "mysql"

// erDupEntry - ER_DUP_ENTRY
const erDupEntry = 1062

var _ adapters.Dialect = Dialect{}

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return adapters.NewSQLAdapter(Dialect{})
	})
}

// Dialect реализует adapters.Dialect для MySQL/MariaDB.
// Схема в MySQL - это база данных; пустая схема означает DATABASE().
type Dialect struct{}

func (Dialect) Name() string          { return AdapterType }
func (Dialect) DriverName() string    { return "mysql" }
func (Dialect) DefaultSchema() string { return "" }
func (Dialect) VersionQuery() string  { return "SELECT VERSION()" }

func (Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d Dialect) QualifiedTable(schemaName, table string) string {
	if schemaName == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schemaName) + "." + d.QuoteIdentifier(table)
}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) LimitRows(query string, n int) string {
	return fmt.Sprintf("SELECT * FROM (%s) t LIMIT %d", query, n)
}

// OnConflictDoNothing: INSERT IGNORE глушит не только дубликаты, поэтому не используется;
// дубликаты распознаются по коду 1062.
func (Dialect) OnConflictDoNothing() string { return "" }

func (d Dialect) Upsert(table string, cols, values, keyCols, updateCols []string) string {
	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		q := d.QuoteIdentifier(c)
		sets[i] = q + " = VALUES(" + q + ")"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		d.QuoteIdentifier(table), d.quoteList(cols), strings.Join(values, ", "), strings.Join(sets, ", "))
}

func (d Dialect) InsertReturningID(table string, cols, values []string, _ string) (string, bool) {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdentifier(table), d.quoteList(cols), strings.Join(values, ", ")), true
}

func (Dialect) SavepointSQL(name string) string           { return "SAVEPOINT " + name }
func (Dialect) RollbackToSavepointSQL(name string) string { return "ROLLBACK TO SAVEPOINT " + name }
func (Dialect) ReleaseSavepointSQL(name string) string    { return "RELEASE SAVEPOINT " + name }

func (Dialect) IsUniqueViolation(err error) bool {
	var myErr *driver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erDupEntry
}

func (d Dialect) quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
