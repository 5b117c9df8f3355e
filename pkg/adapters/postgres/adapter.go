package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // регистрирует драйвер "pgx" в database/sql

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
)

// AdapterType идентификатор PostgreSQL адаптера
const AdapterType = "postgres"

// uniqueViolation - SQLSTATE unique_violation
const uniqueViolation = "23505"

// Compile-time check
var _ adapters.Dialect = Dialect{}

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return adapters.NewSQLAdapter(Dialect{})
	})
}

// Dialect реализует adapters.Dialect для PostgreSQL
type Dialect struct{}

func (Dialect) Name() string          { return AdapterType }
func (Dialect) DriverName() string    { return "pgx" }
func (Dialect) DefaultSchema() string { return "public" }
func (Dialect) VersionQuery() string  { return "SELECT version()" }

// QuoteIdentifier экранирует идентификатор двойными кавычками
func (Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) QualifiedTable(schemaName, table string) string {
	if schemaName == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schemaName) + "." + d.QuoteIdentifier(table)
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Dialect) LimitRows(query string, n int) string {
	return fmt.Sprintf("SELECT * FROM (%s) t LIMIT %d", query, n)
}

func (Dialect) OnConflictDoNothing() string { return " ON CONFLICT DO NOTHING" }

func (d Dialect) Upsert(table string, cols, values, keyCols, updateCols []string) string {
	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		q := d.QuoteIdentifier(c)
		sets[i] = q + " = EXCLUDED." + q
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		d.QuoteIdentifier(table), d.quoteList(cols), strings.Join(values, ", "),
		d.quoteList(keyCols), strings.Join(sets, ", "))
}

func (d Dialect) InsertReturningID(table string, cols, values []string, idCol string) (string, bool) {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		d.QuoteIdentifier(table), d.quoteList(cols), strings.Join(values, ", "), d.QuoteIdentifier(idCol)), false
}

func (Dialect) SavepointSQL(name string) string           { return "SAVEPOINT " + name }
func (Dialect) RollbackToSavepointSQL(name string) string { return "ROLLBACK TO SAVEPOINT " + name }
func (Dialect) ReleaseSavepointSQL(name string) string    { return "RELEASE SAVEPOINT " + name }

// IsUniqueViolation: SQLSTATE 23505
func (Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (d Dialect) quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
