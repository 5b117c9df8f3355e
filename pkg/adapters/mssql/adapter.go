package mssql

import (
	"errors"
	"fmt"
	"strings"

	mssqldb "github.com/denisenkom/go-mssqldb"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
)

// AdapterType идентификатор MS SQL адаптера
const AdapterType = "mssql"

// Номера ошибок нарушения уникальности:
// 2627 - PRIMARY KEY/UNIQUE constraint, 2601 - unique index
const (
	errUniqueConstraint = 2627
	errUniqueIndex      = 2601
)

var _ adapters.Dialect = Dialect{}

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return adapters.NewSQLAdapter(Dialect{})
	})
}

// Dialect реализует adapters.Dialect для MS SQL Server.
// Используется драйвер "sqlserver" с плейсхолдерами @pN.
type Dialect struct{}

func (Dialect) Name() string          { return AdapterType }
func (Dialect) DriverName() string    { return "sqlserver" }
func (Dialect) DefaultSchema() string { return "dbo" }
func (Dialect) VersionQuery() string  { return "SELECT @@VERSION" }

func (Dialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d Dialect) QualifiedTable(schemaName, table string) string {
	if schemaName == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schemaName) + "." + d.QuoteIdentifier(table)
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (Dialect) OnConflictDoNothing() string { return "" }

// Upsert строит MERGE; источник - одна строка из переданных выражений
func (d Dialect) Upsert(table string, cols, values, keyCols, updateCols []string) string {
	src := make([]string, len(cols))
	for i, c := range cols {
		src[i] = values[i] + " AS " + d.QuoteIdentifier(c)
	}
	on := make([]string, len(keyCols))
	for i, k := range keyCols {
		q := d.QuoteIdentifier(k)
		on[i] = "tgt." + q + " = src." + q
	}
	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		q := d.QuoteIdentifier(c)
		sets[i] = "tgt." + q + " = src." + q
	}
	insVals := make([]string, len(cols))
	for i, c := range cols {
		insVals[i] = "src." + d.QuoteIdentifier(c)
	}
	return fmt.Sprintf("MERGE INTO %s AS tgt USING (SELECT %s) AS src ON %s "+
		"WHEN MATCHED THEN UPDATE SET %s "+
		"WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
		d.QuoteIdentifier(table), strings.Join(src, ", "), strings.Join(on, " AND "),
		strings.Join(sets, ", "), d.quoteList(cols), strings.Join(insVals, ", "))
}

func (d Dialect) InsertReturningID(table string, cols, values []string, idCol string) (string, bool) {
	return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.%s VALUES (%s)",
		d.QuoteIdentifier(table), d.quoteList(cols), d.QuoteIdentifier(idCol), strings.Join(values, ", ")), false
}

func (Dialect) SavepointSQL(name string) string           { return "SAVE TRANSACTION " + name }
func (Dialect) RollbackToSavepointSQL(name string) string { return "ROLLBACK TRANSACTION " + name }
func (Dialect) ReleaseSavepointSQL(string) string         { return "" }

func (Dialect) IsUniqueViolation(err error) bool {
	var msErr mssqldb.Error
	if !errors.As(err, &msErr) {
		return false
	}
	return msErr.Number == errUniqueConstraint || msErr.Number == errUniqueIndex
}

func (d Dialect) quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
