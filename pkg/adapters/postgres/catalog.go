package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

const listTablesQuery = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

const describeColumnsQuery = `
SELECT column_name,
       udt_name,
       COALESCE(character_maximum_length, 0),
       COALESCE(numeric_precision, 0),
       COALESCE(numeric_scale, 0),
       is_nullable = 'YES',
       COALESCE(column_default, ''),
       is_identity = 'YES',
       is_generated = 'ALWAYS'
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// ListTables возвращает базовые таблицы схемы
func (Dialect) ListTables(ctx context.Context, q schema.Querier, schemaName string) ([]string, error) {
	rows, err := q.QueryContext(ctx, listTablesQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DescribeColumns читает information_schema.columns.
// Автоинкремент: identity или DEFAULT nextval(...) (serial).
func (Dialect) DescribeColumns(ctx context.Context, q schema.Querier, schemaName, table string) ([]schema.ColumnMeta, error) {
	rows, err := q.QueryContext(ctx, describeColumnsQuery, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.ColumnMeta
	for rows.Next() {
		var (
			c           schema.ColumnMeta
			charLen     int64
			precision   int64
			scale       int64
			defaultExpr string
			identity    bool
		)
		if err := rows.Scan(&c.Name, &c.TypeName, &charLen, &precision, &scale,
			&c.Nullable, &defaultExpr, &identity, &c.Generated); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		c.Kind = schema.KindFromTypeName(c.TypeName)
		c.Size = int(charLen)
		if c.Size == 0 {
			c.Size = int(precision)
		}
		c.DecimalDigits = int(scale)
		c.HasDefault = defaultExpr != ""
		c.AutoIncrement = identity || strings.HasPrefix(defaultExpr, "nextval(")
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
