package mssql

import (
	"context"
	"fmt"

	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

const listTablesQuery = `
SELECT TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

// CHARACTER_MAXIMUM_LENGTH = -1 для (max) типов
const describeColumnsQuery = `
SELECT c.COLUMN_NAME,
       c.DATA_TYPE,
       COALESCE(c.CHARACTER_MAXIMUM_LENGTH, 0),
       COALESCE(CAST(c.NUMERIC_PRECISION AS int), 0),
       COALESCE(c.NUMERIC_SCALE, 0),
       CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END,
       CASE WHEN c.COLUMN_DEFAULT IS NULL THEN 0 ELSE 1 END,
       COALESCE(COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity'), 0),
       COALESCE(COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsComputed'), 0)
FROM INFORMATION_SCHEMA.COLUMNS c
WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
ORDER BY c.ORDINAL_POSITION`

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

func (Dialect) DescribeColumns(ctx context.Context, q schema.Querier, schemaName, table string) ([]schema.ColumnMeta, error) {
	rows, err := q.QueryContext(ctx, describeColumnsQuery, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.ColumnMeta
	for rows.Next() {
		var (
			c                                schema.ColumnMeta
			charLen, precision, scale        int64
			nullable, hasDefault, ident, cmp int64
		)
		if err := rows.Scan(&c.Name, &c.TypeName, &charLen, &precision, &scale,
			&nullable, &hasDefault, &ident, &cmp); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		c.Kind = schema.KindFromTypeName(c.TypeName)
		switch {
		case charLen > 0:
			c.Size = int(charLen)
		case charLen == 0:
			c.Size = int(precision)
		}
		c.DecimalDigits = int(scale)
		c.Nullable = nullable == 1
		c.HasDefault = hasDefault == 1
		c.AutoIncrement = ident == 1
		c.Generated = cmp == 1
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
