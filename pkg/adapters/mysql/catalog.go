package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

const listTablesQuery = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_type = 'BASE TABLE'
ORDER BY table_name`

const describeColumnsQuery = `
SELECT column_name,
       data_type,
       column_type,
       COALESCE(character_maximum_length, 0),
       COALESCE(numeric_precision, 0),
       COALESCE(numeric_scale, 0),
       is_nullable,
       column_default IS NOT NULL,
       extra
FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?
ORDER BY ordinal_position`

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

// DescribeColumns: автоинкремент и generated определяются по колонке extra
func (Dialect) DescribeColumns(ctx context.Context, q schema.Querier, schemaName, table string) ([]schema.ColumnMeta, error) {
	rows, err := q.QueryContext(ctx, describeColumnsQuery, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.ColumnMeta
	for rows.Next() {
		var (
			c          schema.ColumnMeta
			dataType   string
			columnType string
			charLen    int64
			precision  int64
			scale      int64
			nullable   string
			extra      string
		)
		if err := rows.Scan(&c.Name, &dataType, &columnType, &charLen, &precision, &scale,
			&nullable, &c.HasDefault, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		c.TypeName = dataType
		if strings.EqualFold(columnType, "tinyint(1)") {
			c.TypeName = columnType
		}
		c.Kind = schema.KindFromTypeName(c.TypeName)
		c.Size = int(charLen)
		if c.Size == 0 {
			c.Size = int(precision)
		}
		c.DecimalDigits = int(scale)
		c.Nullable = strings.EqualFold(nullable, "YES")
		lowerExtra := strings.ToLower(extra)
		c.AutoIncrement = strings.Contains(lowerExtra, "auto_increment")
		c.Generated = strings.Contains(lowerExtra, "generated")
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
