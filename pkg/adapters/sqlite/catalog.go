package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

const listTablesQuery = `
SELECT name
FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`

// hidden: 2 - VIRTUAL generated, 3 - STORED generated
const describeColumnsQuery = `
SELECT name, type, "notnull", dflt_value IS NOT NULL, pk, hidden
FROM pragma_table_xinfo(?, ?)
ORDER BY cid`

func (Dialect) ListTables(ctx context.Context, q schema.Querier, _ string) ([]string, error) {
	rows, err := q.QueryContext(ctx, listTablesQuery)
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

// DescribeColumns: единственная колонка INTEGER PRIMARY KEY - алиас rowid,
// то есть автоинкремент.
func (d Dialect) DescribeColumns(ctx context.Context, q schema.Querier, schemaName, table string) ([]schema.ColumnMeta, error) {
	if schemaName == "" {
		schemaName = d.DefaultSchema()
	}
	rows, err := q.QueryContext(ctx, describeColumnsQuery, table, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var (
		cols    []schema.ColumnMeta
		pkCount int
		pkIndex = -1
	)
	for rows.Next() {
		var (
			c       schema.ColumnMeta
			notNull int64
			pk      int64
			hidden  int64
		)
		if err := rows.Scan(&c.Name, &c.TypeName, &notNull, &c.HasDefault, &pk, &hidden); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		_, c.Size, c.DecimalDigits = schema.ParseTypeSize(c.TypeName)
		c.Kind = schema.KindFromTypeName(c.TypeName)
		c.Nullable = notNull == 0
		c.Generated = hidden == 2 || hidden == 3
		if pk > 0 {
			pkCount++
			pkIndex = len(cols)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if pkCount == 1 && strings.EqualFold(strings.TrimSpace(cols[pkIndex].TypeName), "INTEGER") {
		cols[pkIndex].AutoIncrement = true
		cols[pkIndex].Nullable = false
	}
	return cols, nil
}
