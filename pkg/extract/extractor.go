package extract

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier реализуется *sql.DB, *sql.Conn и *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Extract выполняет ровно переданный текст и материализует весь результат в памяти.
// Проверка "только SELECT" и ограничение строк - ответственность вызывающего.
// Ошибка драйвера возвращается как есть (обернутой), без повторов.
func Extract(ctx context.Context, q Querier, query string) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("extract: query failed: %w", err)
	}
	defer rows.Close()

	result, err := ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return result, nil
}

// ScanRows читает все строки *sql.Rows.
// []byte от драйвера (MySQL DECIMAL/TEXT и т.п.) превращается в string.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(result)+1, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result = append(result, NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return result, nil
}
