package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Querier - минимальный контракт для чтения метаданных.
// Реализуется *sql.DB, *sql.Conn и *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Catalog - диалектозависимое чтение каталога СУБД.
// Реализуется диалектами в pkg/adapters/*.
type Catalog interface {
	DefaultSchema() string
	ListTables(ctx context.Context, q Querier, schemaName string) ([]string, error)
	DescribeColumns(ctx context.Context, q Querier, schemaName, table string) ([]ColumnMeta, error)
}

// Introspector читает метаданные таблиц назначения.
// Не транзакционный: используется для allow-list колонок и ColumnMeta.
type Introspector struct {
	db      Querier
	catalog Catalog
}

// NewIntrospector создает Introspector поверх подключения и каталога диалекта
func NewIntrospector(db Querier, catalog Catalog) *Introspector {
	return &Introspector{db: db, catalog: catalog}
}

func (i *Introspector) resolveSchema(schemaName string) string {
	if s := strings.TrimSpace(schemaName); s != "" {
		return s
	}
	return i.catalog.DefaultSchema()
}

// ListTables возвращает таблицы схемы (пустая схема = схема по умолчанию)
func (i *Introspector) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	tables, err := i.catalog.ListTables(ctx, i.db, i.resolveSchema(schemaName))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// DescribeColumns возвращает полное описание колонок таблицы
func (i *Introspector) DescribeColumns(ctx context.Context, schemaName, table string) ([]ColumnMeta, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("describe columns: table name is required")
	}
	cols, err := i.catalog.DescribeColumns(ctx, i.db, i.resolveSchema(schemaName), table)
	if err != nil {
		return nil, fmt.Errorf("describe columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("describe columns: table %s not found or has no columns", table)
	}
	return cols, nil
}

// ListColumns возвращает имена колонок в порядке объявления
func (i *Introspector) ListColumns(ctx context.Context, schemaName, table string) ([]string, error) {
	cols, err := i.DescribeColumns(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for idx, c := range cols {
		names[idx] = c.Name
	}
	return names, nil
}

// LoadAllowedColumnsLower возвращает множество имен колонок в нижнем регистре
func (i *Introspector) LoadAllowedColumnsLower(ctx context.Context, schemaName, table string) (map[string]struct{}, error) {
	cols, err := i.DescribeColumns(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	return AllowedLower(cols), nil
}

// AllowedLower строит allow-list из уже прочитанных метаданных
func AllowedLower(cols []ColumnMeta) map[string]struct{} {
	allowed := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		allowed[strings.ToLower(c.Name)] = struct{}{}
	}
	return allowed
}

// IndexByLower индексирует метаданные по имени колонки в нижнем регистре
func IndexByLower(cols []ColumnMeta) map[string]ColumnMeta {
	idx := make(map[string]ColumnMeta, len(cols))
	for _, c := range cols {
		idx[strings.ToLower(c.Name)] = c
	}
	return idx
}
