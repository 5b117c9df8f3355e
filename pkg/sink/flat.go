package sink

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ruslano69/tdtp-migrator/pkg/extract"
	"github.com/ruslano69/tdtp-migrator/pkg/loader"
	"github.com/ruslano69/tdtp-migrator/pkg/mapping"
	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

// FlatConfig - параметры плоской записи
type FlatConfig struct {
	Schema   string
	Table    string
	Mappings []mapping.FieldMapping
}

// Flat отображает строку в колонки и вставляет ее в таблицу назначения.
// Метаданные колонок читаются из каталога один раз и кешируются.
type Flat struct {
	cfg          FlatConfig
	engine       *mapping.Engine
	loader       *loader.TableLoader
	introspector *schema.Introspector

	mu      sync.Mutex
	meta    []schema.ColumnMeta
	allowed map[string]struct{}
}

// NewFlat создает плоский sink
func NewFlat(cfg FlatConfig, engine *mapping.Engine, tl *loader.TableLoader, in *schema.Introspector) (*Flat, error) {
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, fmt.Errorf("flat sink: destination table is required")
	}
	if err := mapping.Validate(cfg.Mappings); err != nil {
		return nil, fmt.Errorf("flat sink: %w", err)
	}
	return &Flat{cfg: cfg, engine: engine, loader: tl, introspector: in}, nil
}

func (f *Flat) Contract() Contract { return ContractFlat }

// Columns возвращает (и кеширует) метаданные колонок таблицы назначения
func (f *Flat) Columns(ctx context.Context) ([]schema.ColumnMeta, map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meta != nil {
		return f.meta, f.allowed, nil
	}
	meta, err := f.introspector.DescribeColumns(ctx, f.cfg.Schema, f.cfg.Table)
	if err != nil {
		return nil, nil, fmt.Errorf("describe %s: %w", f.cfg.Table, err)
	}
	if len(meta) == 0 {
		return nil, nil, fmt.Errorf("destination table %q not found or has no columns", f.cfg.Table)
	}
	f.meta, f.allowed = meta, schema.AllowedLower(meta)
	return f.meta, f.allowed, nil
}

// Prepare читает метаданные таблицы заранее (ошибка каталога - до первой строки)
func (f *Flat) Prepare(ctx context.Context) error {
	_, _, err := f.Columns(ctx)
	return err
}

func (f *Flat) Write(ctx context.Context, row extract.Row, dryRun bool) (loader.Result, error) {
	meta, allowed, err := f.Columns(ctx)
	if err != nil {
		return loader.Result{}, err
	}
	flat, err := f.engine.MapColumns(row, f.cfg.Mappings)
	if err != nil {
		return loader.Fail(err.Error()), nil
	}
	return f.loader.InsertRow(ctx, loader.InsertRequest{
		Schema:       f.cfg.Schema,
		Table:        f.cfg.Table,
		Values:       flat.Values,
		Order:        flat.Order,
		AllowedLower: allowed,
		Meta:         meta,
		DryRun:       dryRun,
	}), nil
}
