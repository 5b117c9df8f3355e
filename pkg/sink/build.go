package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/loader"
	"github.com/ruslano69/tdtp-migrator/pkg/mapping"
	"github.com/ruslano69/tdtp-migrator/pkg/product"
	"github.com/ruslano69/tdtp-migrator/pkg/rules"
	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

// Options - все, что нужно для построения sink любого контракта
type Options struct {
	Contract Contract
	Schema   string
	Table    string
	Mappings []mapping.FieldMapping

	// HTTP
	BaseURL string
	Timeout time.Duration

	Defaults            product.Defaults
	Policies            loader.Policies
	IncludeAuditColumns bool
	BestEffortStock     bool
}

// Preparer - sink, которому нужно прочитать метаданные назначения до записи
type Preparer interface {
	Prepare(ctx context.Context) error
}

// New строит sink по контракту. dest не нужен для HTTP.
func New(opts Options, dest adapters.Adapter) (Sink, error) {
	contract, err := ParseContract(string(opts.Contract))
	if err != nil {
		return nil, err
	}
	if contract == ContractHTTP {
		return NewHTTP(opts.BaseURL, opts.Timeout, opts.Defaults)
	}
	if dest == nil {
		return nil, fmt.Errorf("%s sink requires a destination connection", contract)
	}

	engine := mapping.NewEngine(rules.New(), opts.Defaults)
	d := dest.Dialect()

	if contract == ContractNested {
		pl := loader.NewProductLoader(dest.DB(), d, opts.Defaults, loader.ProductOptions{
			IncludeAuditColumns: opts.IncludeAuditColumns,
		})
		return NewNested(engine, opts.Mappings, pl, opts.BestEffortStock), nil
	}

	schemaName := opts.Schema
	if schemaName == "" {
		schemaName = dest.Config().Schema
	}
	return NewFlat(FlatConfig{Schema: schemaName, Table: opts.Table, Mappings: opts.Mappings},
		engine,
		loader.NewTableLoader(dest.DB(), d, opts.Policies),
		schema.NewIntrospector(dest.DB(), d))
}
