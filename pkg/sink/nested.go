package sink

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/extract"
	"github.com/ruslano69/tdtp-migrator/pkg/loader"
	"github.com/ruslano69/tdtp-migrator/pkg/mapping"
	"github.com/ruslano69/tdtp-migrator/pkg/product"
)

// Nested записывает строку как товар с остатками.
//
// С маппингами запись строится движком маппинга; без них строка должна
// соблюдать контракт извлечения v1 (алиасы nombre, precioMinorista, ...).
type Nested struct {
	engine     *mapping.Engine
	mappings   []mapping.FieldMapping
	loader     *loader.ProductLoader
	bestEffort bool
}

// NewNested создает структурный sink. bestEffort - остатки в отдельной транзакции.
func NewNested(engine *mapping.Engine, mappings []mapping.FieldMapping, pl *loader.ProductLoader, bestEffort bool) *Nested {
	return &Nested{engine: engine, mappings: mappings, loader: pl, bestEffort: bestEffort}
}

func (n *Nested) Contract() Contract { return ContractNested }

func (n *Nested) Write(ctx context.Context, row extract.Row, dryRun bool) (loader.Result, error) {
	rec, err := n.record(row)
	if err != nil {
		return loader.Fail(err.Error()), nil
	}
	if n.bestEffort {
		return n.loader.LoadBestEffort(ctx, rec, dryRun), nil
	}
	return n.loader.Load(ctx, rec, dryRun), nil
}

func (n *Nested) record(row extract.Row) (*product.Record, error) {
	if len(n.mappings) == 0 {
		return product.ToRecord(row, n.engine.Defaults())
	}
	rec, diags := n.engine.MapRecord(row, n.mappings)
	if len(diags) > 0 {
		reasons := make([]string, len(diags))
		for i, d := range diags {
			reasons[i] = d.String()
		}
		log.Debug().Int("skipped", len(diags)).Str("details", strings.Join(reasons, "; ")).Msg("nested mapping diagnostics")
	}
	return rec, nil
}
