package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/product"
)

// Таблицы справочников, на которые ссылается товар
const (
	tableBrands     = "marcas"
	tableCategories = "categorias"
	tableUnits      = "unidades_medida"
	tableWarehouses = "depositos"
)

// ErrCatalog - не удалось создать строку справочника ни одним из вариантов
var ErrCatalog = errors.New("catalog auto-create failed")

// catalogVariant - одна из известных форм таблицы справочника.
// Схема назначения заранее неизвестна, поэтому варианты пробуются по порядку,
// каждый под своим savepoint'ом; выигрывает первый успешный.
type catalogVariant struct {
	name string
	cols []string
}

// catalogVariants упорядочены от самой полной формы к минимальной:
//   - audit:         есть activo, created_at и updated_at без DEFAULT
//   - audit-created: есть activo и created_at, updated_at отсутствует или nullable
//   - active:        есть activo, аудит заполняется самой БД
//   - minimal:       только id и nombre
//
// Во всех вариантах id задается явно (MS SQL с IDENTITY такой вставки не допускает).
var catalogVariants = []catalogVariant{
	{name: "audit", cols: []string{"id", "nombre", "activo", "created_at", "updated_at"}},
	{name: "audit-created", cols: []string{"id", "nombre", "activo", "created_at"}},
	{name: "active", cols: []string{"id", "nombre", "activo"}},
	{name: "minimal", cols: []string{"id", "nombre"}},
}

// catalogRef - строка справочника, которая должна существовать
type catalogRef struct {
	table string
	id    int64
	name  string
}

// catalogRefs собирает ссылки записи на справочники: марка, категория,
// единица измерения и все склады остатков.
func catalogRefs(rec *product.Record, brandID, categoryID, unitID int64, defaults product.Defaults) []catalogRef {
	refs := []catalogRef{
		{table: tableBrands, id: brandID, name: product.CatalogName(brandID, defaults.BrandID, defaults.BrandName)},
		{table: tableCategories, id: categoryID, name: product.CatalogName(categoryID, defaults.CategoryID, defaults.CategoryName)},
		{table: tableUnits, id: unitID, name: product.CatalogName(unitID, defaults.UnitID, defaults.UnitName)},
	}
	for _, wid := range rec.WarehouseIDs(defaults.WarehouseID) {
		refs = append(refs, catalogRef{
			table: tableWarehouses,
			id:    wid,
			name:  product.CatalogName(wid, defaults.WarehouseID, defaults.WarehouseName),
		})
	}
	return refs
}

type catalog struct {
	dialect adapters.Dialect
}

func (c catalog) ensureAll(ctx context.Context, tx Execer, refs []catalogRef) error {
	for _, ref := range refs {
		if ref.id == 0 {
			continue
		}
		if err := c.ensure(ctx, tx, ref); err != nil {
			return err
		}
	}
	return nil
}

func (c catalog) ensure(ctx context.Context, tx Execer, ref catalogRef) error {
	exists, err := c.exists(ctx, tx, ref.table, ref.id)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	name := strings.TrimSpace(ref.name)
	if name == "" {
		name = product.CatalogName(ref.id, 0, "")
	}

	var last error
	for _, v := range catalogVariants {
		query, args := c.insertSQL(ref.table, v, ref.id, name)
		err := recoverAll(ctx, tx, c.dialect, "sp_catalog", func() error {
			_, err := tx.ExecContext(ctx, query, args...)
			return err
		})
		if err == nil {
			log.Info().Str("table", ref.table).Int64("id", ref.id).Str("variant", v.name).Msg("catalog row auto-created")
			return nil
		}
		last = err

		// строку могли создать параллельно между проверкой и вставкой
		if exists, exErr := c.exists(ctx, tx, ref.table, ref.id); exErr == nil && exists {
			return nil
		}
	}
	return fmt.Errorf("%w: table %q id=%d: %v", ErrCatalog, ref.table, ref.id, last)
}

func (c catalog) insertSQL(table string, v catalogVariant, id int64, name string) (string, []any) {
	d := c.dialect
	cols := make([]string, len(v.cols))
	values := make([]string, len(v.cols))
	var args []any
	for i, col := range v.cols {
		cols[i] = d.QuoteIdentifier(col)
		switch col {
		case "created_at", "updated_at":
			values[i] = "CURRENT_TIMESTAMP"
			continue
		case "id":
			args = append(args, id)
		case "nombre":
			args = append(args, name)
		case "activo":
			args = append(args, true)
		}
		values[i] = d.Placeholder(len(args))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdentifier(table), strings.Join(cols, ", "), strings.Join(values, ", ")), args
}

func (c catalog) exists(ctx context.Context, tx Execer, table string, id int64) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s",
		c.dialect.QuoteIdentifier(table), c.dialect.QuoteIdentifier("id"), c.dialect.Placeholder(1))
	var one int
	err := tx.QueryRowContext(ctx, query, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check %s id=%d: %w", table, id, err)
	}
	return true, nil
}
