package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/product"
)

const (
	tableProducts  = "productos"
	tableStocks    = "stocks"
	tableMovements = "stock_movimientos"

	migratorUser = "migrator"
)

// ErrBlankName - у товара нет имени
var ErrBlankName = errors.New("producto.nombre is required")

// ProductOptions - настройки структурного загрузчика
type ProductOptions struct {
	// IncludeAuditColumns - заполнять activo/created_*/updated_* самим загрузчиком
	IncludeAuditColumns bool
}

// ProductLoader записывает товар, его остатки и движения
type ProductLoader struct {
	db       *sql.DB
	dialect  adapters.Dialect
	defaults product.Defaults
	opts     ProductOptions
	catalog  catalog
}

// NewProductLoader создает структурный загрузчик
func NewProductLoader(db *sql.DB, d adapters.Dialect, defaults product.Defaults, opts ProductOptions) *ProductLoader {
	return &ProductLoader{db: db, dialect: d, defaults: defaults, opts: opts, catalog: catalog{dialect: d}}
}

// productColumn - колонка productos и ее значение после применения умолчаний
type productColumn struct {
	name  string
	value any
	// expr - SQL-выражение вместо плейсхолдера (CURRENT_TIMESTAMP)
	expr string
}

// preparedProduct - товар после применения бизнес-умолчаний
type preparedProduct struct {
	rec     *product.Record
	kind    product.Kind
	name    string
	barcode *string

	brandID, categoryID, unitID int64
	vatPercent                  decimal.Decimal

	columns []productColumn
}

type savedProduct struct {
	id      int64
	created bool
}

func (l *ProductLoader) prepare(rec *product.Record) (*preparedProduct, error) {
	if rec == nil {
		return nil, errors.New("empty product record")
	}
	p := &rec.Product
	name := strings.TrimSpace(product.Deref(p.Name))
	if name == "" {
		return nil, ErrBlankName
	}

	pp := &preparedProduct{
		rec:        rec,
		kind:       rec.Kind(),
		name:       name,
		barcode:    trimToNil(p.Barcode),
		brandID:    fkOrDefault(p.BrandID, l.defaults.BrandID),
		categoryID: fkOrDefault(p.CategoryID, l.defaults.CategoryID),
		unitID:     fkOrDefault(p.UnitID, l.defaults.UnitID),
		vatPercent: product.OrZero(p.VATPercent),
	}

	stockMin := product.OrZero(p.StockMin)
	if !pp.kind.HasInventory() {
		stockMin = decimal.Zero
	}
	serializable := p.Serializable != nil && *p.Serializable

	pp.columns = []productColumn{
		{name: "codigo_barra", value: strOrNil(pp.barcode)},
		{name: "nombre", value: name},
		{name: "descripcion", value: strOrNil(p.Description)},
		{name: "marca_id", value: pp.brandID},
		{name: "unidad_medida_id", value: pp.unitID},
		{name: "categoria_id", value: pp.categoryID},
		{name: "precio_de_compra", value: decimalOrNil(p.PurchasePrice)},
		{name: "precio_minorista", value: decimalOrNil(p.RetailPrice)},
		{name: "precio_mayorista", value: decimalOrNil(p.WholesalePrice)},
		{name: "precio_credito", value: decimalOrNil(p.CreditPrice)},
		{name: "iva_percent", value: pp.vatPercent},
		{name: "stock_min", value: stockMin},
		// начальный остаток хранится в stocks, итог пересчитывается после их записи
		{name: "stock", value: decimal.Zero},
		{name: "serializable", value: serializable},
		{name: "tipo", value: string(pp.kind)},
		{name: "imagen_url", value: strOrNil(p.ImageURL)},
	}
	if l.opts.IncludeAuditColumns {
		active := p.Active == nil || *p.Active
		pp.columns = append(pp.columns,
			productColumn{name: "activo", value: active},
			productColumn{name: "created_at", expr: "CURRENT_TIMESTAMP"},
			productColumn{name: "updated_at", expr: "CURRENT_TIMESTAMP"},
			productColumn{name: "created_by", value: userOrDefault(p.CreatedBy)},
			productColumn{name: "updated_by", value: userOrDefault(p.UpdatedBy)},
		)
	}
	return pp, nil
}

// Load записывает товар целиком в одной транзакции: справочники, товар,
// остатки, движения и итоговый остаток. Любая ошибка откатывает все.
func (l *ProductLoader) Load(ctx context.Context, rec *product.Record, dryRun bool) Result {
	pp, err := l.prepare(rec)
	if err != nil {
		return Fail(err.Error())
	}
	if dryRun {
		info := "(stock in stocks table)"
		if !pp.kind.HasInventory() {
			info = "(stock/stock_min=0; no inventory)"
		}
		return Ok(OutcomeDryRun, fmt.Sprintf("DRY-RUN insert product: kind=%s name=%s %s", pp.kind, pp.name, info))
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return Fail("error saving product in destination: " + err.Error())
	}
	defer conn.Close()

	var (
		saved savedProduct
		total decimal.Decimal
	)
	err = inTx(ctx, conn, func(tx *sql.Tx) error {
		var err error
		if err = l.ensureCatalog(ctx, tx, pp); err != nil {
			return err
		}
		if saved, err = l.saveProduct(ctx, tx, pp); err != nil {
			return err
		}
		if pp.kind.HasInventory() {
			if total, err = l.saveStock(ctx, tx, pp, saved); err != nil {
				return err
			}
		} else if pp.kind == product.KindService {
			if err := l.deleteStocks(ctx, tx, saved.id); err != nil {
				return err
			}
		}
		l.warnComponents(pp, saved.id)
		return nil
	})
	if err != nil {
		return Fail("error saving product in destination: " + err.Error())
	}

	r := Ok(outcomeOf(saved), fmt.Sprintf("%s: id=%d name=%s kind=%s retailPrice=%s wholesalePrice=%s creditPrice=%s vatPercent=%s %s",
		headline(saved), saved.id, pp.name, pp.kind,
		fmtNull(rec.Product.RetailPrice), fmtNull(rec.Product.WholesalePrice), fmtNull(rec.Product.CreditPrice),
		pp.vatPercent, l.stockInfo(pp, total)))
	r.ID = product.Int64(saved.id)
	return r
}

// LoadBestEffort делит запись на две транзакции: товар фиксируется первым,
// остатки - второй. Ошибка остатков не отменяет созданный товар: результат
// успешный, с предупреждением в сообщении.
func (l *ProductLoader) LoadBestEffort(ctx context.Context, rec *product.Record, dryRun bool) Result {
	pp, err := l.prepare(rec)
	if err != nil {
		return Fail(err.Error())
	}
	if dryRun {
		return Ok(OutcomeDryRun, fmt.Sprintf("DRY-RUN insert product+stock: kind=%s name=%s", pp.kind, pp.name))
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return Fail("error saving product in destination: " + err.Error())
	}
	defer conn.Close()

	var saved savedProduct
	err = inTx(ctx, conn, func(tx *sql.Tx) error {
		var err error
		if err = l.ensureCatalog(ctx, tx, pp); err != nil {
			return err
		}
		saved, err = l.saveProduct(ctx, tx, pp)
		return err
	})
	if err != nil {
		return Fail("error saving product in destination: " + err.Error())
	}

	msg := fmt.Sprintf("%s: id=%d name=%s", headline(saved), saved.id, pp.name)
	switch {
	case pp.kind.HasInventory():
		err = inTx(ctx, conn, func(tx *sql.Tx) error {
			_, err := l.saveStock(ctx, tx, pp, saved)
			return err
		})
		if err != nil {
			log.Warn().Int64("id", saved.id).Err(err).Msg("product saved but stock could not be loaded")
			msg += fmt.Sprintf(" (WARN: stock could not be loaded: %v)", err)
		}
	case pp.kind == product.KindService:
		if err := l.deleteStocks(ctx, conn, saved.id); err != nil {
			log.Warn().Int64("id", saved.id).Err(err).Msg("service saved but stock cleanup failed")
		}
	}
	l.warnComponents(pp, saved.id)

	r := Ok(outcomeOf(saved), msg)
	r.ID = product.Int64(saved.id)
	return r
}

func (l *ProductLoader) ensureCatalog(ctx context.Context, tx Execer, pp *preparedProduct) error {
	if !l.defaults.AutoCreateCatalog {
		return nil
	}
	return l.catalog.ensureAll(ctx, tx, catalogRefs(pp.rec, pp.brandID, pp.categoryID, pp.unitID, l.defaults))
}

// saveProduct вставляет товар под savepoint'ом. Дубликат по codigo_barra или
// nombre не ломает транзакцию: существующая строка переиспользуется и
// дополняется только в тех колонках, где сейчас NULL.
func (l *ProductLoader) saveProduct(ctx context.Context, tx Execer, pp *preparedProduct) (savedProduct, error) {
	d := l.dialect
	cols := make([]string, len(pp.columns))
	values := make([]string, 0, len(pp.columns))
	args := make([]any, 0, len(pp.columns))
	for i, c := range pp.columns {
		cols[i] = c.name
		if c.expr != "" {
			values = append(values, c.expr)
			continue
		}
		args = append(args, c.value)
		values = append(values, d.Placeholder(len(args)))
	}
	query, useLastInsertID := d.InsertReturningID(tableProducts, cols, values, "id")

	var id int64
	err := Protect(ctx, tx, d, "sp_producto", func() error {
		if useLastInsertID {
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			id, err = res.LastInsertId()
			return err
		}
		return tx.QueryRowContext(ctx, query, args...).Scan(&id)
	})
	if err == nil {
		return savedProduct{id: id, created: true}, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return savedProduct{}, fmt.Errorf("insert product: %w", err)
	}

	existing, found, findErr := l.findExisting(ctx, tx, pp)
	if findErr != nil {
		return savedProduct{}, findErr
	}
	if !found {
		return savedProduct{}, fmt.Errorf("insert product: %w", err)
	}
	log.Warn().Int64("id", existing).Str("name", pp.name).Msg("duplicate product, reusing existing row")

	if patchErr := recoverAll(ctx, tx, d, "sp_patch", func() error {
		return l.patchMissing(ctx, tx, existing, pp)
	}); patchErr != nil {
		log.Warn().Int64("id", existing).Err(patchErr).Msg("could not fill missing product fields")
	}
	return savedProduct{id: existing}, nil
}

// findExisting ищет товар сначала по codigo_barra, затем по nombre
func (l *ProductLoader) findExisting(ctx context.Context, tx Execer, pp *preparedProduct) (int64, bool, error) {
	type lookup struct {
		column string
		value  string
	}
	var lookups []lookup
	if pp.barcode != nil {
		lookups = append(lookups, lookup{"codigo_barra", *pp.barcode})
	}
	lookups = append(lookups, lookup{"nombre", pp.name})

	d := l.dialect
	for _, lk := range lookups {
		query := d.LimitRows(fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
			d.QuoteIdentifier("id"), d.QuoteIdentifier(tableProducts), d.QuoteIdentifier(lk.column), d.Placeholder(1)), 1)
		var id int64
		err := tx.QueryRowContext(ctx, query, lk.value).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			return 0, false, fmt.Errorf("find existing product by %s: %w", lk.column, err)
		}
		return id, true, nil
	}
	return 0, false, nil
}

// patchMissing: col = COALESCE(col, новое значение) для каждой колонки товара.
// stock не трогается: он пересчитывается из остатков.
func (l *ProductLoader) patchMissing(ctx context.Context, tx Execer, id int64, pp *preparedProduct) error {
	d := l.dialect
	var (
		sets []string
		args []any
	)
	for _, c := range pp.columns {
		if c.expr != "" || c.name == "stock" {
			continue
		}
		args = append(args, c.value)
		q := d.QuoteIdentifier(c.name)
		sets = append(sets, fmt.Sprintf("%s = COALESCE(%s, %s)", q, q, d.Placeholder(len(args))))
	}
	if l.opts.IncludeAuditColumns {
		sets = append(sets, d.QuoteIdentifier("updated_at")+" = CURRENT_TIMESTAMP")
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.QuoteIdentifier(tableProducts), strings.Join(sets, ", "), d.QuoteIdentifier("id"), d.Placeholder(len(args)))
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// saveStock записывает остатки по складам, движения (только для нового товара)
// и итоговый остаток товара. Возвращает сумму количеств.
func (l *ProductLoader) saveStock(ctx context.Context, tx Execer, pp *preparedProduct, saved savedProduct) (decimal.Decimal, error) {
	d := l.dialect
	total := decimal.Zero

	upsert := d.Upsert(tableStocks,
		[]string{"created_at", "activo", "producto_id", "deposito_id", "cantidad", "reservado"},
		[]string{"CURRENT_TIMESTAMP", d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4), d.Placeholder(5)},
		[]string{"producto_id", "deposito_id"},
		[]string{"cantidad", "reservado"})

	for _, a := range pp.rec.Allocations(l.defaults.WarehouseID) {
		if _, err := tx.ExecContext(ctx, upsert, true, saved.id, a.WarehouseID, a.Quantity, a.Reserved); err != nil {
			return total, fmt.Errorf("upsert stock (warehouse %d): %w", a.WarehouseID, err)
		}
		if saved.created {
			if err := l.insertMovement(ctx, tx, saved.id, a); err != nil {
				return total, err
			}
		}
		total = total.Add(a.Quantity)
	}

	set := d.QuoteIdentifier("stock") + " = " + d.Placeholder(1)
	if l.opts.IncludeAuditColumns {
		set += ", " + d.QuoteIdentifier("updated_at") + " = CURRENT_TIMESTAMP"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.QuoteIdentifier(tableProducts), set, d.QuoteIdentifier("id"), d.Placeholder(2))
	if _, err := tx.ExecContext(ctx, query, total, saved.id); err != nil {
		return total, fmt.Errorf("update product stock: %w", err)
	}
	return total, nil
}

func (l *ProductLoader) insertMovement(ctx context.Context, tx Execer, productID int64, a product.Allocation) error {
	d := l.dialect
	cols := []string{"created_at", "activo", "producto_id", "deposito_id", "cantidad", "tipo",
		"referencia", "usuario", "fecha", "observaciones", "venta_id", "venta_detalle_id"}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (CURRENT_TIMESTAMP, %s, %s, %s, %s, 'ENTRADA', 'ALTA_PRODUCTO', %s, CURRENT_TIMESTAMP, 'Stock inicial', NULL, NULL)",
		d.QuoteIdentifier(tableMovements), strings.Join(quoted, ", "),
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4), d.Placeholder(5))
	if _, err := tx.ExecContext(ctx, query, true, productID, a.WarehouseID, a.Quantity, migratorUser); err != nil {
		return fmt.Errorf("insert stock movement (warehouse %d): %w", a.WarehouseID, err)
	}
	return nil
}

func (l *ProductLoader) deleteStocks(ctx context.Context, tx Execer, productID int64) error {
	d := l.dialect
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		d.QuoteIdentifier(tableStocks), d.QuoteIdentifier("producto_id"), d.Placeholder(1))
	if _, err := tx.ExecContext(ctx, query, productID); err != nil {
		return fmt.Errorf("delete stocks of service: %w", err)
	}
	return nil
}

// warnComponents: в схеме назначения нет таблицы состава, компоненты только логируются
func (l *ProductLoader) warnComponents(pp *preparedProduct, id int64) {
	if n := len(pp.rec.Components); n > 0 {
		log.Warn().Int64("id", id).Int("components", n).Msg("components received but not supported by destination schema")
	}
}

func (l *ProductLoader) stockInfo(pp *preparedProduct, total decimal.Decimal) string {
	rec := pp.rec
	switch {
	case !pp.kind.HasInventory():
		return fmt.Sprintf("no stock (kind=%s)", pp.kind)
	case len(rec.StockLines) > 0:
		return fmt.Sprintf("stockLines=%d totalStock=%s", len(rec.StockLines), total)
	}
	wid := "null"
	if rec.WarehouseID != nil {
		wid = fmt.Sprint(*rec.WarehouseID)
	}
	return fmt.Sprintf("warehouseId=%s stock=%s totalStock=%s", wid, fmtNull(rec.Stock), total)
}

func headline(s savedProduct) string {
	if s.created {
		return "product created in destination"
	}
	return "product already existed in destination"
}

func outcomeOf(s savedProduct) Outcome {
	if s.created {
		return OutcomeCreated
	}
	return OutcomeReused
}

func fkOrDefault(v *int64, fallback int64) int64 {
	if v != nil {
		return *v
	}
	return fallback
}

func trimToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func decimalOrNil(d decimal.NullDecimal) any {
	if d.Valid {
		return d.Decimal
	}
	return nil
}

func userOrDefault(s *string) string {
	if t := trimToNil(s); t != nil {
		return *t
	}
	return migratorUser
}

func fmtNull(d decimal.NullDecimal) string {
	if d.Valid {
		return d.Decimal.String()
	}
	return "null"
}
