package product

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/tdtp-migrator/pkg/rules"
)

// ErrContract - SQL источника не отдает обязательные алиасы или их значения некорректны
var ErrContract = errors.New("extract contract violation")

// Row - строка источника с поиском по имени без учета регистра
type Row interface {
	Get(name string) (any, bool)
	Columns() []string
}

// CreateRequest - тело POST /api/productos целевой системы
type CreateRequest struct {
	Name              string              `json:"nombre"`
	Kind              Kind                `json:"tipo"`
	RetailPrice       decimal.Decimal     `json:"precioMinorista"`
	VATPercent        decimal.NullDecimal `json:"ivaPercent"`
	WarehouseID       *int64              `json:"depositoId,omitempty"`
	Stock             decimal.NullDecimal `json:"stock"`
	StockPerWarehouse []StockLine         `json:"stockPorDeposito,omitempty"`
}

// CreateResponse - ответ целевой системы
type CreateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      *int64 `json:"id,omitempty"`
}

// ToCreateRequest строит запрос создания товара по контракту извлечения v1:
// обязательны алиасы nombre и precioMinorista, для PRODUCTO еще stock или stockPorDeposito.
func ToCreateRequest(row Row, defaults Defaults) (*CreateRequest, error) {
	kind := kindFromRow(row)
	if err := checkContract(row, kind); err != nil {
		return nil, err
	}

	req := &CreateRequest{Kind: kind, Name: normalizeName(stringOf(row, "nombre"))}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: nombre is required (alias: nombre)", ErrContract)
	}
	price, err := nullDecimalOf(row, "precioMinorista")
	if err != nil {
		return nil, err
	}
	if !price.Valid {
		return nil, fmt.Errorf("%w: precioMinorista is required (alias: precioMinorista)", ErrContract)
	}
	req.RetailPrice = price.Decimal
	if req.VATPercent, err = nullDecimalOf(row, "ivaPercent"); err != nil {
		return nil, err
	}

	if kind != KindProduct {
		return req, nil
	}

	lines, err := stockLinesOf(row)
	if err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		req.StockPerWarehouse = lines
		return req, nil
	}

	req.WarehouseID, req.Stock, err = legacyStock(row, defaults)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ToRecord строит структурную запись по тому же контракту v1.
// Внешние ключи marcaId/categoriaId/unidadMedidaId берутся из алиасов или из defaults.
func ToRecord(row Row, defaults Defaults) (*Record, error) {
	kind := kindFromRow(row)
	if err := checkContract(row, kind); err != nil {
		return nil, err
	}

	rec := NewRecord()
	p := &rec.Product
	p.Kind = kind

	var err error
	if p.BrandID, err = int64Of(row, "marcaId", defaults.BrandID); err != nil {
		return nil, err
	}
	if p.CategoryID, err = int64Of(row, "categoriaId", defaults.CategoryID); err != nil {
		return nil, err
	}
	if p.UnitID, err = int64Of(row, "unidadMedidaId", defaults.UnitID); err != nil {
		return nil, err
	}

	if name := normalizeName(stringOf(row, "nombre")); name != "" {
		p.Name = &name
	} else {
		return nil, fmt.Errorf("%w: producto.nombre is required (alias: nombre)", ErrContract)
	}
	if bc := NormalizeBarcode(stringOf(row, "codigoBarra")); bc != "" {
		p.Barcode = &bc
	}
	if p.RetailPrice, err = nullDecimalOf(row, "precioMinorista"); err != nil {
		return nil, err
	}
	if !p.RetailPrice.Valid {
		return nil, fmt.Errorf("%w: producto.precioMinorista is required (alias: precioMinorista)", ErrContract)
	}
	if p.PurchasePrice, err = nullDecimalOf(row, "precioDeCompra"); err != nil {
		return nil, err
	}
	if p.VATPercent, err = nullDecimalOf(row, "ivaPercent"); err != nil {
		return nil, err
	}

	if kind != KindProduct {
		return rec, nil
	}

	lines, err := stockLinesOf(row)
	if err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		rec.StockLines = lines
		return rec, nil
	}
	rec.WarehouseID, rec.Stock, err = legacyStock(row, defaults)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// NormalizeBarcode удаляет все пробельные символы
func NormalizeBarcode(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func normalizeName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// неизвестный тип трактуется как PRODUCTO
func kindFromRow(row Row) Kind {
	kind, ok := ParseKind(stringOf(row, "tipo"))
	if !ok {
		return KindProduct
	}
	return kind.OrDefault()
}

func checkContract(row Row, kind Kind) error {
	var missing []string
	if _, ok := row.Get("nombre"); !ok {
		missing = append(missing, "nombre")
	}
	if _, ok := row.Get("precioMinorista"); !ok {
		missing = append(missing, "precioMinorista")
	}
	if kind == KindProduct {
		_, hasStock := row.Get("stock")
		_, hasLines := row.Get("stockPorDeposito")
		if !hasStock && !hasLines {
			missing = append(missing, "stock (or stockPorDeposito)")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: source SQL does not expose required aliases %v; present aliases: %v",
			ErrContract, missing, row.Columns())
	}
	return nil
}

func legacyStock(row Row, defaults Defaults) (*int64, decimal.NullDecimal, error) {
	stock, err := nullDecimalOf(row, "stock")
	if err != nil {
		return nil, stock, err
	}
	if !stock.Valid {
		stock = Decimal(decimal.Zero)
	}
	wid, err := int64Of(row, "depositoId", defaults.WarehouseID)
	if err != nil {
		return nil, stock, err
	}
	if wid == nil {
		return nil, stock, fmt.Errorf("%w: depositoId is required for kind PRODUCTO (default: %s)", ErrContract, KeyWarehouseID)
	}
	return wid, stock, nil
}

// stockLinesOf разбирает stockPorDeposito: JSON-текст или уже готовый список
func stockLinesOf(row Row) ([]StockLine, error) {
	v, _ := row.Get("stockPorDeposito")
	if v == nil {
		return nil, nil
	}
	var data []byte
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		data = []byte(x)
	case []byte:
		data = x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("%w: no se pudo interpretar stockPorDeposito: %v", ErrContract, err)
		}
		data = b
	}
	var lines []StockLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("%w: no se pudo parsear stockPorDeposito (esperado JSON array): %v", ErrContract, err)
	}
	return lines, nil
}

func stringOf(row Row, name string) string {
	v, _ := row.Get(name)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(rules.ToString(v))
}

func nullDecimalOf(row Row, name string) (decimal.NullDecimal, error) {
	v, _ := row.Get(name)
	if rules.IsBlank(v) {
		return decimal.NullDecimal{}, nil
	}
	d, err := rules.ToDecimal(v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s: %v", ErrContract, name, err)
	}
	return Decimal(d), nil
}

// int64Of - значение алиаса или fallback (0 - не задан)
func int64Of(row Row, name string, fallback int64) (*int64, error) {
	v, _ := row.Get(name)
	if rules.IsBlank(v) {
		if fallback == 0 {
			return nil, nil
		}
		return Int64(fallback), nil
	}
	n, err := rules.ToInt64(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrContract, name, err)
	}
	return &n, nil
}
