package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/tdtp-migrator/pkg/product"
	"github.com/ruslano69/tdtp-migrator/pkg/rules"
)

// ErrUnmappedTarget - цель не соответствует ни одному полю записи
var ErrUnmappedTarget = errors.New("unmapped target")

// maxStockLines ограничивает индекс в stockPorDeposito[i]
const maxStockLines = 256

type setter func(rec *product.Record, v any) error

// productTargets - поля товара (ключ в нижнем регистре, без "producto.")
var productTargets = map[string]setter{
	"id":              int64Field(func(r *product.Record) **int64 { return &r.Product.ID }),
	"tipo":            setKind,
	"codigobarra":     stringField(func(r *product.Record) **string { return &r.Product.Barcode }),
	"nombre":          stringField(func(r *product.Record) **string { return &r.Product.Name }),
	"descripcion":     stringField(func(r *product.Record) **string { return &r.Product.Description }),
	"marcaid":         int64Field(func(r *product.Record) **int64 { return &r.Product.BrandID }),
	"categoriaid":     int64Field(func(r *product.Record) **int64 { return &r.Product.CategoryID }),
	"unidadmedidaid":  int64Field(func(r *product.Record) **int64 { return &r.Product.UnitID }),
	"preciodecompra":  decimalField(func(r *product.Record) *decimal.NullDecimal { return &r.Product.PurchasePrice }),
	"preciominorista": decimalField(func(r *product.Record) *decimal.NullDecimal { return &r.Product.RetailPrice }),
	"preciomayorista": decimalField(func(r *product.Record) *decimal.NullDecimal { return &r.Product.WholesalePrice }),
	"preciocredito":   decimalField(func(r *product.Record) *decimal.NullDecimal { return &r.Product.CreditPrice }),
	"ivapercent":      decimalField(func(r *product.Record) *decimal.NullDecimal { return &r.Product.VATPercent }),
	"stockmin":        decimalField(func(r *product.Record) *decimal.NullDecimal { return &r.Product.StockMin }),
	"stock":           decimalField(func(r *product.Record) *decimal.NullDecimal { return &r.Product.Stock }),
	"serializable":    boolField(func(r *product.Record) **bool { return &r.Product.Serializable }),
	"imagenurl":       stringField(func(r *product.Record) **string { return &r.Product.ImageURL }),
	"activo":          boolField(func(r *product.Record) **bool { return &r.Product.Active }),
	"createdat":       stringField(func(r *product.Record) **string { return &r.Product.CreatedAt }),
	"updatedat":       stringField(func(r *product.Record) **string { return &r.Product.UpdatedAt }),
	"createdby":       stringField(func(r *product.Record) **string { return &r.Product.CreatedBy }),
	"updatedby":       stringField(func(r *product.Record) **string { return &r.Product.UpdatedBy }),
}

// recordTargets - поля верхнего уровня
var recordTargets = map[string]setter{
	"stock":       decimalField(func(r *product.Record) *decimal.NullDecimal { return &r.Stock }),
	"depositoid":  int64Field(func(r *product.Record) **int64 { return &r.WarehouseID }),
	"componentes": setComponents,
}

type lineSetter func(l *product.StockLine, v any) error

// lineTargets - поля stockPorDeposito[i]
var lineTargets = map[string]lineSetter{
	"depositoid": func(l *product.StockLine, v any) error { return assignInt64(&l.WarehouseID, v) },
	"cantidad":   func(l *product.StockLine, v any) error { return assignDecimal(&l.Quantity, v) },
	"reservado":  func(l *product.StockLine, v any) error { return assignDecimal(&l.Reserved, v) },
}

// Targets возвращает список всех поддерживаемых целей (для UI и документации)
func Targets() []string {
	out := make([]string, 0, len(productTargets)+len(recordTargets)+len(lineTargets))
	for _, name := range []string{
		"id", "tipo", "codigoBarra", "nombre", "descripcion", "marcaId", "categoriaId",
		"unidadMedidaId", "precioDeCompra", "precioMinorista", "precioMayorista",
		"precioCredito", "ivaPercent", "stockMin", "stock", "serializable", "imagenUrl",
		"activo", "createdAt", "updatedAt", "createdBy", "updatedBy",
	} {
		out = append(out, "producto."+name)
	}
	out = append(out, "stock", "depositoId", "componentes")
	for _, name := range []string{"depositoId", "cantidad", "reservado"} {
		out = append(out, "stockPorDeposito[0]."+name)
	}
	return out
}

// SetTarget присваивает значение по точечному пути, приводя его к типу поля.
// Пути сравниваются без учета регистра.
func SetTarget(rec *product.Record, target string, v any) error {
	path := strings.ToLower(strings.TrimSpace(target))

	if field, ok := strings.CutPrefix(path, "producto."); ok {
		if set, ok := productTargets[field]; ok {
			return set(rec, v)
		}
		return fmt.Errorf("%w: %s", ErrUnmappedTarget, target)
	}

	if rest, ok := strings.CutPrefix(path, "stockpordeposito["); ok {
		idx, field, err := parseIndexed(rest)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnmappedTarget, target, err)
		}
		set, ok := lineTargets[field]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnmappedTarget, target)
		}
		// значение приводится до расширения списка, чтобы ошибка не оставляла пустых строк
		var line product.StockLine
		if idx < len(rec.StockLines) {
			line = rec.StockLines[idx]
		}
		if err := set(&line, v); err != nil {
			return err
		}
		*rec.Line(idx) = line
		return nil
	}

	if set, ok := recordTargets[path]; ok {
		return set(rec, v)
	}
	return fmt.Errorf("%w: %s", ErrUnmappedTarget, target)
}

// parseIndexed разбирает "3].cantidad"
func parseIndexed(rest string) (int, string, error) {
	end := strings.IndexByte(rest, ']')
	if end <= 0 {
		return 0, "", errors.New("missing index")
	}
	idx, err := strconv.Atoi(rest[:end])
	if err != nil || idx < 0 {
		return 0, "", fmt.Errorf("invalid index %q", rest[:end])
	}
	if idx >= maxStockLines {
		return 0, "", fmt.Errorf("index %d out of range", idx)
	}
	field, ok := strings.CutPrefix(rest[end+1:], ".")
	if !ok {
		return 0, "", errors.New("missing field after index")
	}
	return idx, field, nil
}

func decimalField(ref func(*product.Record) *decimal.NullDecimal) setter {
	return func(rec *product.Record, v any) error { return assignDecimal(ref(rec), v) }
}

func int64Field(ref func(*product.Record) **int64) setter {
	return func(rec *product.Record, v any) error { return assignInt64(ref(rec), v) }
}

func boolField(ref func(*product.Record) **bool) setter {
	return func(rec *product.Record, v any) error {
		dst := ref(rec)
		if rules.IsBlank(v) {
			*dst = nil
			return nil
		}
		b, err := rules.ToBool(v)
		if err != nil {
			return err
		}
		*dst = &b
		return nil
	}
}

func stringField(ref func(*product.Record) **string) setter {
	return func(rec *product.Record, v any) error {
		dst := ref(rec)
		if v == nil {
			*dst = nil
			return nil
		}
		var s string
		switch x := v.(type) {
		case time.Time:
			s = x.Format("2006-01-02T15:04:05")
		default:
			s = rules.ToString(v)
		}
		*dst = &s
		return nil
	}
}

func assignDecimal(dst *decimal.NullDecimal, v any) error {
	if rules.IsBlank(v) {
		*dst = decimal.NullDecimal{}
		return nil
	}
	d, err := rules.ToDecimal(v)
	if err != nil {
		return err
	}
	*dst = product.Decimal(d)
	return nil
}

func assignInt64(dst **int64, v any) error {
	if rules.IsBlank(v) {
		*dst = nil
		return nil
	}
	n, err := rules.ToInt64(v)
	if err != nil {
		return err
	}
	*dst = &n
	return nil
}

func setKind(rec *product.Record, v any) error {
	if rules.IsBlank(v) {
		rec.Product.Kind = ""
		return nil
	}
	kind, ok := product.ParseKind(rules.ToString(v))
	if !ok {
		return fmt.Errorf("unknown product kind %q", rules.ToString(v))
	}
	rec.Product.Kind = kind
	return nil
}

// setComponents принимает список, JSON-массив или "1,2,3"
func setComponents(rec *product.Record, v any) error {
	ids, err := toInt64List(v)
	if err != nil {
		return err
	}
	rec.Components = ids
	return nil
}

func toInt64List(v any) ([]int64, error) {
	switch x := v.(type) {
	case nil:
		return []int64{}, nil
	case []int64:
		return append([]int64{}, x...), nil
	case []any:
		out := make([]int64, 0, len(x))
		for _, item := range x {
			n, err := rules.ToInt64(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return []int64{}, nil
		}
		if strings.HasPrefix(s, "[") {
			var raw []json.Number
			if err := json.Unmarshal([]byte(s), &raw); err != nil {
				return nil, fmt.Errorf("componentes: %w", err)
			}
			out := make([]int64, 0, len(raw))
			for _, n := range raw {
				id, err := n.Int64()
				if err != nil {
					return nil, fmt.Errorf("componentes: %w", err)
				}
				out = append(out, id)
			}
			return out, nil
		}
		parts := strings.Split(s, ",")
		out := make([]int64, 0, len(parts))
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				continue
			}
			n, err := rules.ToInt64(p)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
	n, err := rules.ToInt64(v)
	if err != nil {
		return nil, err
	}
	return []int64{n}, nil
}
