// Package product описывает структурированную сущность "товар + остатки +
// компоненты", которую заполняет маппинг и записывает структурный загрузчик.
//
// JSON-имена полей совпадают с контрактом целевой системы (producto,
// codigoBarra, stockPorDeposito, ...), поэтому запись может уходить
// как в БД, так и в HTTP API без преобразования.
package product

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind - тип позиции каталога
type Kind string

const (
	KindProduct Kind = "PRODUCTO"
	KindPackage Kind = "PAQUETE"
	KindService Kind = "SERVICIO"
)

// ParseKind разбирает тип без учета регистра. Пустая строка - ("", true).
func ParseKind(s string) (Kind, bool) {
	t := strings.ToUpper(strings.TrimSpace(s))
	switch Kind(t) {
	case "":
		return "", true
	case KindProduct, KindPackage, KindService:
		return Kind(t), true
	}
	return "", false
}

// OrDefault возвращает PRODUCTO для пустого типа
func (k Kind) OrDefault() Kind {
	if k == "" {
		return KindProduct
	}
	return k
}

// HasInventory - PAQUETE и SERVICIO не ведут складской учет
func (k Kind) HasInventory() bool {
	return k.OrDefault() == KindProduct
}

// Product - основные поля товара
type Product struct {
	ID             *int64              `json:"id,omitempty"`
	Kind           Kind                `json:"tipo,omitempty"`
	Barcode        *string             `json:"codigoBarra,omitempty"`
	Name           *string             `json:"nombre,omitempty"`
	Description    *string             `json:"descripcion,omitempty"`
	BrandID        *int64              `json:"marcaId,omitempty"`
	CategoryID     *int64              `json:"categoriaId,omitempty"`
	UnitID         *int64              `json:"unidadMedidaId,omitempty"`
	PurchasePrice  decimal.NullDecimal `json:"precioDeCompra"`
	RetailPrice    decimal.NullDecimal `json:"precioMinorista"`
	WholesalePrice decimal.NullDecimal `json:"precioMayorista"`
	CreditPrice    decimal.NullDecimal `json:"precioCredito"`
	VATPercent     decimal.NullDecimal `json:"ivaPercent"`
	StockMin       decimal.NullDecimal `json:"stockMin"`
	Stock          decimal.NullDecimal `json:"stock"`
	Serializable   *bool               `json:"serializable,omitempty"`
	ImageURL       *string             `json:"imagenUrl,omitempty"`
	Active         *bool               `json:"activo,omitempty"`
	CreatedAt      *string             `json:"createdAt,omitempty"`
	UpdatedAt      *string             `json:"updatedAt,omitempty"`
	CreatedBy      *string             `json:"createdBy,omitempty"`
	UpdatedBy      *string             `json:"updatedBy,omitempty"`
}

// StockLine - остаток на одном складе
type StockLine struct {
	WarehouseID *int64              `json:"depositoId,omitempty"`
	Quantity    decimal.NullDecimal `json:"cantidad"`
	Reserved    decimal.NullDecimal `json:"reservado"`
}

// IsEmpty - ни одно поле строки не заполнено
func (l StockLine) IsEmpty() bool {
	return l.WarehouseID == nil && !l.Quantity.Valid && !l.Reserved.Valid
}

// Record - целевая запись структурного пути.
// Stock/WarehouseID - устаревшая форма "один склад + количество",
// используется, только если StockLines пуст.
type Record struct {
	Product     Product             `json:"producto"`
	Stock       decimal.NullDecimal `json:"stock"`
	WarehouseID *int64              `json:"depositoId,omitempty"`
	StockLines  []StockLine         `json:"stockPorDeposito"`
	Components  []int64             `json:"componentes"`
}

// NewRecord создает пустую запись
func NewRecord() *Record {
	return &Record{StockLines: []StockLine{}, Components: []int64{}}
}

// Kind - эффективный тип (пустой -> PRODUCTO)
func (r *Record) Kind() Kind {
	return r.Product.Kind.OrDefault()
}

// Line возвращает строку остатков i, расширяя список при необходимости
func (r *Record) Line(i int) *StockLine {
	for len(r.StockLines) <= i {
		r.StockLines = append(r.StockLines, StockLine{})
	}
	return &r.StockLines[i]
}

// CompactStockLines удаляет полностью пустые строки остатков
func (r *Record) CompactStockLines() {
	out := r.StockLines[:0]
	for _, l := range r.StockLines {
		if !l.IsEmpty() {
			out = append(out, l)
		}
	}
	r.StockLines = out
}

// Allocation - остаток, который нужно записать на склад
type Allocation struct {
	WarehouseID int64
	Quantity    decimal.Decimal
	Reserved    decimal.Decimal
}

// Allocations раскладывает остатки записи по складам.
// Пустой склад заменяется центральным; если центральный не задан (0), строка пропускается.
// Для типов без складского учета возвращает nil.
func (r *Record) Allocations(centralWarehouseID int64) []Allocation {
	if !r.Kind().HasInventory() {
		return nil
	}
	resolve := func(id *int64) (int64, bool) {
		if id != nil {
			return *id, true
		}
		return centralWarehouseID, centralWarehouseID != 0
	}

	if len(r.StockLines) > 0 {
		out := make([]Allocation, 0, len(r.StockLines))
		for _, l := range r.StockLines {
			wid, ok := resolve(l.WarehouseID)
			if !ok {
				continue
			}
			out = append(out, Allocation{
				WarehouseID: wid,
				Quantity:    OrZero(l.Quantity),
				Reserved:    OrZero(l.Reserved),
			})
		}
		return out
	}
	if r.Stock.Valid {
		if wid, ok := resolve(r.WarehouseID); ok {
			return []Allocation{{WarehouseID: wid, Quantity: r.Stock.Decimal, Reserved: decimal.Zero}}
		}
	}
	return nil
}

// WarehouseIDs - склады, на которые ссылается запись (для автосоздания справочников)
func (r *Record) WarehouseIDs(centralWarehouseID int64) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	add := func(id *int64) {
		v := centralWarehouseID
		if id != nil {
			v = *id
		}
		if v != 0 && !seen[v] {
			seen[v] = true
			ids = append(ids, v)
		}
	}
	if len(r.StockLines) > 0 {
		for _, l := range r.StockLines {
			add(l.WarehouseID)
		}
		return ids
	}
	add(r.WarehouseID)
	return ids
}

// OrZero - значение или 0
func OrZero(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}

// Decimal - конструктор заполненного NullDecimal
func Decimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Int64 возвращает указатель на v
func Int64(v int64) *int64 { return &v }

// String возвращает указатель на v
func String(v string) *string { return &v }

// Bool возвращает указатель на v
func Bool(v bool) *bool { return &v }

// Deref возвращает значение строки или ""
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
