package product

import (
	"strconv"
	"strings"
)

// Defaults - идентификаторы и имена "универсальных" строк справочников,
// которые подставляются вместо отсутствующих внешних ключей.
type Defaults struct {
	WarehouseID   int64  `yaml:"deposito_central_id" json:"depositoCentralId"`
	WarehouseName string `yaml:"deposito_central_nombre" json:"depositoCentralNombre"`
	BrandID       int64  `yaml:"marca_generica_id" json:"marcaGenericaId"`
	BrandName     string `yaml:"marca_generica_nombre" json:"marcaGenericaNombre"`
	CategoryID    int64  `yaml:"categoria_generica_id" json:"categoriaGenericaId"`
	CategoryName  string `yaml:"categoria_generica_nombre" json:"categoriaGenericaNombre"`
	UnitID        int64  `yaml:"unidad_medida_generica_id" json:"unidadMedidaGenericaId"`
	UnitName      string `yaml:"unidad_medida_generica_nombre" json:"unidadMedidaGenericaNombre"`

	// AutoCreateCatalog включает создание недостающих строк справочников
	AutoCreateCatalog bool `yaml:"auto_create_catalog" json:"autoCreateCatalog"`
}

// DefaultDefaults - значения по умолчанию
func DefaultDefaults() Defaults {
	return Defaults{
		WarehouseID:   1,
		WarehouseName: "CENTRAL",
		BrandID:       1,
		BrandName:     "GENERICA",
		CategoryID:    1,
		CategoryName:  "GENERICA",
		UnitID:        1,
		UnitName:      "UNIDAD",
	}
}

// Ключи таблицы значений по умолчанию (тип маппинга DEFAULT)
const (
	KeyWarehouseID   = "depositoCentralId"
	KeyWarehouseName = "depositoCentralNombre"
	KeyBrandID       = "marcaGenericaId"
	KeyBrandName     = "marcaGenericaNombre"
	KeyCategoryID    = "categoriaGenericaId"
	KeyCategoryName  = "categoriaGenericaNombre"
	KeyUnitID        = "unidadMedidaGenericaId"
	KeyUnitName      = "unidadMedidaGenericaNombre"
)

// Lookup возвращает значение по ключу (без учета регистра). Неизвестный ключ - nil.
func (d Defaults) Lookup(key string) any {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case strings.ToLower(KeyWarehouseID):
		return nonZero(d.WarehouseID)
	case strings.ToLower(KeyWarehouseName):
		return nonBlank(d.WarehouseName)
	case strings.ToLower(KeyBrandID):
		return nonZero(d.BrandID)
	case strings.ToLower(KeyBrandName):
		return nonBlank(d.BrandName)
	case strings.ToLower(KeyCategoryID):
		return nonZero(d.CategoryID)
	case strings.ToLower(KeyCategoryName):
		return nonBlank(d.CategoryName)
	case strings.ToLower(KeyUnitID):
		return nonZero(d.UnitID)
	case strings.ToLower(KeyUnitName):
		return nonBlank(d.UnitName)
	}
	return nil
}

// KeyForTarget выводит ключ по умолчанию из хорошо известного целевого поля.
// depositoId, stockPorDeposito[i].depositoId -> depositoCentralId и т.д.
func KeyForTarget(target string) string {
	t := strings.ToLower(strings.TrimSpace(target))
	switch {
	case t == "depositoid" || (strings.HasPrefix(t, "stockpordeposito") && strings.HasSuffix(t, ".depositoid")):
		return KeyWarehouseID
	case t == "producto.marcaid" || t == "marcaid":
		return KeyBrandID
	case t == "producto.categoriaid" || t == "categoriaid":
		return KeyCategoryID
	case t == "producto.unidadmedidaid" || t == "unidadmedidaid":
		return KeyUnitID
	}
	return ""
}

// CatalogName - имя для автоматически создаваемой строки справочника:
// имя из настроек для универсального id, иначе "AUTO_<id>".
func CatalogName(id, genericID int64, genericName string) string {
	if id == genericID && strings.TrimSpace(genericName) != "" {
		return strings.TrimSpace(genericName)
	}
	return "AUTO_" + strconv.FormatInt(id, 10)
}

func nonZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nonBlank(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
