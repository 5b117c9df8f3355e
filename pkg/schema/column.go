package schema

import (
	"strconv"
	"strings"
)

// Kind - нормализованный тип колонки назначения.
// Определяет правило конвертации значения перед INSERT (см. pkg/coerce).
type Kind int

const (
	KindOther Kind = iota
	KindUUID
	KindJSON
	KindInteger // smallint/integer/tinyint, 32-битный диапазон
	KindBigInt
	KindDecimal
	KindFloat
	KindBoolean
	KindDate
	KindTimestamp
	KindTimestampTZ
	KindChar // char/varchar/text и родственные
)

var kindNames = map[Kind]string{
	KindOther:       "OTHER",
	KindUUID:        "UUID",
	KindJSON:        "JSON",
	KindInteger:     "INTEGER",
	KindBigInt:      "BIGINT",
	KindDecimal:     "DECIMAL",
	KindFloat:       "FLOAT",
	KindBoolean:     "BOOLEAN",
	KindDate:        "DATE",
	KindTimestamp:   "TIMESTAMP",
	KindTimestampTZ: "TIMESTAMPTZ",
	KindChar:        "CHAR",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "OTHER"
}

// MarshalText нужен для JSON-ответов API (kind выводится строкой)
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ColumnMeta описывает колонку таблицы назначения
type ColumnMeta struct {
	Name          string `json:"name"`
	Kind          Kind   `json:"kind"`
	TypeName      string `json:"typeName"`
	Size          int    `json:"size"`
	DecimalDigits int    `json:"decimalDigits"`
	Nullable      bool   `json:"nullable"`
	HasDefault    bool   `json:"hasDefault"`
	AutoIncrement bool   `json:"autoIncrement"`
	Generated     bool   `json:"generated"`
}

// IsRequiredInput - колонка обязана получить значение из маппинга:
// NOT NULL без DEFAULT, не автоинкремент и не вычисляемая.
func (c ColumnMeta) IsRequiredInput() bool {
	return !c.Nullable && !c.HasDefault && !c.AutoIncrement && !c.Generated
}

// Writable - колонку можно указывать в INSERT
func (c ColumnMeta) Writable() bool {
	return !c.AutoIncrement && !c.Generated
}

// KindFromTypeName определяет Kind по имени типа СУБД.
// Понимает имена PostgreSQL (udt_name и data_type), MySQL, MS SQL и SQLite.
func KindFromTypeName(typeName string) Kind {
	t := strings.ToLower(strings.TrimSpace(typeName))
	if t == "tinyint(1)" {
		// MySQL BOOLEAN хранится как tinyint(1)
		return KindBoolean
	}
	base, _, _ := ParseTypeSize(t)

	switch base {
	case "uuid", "uniqueidentifier":
		return KindUUID
	case "json", "jsonb":
		return KindJSON
	case "int", "int2", "int4", "integer", "smallint", "tinyint", "mediumint", "serial", "serial4", "smallserial":
		return KindInteger
	case "int8", "bigint", "bigserial", "serial8":
		return KindBigInt
	case "numeric", "decimal", "money", "smallmoney", "number":
		return KindDecimal
	case "real", "float", "float4", "float8", "double", "double precision":
		return KindFloat
	case "bool", "boolean", "bit":
		return KindBoolean
	case "date":
		return KindDate
	case "timestamp", "timestamp without time zone", "datetime", "datetime2", "smalldatetime":
		return KindTimestamp
	case "timestamptz", "timestamp with time zone", "datetimeoffset":
		return KindTimestampTZ
	case "char", "character", "varchar", "character varying", "bpchar", "text", "nchar", "nvarchar",
		"ntext", "tinytext", "mediumtext", "longtext", "clob", "citext", "string":
		return KindChar
	}

	// SQLite допускает произвольные имена типов - применяем правила affinity
	switch {
	case strings.Contains(base, "char"), strings.Contains(base, "text"), strings.Contains(base, "clob"):
		return KindChar
	case strings.HasSuffix(base, "int"):
		return KindBigInt
	}
	return KindOther
}

// ParseTypeSize разбирает "varchar(120)" / "numeric(10,2)" на базовое имя,
// размер и количество десятичных знаков.
func ParseTypeSize(typeName string) (base string, size, scale int) {
	t := strings.TrimSpace(typeName)
	open := strings.IndexByte(t, '(')
	if open < 0 {
		return strings.ToLower(t), 0, 0
	}
	base = strings.ToLower(strings.TrimSpace(t[:open]))
	end := strings.IndexByte(t[open:], ')')
	if end < 0 {
		return base, 0, 0
	}
	args := strings.Split(t[open+1:open+end], ",")
	if n, err := strconv.Atoi(strings.TrimSpace(args[0])); err == nil {
		size = n
	}
	if len(args) > 1 {
		if n, err := strconv.Atoi(strings.TrimSpace(args[1])); err == nil {
			scale = n
		}
	}
	return base, size, scale
}
