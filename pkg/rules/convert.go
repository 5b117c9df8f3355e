package rules

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrConversion - базовая ошибка конвертации значения
var ErrConversion = errors.New("conversion error")

// ConversionError описывает неудачную конвертацию значения в тип
type ConversionError struct {
	Target string // целевой тип: "int", "decimal", "bool", ...
	Value  any
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %v to %s: %s", e.Value, e.Target, e.Reason)
}

func (e *ConversionError) Unwrap() error { return ErrConversion }

var (
	minInt32 = decimal.NewFromInt(math.MinInt32)
	maxInt32 = decimal.NewFromInt(math.MaxInt32)
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// ToDecimal конвертирует значение в точное десятичное число.
// Строки нормализуются (NormalizeNumber), float - через строковое представление.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			break
		}
		return *x, nil
	case decimal.NullDecimal:
		if x.Valid {
			return x.Decimal, nil
		}
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int8:
		return decimal.NewFromInt(int64(x)), nil
	case int16:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint:
		return decimal.NewFromString(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return decimal.NewFromInt(int64(x)), nil
	case uint16:
		return decimal.NewFromInt(int64(x)), nil
	case uint32:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromString(strconv.FormatUint(x, 10))
	case float32:
		return decimal.NewFromString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, &ConversionError{Target: "decimal", Value: v, Reason: "not a finite number"}
		}
		return decimal.NewFromString(strconv.FormatFloat(x, 'f', -1, 64))
	case string:
		d, err := ParseDecimal(x)
		if err != nil {
			return decimal.Zero, &ConversionError{Target: "decimal", Value: v, Reason: "not a number"}
		}
		return d, nil
	case []byte:
		return ToDecimal(string(x))
	}
	return decimal.Zero, &ConversionError{Target: "decimal", Value: v, Reason: fmt.Sprintf("unsupported type %T", v)}
}

// ToInt32 - целое в 32-битном диапазоне; дробная часть и переполнение - ошибка
func ToInt32(v any) (int32, error) {
	d, err := ToDecimal(v)
	if err != nil {
		return 0, retarget(err, "int")
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, &ConversionError{Target: "int", Value: v, Reason: "has fractional part"}
	}
	if d.LessThan(minInt32) || d.GreaterThan(maxInt32) {
		return 0, &ConversionError{Target: "int", Value: v, Reason: "overflow"}
	}
	return int32(d.IntPart()), nil
}

// ToInt64 - целое в 64-битном диапазоне
func ToInt64(v any) (int64, error) {
	d, err := ToDecimal(v)
	if err != nil {
		return 0, retarget(err, "long")
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, &ConversionError{Target: "long", Value: v, Reason: "has fractional part"}
	}
	if d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		return 0, &ConversionError{Target: "long", Value: v, Reason: "overflow"}
	}
	return d.IntPart(), nil
}

// ToFloat64 - число с плавающей точкой
func ToFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(NormalizeNumber(x), 64)
		if err != nil {
			return 0, &ConversionError{Target: "float", Value: v, Reason: "not a number"}
		}
		return f, nil
	}
	d, err := ToDecimal(v)
	if err != nil {
		return 0, retarget(err, "float")
	}
	f, _ := d.Float64()
	return f, nil
}

var (
	trueTokens  = map[string]bool{"1": true, "true": true, "t": true, "y": true, "yes": true, "s": true, "si": true, "sí": true}
	falseTokens = map[string]bool{"0": true, "false": true, "f": true, "n": true, "no": true}
)

// ParseBoolToken разбирает 1/true/t/y/yes/s/si/sí и 0/false/f/n/no (без учета регистра)
func ParseBoolToken(s string) (bool, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if trueTokens[t] {
		return true, nil
	}
	if falseTokens[t] {
		return false, nil
	}
	return false, &ConversionError{Target: "bool", Value: s, Reason: "unrecognized boolean token"}
}

// ToBool конвертирует значение в bool; число - истина, если не ноль
func ToBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return ParseBoolToken(x)
	case []byte:
		return ParseBoolToken(string(x))
	}
	d, err := ToDecimal(v)
	if err != nil {
		return false, retarget(err, "bool")
	}
	return !d.IsZero(), nil
}

// ToString - строковое представление значения драйвера
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// IsBlank - nil или строка из одних пробелов
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []byte:
		return strings.TrimSpace(string(x)) == ""
	}
	return false
}

func retarget(err error, target string) error {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return &ConversionError{Target: target, Value: ce.Value, Reason: ce.Reason}
	}
	return err
}
