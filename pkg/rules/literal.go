package rules

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeNumber приводит число в локальной записи к виду "1234.56":
//   - есть и '.', и ',' - точка считается разделителем тысяч, запятая - десятичной
//   - только ',' - запятая десятичная
//   - пробелы (включая неразрывные) удаляются
func NormalizeNumber(s string) string {
	t := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	hasDot := strings.Contains(t, ".")
	hasComma := strings.Contains(t, ",")
	switch {
	case hasDot && hasComma:
		t = strings.ReplaceAll(t, ".", "")
		t = strings.ReplaceAll(t, ",", ".")
	case hasComma:
		t = strings.ReplaceAll(t, ",", ".")
	}
	return t
}

// ParseDecimal разбирает число в локальной записи без потери точности
func ParseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(NormalizeNumber(s))
}

// ParseLiteral интерпретирует текст как литерал:
// null или пустая строка -> nil, true/false -> bool, число -> decimal.Decimal,
// иначе строка (без крайних пробелов).
func ParseLiteral(s string) any {
	t := strings.TrimSpace(s)
	switch strings.ToLower(t) {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if t == "" {
		return nil
	}
	if d, err := ParseDecimal(t); err == nil {
		return d
	}
	return t
}
