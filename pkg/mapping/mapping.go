// Package mapping превращает строку источника в целевую запись по списку
// FieldMapping: структурную (product.Record) или плоскую (колонка -> значение).
//
// Для каждого маппинга по порядку: базовое значение по типу (DIRECT, CONSTANT,
// EXPRESSION, DEFAULT), затем правило (trim, toDecimal, coalesce('0'), ...).
// Более поздний маппинг на ту же цель перезаписывает предыдущий.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type - способ получения базового значения
type Type string

const (
	TypeDirect     Type = "DIRECT"
	TypeConstant   Type = "CONSTANT"
	TypeExpression Type = "EXPRESSION"
	TypeDefault    Type = "DEFAULT"
)

// ErrBlankTarget - у маппинга пустая цель
var ErrBlankTarget = errors.New("mapping target is required")

// ParseType разбирает тип без учета регистра; испанские имена тоже принимаются.
// Пустой или неизвестный тип - DIRECT.
func ParseType(s string) Type {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONSTANT", "CONSTANTE":
		return TypeConstant
	case "EXPRESSION", "EXPRESION", "EXPRESIÓN":
		return TypeExpression
	case "DEFAULT":
		return TypeDefault
	}
	return TypeDirect
}

// UnmarshalText нормализует тип при чтении JSON/YAML
func (t *Type) UnmarshalText(b []byte) error {
	*t = ParseType(string(b))
	return nil
}

// FieldMapping - одно правило маппинга
type FieldMapping struct {
	Target string `json:"target" yaml:"target"`
	Type   Type   `json:"type,omitempty" yaml:"type,omitempty"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Value  string `json:"value,omitempty" yaml:"value,omitempty"`
	Rule   string `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// Validate проверяет, что цель задана
func (m FieldMapping) Validate() error {
	if strings.TrimSpace(m.Target) == "" {
		return ErrBlankTarget
	}
	return nil
}

// Validate проверяет весь список; ошибка содержит номер маппинга (с 1)
func Validate(mappings []FieldMapping) error {
	for i, m := range mappings {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("mapping #%d: %w", i+1, err)
		}
	}
	return nil
}

// ParseJSON читает список маппингов из JSON-массива
func ParseJSON(data []byte) ([]FieldMapping, error) {
	var out []FieldMapping
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse mappings: %w", err)
	}
	return out, Validate(out)
}
