package mapping

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/expr"
	"github.com/ruslano69/tdtp-migrator/pkg/product"
	"github.com/ruslano69/tdtp-migrator/pkg/rules"
)

// Row - строка источника
type Row = expr.Lookup

// Diagnostic - маппинг, пропущенный на структурном пути
type Diagnostic struct {
	Index  int    `json:"index"`
	Target string `json:"target"`
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("mapping #%d (%s) skipped: %s", d.Index+1, d.Target, d.Reason)
}

// Engine вычисляет маппинги. Безопасен для конкурентного использования.
type Engine struct {
	rules    *rules.Evaluator
	defaults product.Defaults

	programs sync.Map // исходный текст выражения -> *expr.Program
}

// NewEngine создает движок маппинга
func NewEngine(evaluator *rules.Evaluator, defaults product.Defaults) *Engine {
	if evaluator == nil {
		evaluator = rules.New()
	}
	return &Engine{rules: evaluator, defaults: defaults}
}

// Defaults возвращает таблицу значений по умолчанию
func (e *Engine) Defaults() product.Defaults {
	return e.defaults
}

// Resolve вычисляет значение маппинга: базовое значение, затем правило
func (e *Engine) Resolve(row Row, m FieldMapping) (any, error) {
	base, err := e.baseValue(row, m)
	if err != nil {
		return nil, err
	}
	v, err := e.rules.Apply(base, m.Rule)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", strings.TrimSpace(m.Rule), err)
	}
	return v, nil
}

func (e *Engine) baseValue(row Row, m FieldMapping) (any, error) {
	switch ParseType(string(m.Type)) {
	case TypeConstant:
		return m.Value, nil
	case TypeExpression:
		prog, err := e.compile(m.Value)
		if err != nil {
			return nil, err
		}
		v, err := prog.Eval(row)
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", m.Value, err)
		}
		return v, nil
	case TypeDefault:
		key := strings.TrimSpace(m.Value)
		if key == "" {
			key = product.KeyForTarget(m.Target)
		}
		return e.defaults.Lookup(key), nil
	}
	return directValue(row, m.Source), nil
}

// directValue: существующая колонка (даже с NULL) возвращается как есть,
// иначе текст source разбирается как литерал.
func directValue(row Row, source string) any {
	col := strings.TrimSpace(source)
	if col == "" {
		return nil
	}
	if row != nil {
		if v, ok := row.Get(col); ok {
			return v
		}
	}
	return rules.ParseLiteral(col)
}

func (e *Engine) compile(src string) (*expr.Program, error) {
	if p, ok := e.programs.Load(src); ok {
		return p.(*expr.Program), nil
	}
	p, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	e.programs.Store(src, p)
	return p, nil
}

// Flat - плоская запись в порядке маппингов
type Flat struct {
	Values map[string]any
	Order  []string
}

// MapColumns строит плоскую запись колонка -> значение.
// Любая ошибка вычисления (выражение, правило) - ошибка всей строки.
// Цели сравниваются без учета регистра: остается первое написание
// и значение последнего маппинга.
func (e *Engine) MapColumns(row Row, mappings []FieldMapping) (Flat, error) {
	out := Flat{Values: make(map[string]any, len(mappings))}
	keys := make(map[string]string, len(mappings))
	for i, m := range mappings {
		target := strings.TrimSpace(m.Target)
		if target == "" {
			continue
		}
		v, err := e.Resolve(row, m)
		if err != nil {
			return Flat{}, fmt.Errorf("mapping #%d (%s): %w", i+1, target, err)
		}
		lower := strings.ToLower(target)
		key, seen := keys[lower]
		if !seen {
			key = target
			keys[lower] = key
			out.Order = append(out.Order, key)
		}
		out.Values[key] = v
	}
	return out, nil
}

// MapRecord строит структурную запись. Маппинг, который не удалось вычислить
// или привести к типу поля, пропускается (поле сохраняет значение по умолчанию),
// причина попадает в диагностику. Полностью пустые строки остатков удаляются.
func (e *Engine) MapRecord(row Row, mappings []FieldMapping) (*product.Record, []Diagnostic) {
	rec := product.NewRecord()
	var diags []Diagnostic
	skip := func(i int, target string, err error) {
		d := Diagnostic{Index: i, Target: target, Err: err, Reason: err.Error()}
		diags = append(diags, d)
		log.Debug().Str("target", target).Err(err).Msg("mapping skipped")
	}

	for i, m := range mappings {
		target := strings.TrimSpace(m.Target)
		if target == "" {
			continue
		}
		v, err := e.Resolve(row, m)
		if err != nil {
			skip(i, target, err)
			continue
		}
		if err := SetTarget(rec, target, v); err != nil {
			skip(i, target, err)
		}
	}
	rec.CompactStockLines()
	return rec, diags
}

// HasUnmapped сообщает, есть ли среди диагностик неизвестные цели
func HasUnmapped(diags []Diagnostic) bool {
	for _, d := range diags {
		if errors.Is(d.Err, ErrUnmappedTarget) {
			return true
		}
	}
	return false
}
