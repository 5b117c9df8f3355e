// Package rules применяет правила преобразования значений из маппинга полей:
// trim, upper, coalesce('0'), toDecimal, toDate('dd/MM/yyyy') и т.д.
//
// Правило записывается как "name" или "name(arg)"; аргумент может быть в кавычках.
// Неизвестное правило пропускает значение без изменений.
package rules

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Канонические имена правил
const (
	RuleNow         = "now"
	RuleToday       = "today"
	RuleTrim        = "trim"
	RuleUpper       = "upper"
	RuleLower       = "lower"
	RuleEmptyToNull = "emptytonull"
	RuleCoalesce    = "coalesce"
	RuleToInt       = "toint"
	RuleToLong      = "tolong"
	RuleToDecimal   = "todecimal"
	RuleToBool      = "tobool"
	RuleToDate      = "todate"
	RuleToTimestamp = "totimestamp"
)

// aliases - синонимы (ключ в нижнем регистре)
var aliases = map[string]string{
	"now":               RuleNow,
	"currenttimestamp":  RuleNow,
	"current_timestamp": RuleNow,
	"today":             RuleToday,
	"currentdate":       RuleToday,
	"current_date":      RuleToday,
	"trim":              RuleTrim,
	"upper":             RuleUpper,
	"lower":             RuleLower,
	"emptytonull":       RuleEmptyToNull,
	"coalesce":          RuleCoalesce,
	"toint":             RuleToInt,
	"tolong":            RuleToLong,
	"todecimal":         RuleToDecimal,
	"tobool":            RuleToBool,
	"toboolean":         RuleToBool,
	"todate":            RuleToDate,
	"totimestamp":       RuleToTimestamp,
	"todatetime":        RuleToTimestamp,
}

// Parsed - разобранное правило
type Parsed struct {
	Name  string // каноническое имя или исходное имя в нижнем регистре для неизвестных
	Arg   string
	Known bool
}

// Parse разбирает "name" / "name(arg)" / "name('arg')".
// Пустая строка дает Parsed{} (правило не задано).
func Parse(rule string) Parsed {
	r := strings.TrimSpace(rule)
	if r == "" {
		return Parsed{}
	}
	name, arg := r, ""
	if open := strings.IndexByte(r, '('); open > 0 && strings.HasSuffix(r, ")") {
		name = strings.TrimSpace(r[:open])
		arg = unquote(strings.TrimSpace(r[open+1 : len(r)-1]))
	}
	lower := strings.ToLower(name)
	if canonical, ok := aliases[lower]; ok {
		return Parsed{Name: canonical, Arg: arg, Known: true}
	}
	return Parsed{Name: lower, Arg: arg}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Evaluator применяет правила. Без состояния, кроме часов и часового пояса.
type Evaluator struct {
	now func() time.Time
	loc *time.Location
	tag language.Tag
}

// Option настраивает Evaluator
type Option func(*Evaluator)

// WithClock подменяет источник текущего времени (тесты)
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithLocation задает часовой пояс для now/today/toDate/toTimestamp
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) { e.loc = loc }
}

// WithLanguage задает язык для upper/lower
func WithLanguage(tag language.Tag) Option {
	return func(e *Evaluator) { e.tag = tag }
}

// New создает Evaluator
func New(opts ...Option) *Evaluator {
	e := &Evaluator{now: time.Now, loc: time.Local, tag: language.Und}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply применяет правило к значению
func (e *Evaluator) Apply(value any, rule string) (any, error) {
	p := Parse(rule)
	if p.Name == "" || !p.Known {
		return value, nil
	}
	return e.ApplyParsed(value, p)
}

// ApplyParsed применяет уже разобранное правило
func (e *Evaluator) ApplyParsed(value any, p Parsed) (any, error) {
	switch p.Name {
	case RuleNow:
		return e.now().In(e.loc), nil
	case RuleToday:
		y, m, d := e.now().In(e.loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, e.loc), nil

	case RuleTrim:
		if value == nil {
			return nil, nil
		}
		return strings.TrimSpace(ToString(value)), nil
	case RuleUpper:
		if value == nil {
			return nil, nil
		}
		return cases.Upper(e.tag).String(ToString(value)), nil
	case RuleLower:
		if value == nil {
			return nil, nil
		}
		return cases.Lower(e.tag).String(ToString(value)), nil
	case RuleEmptyToNull:
		if IsBlank(value) {
			return nil, nil
		}
		return value, nil

	case RuleCoalesce:
		if !IsBlank(value) {
			return value, nil
		}
		return ParseLiteral(p.Arg), nil

	case RuleToInt:
		if IsBlank(value) {
			return nil, nil
		}
		return ToInt32(value)
	case RuleToLong:
		if IsBlank(value) {
			return nil, nil
		}
		return ToInt64(value)
	case RuleToDecimal:
		if IsBlank(value) {
			return nil, nil
		}
		return ToDecimal(value)
	case RuleToBool:
		if IsBlank(value) {
			return nil, nil
		}
		return ToBool(value)

	case RuleToDate:
		if IsBlank(value) {
			return nil, nil
		}
		if t, ok := value.(time.Time); ok {
			y, m, d := t.In(e.loc).Date()
			return time.Date(y, m, d, 0, 0, 0, 0, e.loc), nil
		}
		return ParseDate(ToString(value), p.Arg, e.loc)
	case RuleToTimestamp:
		if IsBlank(value) {
			return nil, nil
		}
		if t, ok := value.(time.Time); ok {
			return t.In(e.loc), nil
		}
		return ParseTimestamp(ToString(value), p.Arg, e.loc)
	}
	return value, nil
}
