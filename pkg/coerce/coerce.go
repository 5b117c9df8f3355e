// Package coerce приводит значения из маппинга к типам, которые ожидает
// драйвер колонки назначения (по метаданным schema.ColumnMeta).
//
// Ошибка приведения никогда не паникует: она возвращается как *ConversionError
// с именем колонки, и загрузчик превращает ее в ошибку одной строки.
package coerce

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ruslano69/tdtp-migrator/pkg/rules"
	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

// ErrConversion - базовая ошибка приведения
var ErrConversion = errors.New("type conversion failed")

// ConversionError - значение не удалось привести к типу колонки
type ConversionError struct {
	Column string
	Kind   schema.Kind
	Reason string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("column %q (%s): %s", e.Column, e.Kind, e.Reason)
}

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

func (e *ConversionError) Unwrap() error { return e.Err }

var (
	dateLayouts = []string{"2006-01-02", "02/01/2006"}

	localTimestampLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}
	extraTimestampLayouts = []string{"2006-01-02 15:04:05", "02/01/2006 15:04:05"}
)

// Adapter - приведение типов с заданным часовым поясом
type Adapter struct {
	loc *time.Location
}

// New создает Adapter; nil loc - time.Local
func New(loc *time.Location) *Adapter {
	if loc == nil {
		loc = time.Local
	}
	return &Adapter{loc: loc}
}

var defaultAdapter = New(nil)

// Convert приводит значение с адаптером по умолчанию
func Convert(meta schema.ColumnMeta, v any) (any, error) {
	return defaultAdapter.Convert(meta, v)
}

// Convert приводит значение к типу колонки. nil всегда остается nil.
func (a *Adapter) Convert(meta schema.ColumnMeta, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	fail := func(reason string, err error) (any, error) {
		return nil, &ConversionError{Column: meta.Name, Kind: meta.Kind, Reason: reason, Err: err}
	}

	switch meta.Kind {
	case schema.KindUUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case [16]byte:
			return uuid.UUID(x), nil
		}
		s := strings.TrimSpace(rules.ToString(v))
		if s == "" {
			return nil, nil
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return fail(fmt.Sprintf("invalid UUID %q", s), err)
		}
		return id, nil

	case schema.KindJSON:
		return v, nil

	case schema.KindInteger:
		if rules.IsBlank(v) {
			return nil, nil
		}
		n, err := rules.ToInt32(v)
		if err != nil {
			return fail(reasonOf(err, "invalid integer"), err)
		}
		return n, nil

	case schema.KindBigInt:
		if rules.IsBlank(v) {
			return nil, nil
		}
		n, err := rules.ToInt64(v)
		if err != nil {
			return fail(reasonOf(err, "invalid bigint"), err)
		}
		return n, nil

	case schema.KindDecimal:
		if rules.IsBlank(v) {
			return nil, nil
		}
		d, err := rules.ToDecimal(v)
		if err != nil {
			return fail(reasonOf(err, "invalid decimal"), err)
		}
		return d, nil

	case schema.KindFloat:
		if rules.IsBlank(v) {
			return nil, nil
		}
		f, err := rules.ToFloat64(v)
		if err != nil {
			return fail(reasonOf(err, "invalid number"), err)
		}
		return f, nil

	case schema.KindBoolean:
		if rules.IsBlank(v) {
			return nil, nil
		}
		b, err := rules.ToBool(v)
		if err != nil {
			return fail(fmt.Sprintf("invalid boolean %q", rules.ToString(v)), err)
		}
		return b, nil

	case schema.KindDate:
		if t, ok := v.(time.Time); ok {
			y, m, d := t.In(a.loc).Date()
			return time.Date(y, m, d, 0, 0, 0, 0, a.loc), nil
		}
		s := strings.TrimSpace(rules.ToString(v))
		if s == "" {
			return nil, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, a.loc); err == nil {
				return t, nil
			}
		}
		return fail(fmt.Sprintf("invalid date %q", s), nil)

	case schema.KindTimestamp, schema.KindTimestampTZ:
		if t, ok := v.(time.Time); ok {
			return t.In(a.loc), nil
		}
		s := strings.TrimSpace(rules.ToString(v))
		if s == "" {
			return nil, nil
		}
		if t, ok := a.parseTimestamp(s); ok {
			return t, nil
		}
		return fail(fmt.Sprintf("invalid timestamp %q", s), nil)

	case schema.KindChar:
		s := rules.ToString(v)
		if meta.Size > 0 && utf8.RuneCountInString(s) > meta.Size {
			return fail(fmt.Sprintf("exceeds max length (%d)", meta.Size), nil)
		}
		return s, nil
	}
	return v, nil
}

// parseTimestamp: ISO локальное, ISO со смещением (переводится в loc),
// затем "yyyy-MM-dd HH:mm:ss" и "dd/MM/yyyy HH:mm:ss". Побеждает первый успешный.
func (a *Adapter) parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range localTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, a.loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(a.loc), true
	}
	for _, layout := range extraTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, a.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func reasonOf(err error, fallback string) string {
	var ce *rules.ConversionError
	if errors.As(err, &ce) {
		return fmt.Sprintf("%s: %v (%s)", fallback, ce.Value, ce.Reason)
	}
	return fallback
}
