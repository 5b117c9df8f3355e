// Package extract выполняет SELECT на источнике и материализует результат
// в неизменяемые строки Row.
package extract

import (
	"encoding/json"
	"sort"

	"golang.org/x/text/cases"
)

// Row - неизменяемое отображение колонка -> значение драйвера.
// Поиск по имени: сначала точное совпадение, затем без учета регистра.
type Row struct {
	cols   []string
	values map[string]any
	folded map[string]string // fold(name) -> имя колонки
}

// NewRow создает строку из имен колонок и значений в одном порядке.
// Повторяющиеся имена: побеждает последнее значение.
func NewRow(cols []string, vals []any) Row {
	r := Row{
		cols:   make([]string, 0, len(cols)),
		values: make(map[string]any, len(cols)),
		folded: make(map[string]string, len(cols)),
	}
	fold := cases.Fold()
	for i, c := range cols {
		var v any
		if i < len(vals) {
			v = vals[i]
		}
		if _, dup := r.values[c]; !dup {
			r.cols = append(r.cols, c)
		}
		r.values[c] = v
		key := fold.String(c)
		if _, taken := r.folded[key]; !taken {
			r.folded[key] = c
		}
	}
	return r
}

// RowFromMap создает строку из map; колонки упорядочиваются по имени
func RowFromMap(m map[string]any) Row {
	cols := make([]string, 0, len(m))
	for k := range m {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = m[c]
	}
	return NewRow(cols, vals)
}

// Get возвращает значение колонки и признак ее наличия.
// Колонка со значением NULL присутствует: (nil, true).
func (r Row) Get(name string) (any, bool) {
	if v, ok := r.values[name]; ok {
		return v, true
	}
	if exact, ok := r.folded[cases.Fold().String(name)]; ok {
		return r.values[exact], true
	}
	return nil, false
}

// Has сообщает, есть ли колонка в строке
func (r Row) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Columns возвращает имена колонок в порядке драйвера
func (r Row) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Len - количество колонок
func (r Row) Len() int { return len(r.cols) }

// Map возвращает копию значений
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = RowFromMap(m)
	return nil
}
