package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/coerce"
	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

// InsertRequest - одна плоская строка для вставки
type InsertRequest struct {
	Schema string
	Table  string

	// Values - колонка -> значение; Order - порядок колонок (пустой = по алфавиту)
	Values map[string]any
	Order  []string

	// AllowedLower - допустимые колонки в нижнем регистре; nil отключает фильтр
	AllowedLower map[string]struct{}

	// Meta - метаданные колонок; nil отключает приведение типов и NullPolicy
	Meta []schema.ColumnMeta

	DryRun bool
}

// TableLoader вставляет плоские строки в таблицу назначения
type TableLoader struct {
	db       Execer
	dialect  adapters.Dialect
	policies Policies
	coercer  *coerce.Adapter
}

// NewTableLoader создает загрузчик поверх пула (или соединения) назначения
func NewTableLoader(db Execer, d adapters.Dialect, policies Policies) *TableLoader {
	if policies.Null == "" {
		policies.Null = NullSkipRow
	}
	if policies.Duplicate == "" {
		policies.Duplicate = DuplicateSkip
	}
	return &TableLoader{db: db, dialect: d, policies: policies, coercer: coerce.New(nil)}
}

// InsertRow фильтрует колонки по allow-list и метаданным, приводит значения
// к типам колонок и выполняет параметризованный INSERT.
//
// При policy=skip дубликат (нарушение уникальности или 0 затронутых строк)
// считается успехом. Любая другая ошибка БД - неуспешный Result, не error.
func (l *TableLoader) InsertRow(ctx context.Context, req InsertRequest) Result {
	table := strings.TrimSpace(req.Table)
	if table == "" {
		return Fail("destination table is required")
	}
	schemaName := strings.TrimSpace(req.Schema)
	if schemaName == "" {
		schemaName = l.dialect.DefaultSchema()
	}

	var metaIdx map[string]schema.ColumnMeta
	if req.Meta != nil {
		metaIdx = schema.IndexByLower(req.Meta)
	}

	cols := make([]string, 0, len(req.Values))
	args := make([]any, 0, len(req.Values))
	present := make(map[string]bool, len(req.Values))
	// колонки, различающиеся только регистром: позиция первой, значение последней
	pos := make(map[string]int, len(req.Values))

	for _, col := range columnOrder(req) {
		lower := strings.ToLower(col)
		if req.AllowedLower != nil {
			if _, ok := req.AllowedLower[lower]; !ok {
				log.Debug().Str("table", table).Str("column", col).Msg("column not in destination, skipped")
				continue
			}
		}
		v := req.Values[col]
		if meta, ok := metaIdx[lower]; ok {
			if !meta.Writable() {
				continue
			}
			converted, err := l.coercer.Convert(meta, v)
			if err != nil {
				return Fail(fmt.Sprintf("column %s: %v", col, err))
			}
			v = converted
		}
		present[lower] = v != nil
		if i, dup := pos[lower]; dup {
			args[i] = v
			continue
		}
		pos[lower] = len(cols)
		cols = append(cols, col)
		args = append(args, v)
	}

	if metaIdx != nil {
		if missing := missingRequired(req.Meta, present); len(missing) > 0 {
			switch l.policies.Null {
			case NullSkipRow:
				return Ok(OutcomeSkippedNull, "row skipped: required columns without value: "+strings.Join(missing, ", "))
			case NullError:
				return Fail("required columns without value: " + strings.Join(missing, ", "))
			}
		}
	}

	if len(cols) == 0 {
		return Fail(fmt.Sprintf("no writable columns for %s after filtering", table))
	}

	query := l.insertSQL(schemaName, table, cols)
	if req.DryRun {
		r := Ok(OutcomeDryRun, fmt.Sprintf("DRY-RUN: %s -- params=%s", query, formatArgs(args)))
		r.SQL = query
		return r
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		if l.policies.Duplicate == DuplicateSkip && l.dialect.IsUniqueViolation(err) {
			return Ok(OutcomeSkippedConflict, "skipped duplicate (unique constraint)")
		}
		return Fail(fmt.Sprintf("insert into %s failed: %v", table, err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		// драйвер не сообщает количество строк - считаем вставку выполненной
		n = 1
	}
	switch {
	case n > 0:
		return Ok(OutcomeInserted, fmt.Sprintf("inserted into %s", table))
	case l.policies.Duplicate == DuplicateSkip:
		return Ok(OutcomeSkippedNoRows, "skipped duplicate: 0 rows affected")
	}
	return Fail(fmt.Sprintf("insert into %s affected 0 rows", table))
}

func (l *TableLoader) insertSQL(schemaName, table string, cols []string) string {
	quoted := make([]string, len(cols))
	ph := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = l.dialect.QuoteIdentifier(c)
		ph[i] = l.dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		l.dialect.QualifiedTable(schemaName, table), strings.Join(quoted, ", "), strings.Join(ph, ", "))
	if l.policies.Duplicate == DuplicateSkip {
		query += l.dialect.OnConflictDoNothing()
	}
	return query
}

// columnOrder - req.Order, дополненный остальными ключами Values по алфавиту
func columnOrder(req InsertRequest) []string {
	seen := make(map[string]bool, len(req.Values))
	out := make([]string, 0, len(req.Values))
	for _, c := range req.Order {
		if _, ok := req.Values[c]; ok && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	var rest []string
	for c := range req.Values {
		if !seen[c] && strings.TrimSpace(c) != "" {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// missingRequired - обязательные колонки, для которых нет значения
func missingRequired(meta []schema.ColumnMeta, present map[string]bool) []string {
	var missing []string
	for _, m := range meta {
		if m.IsRequiredInput() && !present[strings.ToLower(m.Name)] {
			missing = append(missing, m.Name)
		}
	}
	return missing
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil:
			parts[i] = "NULL"
		case string:
			parts[i] = fmt.Sprintf("%q", v)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
