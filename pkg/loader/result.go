// Package loader записывает строки в БД назначения.
//
// TableLoader - плоская вставка в произвольную таблицу с allow-list колонок,
// приведением типов и политикой дубликатов.
// ProductLoader - структурная запись товара с остатками и движениями в одной
// транзакции, с восстановлением после дубликата через savepoint.
//
// Ошибки строк не возвращаются как error: они превращаются в Result с
// Success=false, чтобы одна плохая строка не останавливала пакет.
package loader

import "strings"

// Outcome - классификация результата записи
type Outcome string

const (
	OutcomeInserted        Outcome = "inserted"
	OutcomeSkippedConflict Outcome = "skipped_conflict" // нарушение уникальности при policy=skip
	OutcomeSkippedNoRows   Outcome = "skipped_no_rows"  // 0 строк затронуто при policy=skip
	OutcomeSkippedNull     Outcome = "skipped_null"     // NullPolicy=SKIP_ROW
	OutcomeCreated         Outcome = "created"
	OutcomeReused          Outcome = "reused"
	OutcomeDryRun          Outcome = "dry_run"
	OutcomeFailed          Outcome = "failed"
)

// Result - итог записи одной строки
type Result struct {
	Success bool    `json:"success"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	ID      *int64  `json:"id,omitempty"`

	// SQL - текст оператора (заполняется в dry-run)
	SQL string `json:"sql,omitempty"`
}

// Ok создает успешный результат
func Ok(outcome Outcome, msg string) Result {
	return Result{Success: true, Outcome: outcome, Message: msg}
}

// Fail создает результат-ошибку
func Fail(msg string) Result {
	return Result{Outcome: OutcomeFailed, Message: msg}
}

// NullPolicy - что делать с обязательной колонкой без значения (плоский путь)
type NullPolicy string

const (
	NullSkipRow NullPolicy = "SKIP_ROW"
	NullSetNull NullPolicy = "SET_NULL"
	NullError   NullPolicy = "ERROR"
)

// ParseNullPolicy: пустое и неизвестное значение - SKIP_ROW
func ParseNullPolicy(s string) NullPolicy {
	switch p := NullPolicy(strings.ToUpper(strings.TrimSpace(s))); p {
	case NullSetNull, NullError:
		return p
	}
	return NullSkipRow
}

// DuplicatePolicy - реакция на дубликат уникального ключа
type DuplicatePolicy string

const (
	DuplicateSkip   DuplicatePolicy = "skip"
	DuplicateUpdate DuplicatePolicy = "update"
	DuplicateError  DuplicatePolicy = "error"
)

// ParseDuplicatePolicy: пустое и неизвестное значение - skip
func ParseDuplicatePolicy(s string) DuplicatePolicy {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DuplicateUpdate, DuplicateError:
		return p
	}
	return DuplicateSkip
}

// Policies - политики плоского пути
type Policies struct {
	Null      NullPolicy
	Duplicate DuplicatePolicy
}

// DefaultPolicies - SKIP_ROW / skip
func DefaultPolicies() Policies {
	return Policies{Null: NullSkipRow, Duplicate: DuplicateSkip}
}
