package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrUnsafeSQL - запрос отклонен проверкой "только SELECT"
var ErrUnsafeSQL = errors.New("unsafe SQL")

// forbiddenKeywords - DML/DDL/DCL и служебные команды, запрещенные как отдельные слова.
// Слова внутри идентификаторов (deleted_at, created_by) не срабатывают.
var forbiddenKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "TRUNCATE": true, "MERGE": true, "UPSERT": true,
	"DROP": true, "CREATE": true, "ALTER": true, "RENAME": true,
	"GRANT": true, "REVOKE": true,
	"EXECUTE": true, "EXEC": true, "CALL": true,
	"PRAGMA": true, "ATTACH": true, "DETACH": true,
	"BEGIN": true, "COMMIT": true, "ROLLBACK": true,
	"INTO": true, "COPY": true,
}

// SQLValidator проверяет SQL источника.
//
// В safe mode (по умолчанию) разрешен ровно один SELECT (или WITH ... SELECT)
// без точек с запятой, комментариев и запрещенных ключевых слов.
// Unsafe mode пропускает все; включается только администратором из CLI.
type SQLValidator struct {
	safeMode bool
}

// NewSQLValidator создает валидатор
func NewSQLValidator(safeMode bool) *SQLValidator {
	return &SQLValidator{safeMode: safeMode}
}

// ValidateSelectOnly - проверка safe mode без создания валидатора
func ValidateSelectOnly(sql string) error {
	return NewSQLValidator(true).Validate(sql)
}

// Validate возвращает ошибку, совместимую с ErrUnsafeSQL, если запрос не проходит политику
func (v *SQLValidator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", ErrUnsafeSQL)
	}
	if !v.safeMode {
		return nil
	}

	words := scanWords(trimmed)
	if len(words) == 0 || (words[0] != "SELECT" && words[0] != "WITH") {
		return fmt.Errorf("%w: only SELECT and WITH queries allowed, got: %s", ErrUnsafeSQL, queryType(words))
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("%w: ';' is not allowed", ErrUnsafeSQL)
	}
	if strings.Contains(trimmed, "--") {
		return fmt.Errorf("%w: SQL comments (--) not allowed", ErrUnsafeSQL)
	}
	if strings.Contains(trimmed, "/*") || strings.Contains(trimmed, "*/") {
		return fmt.Errorf("%w: SQL comments (/* */) not allowed", ErrUnsafeSQL)
	}
	for _, w := range words {
		if forbiddenKeywords[w] {
			return fmt.Errorf("%w: forbidden keyword '%s'", ErrUnsafeSQL, w)
		}
	}
	return nil
}

// IsSafeMode возвращает текущий режим валидатора
func (v *SQLValidator) IsSafeMode() bool {
	return v.safeMode
}

// scanWords возвращает слова запроса в верхнем регистре, пропуская
// строковые литералы ('...') и идентификаторы в кавычках ("...", `...`, [...]).
func scanWords(sql string) []string {
	var (
		words []string
		word  strings.Builder
		quote rune
	)
	flush := func() {
		if word.Len() > 0 {
			words = append(words, strings.ToUpper(word.String()))
			word.Reset()
		}
	}
	for _, r := range sql {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		switch {
		case r == '\'' || r == '"' || r == '`':
			flush()
			quote = r
		case r == '[':
			flush()
			quote = ']'
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$':
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}

func queryType(words []string) string {
	if len(words) > 0 {
		return words[0]
	}
	return "UNKNOWN"
}
