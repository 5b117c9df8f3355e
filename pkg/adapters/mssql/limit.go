package mssql

import (
	"fmt"
	"strings"
)

// LimitRows: SQL Server не знает LIMIT.
//
// Обычный SELECT оборачивается в SELECT TOP (n) * FROM (...) t. Такая обертка
// недопустима для CTE (WITH нельзя поместить в подзапрос) и для ORDER BY без
// TOP/OFFSET, поэтому для них ограничение встраивается в сам запрос:
// OFFSET 0 ROWS FETCH NEXT n ROWS ONLY после ORDER BY или TOP (n) в
// основной SELECT после CTE. CTE, уже ограниченный своим TOP/OFFSET,
// возвращается как есть.
func (Dialect) LimitRows(query string, n int) string {
	q := strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")
	words := topLevelWords(q)
	fetch := fmt.Sprintf(" OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", n)

	cte := len(words) > 0 && words[0].word == "WITH"
	ordered := hasWord(words, "ORDER")
	bounded := hasWord(words, "TOP", "OFFSET")

	if !cte {
		if ordered && !bounded {
			return q + fetch
		}
		return wrapTop(q, n)
	}

	switch {
	case bounded:
		return q
	case ordered:
		return q + fetch
	case hasWord(words, "UNION", "EXCEPT", "INTERSECT"):
		return q + " ORDER BY 1" + fetch
	}
	for i, w := range words {
		if w.word != "SELECT" {
			continue
		}
		at := w.end
		if i+1 < len(words) {
			next := words[i+1]
			if (next.word == "DISTINCT" || next.word == "ALL") && strings.TrimSpace(q[w.end:next.pos]) == "" {
				at = next.end
			}
		}
		return q[:at] + fmt.Sprintf(" TOP (%d)", n) + q[at:]
	}
	return wrapTop(q, n)
}

func wrapTop(q string, n int) string {
	return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) t", n, q)
}

// topWord - слово верхнего уровня: вне скобок, строк, [идентификаторов] и комментариев
type topWord struct {
	word     string // в верхнем регистре
	pos, end int
}

func topLevelWords(q string) []topWord {
	var out []topWord
	depth := 0
	for i := 0; i < len(q); {
		c := q[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(q, i, c)
		case c == '[':
			i = skipQuoted(q, i, ']')
		case c == '-' && strings.HasPrefix(q[i:], "--"):
			if j := strings.IndexByte(q[i:], '\n'); j >= 0 {
				i += j + 1
			} else {
				i = len(q)
			}
		case c == '/' && strings.HasPrefix(q[i:], "/*"):
			if j := strings.Index(q[i+2:], "*/"); j >= 0 {
				i += j + 4
			} else {
				i = len(q)
			}
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case isWordByte(c):
			j := i
			for j < len(q) && isWordByte(q[j]) {
				j++
			}
			if depth == 0 {
				out = append(out, topWord{word: strings.ToUpper(q[i:j]), pos: i, end: j})
			}
			i = j
		default:
			i++
		}
	}
	return out
}

// skipQuoted возвращает позицию после закрывающего символа; удвоенный символ - экранирование
func skipQuoted(q string, i int, closing byte) int {
	for j := i + 1; j < len(q); j++ {
		if q[j] != closing {
			continue
		}
		if j+1 < len(q) && q[j+1] == closing {
			j++
			continue
		}
		return j + 1
	}
	return len(q)
}

func isWordByte(c byte) bool {
	return c == '_' || c == '@' || c == '#' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func hasWord(words []topWord, names ...string) bool {
	for _, w := range words {
		for _, n := range names {
			if w.word == n {
				return true
			}
		}
	}
	return false
}
