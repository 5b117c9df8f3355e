package rules

import (
	"strings"
	"time"
)

// javaPatternTokens - соответствие токенов шаблона вида "dd/MM/yyyy HH:mm:ss"
// раскладкам time. Длинные токены идут первыми.
var javaPatternTokens = []struct{ token, layout string }{
	{"yyyy", "2006"}, {"uuuu", "2006"}, {"yy", "06"}, {"uu", "06"},
	{"MMMM", "January"}, {"MMM", "Jan"}, {"MM", "01"}, {"M", "1"},
	{"dd", "02"}, {"d", "2"},
	{"EEEE", "Monday"}, {"EEE", "Mon"},
	{"HH", "15"}, {"hh", "03"}, {"h", "3"},
	{"mm", "04"}, {"m", "4"},
	{"ss", "05"}, {"s", "5"},
	{"SSSSSSSSS", "000000000"}, {"SSSSSS", "000000"}, {"SSS", "000"},
	{"a", "PM"},
	{"XXX", "Z07:00"}, {"XX", "Z0700"}, {"Z", "-0700"},
}

// LayoutFromPattern переводит шаблон даты (yyyy-MM-dd, dd/MM/uuuu HH:mm:ss, ...)
// в раскладку пакета time. Текст в одинарных кавычках копируется как есть.
func LayoutFromPattern(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		matched := false
		for _, t := range javaPatternTokens {
			if strings.HasPrefix(pattern[i:], t.token) {
				b.WriteString(t.layout)
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

var (
	isoDateLayouts = []string{"2006-01-02"}

	isoLocalTimestampLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
)

// ParseDate разбирает дату по шаблону или ISO-8601 (yyyy-MM-dd).
// Результат - полночь в loc.
func ParseDate(s, pattern string, loc *time.Location) (time.Time, error) {
	t := strings.TrimSpace(s)
	layouts := isoDateLayouts
	if strings.TrimSpace(pattern) != "" {
		layouts = []string{LayoutFromPattern(pattern)}
	}
	for _, layout := range layouts {
		if parsed, err := time.ParseInLocation(layout, t, loc); err == nil {
			y, m, d := parsed.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
		}
	}
	return time.Time{}, &ConversionError{Target: "date", Value: s, Reason: "unparsable date"}
}

// ParseTimestamp разбирает дату-время по шаблону или ISO-8601
// (локальное время или со смещением, смещение переводится в loc).
func ParseTimestamp(s, pattern string, loc *time.Location) (time.Time, error) {
	t := strings.TrimSpace(s)
	if strings.TrimSpace(pattern) != "" {
		if parsed, err := time.ParseInLocation(LayoutFromPattern(pattern), t, loc); err == nil {
			return parsed, nil
		}
		return time.Time{}, &ConversionError{Target: "timestamp", Value: s, Reason: "does not match pattern " + pattern}
	}
	for _, layout := range isoLocalTimestampLayouts {
		if parsed, err := time.ParseInLocation(layout, t, loc); err == nil {
			return parsed, nil
		}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
		return parsed.In(loc), nil
	}
	return time.Time{}, &ConversionError{Target: "timestamp", Value: s, Reason: "unparsable timestamp"}
}
