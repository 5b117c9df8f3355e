package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

func fixedEvaluator() *Evaluator {
	clock := func() time.Time { return time.Date(2024, 3, 15, 13, 45, 10, 0, time.UTC) }
	return New(WithClock(clock), WithLocation(time.UTC))
}

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		arg   string
		known bool
	}{
		{"", "", "", false},
		{"trim", RuleTrim, "", true},
		{"  UPPER ", RuleUpper, "", true},
		{"coalesce('0')", RuleCoalesce, "0", true},
		{"coalesce(\"N/A\")", RuleCoalesce, "N/A", true},
		{"toDate(dd/MM/yyyy)", RuleToDate, "dd/MM/yyyy", true},
		{"current_timestamp", RuleNow, "", true},
		{"toBoolean", RuleToBool, "", true},
		{"toDateTime('yyyy-MM-dd HH:mm')", RuleToTimestamp, "yyyy-MM-dd HH:mm", true},
		{"reverse", "reverse", "", false},
	}
	for _, tt := range tests {
		got := Parse(tt.in)
		if got.Name != tt.name || got.Arg != tt.arg || got.Known != tt.known {
			t.Errorf("Parse(%q) = %+v, want {%s %s %v}", tt.in, got, tt.name, tt.arg, tt.known)
		}
	}
}

func TestNormalizeNumber(t *testing.T) {
	tests := map[string]string{
		"1.234,56":     "1234.56",
		"1234.56":      "1234.56",
		"12,5":         "12.5",
		" 1 000 ":      "1000",
		"1\u00a0234,5": "1234.5",
		"-3":           "-3",
	}
	for in, want := range tests {
		if got := NormalizeNumber(in); got != want {
			t.Errorf("NormalizeNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToDecimalLocaleRoundTrip(t *testing.T) {
	e := fixedEvaluator()
	a, err := e.Apply("1.234,56", "toDecimal")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Apply("1234.56", "toDecimal")
	if err != nil {
		t.Fatal(err)
	}
	if !a.(decimal.Decimal).Equal(b.(decimal.Decimal)) {
		t.Errorf("toDecimal: %v != %v", a, b)
	}
}

func TestCoalesce(t *testing.T) {
	e := fixedEvaluator()

	for _, in := range []any{nil, "", "   "} {
		got, err := e.Apply(in, "coalesce('0')")
		if err != nil {
			t.Fatal(err)
		}
		d, ok := got.(decimal.Decimal)
		if !ok || !d.IsZero() {
			t.Errorf("coalesce(%q) = %#v, want decimal 0", in, got)
		}
	}

	got, _ := e.Apply("abc", "coalesce('0')")
	if got != "abc" {
		t.Errorf("coalesce keeps non-blank input, got %v", got)
	}

	got, _ = e.Apply(nil, "coalesce(true)")
	if got != true {
		t.Errorf("coalesce(true) = %v", got)
	}

	got, _ = e.Apply(nil, "coalesce(null)")
	if got != nil {
		t.Errorf("coalesce(null) = %v", got)
	}

	got, _ = e.Apply(nil, "coalesce('SIN MARCA')")
	if got != "SIN MARCA" {
		t.Errorf("coalesce string = %v", got)
	}
}

func TestStringRules(t *testing.T) {
	e := New(WithLanguage(language.Spanish))
	cases := []struct {
		in   any
		rule string
		want any
	}{
		{"  hola  ", "trim", "hola"},
		{"año", "upper", "AÑO"},
		{"ÑANDÚ", "lower", "ñandú"},
		{nil, "upper", nil},
		{nil, "trim", nil},
		{"  ", "emptyToNull", nil},
		{"x", "emptyToNull", "x"},
		{"keep", "unknownRule(5)", "keep"},
		{"keep", "", "keep"},
	}
	for _, c := range cases {
		got, err := e.Apply(c.in, c.rule)
		if err != nil {
			t.Fatalf("%s(%v): %v", c.rule, c.in, err)
		}
		if got != c.want {
			t.Errorf("%s(%v) = %v, want %v", c.rule, c.in, got, c.want)
		}
	}
}

func TestNumericRules(t *testing.T) {
	e := fixedEvaluator()

	got, err := e.Apply("42", "toInt")
	if err != nil || got != int32(42) {
		t.Errorf("toInt = %v, %v", got, err)
	}

	got, err = e.Apply("9000000000", "toLong")
	if err != nil || got != int64(9000000000) {
		t.Errorf("toLong = %v, %v", got, err)
	}

	if _, err := e.Apply("9000000000", "toInt"); !errors.Is(err, ErrConversion) {
		t.Errorf("toInt overflow: expected ErrConversion, got %v", err)
	}
	if _, err := e.Apply("abc", "toDecimal"); !errors.Is(err, ErrConversion) {
		t.Errorf("toDecimal abc: expected ErrConversion, got %v", err)
	}
	if _, err := e.Apply("1,5", "toInt"); err == nil {
		t.Error("toInt 1,5: expected fractional error")
	}

	got, err = e.Apply("", "toInt")
	if err != nil || got != nil {
		t.Errorf("toInt blank = %v, %v", got, err)
	}
}

func TestToBool(t *testing.T) {
	e := fixedEvaluator()
	for _, s := range []string{"1", "true", "T", "y", "YES", "s", "si", "Sí"} {
		got, err := e.Apply(s, "toBool")
		if err != nil || got != true {
			t.Errorf("toBool(%q) = %v, %v", s, got, err)
		}
	}
	for _, s := range []string{"0", "false", "F", "n", "No"} {
		got, err := e.Apply(s, "toBool")
		if err != nil || got != false {
			t.Errorf("toBool(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := e.Apply("maybe", "toBool"); err == nil {
		t.Error("toBool(maybe): expected error")
	}
	got, err := e.Apply(" ", "toBool")
	if err != nil || got != nil {
		t.Errorf("toBool(blank) = %v, %v", got, err)
	}
	got, _ = e.Apply(int64(2), "toBool")
	if got != true {
		t.Errorf("toBool(2) = %v", got)
	}
}

func TestTimeRules(t *testing.T) {
	e := fixedEvaluator()

	got, _ := e.Apply("ignored", "now")
	if !got.(time.Time).Equal(time.Date(2024, 3, 15, 13, 45, 10, 0, time.UTC)) {
		t.Errorf("now = %v", got)
	}
	got, _ = e.Apply(nil, "today")
	if !got.(time.Time).Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("today = %v", got)
	}

	got, err := e.Apply("25/12/2023", "toDate('dd/MM/yyyy')")
	if err != nil || !got.(time.Time).Equal(time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("toDate pattern = %v, %v", got, err)
	}
	got, err = e.Apply("2023-12-25", "toDate")
	if err != nil || !got.(time.Time).Equal(time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("toDate iso = %v, %v", got, err)
	}
	if _, err := e.Apply("25.12.2023", "toDate"); err == nil {
		t.Error("toDate: expected error for non-ISO input without pattern")
	}

	got, err = e.Apply("2023-12-25T10:30:00", "toTimestamp")
	if err != nil || !got.(time.Time).Equal(time.Date(2023, 12, 25, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("toTimestamp iso = %v, %v", got, err)
	}
	got, err = e.Apply("2023-12-25T10:30:00+02:00", "toTimestamp")
	if err != nil || !got.(time.Time).Equal(time.Date(2023, 12, 25, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("toTimestamp offset = %v, %v", got, err)
	}
	got, err = e.Apply("25/12/2023 10:30:15", "toTimestamp(dd/MM/yyyy HH:mm:ss)")
	if err != nil || !got.(time.Time).Equal(time.Date(2023, 12, 25, 10, 30, 15, 0, time.UTC)) {
		t.Errorf("toTimestamp pattern = %v, %v", got, err)
	}
}

func TestLayoutFromPattern(t *testing.T) {
	tests := map[string]string{
		"dd/MM/yyyy":          "02/01/2006",
		"yyyy-MM-dd HH:mm:ss": "2006-01-02 15:04:05",
		"dd/MM/uuuu":          "02/01/2006",
		"yyyy-MM-dd'T'HH:mm":  "2006-01-02T15:04",
		"d MMM yyyy":          "2 Jan 2006",
		"HH:mm:ss.SSS":        "15:04:05.000",
	}
	for in, want := range tests {
		if got := LayoutFromPattern(in); got != want {
			t.Errorf("LayoutFromPattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLiteral(t *testing.T) {
	if ParseLiteral("NULL") != nil {
		t.Error("NULL should parse to nil")
	}
	if ParseLiteral("True") != true {
		t.Error("True should parse to bool")
	}
	if d, ok := ParseLiteral("0").(decimal.Decimal); !ok || !d.IsZero() {
		t.Error("0 should parse to decimal zero")
	}
	if ParseLiteral(" abc ") != "abc" {
		t.Error("abc should stay a string")
	}
}
