package expr

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type mapRow map[string]any

func (m mapRow) Get(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func TestEvalArithmetic(t *testing.T) {
	row := mapRow{"precio": "100", "descuento": 15, "cantidad": decimal.RequireFromString("2.5")}

	tests := []struct {
		src  string
		want string
	}{
		{"row.precio * 1.21", "121"},
		{"#row['precio'] - #row['descuento']", "85"},
		{"row.cantidad * 2", "5"},
		{"-row.descuento + 20", "5"},
		{"(1 + 2) * 3", "9"},
		{"1 + 2 * 3", "7"},
		{"10 % 4", "2"},
		{"0.1 + 0.2", "0.3"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Eval(tt.src, row)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.src, err)
			}
			d, ok := got.(decimal.Decimal)
			if !ok {
				t.Fatalf("Eval(%q) = %T, want decimal", tt.src, got)
			}
			if !d.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Eval(%q) = %s, want %s", tt.src, d, tt.want)
			}
		})
	}
}

func TestEvalConcatAndNull(t *testing.T) {
	row := mapRow{"codigo": "A1", "vacio": nil}

	got, err := Eval("'SKU-' + row.codigo", row)
	if err != nil || got != "SKU-A1" {
		t.Errorf("concat = %v, %v", got, err)
	}

	got, err = Eval("'X' + row.vacio", row)
	if err != nil || got != "X" {
		t.Errorf("concat with null = %v, %v", got, err)
	}

	got, err = Eval("row.vacio * 2", row)
	if err != nil || got != nil {
		t.Errorf("null arithmetic = %v, %v; want nil", got, err)
	}

	got, err = Eval("row.missing", row)
	if err != nil || got != nil {
		t.Errorf("missing column = %v, %v; want nil", got, err)
	}

	got, err = Eval("  ", row)
	if err != nil || got != nil {
		t.Errorf("blank expression = %v, %v; want nil", got, err)
	}

	got, err = Eval("'it''s'", row)
	if err != nil || got != "it's" {
		t.Errorf("escaped quote = %v, %v", got, err)
	}
}

// DECIMAL из MySQL приходит строкой: сложение должно быть числовым, как и вычитание
func TestEvalPlusOnNumericText(t *testing.T) {
	row := mapRow{"precio": "10.50", "envio": "2", "codigo": "A1"}

	tests := []struct {
		src  string
		want any
	}{
		{"row.precio + row.envio", decimal.RequireFromString("12.5")},
		{"row.precio - row.envio", decimal.RequireFromString("8.5")},
		{"row.precio + 1", decimal.RequireFromString("11.5")},
		{"row.codigo + row.envio", "A12"},
		{"'#' + row.envio", "#2"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Eval(tt.src, row)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.src, err)
			}
			switch want := tt.want.(type) {
			case decimal.Decimal:
				d, ok := got.(decimal.Decimal)
				if !ok || !d.Equal(want) {
					t.Errorf("Eval(%q) = %#v, want %s", tt.src, got, want)
				}
			default:
				if got != want {
					t.Errorf("Eval(%q) = %#v, want %v", tt.src, got, want)
				}
			}
		})
	}
}

func TestEvalLiterals(t *testing.T) {
	for src, want := range map[string]any{"true": true, "FALSE": false, "null": nil} {
		got, err := Eval(src, nil)
		if err != nil {
			t.Fatalf("Eval(%q) error: %v", src, err)
		}
		if got != want {
			t.Errorf("Eval(%q) = %v, want %v", src, got, want)
		}
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	for _, src := range []string{"1 / 0", "5 % (2 - 2)"} {
		if _, err := Eval(src, nil); !errors.Is(err, ErrDivisionByZero) {
			t.Errorf("Eval(%q) error = %v, want ErrDivisionByZero", src, err)
		}
	}
}

func TestCompileRejectsUnsafeInput(t *testing.T) {
	bad := []string{
		"T(java.lang.Runtime).getRuntime()",
		"row.precio.toString()",
		"#system['x']",
		"row",
		"row[1]",
		"1 +",
		"(1 + 2",
		"'open",
		"1 ; 2",
		"row.precio 5",
	}
	for _, src := range bad {
		_, err := Compile(src)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Compile(%q) error = %v, want *SyntaxError", src, err)
		}
	}
}

func TestEvalNonNumericOperand(t *testing.T) {
	row := mapRow{"nombre": "abc"}
	if _, err := Eval("row.nombre * 2", row); err == nil {
		t.Error("expected error for non-numeric operand")
	}
	if _, err := Eval("true - 1", row); err == nil {
		t.Error("expected error for boolean operand")
	}
}

func TestProgramReuse(t *testing.T) {
	prog, err := Compile("row.a + row.b")
	if err != nil {
		t.Fatal(err)
	}
	if prog.String() != "row.a + row.b" {
		t.Errorf("String() = %q", prog.String())
	}
	for i, row := range []mapRow{{"a": 1, "b": 2}, {"a": "x", "b": 2}} {
		got, err := prog.Eval(row)
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if i == 0 && !got.(decimal.Decimal).Equal(decimal.NewFromInt(3)) {
			t.Errorf("row 0 = %v", got)
		}
		if i == 1 && got != "x2" {
			t.Errorf("row 1 = %v", got)
		}
	}
}
