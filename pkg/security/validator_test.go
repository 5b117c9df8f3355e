package security

import (
	"errors"
	"strings"
	"testing"
)

func TestSQLValidator_ValidateSafeMode(t *testing.T) {
	validator := NewSQLValidator(true)

	tests := []struct {
		name    string
		sql     string
		wantErr bool
		errMsg  string
	}{
		// Разрешенные запросы
		{name: "Simple SELECT", sql: "SELECT * FROM productos"},
		{name: "Lowercase with leading spaces", sql: "   select id, nombre from productos where precio > 10"},
		{name: "WITH (CTE) query", sql: "WITH cte AS (SELECT * FROM marcas) SELECT * FROM cte"},
		{name: "Keyword inside identifier", sql: "SELECT deleted_at, created_by, updated FROM t"},
		{name: "Keyword inside string literal", sql: "SELECT * FROM movimientos WHERE tipo = 'DELETE'"},
		{name: "Keyword as quoted identifier", sql: `SELECT "update", [drop] FROM t`},

		// Не SELECT
		{name: "Empty", sql: "   ", wantErr: true, errMsg: "empty query"},
		{name: "INSERT", sql: "INSERT INTO t (a) VALUES (1)", wantErr: true, errMsg: "only SELECT and WITH"},
		{name: "UPDATE", sql: "UPDATE t SET a = 1", wantErr: true, errMsg: "only SELECT and WITH"},
		{name: "EXEC", sql: "EXEC sp_who", wantErr: true, errMsg: "got: EXEC"},

		// Точка с запятой запрещена всегда
		{name: "Trailing semicolon", sql: "SELECT * FROM t;", wantErr: true, errMsg: "';'"},
		{name: "Stacked statements", sql: "SELECT 1; DROP TABLE t", wantErr: true, errMsg: "';'"},

		// Комментарии
		{name: "Line comment", sql: "SELECT * FROM t -- hidden", wantErr: true, errMsg: "comments"},
		{name: "Block comment", sql: "SELECT * FROM t /* x */", wantErr: true, errMsg: "comments"},

		// Запрещенные слова внутри SELECT
		{name: "SELECT INTO", sql: "SELECT * INTO copia FROM t", wantErr: true, errMsg: "'INTO'"},
		{name: "CTE with DELETE", sql: "WITH d AS (DELETE FROM t RETURNING *) SELECT * FROM d", wantErr: true, errMsg: "'DELETE'"},
		{name: "Function call", sql: "SELECT * FROM t WHERE x = (CALL f())", wantErr: true, errMsg: "'CALL'"},
		{name: "Mixed case", sql: "SELECT * FROM t WHERE 1=1 OR DrOp", wantErr: true, errMsg: "'DROP'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.sql)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrUnsafeSQL) {
				t.Errorf("error must wrap ErrUnsafeSQL: %v", err)
			}
			if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestSQLValidator_UnsafeMode(t *testing.T) {
	v := NewSQLValidator(false)
	if err := v.Validate("DELETE FROM t; DROP TABLE t"); err != nil {
		t.Errorf("unsafe mode must accept anything non-empty: %v", err)
	}
	if err := v.Validate(""); err == nil {
		t.Error("empty query must be rejected in any mode")
	}
}

func TestScanWords(t *testing.T) {
	got := strings.Join(scanWords(`select a.b, 'x y' AS "q r", [s t], n_1 from t`), " ")
	want := "SELECT A B AS N_1 FROM T"
	if got != want {
		t.Errorf("scanWords = %q, want %q", got, want)
	}
}

func BenchmarkValidate_ComplexQuery(b *testing.B) {
	validator := NewSQLValidator(true)
	sql := `
		WITH activos AS (
			SELECT id, nombre FROM productos WHERE activo = 1
		)
		SELECT p.id, p.nombre, SUM(s.cantidad) AS total
		FROM activos p
		LEFT JOIN stocks s ON s.producto_id = p.id
		GROUP BY p.id, p.nombre
	`
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = validator.Validate(sql)
	}
}
