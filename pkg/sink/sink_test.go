package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters/sqlite"
	"github.com/ruslano69/tdtp-migrator/pkg/extract"
	"github.com/ruslano69/tdtp-migrator/pkg/loader"
	"github.com/ruslano69/tdtp-migrator/pkg/mapping"
	"github.com/ruslano69/tdtp-migrator/pkg/product"
	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

func openDB(t *testing.T, ddl ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "dest.db")+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("ddl: %v\n%s", err, stmt)
		}
	}
	return db
}

func TestParseContract(t *testing.T) {
	tests := []struct {
		in      string
		want    Contract
		wantErr bool
	}{
		{"", ContractFlat, false},
		{"flat", ContractFlat, false},
		{" Nested ", ContractNested, false},
		{"HTTP", ContractHTTP, false},
		{"grpc", "", true},
	}
	for _, tt := range tests {
		got, err := ParseContract(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseContract(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFlatWrite(t *testing.T) {
	db := openDB(t, `CREATE TABLE clientes (
		id INTEGER PRIMARY KEY,
		documento TEXT NOT NULL UNIQUE,
		nombre TEXT NOT NULL,
		saldo NUMERIC
	)`)
	d := sqlite.Dialect{}
	engine := mapping.NewEngine(nil, product.DefaultDefaults())
	s, err := NewFlat(FlatConfig{
		Table: "clientes",
		Mappings: []mapping.FieldMapping{
			{Target: "documento", Source: "doc", Rule: "trim"},
			{Target: "nombre", Source: "razon", Rule: "upper"},
			{Target: "saldo", Type: mapping.TypeExpression, Value: "row.debe - row.haber"},
			{Target: "columna_borrada", Source: "doc"},
		},
	}, engine, loader.NewTableLoader(db, d, loader.DefaultPolicies()), schema.NewIntrospector(db, d))
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}

	ctx := context.Background()
	row := extract.RowFromMap(map[string]any{"doc": " 20-1 ", "razon": "acme", "debe": "100", "haber": 25})

	dry, err := s.Write(ctx, row, true)
	if err != nil || !dry.Success || dry.Outcome != loader.OutcomeDryRun {
		t.Fatalf("dry run: %+v, %v", dry, err)
	}
	if strings.Contains(dry.SQL, "columna_borrada") {
		t.Errorf("dry-run SQL references unknown column: %s", dry.SQL)
	}

	for i, want := range []loader.Outcome{loader.OutcomeInserted, loader.OutcomeSkippedNoRows} {
		r, err := s.Write(ctx, row, false)
		if err != nil || !r.Success || r.Outcome != want {
			t.Fatalf("write #%d: %+v, %v (want %s)", i+1, r, err, want)
		}
	}

	var nombre string
	var saldo float64
	if err := db.QueryRow(`SELECT nombre, saldo FROM clientes WHERE documento = '20-1'`).Scan(&nombre, &saldo); err != nil {
		t.Fatal(err)
	}
	if nombre != "ACME" || saldo != 75 {
		t.Errorf("row = %q %v", nombre, saldo)
	}

	bad := extract.RowFromMap(map[string]any{"doc": "x", "razon": "y", "debe": "abc", "haber": 1})
	r, err := s.Write(ctx, bad, false)
	if err != nil || r.Success {
		t.Errorf("expression error must fail the row: %+v, %v", r, err)
	}
}

func TestFlatUnknownTable(t *testing.T) {
	db := openDB(t)
	d := sqlite.Dialect{}
	s, err := NewFlat(FlatConfig{Table: "nope", Mappings: []mapping.FieldMapping{{Target: "a", Source: "a"}}},
		mapping.NewEngine(nil, product.DefaultDefaults()), loader.NewTableLoader(db, d, loader.DefaultPolicies()),
		schema.NewIntrospector(db, d))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(context.Background(), extract.RowFromMap(map[string]any{"a": 1}), false); err == nil {
		t.Error("missing destination table must be a connection-level error")
	}
}

func TestNewFlatValidation(t *testing.T) {
	engine := mapping.NewEngine(nil, product.DefaultDefaults())
	if _, err := NewFlat(FlatConfig{}, engine, nil, nil); err == nil {
		t.Error("blank table must be rejected")
	}
	if _, err := NewFlat(FlatConfig{Table: "t", Mappings: []mapping.FieldMapping{{Target: " "}}}, engine, nil, nil); err == nil {
		t.Error("blank mapping target must be rejected")
	}
}

func TestNestedDryRunWithoutMappings(t *testing.T) {
	engine := mapping.NewEngine(nil, product.DefaultDefaults())
	s := NewNested(engine, nil, loader.NewProductLoader(nil, sqlite.Dialect{}, product.DefaultDefaults(), loader.ProductOptions{}), false)

	row := extract.RowFromMap(map[string]any{"nombre": "tornillo  6mm", "precioMinorista": "12.50", "stock": 3})
	r, err := s.Write(context.Background(), row, true)
	if err != nil || !r.Success || r.Outcome != loader.OutcomeDryRun {
		t.Fatalf("Write = %+v, %v", r, err)
	}
	if !strings.Contains(r.Message, "TORNILLO 6MM") {
		t.Errorf("message = %q", r.Message)
	}

	r, _ = s.Write(context.Background(), extract.RowFromMap(map[string]any{"precioMinorista": 1}), true)
	if r.Success {
		t.Error("row without contract aliases must fail")
	}
}

func TestHTTPWrite(t *testing.T) {
	var got product.CreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/productos" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("dryRun") != "false" {
			t.Errorf("dryRun = %q", r.URL.Query().Get("dryRun"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "creado", "id": 7})
	}))
	defer srv.Close()

	s, err := NewHTTP(srv.URL+"/", 0, product.DefaultDefaults())
	if err != nil {
		t.Fatal(err)
	}
	row := extract.RowFromMap(map[string]any{"nombre": "Clavo", "precioMinorista": "3", "stock": "10"})
	r, err := s.Write(context.Background(), row, false)
	if err != nil || !r.Success || r.ID == nil || *r.ID != 7 || r.Message != "creado" {
		t.Fatalf("Write = %+v, %v", r, err)
	}
	if got.Name != "CLAVO" || got.RetailPrice.String() != "3" {
		t.Errorf("request = %+v", got)
	}
	if got.WarehouseID == nil || *got.WarehouseID != 1 {
		t.Errorf("legacy warehouse must default to central, got %v", got.WarehouseID)
	}
}

func TestHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("dryRun") == "true" {
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "precio invalido"})
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := NewHTTP(srv.URL, 0, product.DefaultDefaults())
	if err != nil {
		t.Fatal(err)
	}
	row := extract.RowFromMap(map[string]any{"nombre": "x", "precioMinorista": 1, "tipo": "SERVICIO"})

	r, err := s.Write(context.Background(), row, true)
	if err != nil || r.Success || r.Message != "precio invalido" {
		t.Errorf("rejected payload: %+v, %v", r, err)
	}

	_, err = s.Write(context.Background(), row, false)
	if !errors.Is(err, ErrHTTPStatus) || !strings.Contains(err.Error(), "HTTP 502") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("status error = %v", err)
	}

	if _, err := NewHTTP("not a url", 0, product.DefaultDefaults()); err == nil {
		t.Error("invalid base url must be rejected")
	}
}
