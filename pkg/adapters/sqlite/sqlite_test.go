package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

func openTemp(t *testing.T) adapters.Adapter {
	t.Helper()
	a, err := adapters.New(context.Background(), adapters.Config{
		Name: "test",
		Type: AdapterType,
		DSN:  "file:" + filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func exec(t *testing.T, a adapters.Adapter, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := a.DB().Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
}

func TestDescribeColumns(t *testing.T) {
	a := openTemp(t)
	exec(t, a, `CREATE TABLE productos (
		id INTEGER PRIMARY KEY,
		codigo VARCHAR(20) NOT NULL,
		precio NUMERIC(10,2) NOT NULL DEFAULT 0,
		alta DATETIME,
		total REAL GENERATED ALWAYS AS (precio * 2) VIRTUAL
	)`, `CREATE TABLE clientes (id INTEGER PRIMARY KEY)`)

	in := schema.NewIntrospector(a.DB(), a.Dialect())
	ctx := context.Background()

	tables, err := in.ListTables(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 || tables[0] != "clientes" || tables[1] != "productos" {
		t.Errorf("tables = %v", tables)
	}

	cols, err := in.DescribeColumns(ctx, "", "productos")
	if err != nil {
		t.Fatal(err)
	}
	byName := schema.IndexByLower(cols)
	if len(cols) != 5 {
		t.Fatalf("got %d columns", len(cols))
	}

	tests := []struct {
		name      string
		auto      bool
		nullable  bool
		def       bool
		generated bool
		required  bool
	}{
		{"id", true, false, false, false, false},
		{"codigo", false, false, false, false, true},
		{"precio", false, false, true, false, false},
		{"alta", false, true, false, false, false},
		{"total", false, true, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := byName[tt.name]
			if !ok {
				t.Fatal("column missing")
			}
			if c.AutoIncrement != tt.auto || c.Nullable != tt.nullable || c.HasDefault != tt.def ||
				c.Generated != tt.generated || c.IsRequiredInput() != tt.required {
				t.Errorf("%+v", c)
			}
		})
	}
	if c := byName["codigo"]; c.Size != 20 || c.Kind != schema.KindChar {
		t.Errorf("codigo = %+v", c)
	}
}

func TestUpsertAndUniqueViolation(t *testing.T) {
	a := openTemp(t)
	exec(t, a, `CREATE TABLE stock (sku TEXT PRIMARY KEY, qty INTEGER)`)
	d := Dialect{}
	ctx := context.Background()

	insert := "INSERT INTO " + d.QualifiedTable("main", "stock") + " (sku, qty) VALUES (?, ?)"
	if _, err := a.DB().ExecContext(ctx, insert, "A1", 1); err != nil {
		t.Fatal(err)
	}
	_, err := a.DB().ExecContext(ctx, insert, "A1", 2)
	if !d.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	upsert := d.Upsert("stock", []string{"sku", "qty"}, []string{"?", "?"}, []string{"sku"}, []string{"qty"})
	if _, err := a.DB().ExecContext(ctx, upsert, "A1", 7); err != nil {
		t.Fatalf("%s: %v", upsert, err)
	}
	var qty int
	if err := a.DB().QueryRowContext(ctx, "SELECT qty FROM stock WHERE sku = 'A1'").Scan(&qty); err != nil || qty != 7 {
		t.Errorf("qty = %d, %v", qty, err)
	}

	if _, err := a.DB().ExecContext(ctx, insert+d.OnConflictDoNothing(), "A1", 9); err != nil {
		t.Errorf("ON CONFLICT DO NOTHING: %v", err)
	}
}

func TestSavepointRollback(t *testing.T) {
	a := openTemp(t)
	exec(t, a, `CREATE TABLE t (v INTEGER)`)
	d := Dialect{}
	ctx := context.Background()

	tx, err := a.DB().BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	for _, s := range []string{
		"INSERT INTO t VALUES (1)",
		d.SavepointSQL("sp_row"),
		"INSERT INTO t VALUES (2)",
		d.RollbackToSavepointSQL("sp_row"),
		d.ReleaseSavepointSQL("sp_row"),
	} {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := a.DB().QueryRow("SELECT COUNT(*) FROM t").Scan(&n); err != nil || n != 1 {
		t.Errorf("rows = %d, %v", n, err)
	}
}

func TestInsertReturningID(t *testing.T) {
	a := openTemp(t)
	exec(t, a, `CREATE TABLE pedidos (id INTEGER PRIMARY KEY, ref TEXT)`, `INSERT INTO pedidos (ref) VALUES ('x')`)
	q, useLastID := Dialect{}.InsertReturningID("pedidos", []string{"ref"}, []string{"?"}, "id")
	if useLastID {
		t.Fatal("sqlite uses RETURNING")
	}
	var id int64
	if err := a.DB().QueryRow(q, "y").Scan(&id); err != nil || id != 2 {
		t.Errorf("id = %d, %v", id, err)
	}
	rows, err := a.DB().Query(Dialect{}.LimitRows("SELECT * FROM pedidos", 1))
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	if n != 1 {
		t.Errorf("LimitRows returned %d rows", n)
	}
}
