package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/ruslano69/tdtp-migrator/pkg/config"
	"github.com/ruslano69/tdtp-migrator/pkg/session"
	"github.com/ruslano69/tdtp-migrator/pkg/sink"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// testConfig: два sqlite-файла, источник с одной строкой, пустое назначение
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "legacy.db")
	dstPath := filepath.Join(dir, "erp.db")
	for path, stmts := range map[string][]string{
		srcPath: {`CREATE TABLE clientes (cod TEXT, razon TEXT)`, `INSERT INTO clientes VALUES ('1', 'acme')`},
		dstPath: {`CREATE TABLE clientes (id INTEGER PRIMARY KEY, documento TEXT NOT NULL, nombre TEXT NOT NULL)`},
	} {
		db, err := sql.Open("sqlite", "file:"+path)
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range stmts {
			if _, err := db.Exec(s); err != nil {
				t.Fatalf("%s: %v", s, err)
			}
		}
		db.Close()
	}

	cfg, err := config.Load(writeFile(t, dir, "migrator.yaml", `
profiles:
  - {name: legacy, type: sqlite, dsn: "file:`+srcPath+`"}
  - {name: erp, type: sqlite, dsn: "file:`+dstPath+`"}
source: legacy
destination:
  profile: erp
  table: clientes
  mappings:
    - {target: documento, source: cod}
    - {target: nombre, source: razon, rule: upper}
`))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestLoadJobDefaults(t *testing.T) {
	cfg := testConfig(t)
	path := writeFile(t, t.TempDir(), "job.yaml", `
sql: SELECT cod, razon FROM clientes
dry_run: true
limit: 5
`)
	job, err := loadJob(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if job.Source != "legacy" || job.Destination != "erp" || len(job.Mappings) != 2 || !job.DryRun || job.Limit != 5 {
		t.Errorf("job = %+v", job)
	}
	if _, err := loadJob(filepath.Join(t.TempDir(), "missing.yaml"), cfg); err == nil {
		t.Error("missing job file must fail")
	}
}

func TestSetupDevWiresSessionService(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	inf, err := setup(ctx, cfg, true)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer inf.Close()

	dest, err := inf.destination(ctx)
	if err != nil {
		t.Fatalf("destination: %v", err)
	}
	if dest.Contract() != sink.ContractFlat {
		t.Errorf("contract = %s", dest.Contract())
	}

	svc := session.NewService(ctx, cfg.Session, inf.registry, dest, inf.sessionOptions()...)
	defer svc.Close()
	st, err := svc.Create(ctx, "legacy", "SELECT cod, razon FROM clientes", nil)
	if err != nil {
		t.Fatal(err)
	}
	if st, err = svc.RunNext(ctx, st.ID, false); err != nil || st.OK != 1 {
		t.Fatalf("RunNext = %+v, %v", st, err)
	}

	// статус опубликован во встроенный redis
	latest, err := inf.results.Latest(ctx, st.ID)
	if err != nil || latest.OK != 1 {
		t.Errorf("result log = %+v, %v", latest, err)
	}
	if _, err := inf.results.Latest(ctx, uuid.New()); err == nil {
		t.Error("unknown session must not have a state")
	}
}
