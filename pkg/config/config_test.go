package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ruslano69/tdtp-migrator/pkg/loader"
	"github.com/ruslano69/tdtp-migrator/pkg/mapping"
	"github.com/ruslano69/tdtp-migrator/pkg/sink"
)

const sampleYAML = `
profiles:
  - name: legacy
    type: mysql
    dsn: "user:pass@tcp(localhost:3306)/viejo?parseTime=true"
  - name: erp
    type: postgres
    dsn: "postgres://erp@localhost/erp"
    schema: public
    max_conns: 4
source: legacy
destination:
  profile: erp
  contract: flat
  table: clientes
  mappings:
    - target: documento
      source: cod
    - target: nombre
      source: razon
      rule: upper
    - target: saldo
      type: expresion
      value: "row.debe - row.haber"
defaults:
  deposito_central_id: 7
policies:
  null_policy: set_null
  duplicate_policy: skip
products:
  best_effort_stock: true
session:
  max_attempts: 5
result_log:
  enabled: true
  ttl: 3600
quarantine:
  export_dir: /var/lib/migrator/quarantine
  broker:
    type: kafka
    brokers: ["localhost:9092"]
    topic: migrator.quarantine
  s3:
    bucket: migrator
    prefix: quarantine
server:
  addr: ":9090"
  write_timeout: 2m
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(cfg.Profiles) != 2 || cfg.Profiles[1].MaxConns != 4 || cfg.Profiles[1].Schema != "public" {
		t.Errorf("profiles = %+v", cfg.Profiles)
	}
	if cfg.Destination.Timeout != 10*time.Second {
		t.Errorf("destination timeout default = %v", cfg.Destination.Timeout)
	}
	if got := cfg.Destination.Mappings[2].Type; got != mapping.TypeExpression {
		t.Errorf("spanish mapping type parsed as %q", got)
	}

	// частично заданные defaults не затирают остальные значения
	if cfg.Defaults.WarehouseID != 7 || cfg.Defaults.BrandName != "GENERICA" {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
	if cfg.Session.MaxAttempts != 5 || cfg.Session.HardLimit != 20000 || cfg.Session.MaxRowsDefault != 1000 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.ResultLog.KeyPrefix != "tdtp:migrator:" || cfg.ResultLog.TTL != 3600 {
		t.Errorf("result_log = %+v", cfg.ResultLog)
	}
	if cfg.Quarantine.Broker.Topic != "migrator.quarantine" || cfg.Quarantine.ExportDir == "" || cfg.Quarantine.S3.Bucket != "migrator" {
		t.Errorf("quarantine = %+v", cfg.Quarantine)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.WriteTimeout != 2*time.Minute || cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}

	opts := cfg.SinkOptions()
	if opts.Contract != sink.ContractFlat || opts.Table != "clientes" || !opts.BestEffortStock {
		t.Errorf("SinkOptions = %+v", opts)
	}
	if opts.Policies.Null != loader.NullSetNull || opts.Policies.Duplicate != loader.DuplicateSkip {
		t.Errorf("policies = %+v", opts.Policies)
	}
}

func TestEnvOverride(t *testing.T) {
	if got := EnvDSNKey("erp-prod 2"); got != "MIGRATOR_ERP_PROD_2_DSN" {
		t.Errorf("EnvDSNKey = %q", got)
	}

	t.Setenv("MIGRATOR_ERP_DSN", "postgres://secret@db/erp")
	cfg, err := Parse([]byte(`
profiles:
  - name: erp
    type: postgres
destination:
  profile: erp
`))
	if err != nil {
		t.Fatalf("dsn from env must satisfy validation: %v", err)
	}
	if cfg.Profiles[0].DSN != "postgres://secret@db/erp" {
		t.Errorf("dsn = %q", cfg.Profiles[0].DSN)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown type", "profiles: [{name: a, type: oracle, dsn: x}]", "unsupported type"},
		{"missing dsn", "profiles: [{name: nodsn, type: sqlite}]", "MIGRATOR_NODSN_DSN"},
		{"duplicate profile", "profiles: [{name: a, type: sqlite, dsn: x}, {name: A, type: sqlite, dsn: y}]", "duplicate name"},
		{"unknown source", "source: ghost", `unknown profile "ghost"`},
		{"unknown contract", "destination: {contract: XML}", "unknown destination contract"},
		{"http without url", "destination: {contract: http}", "base_url is required"},
		{"bad null policy", "policies: {null_policy: IGNORE}", "null_policy"},
		{"bad duplicate policy", "policies: {duplicate_policy: merge}", "duplicate_policy"},
		{"blank mapping target", "destination: {mappings: [{source: a}]}", "mapping #1"},
		{"hard limit below default", "session: {max_rows_default: 500, hard_limit: 100}", "hard_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrator.yaml")
	if _, err := Load(path); err == nil {
		t.Error("missing file must fail")
	}

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("saved file mode = %v", info.Mode().Perm())
	}

	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load(saved) error = %v", err)
	}
	if back.Destination.Table != "clientes" || back.Quarantine.Broker.Type != "kafka" || len(back.Destination.Mappings) != 3 {
		t.Errorf("round trip lost data: %+v", back.Destination)
	}
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "examples", "migrator.yaml"))
	if err != nil {
		t.Fatalf("examples/migrator.yaml: %v", err)
	}
	if cfg.Quarantine.Broker.Retry.MaxAttempts != 5 || cfg.Quarantine.Broker.Retry.InitialDelay != 500*time.Millisecond {
		t.Errorf("broker retry = %+v", cfg.Quarantine.Broker.Retry)
	}
	if cfg.Quarantine.S3.Enabled() {
		t.Error("example must not enable S3")
	}
	if err := mapping.Validate(cfg.Destination.Mappings); err != nil {
		t.Error(err)
	}
	if cfg.LoaderPolicies().Duplicate != loader.DuplicateSkip {
		t.Errorf("policies = %+v", cfg.LoaderPolicies())
	}
}
