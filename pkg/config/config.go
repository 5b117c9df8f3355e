// Package config - YAML-конфигурация мигратора: профили подключений,
// назначение, политики, сессии и внешние публикаторы.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/brokers"
	"github.com/ruslano69/tdtp-migrator/pkg/loader"
	"github.com/ruslano69/tdtp-migrator/pkg/mapping"
	"github.com/ruslano69/tdtp-migrator/pkg/product"
	"github.com/ruslano69/tdtp-migrator/pkg/quarantine"
	"github.com/ruslano69/tdtp-migrator/pkg/resultlog"
	"github.com/ruslano69/tdtp-migrator/pkg/session"
	"github.com/ruslano69/tdtp-migrator/pkg/sink"
)

// ErrInvalid - конфигурация не прошла проверку
var ErrInvalid = errors.New("invalid configuration")

// Config - корень конфигурации
type Config struct {
	Profiles    []adapters.Config `yaml:"profiles"`
	Source      string            `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Defaults    product.Defaults  `yaml:"defaults"`
	Policies    PoliciesConfig    `yaml:"policies"`
	Products    ProductsConfig    `yaml:"products"`
	Session     session.Config    `yaml:"session"`
	ResultLog   resultlog.Config  `yaml:"result_log"`
	Quarantine  QuarantineConfig  `yaml:"quarantine"`
	Server      ServerConfig      `yaml:"server"`
}

// DestinationConfig - куда пишутся строки
type DestinationConfig struct {
	Profile  string                 `yaml:"profile"`
	Contract string                 `yaml:"contract"` // FLAT, NESTED, HTTP
	Schema   string                 `yaml:"schema"`
	Table    string                 `yaml:"table"`
	BaseURL  string                 `yaml:"base_url"`
	Timeout  time.Duration          `yaml:"timeout"`
	Mappings []mapping.FieldMapping `yaml:"mappings"`
}

// PoliciesConfig - политики плоского пути
type PoliciesConfig struct {
	NullPolicy      string `yaml:"null_policy"`      // SKIP_ROW, SET_NULL, ERROR
	DuplicatePolicy string `yaml:"duplicate_policy"` // skip, update, error
}

// ProductsConfig - параметры загрузчика товаров
type ProductsConfig struct {
	IncludeAuditColumns bool `yaml:"include_audit_columns"`
	BestEffortStock     bool `yaml:"best_effort_stock"`
}

// QuarantineConfig - что делать со строками, исчерпавшими попытки
type QuarantineConfig struct {
	Broker            brokers.Config `yaml:"broker"`
	quarantine.Config `yaml:",inline"`
}

// ServerConfig - HTTP API
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Load загружает конфигурацию из файла, применяет значения по умолчанию,
// переопределения из окружения и проверяет результат
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Parse разбирает YAML
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.SetDefaults()
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default - конфигурация по умолчанию (основа для Parse)
func Default() *Config {
	cfg := &Config{
		Defaults: product.DefaultDefaults(),
		Session:  session.DefaultConfig(),
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults заполняет незаданные поля
func (c *Config) SetDefaults() {
	if c.Destination.Contract == "" {
		c.Destination.Contract = string(sink.ContractFlat)
	}
	if c.Destination.Timeout == 0 {
		c.Destination.Timeout = 10 * time.Second
	}
	if c.Policies.NullPolicy == "" {
		c.Policies.NullPolicy = string(loader.NullSkipRow)
	}
	if c.Policies.DuplicatePolicy == "" {
		c.Policies.DuplicatePolicy = string(loader.DuplicateSkip)
	}
	d := session.DefaultConfig()
	if c.Session.MaxRowsDefault == 0 {
		c.Session.MaxRowsDefault = d.MaxRowsDefault
	}
	if c.Session.HardLimit == 0 {
		c.Session.HardLimit = d.HardLimit
	}
	if c.Session.MaxAttempts == 0 {
		c.Session.MaxAttempts = d.MaxAttempts
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = d.TTLMinutes
	}
	if c.Session.CleanupIntervalSeconds == 0 {
		c.Session.CleanupIntervalSeconds = d.CleanupIntervalSeconds
	}
	if c.ResultLog.Enabled {
		c.ResultLog.SetDefaults()
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// RunAll на тысячах строк - долгий запрос
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Minute
	}
}

// EnvDSNKey - имя переменной окружения с DSN профиля: MIGRATOR_<PROFILE>_DSN
func EnvDSNKey(profile string) string {
	var b strings.Builder
	b.WriteString("MIGRATOR_")
	for _, r := range strings.ToUpper(strings.TrimSpace(profile)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString("_DSN")
	return b.String()
}

// ApplyEnv подставляет DSN профилей из окружения (секреты не хранятся в файле)
func (c *Config) ApplyEnv(getenv func(string) string) {
	for i := range c.Profiles {
		if dsn := getenv(EnvDSNKey(c.Profiles[i].Name)); dsn != "" {
			c.Profiles[i].DSN = dsn
		}
	}
	if c.ResultLog.Password == "" {
		c.ResultLog.Password = getenv("MIGRATOR_REDIS_PASSWORD")
	}
}

// Profile ищет профиль по имени без учета регистра
func (c *Config) Profile(name string) (adapters.Config, bool) {
	for _, p := range c.Profiles {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return adapters.Config{}, false
}

var knownTypes = map[string]struct{}{"postgres": {}, "mysql": {}, "mssql": {}, "sqlite": {}}

// Validate проверяет согласованность; все ошибки собираются в одну
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]struct{})
	for i, p := range c.Profiles {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("profiles[%d]: name is required", i))
			continue
		case p.DSN == "":
			errs = append(errs, fmt.Errorf("profile %q: dsn is required (or set %s)", p.Name, EnvDSNKey(p.Name)))
		}
		if _, ok := knownTypes[strings.ToLower(p.Type)]; !ok {
			errs = append(errs, fmt.Errorf("profile %q: unsupported type %q (supported: postgres, mysql, mssql, sqlite)", p.Name, p.Type))
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("profile %q: duplicate name", p.Name))
		}
		seen[name] = struct{}{}
	}

	if c.Source != "" {
		if _, ok := c.Profile(c.Source); !ok {
			errs = append(errs, fmt.Errorf("source: unknown profile %q", c.Source))
		}
	}

	contract, err := sink.ParseContract(c.Destination.Contract)
	if err != nil {
		errs = append(errs, fmt.Errorf("destination: %w", err))
	}
	switch {
	case err != nil:
	case contract == sink.ContractHTTP:
		if c.Destination.BaseURL == "" {
			errs = append(errs, errors.New("destination: base_url is required for HTTP contract"))
		}
	case c.Destination.Profile != "":
		if _, ok := c.Profile(c.Destination.Profile); !ok {
			errs = append(errs, fmt.Errorf("destination: unknown profile %q", c.Destination.Profile))
		}
	}
	if err := mapping.Validate(c.Destination.Mappings); err != nil {
		errs = append(errs, fmt.Errorf("destination: %w", err))
	}

	if !strings.EqualFold(c.Policies.NullPolicy, string(loader.ParseNullPolicy(c.Policies.NullPolicy))) {
		errs = append(errs, fmt.Errorf("policies: unknown null_policy %q", c.Policies.NullPolicy))
	}
	if !strings.EqualFold(c.Policies.DuplicatePolicy, string(loader.ParseDuplicatePolicy(c.Policies.DuplicatePolicy))) {
		errs = append(errs, fmt.Errorf("policies: unknown duplicate_policy %q", c.Policies.DuplicatePolicy))
	}

	if c.Session.HardLimit < c.Session.MaxRowsDefault {
		errs = append(errs, fmt.Errorf("session: hard_limit (%d) is below max_rows_default (%d)", c.Session.HardLimit, c.Session.MaxRowsDefault))
	}
	if c.Session.MaxAttempts < 1 {
		errs = append(errs, errors.New("session: max_attempts must be >= 1"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// SinkOptions - параметры назначения для sink.New
func (c *Config) SinkOptions() sink.Options {
	return sink.Options{
		Contract:            sink.Contract(strings.ToUpper(c.Destination.Contract)),
		Schema:              c.Destination.Schema,
		Table:               c.Destination.Table,
		Mappings:            c.Destination.Mappings,
		BaseURL:             c.Destination.BaseURL,
		Timeout:             c.Destination.Timeout,
		Defaults:            c.Defaults,
		Policies:            c.LoaderPolicies(),
		IncludeAuditColumns: c.Products.IncludeAuditColumns,
		BestEffortStock:     c.Products.BestEffortStock,
	}
}

// LoaderPolicies - разобранные политики
func (c *Config) LoaderPolicies() loader.Policies {
	return loader.Policies{
		Null:      loader.ParseNullPolicy(c.Policies.NullPolicy),
		Duplicate: loader.ParseDuplicatePolicy(c.Policies.DuplicatePolicy),
	}
}

// Save сохраняет конфигурацию в YAML
func Save(cfg *Config, filename string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
