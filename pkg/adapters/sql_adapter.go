package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultConnectTimeout = 10 * time.Second

// Compile-time check
var _ Adapter = (*SQLAdapter)(nil)

// SQLAdapter - адаптер поверх database/sql, общий для всех диалектов.
// Диалектные пакеты регистрируют его с собственным Dialect.
type SQLAdapter struct {
	dialect Dialect
	db      *sql.DB
	cfg     Config
}

// NewSQLAdapter создает неподключенный адаптер для диалекта
func NewSQLAdapter(d Dialect) *SQLAdapter {
	return &SQLAdapter{dialect: d}
}

// Wrap оборачивает уже открытый *sql.DB (тесты, встраивание)
func Wrap(db *sql.DB, d Dialect, cfg Config) *SQLAdapter {
	if cfg.Type == "" {
		cfg.Type = d.Name()
	}
	return &SQLAdapter{dialect: d, db: db, cfg: cfg}
}

// Connect открывает пул и проверяет соединение
func (a *SQLAdapter) Connect(ctx context.Context, cfg Config) error {
	if cfg.DSN == "" {
		return fmt.Errorf("%s: DSN must not be empty", a.dialect.Name())
	}

	db, err := sql.Open(a.dialect.DriverName(), cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if hook, ok := a.dialect.(ConnectHook); ok {
		if err := hook.AfterConnect(ctx, db); err != nil {
			db.Close()
			return fmt.Errorf("failed to configure connection: %w", err)
		}
	}

	a.db = db
	a.cfg = cfg
	return nil
}

// Close закрывает соединение с БД
func (a *SQLAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (a *SQLAdapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.db.PingContext(ctx)
}

// DB возвращает *sql.DB
func (a *SQLAdapter) DB() *sql.DB { return a.db }

// Dialect возвращает диалект
func (a *SQLAdapter) Dialect() Dialect { return a.dialect }

// Config возвращает конфигурацию подключения
func (a *SQLAdapter) Config() Config { return a.cfg }

// GetDatabaseType возвращает тип СУБД
func (a *SQLAdapter) GetDatabaseType() string { return a.dialect.Name() }

// GetDatabaseVersion возвращает версию сервера
func (a *SQLAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	if a.db == nil {
		return "", fmt.Errorf("adapter not connected")
	}
	var version string
	if err := a.db.QueryRowContext(ctx, a.dialect.VersionQuery()).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}
