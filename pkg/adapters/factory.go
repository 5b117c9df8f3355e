package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// AdapterConstructor - функция-конструктор адаптера
// Возвращает новый экземпляр адаптера (еще не подключенный к БД)
type AdapterConstructor func() Adapter

// Factory управляет регистрацией и созданием адаптеров
type Factory struct {
	registry map[string]AdapterConstructor
	mu       sync.RWMutex
}

// NewFactory создает пустую фабрику адаптеров
func NewFactory() *Factory {
	return &Factory{
		registry: make(map[string]AdapterConstructor),
	}
}

// Register регистрирует конструктор адаптера для типа СУБД
//
// Пример:
//
//	factory.Register("postgres", func() adapters.Adapter {
//	    return adapters.NewSQLAdapter(postgres.Dialect{})
//	})
func (f *Factory) Register(dbType string, constructor AdapterConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[dbType] = constructor
}

// IsRegistered проверяет, зарегистрирован ли адаптер для данного типа БД
func (f *Factory) IsRegistered(dbType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.registry[dbType]
	return ok
}

// GetRegisteredTypes возвращает отсортированный список зарегистрированных типов
func (f *Factory) GetRegisteredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.registry))
	for dbType := range f.registry {
		types = append(types, dbType)
	}
	sort.Strings(types)
	return types
}

// Create создает и подключает адаптер по конфигурации
func (f *Factory) Create(ctx context.Context, cfg Config) (Adapter, error) {
	f.mu.RLock()
	constructor, ok := f.registry[cfg.Type]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database type: %q (available types: %v)",
			cfg.Type, f.GetRegisteredTypes())
	}

	adapter := constructor()
	if err := adapter.Connect(ctx, cfg); err != nil {
		name := cfg.Name
		if name == "" {
			name = cfg.Type
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}
	return adapter, nil
}

// ========== Global Factory ==========

var globalFactory = NewFactory()

// Register регистрирует адаптер в глобальной фабрике.
// Вызывается из init() диалектных пакетов:
//
//	func init() {
//	    adapters.Register("postgres", func() adapters.Adapter {
//	        return adapters.NewSQLAdapter(Dialect{})
//	    })
//	}
func Register(dbType string, constructor AdapterConstructor) {
	globalFactory.Register(dbType, constructor)
}

// IsRegistered проверяет регистрацию в глобальной фабрике
func IsRegistered(dbType string) bool {
	return globalFactory.IsRegistered(dbType)
}

// GetRegisteredTypes возвращает типы из глобальной фабрики
func GetRegisteredTypes() []string {
	return globalFactory.GetRegisteredTypes()
}

// New создает и подключает адаптер через глобальную фабрику
//
//	adapter, err := adapters.New(ctx, adapters.Config{
//	    Type: "sqlite",
//	    DSN:  "file:app.db",
//	})
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close()
func New(ctx context.Context, cfg Config) (Adapter, error) {
	return globalFactory.Create(ctx, cfg)
}
