package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownProfile - профиль подключения не описан в конфигурации
var ErrUnknownProfile = errors.New("unknown connection profile")

// Registry выдает подключения по имени профиля.
// Пул открывается при первом обращении и переиспользуется до Close.
type Registry struct {
	factory *Factory

	mu       sync.Mutex
	profiles map[string]Config
	open     map[string]Adapter
}

// NewRegistry создает реестр профилей поверх глобальной фабрики
func NewRegistry(profiles []Config) *Registry {
	return newRegistry(globalFactory, profiles)
}

func newRegistry(f *Factory, profiles []Config) *Registry {
	r := &Registry{
		factory:  f,
		profiles: make(map[string]Config, len(profiles)),
		open:     make(map[string]Adapter),
	}
	for _, p := range profiles {
		r.profiles[strings.ToLower(p.Name)] = p
	}
	return r
}

// Profiles возвращает имена профилей по алфавиту
func (r *Registry) Profiles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.profiles))
	for _, p := range r.profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Get возвращает подключенный адаптер профиля (имя без учета регистра)
func (r *Registry) Get(ctx context.Context, profile string) (Adapter, error) {
	key := strings.ToLower(strings.TrimSpace(profile))

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.open[key]; ok {
		return a, nil
	}
	cfg, ok := r.profiles[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	a, err := r.factory.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.open[key] = a
	return a, nil
}

// Put регистрирует уже подключенный адаптер под именем профиля
func (r *Registry) Put(name string, a Adapter) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.open[key]; ok && old != a {
		old.Close()
	}
	cfg := a.Config()
	cfg.Name = name
	r.profiles[key] = cfg
	r.open[key] = a
}

// Close закрывает все открытые пулы
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for key, a := range r.open {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		delete(r.open, key)
	}
	return errors.Join(errs...)
}
