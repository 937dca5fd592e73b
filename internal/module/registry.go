package module

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Deps — зависимости, которые фабрика может передать реализации модуля.
type Deps struct {
	// Documents — хранилище собранных данных.
	Documents DocumentStore

	// Converted — хранилище сконвертированных данных.
	Converted DocumentStore

	Logger *slog.Logger
}

// Factory создаёт реализацию модуля (Collector или Converter) по конфигурации.
type Factory func(cfg Config, deps Deps) (any, error)

// Registry — реестр фабрик модулей.
//
// Конфигурация модуля ссылается на фабрику по имени (поле factory или name).
// Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register регистрирует фабрику.
// Если фабрика с таким именем уже существует, она будет перезаписана.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get возвращает фабрику по имени.
// Возвращает ErrFactoryNotFound, если фабрика не найдена.
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFactoryNotFound, name)
	}
	return f, nil
}

// Has проверяет, зарегистрирована ли фабрика.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Names возвращает имена зарегистрированных фабрик.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Count возвращает количество зарегистрированных фабрик.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Unregister удаляет фабрику из реестра.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// Build создаёт реализацию модуля по его конфигурации.
func (r *Registry) Build(cfg Config, deps Deps) (any, error) {
	f, err := r.Get(cfg.FactoryName())
	if err != nil {
		return nil, err
	}
	impl, err := f(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", cfg.Name, err)
	}
	return impl, nil
}
