package orchestrator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Climatica/internal/module"
)

// handles — реестр живых модулей по имени.
//
// Модуль снимается с учёта только после завершения его Worker Task-а.
type handles struct {
	mu      sync.Mutex
	modules map[string]*module.Module
}

func newHandles() *handles {
	return &handles{modules: make(map[string]*module.Module)}
}

// acquire регистрирует модули выполнения. Либо все, либо ни одного.
func (h *handles) acquire(modules []*module.Module) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, m := range modules {
		if _, ok := h.modules[m.Name()]; ok {
			return fmt.Errorf("%w: %s", ErrModuleStillRunning, m.Name())
		}
	}
	for _, m := range modules {
		h.modules[m.Name()] = m
	}
	return nil
}

// release удаляет модули, если за ними не закреплены более новые.
func (h *handles) release(modules []*module.Module) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, m := range modules {
		if h.modules[m.Name()] == m {
			delete(h.modules, m.Name())
		}
	}
}

// live возвращает имена зарегистрированных модулей.
func (h *handles) live() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.modules))
	for name := range h.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
