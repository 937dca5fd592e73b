// Package statefile хранит долговременное состояние модулей в локальных файлах.
//
// Один файл на модуль: <dir>/<module>.state.json. Отсутствующий или
// повреждённый файл не считается ошибкой: загрузчик возвращает состояние
// по умолчанию и пишет warning.
package statefile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/shaiso/Climatica/internal/domain"
)

const suffix = ".state.json"

// ErrInvalidName — имя модуля нельзя использовать как имя файла.
var ErrInvalidName = errors.New("invalid module name")

// Store — каталог state-файлов.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New создаёт Store для каталога dir.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir возвращает каталог хранилища.
func (s *Store) Dir() string {
	return s.dir
}

// Path возвращает путь к state-файлу модуля.
func (s *Store) Path(module string) string {
	return filepath.Join(s.dir, module+suffix)
}

// Load загружает состояние модуля.
//
// Файл декодируется поверх копии defaults, поэтому ключи, которых нет
// в файле, берутся из схемы. Возвращает ошибку только для недопустимого имени.
func (s *Store) Load(module string, defaults domain.ModuleState) (domain.ModuleState, error) {
	if err := validName(module); err != nil {
		return domain.ModuleState{}, err
	}

	state := defaults.Clone()

	raw, err := os.ReadFile(s.Path(module))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("state file not found, using default state", "module", module)
		} else {
			s.logger.Warn("state file unreadable, using default state",
				"module", module,
				"error", fmt.Errorf("%w: %v", domain.ErrStateCorruption, err),
			)
		}
		return state, nil
	}

	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("state file corrupted, using default state",
			"module", module,
			"error", fmt.Errorf("%w: %v", domain.ErrStateCorruption, err),
		)
		return defaults.Clone(), nil
	}

	state.Normalize()
	return state, nil
}

// Save атомарно записывает состояние модуля.
func (s *Store) Save(module string, state domain.ModuleState) error {
	if err := validName(module); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, module+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path(module)); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// Remove удаляет state-файл модуля. Отсутствие файла не ошибка.
func (s *Store) Remove(module string) error {
	if err := validName(module); err != nil {
		return err
	}
	if err := os.Remove(s.Path(module)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}

// List возвращает имена модулей, для которых есть state-файлы.
func (s *Store) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+suffix))
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		names = append(names, base[:len(base)-len(suffix)])
	}
	return names, nil
}

// ReadRaw возвращает содержимое state-файла без декодирования.
func (s *Store) ReadRaw(module string) ([]byte, error) {
	if err := validName(module); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path(module))
}

func validName(module string) error {
	if module == "" || module != filepath.Base(module) || module == "." || module == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, module)
	}
	return nil
}
