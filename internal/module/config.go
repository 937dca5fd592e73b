package module

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Climatica/internal/domain"
)

// Значения по умолчанию для конфигурации модуля.
const (
	DefaultPageSize     = 1000
	DefaultMaxDataCalls = 5
)

// Config — конфигурация модуля из <modules_dir>/<module>.yaml.
type Config struct {
	// Name — имя модуля; совпадает с именем коллекции данных и state-файла.
	Name string `yaml:"name"`

	// Kind — collector или converter.
	Kind domain.Kind `yaml:"kind"`

	// Factory — имя фабрики реализации; по умолчанию совпадает с Name.
	Factory string `yaml:"factory"`

	// Enabled — nil означает true.
	Enabled *bool `yaml:"enabled"`

	// StateStruct — схема и значения состояния по умолчанию.
	StateStruct map[string]any `yaml:"state_struct"`

	MinUpdateFrequency                     domain.TimeSpan `yaml:"min_update_frequency"`
	MaxUpdateFrequency                     domain.TimeSpan `yaml:"max_update_frequency"`
	DataCollectionMinUpdateFrequency       domain.TimeSpan `yaml:"data_collection_min_update_frequency"`
	DependenciesUnsatisfiedUpdateFrequency domain.TimeSpan `yaml:"dependencies_unsatisfied_update_frequency"`

	// Параметры постраничного чтения конвертеров.
	PageSize          int  `yaml:"page_size"`
	MaxDataCalls      int  `yaml:"max_data_calls"`
	RestartStartIndex bool `yaml:"restart_start_index"`

	// Dependencies — конвертеры, данные которых должны быть уже сконвертированы.
	Dependencies []string `yaml:"dependencies"`

	// MinBackoff переопределяет минимальную задержку типа модуля.
	MinBackoff        *domain.TimeSpan `yaml:"min_backoff"`
	MaxBackoffSeconds int              `yaml:"max_backoff_seconds"`

	Source SourceConfig `yaml:"source"`
}

// SourceConfig — параметры внешнего источника данных.
type SourceConfig struct {
	BaseURL         string `yaml:"base_url"`
	Token           string `yaml:"token"`
	Lang            string `yaml:"lang"`
	ValidationQuery string `yaml:"validation_query"`

	Indicators                []string `yaml:"indicators"`
	MaxIndicatorsPerExecution int      `yaml:"max_indicators_per_execution"`
	ItemsPerPage              int      `yaml:"items_per_page"`

	// CountriesModule — модуль, из данных которого берётся список стран.
	CountriesModule string `yaml:"countries_module"`

	Timeout           time.Duration `yaml:"timeout"`
	Retries           int           `yaml:"retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// IsEnabled сообщает, включён ли модуль.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// FactoryName возвращает имя фабрики реализации.
func (c *Config) FactoryName() string {
	if c.Factory != "" {
		return c.Factory
	}
	return c.Name
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxDataCalls <= 0 {
		c.MaxDataCalls = DefaultMaxDataCalls
	}
	if c.Source.Lang == "" {
		c.Source.Lang = "en"
	}
}

// Validate проверяет обязательные поля.
//
// Полнота state_struct здесь не проверяется: неполная схема переводит
// модуль в Aborted при создании.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.Name, `/\`) {
		return fmt.Errorf("%w: name %q must not contain path separators", ErrInvalidConfig, c.Name)
	}
	switch c.Kind {
	case domain.KindCollector, domain.KindConverter:
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidConfig, c.Name, c.Kind)
	}
	for _, span := range []domain.TimeSpan{
		c.MinUpdateFrequency,
		c.MaxUpdateFrequency,
		c.DataCollectionMinUpdateFrequency,
		c.DependenciesUnsatisfiedUpdateFrequency,
	} {
		if span.Unit != "" && !span.Valid() {
			return fmt.Errorf("%w: %s: invalid time span %v", ErrInvalidConfig, c.Name, span)
		}
	}
	return nil
}

// ParseConfig декодирует YAML-конфигурацию модуля.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig читает конфигурацию модуля из файла.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read module config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// LoadConfigs читает все *.yaml / *.yml из каталога, отсортированные по имени модуля.
//
// Имена модулей должны быть уникальны.
func LoadConfigs(dir string) ([]Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read modules dir: %w", err)
	}

	var configs []Config
	seen := make(map[string]string)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, e.Name())
		cfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("%w: module %q declared in %s and %s", ErrInvalidConfig, cfg.Name, prev, e.Name())
		}
		seen[cfg.Name] = e.Name()
		configs = append(configs, cfg)
	}

	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Name < configs[j].Name
	})
	return configs, nil
}
