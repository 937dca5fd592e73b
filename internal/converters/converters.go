// Package converters — модули конвертации подсистемы conversion.
//
// Конвертер читает страницы собранных данных через data API и сохраняет
// нормализованные записи в хранилище сконвертированных данных.
package converters

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/Climatica/internal/module"
)

// ErrNoConvertedStore — фабрике не передано хранилище сконвертированных записей.
var ErrNoConvertedStore = errors.New("converter requires a converted records store")

// Register регистрирует все конвертеры.
func Register(r *module.Registry) {
	r.Register("countries", NewCountries)
	r.Register("country_indicators", NewCountryIndicators)
}

// errMalformed — запись не может быть сконвертирована.
var errMalformed = errors.New("malformed element")

func requiredString(v module.Record, field string) (string, error) {
	s, ok := v[field].(string)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s is missing", errMalformed, field)
	}
	return s, nil
}

func optionalString(v module.Record, field string) string {
	s, _ := v[field].(string)
	return strings.TrimSpace(s)
}

// parseFloat принимает число или строку; пустое значение даёт nil.
func parseFloat(v any) (*float64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &x, nil
	case int:
		f := float64(x)
		return &f, nil
	case int64:
		f := float64(x)
		return &f, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("%w: unexpected number %T", errMalformed, v)
	}
}

// parseInt принимает число или строку; значение обязательно.
func parseInt(v any) (int, error) {
	f, err := parseFloat(v)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, fmt.Errorf("%w: value is empty", errMalformed)
	}
	return int(*f), nil
}

// nested возвращает поле вложенного объекта.
func nested(v module.Record, field, key string) string {
	m, ok := v[field].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
