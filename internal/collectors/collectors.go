// Package collectors — модули сбора данных подсистемы gathering.
//
// Каждый коллектор регистрирует фабрику в module.Registry под своим именем.
package collectors

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shaiso/Climatica/internal/fetch"
	"github.com/shaiso/Climatica/internal/module"
)

// ErrNoDocumentStore — фабрике не передано хранилище документов.
var ErrNoDocumentStore = errors.New("collector requires a document store")

// Register регистрирует все коллекторы.
func Register(r *module.Registry) {
	r.Register("countries", NewCountries)
	r.Register("country_indicators", NewCountryIndicators)
	r.Register("energy_sources", NewEnergySources)
}

// newFetcher создаёт HTTP-клиента по настройкам источника.
func newFetcher(src module.SourceConfig, logger *slog.Logger) *fetch.Client {
	retries := src.Retries
	if retries == 0 {
		retries = fetch.DefaultMaxRetries
	}
	return fetch.New(fetch.Config{
		Timeout:           src.Timeout,
		MaxRetries:        retries,
		RequestsPerSecond: src.RequestsPerSecond,
		Logger:            logger,
	})
}

// expand подставляет значения в шаблон URL вида {NAME}.
func expand(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
