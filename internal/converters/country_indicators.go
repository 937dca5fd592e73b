package converters

import (
	"context"
	"fmt"

	"github.com/shaiso/Climatica/internal/module"
)

// CountryIndicators нормализует значения индикаторов по странам и годам.
//
// Зависит от конвертера countries: пока страны не сконвертированы,
// индикаторы не конвертируются.
type CountryIndicators struct {
	converted module.DocumentStore
}

// NewCountryIndicators — фабрика конвертера country_indicators.
func NewCountryIndicators(_ module.Config, deps module.Deps) (any, error) {
	if deps.Converted == nil {
		return nil, ErrNoConvertedStore
	}
	return &CountryIndicators{converted: deps.Converted}, nil
}

// DependenciesSatisfied проверяет, что все зависимости уже сконвертировали данные.
func (c *CountryIndicators) DependenciesSatisfied(ctx context.Context, s *module.Session) (bool, error) {
	deps := s.Config().Dependencies
	if len(deps) == 0 {
		deps = []string{"countries"}
	}
	for _, dep := range deps {
		n, err := c.converted.Count(ctx, dep)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

// Convert пропускает значения без страны или года.
func (c *CountryIndicators) Convert(_ context.Context, s *module.Session, elements []module.Record) ([]module.Record, error) {
	out := make([]module.Record, 0, len(elements))
	for _, v := range elements {
		rec, err := convertIndicator(v)
		if err != nil {
			s.Logger().Warn("country indicator will not be converted",
				"indicator", v["indicator"], "country_id", v["country_id"], "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func convertIndicator(v module.Record) (module.Record, error) {
	indicator, err := requiredString(v, "indicator")
	if err != nil {
		return nil, err
	}
	country, err := requiredString(v, "country_id")
	if err != nil {
		return nil, err
	}
	year, err := parseInt(v["year"])
	if err != nil {
		return nil, fmt.Errorf("year: %w", err)
	}
	value, err := parseFloat(v["value"])
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return module.Record{
		"indicator":  indicator,
		"country_id": country,
		"year":       year,
		"value":      value,
	}, nil
}

// Save сохраняет значения по ключу (indicator, country_id, year).
func (c *CountryIndicators) Save(ctx context.Context, s *module.Session, records []module.Record) (int, error) {
	return c.converted.UpsertMany(ctx, s.Name(), []string{"indicator", "country_id", "year"}, records, s.ExecutionID())
}
