package converters

import (
	"context"
	"fmt"

	"github.com/shaiso/Climatica/internal/module"
)

// Countries нормализует страны World Bank: коды, столица, координаты, регион и уровень дохода.
type Countries struct {
	converted module.DocumentStore
}

// NewCountries — фабрика конвертера countries.
func NewCountries(_ module.Config, deps module.Deps) (any, error) {
	if deps.Converted == nil {
		return nil, ErrNoConvertedStore
	}
	return &Countries{converted: deps.Converted}, nil
}

// Convert пропускает некорректные страны с записью в лог.
func (c *Countries) Convert(_ context.Context, s *module.Session, elements []module.Record) ([]module.Record, error) {
	out := make([]module.Record, 0, len(elements))
	for _, v := range elements {
		rec, err := convertCountry(v)
		if err != nil {
			id := optionalString(v, "_id")
			if id == "" {
				id = "unknown"
			}
			s.Logger().Warn("country will not be converted", "id", id, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func convertCountry(v module.Record) (module.Record, error) {
	iso2, err := requiredString(v, "_id")
	if err != nil {
		return nil, err
	}
	iso3, err := requiredString(v, "iso3")
	if err != nil {
		return nil, err
	}
	name, err := requiredString(v, "name")
	if err != nil {
		return nil, err
	}
	lat, err := parseFloat(v["latitude"])
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseFloat(v["longitude"])
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}

	regionID := nested(v, "region", "id")
	incomeID := nested(v, "incomeLevel", "id")
	if regionID == "" || incomeID == "" {
		return nil, fmt.Errorf("%w: region or income level is missing", errMalformed)
	}

	return module.Record{
		"iso2_code":         iso2,
		"iso3_code":         iso3,
		"name":              name,
		"capital_city_name": optionalString(v, "capitalCity"),
		"latitude":          lat,
		"longitude":         lon,
		"region":            map[string]any{"iso3_code": regionID, "name": nested(v, "region", "value")},
		"income_level":      map[string]any{"iso3_code": incomeID, "name": nested(v, "incomeLevel", "value")},
	}, nil
}

// Save сохраняет страны по iso2_code.
func (c *Countries) Save(ctx context.Context, s *module.Session, records []module.Record) (int, error) {
	return c.converted.UpsertMany(ctx, s.Name(), []string{"iso2_code"}, records, s.ExecutionID())
}
