package collectors

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/fetch"
	"github.com/shaiso/Climatica/internal/module"
)

// worldBankMeta — первый элемент ответа World Bank API.
type worldBankMeta struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

// Countries собирает список стран из World Bank API одним запросом.
type Countries struct {
	docs  module.DocumentStore
	fetch *fetch.Client
}

// NewCountries — фабрика коллектора countries.
func NewCountries(cfg module.Config, deps module.Deps) (any, error) {
	if deps.Documents == nil {
		return nil, ErrNoDocumentStore
	}
	return &Countries{docs: deps.Documents, fetch: newFetcher(cfg.Source, deps.Logger)}, nil
}

// Collect запрашивает страны и переименовывает идентификаторы (_id = iso2Code, iso3 = id).
//
// Если некорректных записей больше 10%, сбор прерывается с ErrDataIntegrity.
func (c *Countries) Collect(ctx context.Context, s *module.Session) ([]module.Record, error) {
	cfg := s.Config()
	target := expand(cfg.Source.BaseURL, map[string]string{"LANG": cfg.Source.Lang})

	var body []json.RawMessage
	if err := c.fetch.GetJSON(ctx, target, nil, nil, &body); err != nil {
		return nil, err
	}
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: expected [metadata, data], got %d element(s)", fetch.ErrDecode, len(body))
	}

	var meta worldBankMeta
	if err := json.Unmarshal(body[0], &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", fetch.ErrDecode, err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(body[1], &raw); err != nil {
		return nil, fmt.Errorf("%w: data: %v", fetch.ErrDecode, err)
	}

	var (
		data      []module.Record
		unmatched int
	)
	for _, v := range raw {
		iso2, ok2 := v["iso2Code"].(string)
		iso3, ok3 := v["id"].(string)
		if !ok2 || !ok3 || iso2 == "" {
			unmatched++
			continue
		}
		rec := module.Record(v)
		rec["_id"] = iso2
		rec["iso3"] = iso3
		delete(rec, "iso2Code")
		delete(rec, "id")
		delete(rec, "adminregion")
		delete(rec, "lendingType")
		data = append(data, rec)
	}

	total := meta.Total
	if total == 0 {
		total = len(raw)
	}
	if unmatched > 0 && unmatched*10 > total {
		s.Logger().Error("malformed data exceeds 10%, aborting collection", "malformed", unmatched, "total", total)
		return nil, fmt.Errorf("%w: %d of %d countries are malformed", domain.ErrDataIntegrity, unmatched, total)
	}
	if unmatched > 0 {
		s.Logger().Warn("some countries have malformed data", "malformed", unmatched, "total", total)
	}

	state := s.State()
	if len(data) > 0 {
		state.UpdateFrequency = cfg.MaxUpdateFrequency
		s.Logger().Info("World Bank API request processed", "countries", len(data), "total", total)
	} else {
		state.UpdateFrequency = cfg.MinUpdateFrequency
	}
	return data, nil
}

// Save сохраняет страны по ключу _id.
func (c *Countries) Save(ctx context.Context, s *module.Session, records []module.Record) (int, error) {
	return c.docs.UpsertMany(ctx, s.Name(), []string{"_id"}, records, s.ExecutionID())
}
