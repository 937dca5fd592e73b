package collectors

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/shaiso/Climatica/internal/fetch"
	"github.com/shaiso/Climatica/internal/module"
)

// EnergySources собирает долю источников энергии по каждой стране.
//
// Список стран берётся из данных модуля Source.CountriesModule.
type EnergySources struct {
	docs  module.DocumentStore
	fetch *fetch.Client
}

// NewEnergySources — фабрика коллектора energy_sources.
func NewEnergySources(cfg module.Config, deps module.Deps) (any, error) {
	if deps.Documents == nil {
		return nil, ErrNoDocumentStore
	}
	return &EnergySources{docs: deps.Documents, fetch: newFetcher(cfg.Source, deps.Logger)}, nil
}

// Collect запрашивает данные по каждой стране.
//
// Ответ не 200 с полем "message" означает превышение лимита запросов:
// сбор останавливается, уже полученные данные сохраняются.
func (e *EnergySources) Collect(ctx context.Context, s *module.Session) ([]module.Record, error) {
	cfg := s.Config()
	logger := s.Logger()
	state := s.State()

	countries, err := e.countries(ctx, cfg.Source.CountriesModule)
	if err != nil {
		return nil, err
	}

	timeUTC := quarterHourMillis(s.Now())
	var (
		data      []module.Record
		unmatched []string
	)

	for i, country := range countries {
		target := expand(cfg.Source.BaseURL, map[string]string{"COUNTRY_CODE": country.id})
		resp, err := e.fetch.Get(ctx, target, nil, map[string]string{"auth-token": cfg.Source.Token})

		var statusErr *fetch.StatusError
		if err != nil && !errors.As(err, &statusErr) {
			return nil, err
		}

		var body map[string]any
		if jerr := json.Unmarshal(resp.Body, &body); jerr != nil {
			unmatched = append(unmatched, country.name)
			continue
		}

		if msg, ok := body["message"]; resp.StatusCode != 200 && ok && msg != nil {
			logger.Info("API rate limit has been exceeded, stopping data collection",
				"country", country.id, "collected", i, "total", len(countries))
			if len(data) == 0 {
				s.MarkAdvisedlyNoData()
				state.UpdateFrequency = cfg.MaxUpdateFrequency
			}
			break
		}

		status, _ := body["status"].(string)
		if status != "ok" || body["data"] == nil {
			unmatched = append(unmatched, country.name)
			continue
		}

		rec := module.Record(body)
		rec["country_id"] = country.id
		rec["time_utc"] = timeUTC
		delete(rec, "countryCode")
		delete(rec, "status")
		delete(rec, "_disclaimer")
		data = append(data, rec)

		if i > 0 && i%10 == 0 {
			logger.Debug("collecting energy sources", "progress", float64(i)/float64(len(countries))*100)
		}
	}

	if len(unmatched) > 0 {
		sort.Strings(unmatched)
		logger.Warn("some countries do not have recent energy sources data", "count", len(unmatched), "countries", unmatched)
	}
	if len(countries) == 0 {
		logger.Info("no countries are available, data collection will be stopped")
		s.MarkAdvisedlyNoData()
		state.UpdateFrequency = cfg.MinUpdateFrequency
	}
	if len(data) > 0 {
		state.UpdateFrequency = cfg.MaxUpdateFrequency
	}
	return data, nil
}

// Save сохраняет данные по ключу (country_id, time_utc).
func (e *EnergySources) Save(ctx context.Context, s *module.Session, records []module.Record) (int, error) {
	return e.docs.UpsertMany(ctx, s.Name(), []string{"country_id", "time_utc"}, records, s.ExecutionID())
}

type country struct {
	id   string
	name string
}

// countries возвращает страны без цифр в идентификаторе (агрегаты World Bank), по _id.
func (e *EnergySources) countries(ctx context.Context, collection string) ([]country, error) {
	docs, err := e.docs.Find(ctx, collection)
	if err != nil {
		return nil, err
	}

	var out []country
	for _, d := range docs {
		id, _ := d["_id"].(string)
		if id == "" || strings.IndexFunc(id, unicode.IsDigit) >= 0 {
			continue
		}
		name, _ := d["name"].(string)
		out = append(out, country{id: id, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

// quarterHourMillis округляет время вниз до 15 минут и возвращает миллисекунды Unix.
func quarterHourMillis(t time.Time) int64 {
	return t.UTC().Truncate(15 * time.Minute).UnixMilli()
}
