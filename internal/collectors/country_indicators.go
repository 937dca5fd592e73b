package collectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/shaiso/Climatica/internal/fetch"
	"github.com/shaiso/Climatica/internal/module"
)

// Курсоры состояния country_indicators.
const (
	CursorIndicatorIndex = "indicator_index"
	CursorBeginDate      = "begin_date"
	CursorEndDate        = "end_date"
)

// CountryIndicators собирает индикаторы World Bank по годам.
//
// За одно выполнение обрабатывается не больше MaxIndicatorsPerExecution
// индикаторов; когда все индикаторы периода собраны, период сдвигается на год.
type CountryIndicators struct {
	docs  module.DocumentStore
	fetch *fetch.Client
}

// NewCountryIndicators — фабрика коллектора country_indicators.
func NewCountryIndicators(cfg module.Config, deps module.Deps) (any, error) {
	if deps.Documents == nil {
		return nil, ErrNoDocumentStore
	}
	if len(cfg.Source.Indicators) == 0 {
		return nil, fmt.Errorf("%w: %s: source.indicators is empty", module.ErrInvalidConfig, cfg.Name)
	}
	return &CountryIndicators{docs: deps.Documents, fetch: newFetcher(cfg.Source, deps.Logger)}, nil
}

// Restore устанавливает end_date в прошлый год, если он не задан.
func (c *CountryIndicators) Restore(_ context.Context, s *module.Session) error {
	state := s.State()
	if end, ok := state.CursorValue(CursorEndDate); !ok || end == 0 {
		state.SetCursor(CursorEndDate, lastYear(s))
	}
	return nil
}

// Collect собирает очередную порцию индикаторов.
func (c *CountryIndicators) Collect(ctx context.Context, s *module.Session) ([]module.Record, error) {
	cfg := s.Config()
	logger := s.Logger()
	state := s.State()

	begin, _ := state.CursorValue(CursorBeginDate)
	end, _ := state.CursorValue(CursorEndDate)
	index, started := state.CursorValue(CursorIndicatorIndex)

	if !started {
		hasData, err := c.validate(ctx, cfg.Source, begin, end)
		if err != nil {
			return nil, err
		}
		if !hasData {
			s.MarkAdvisedlyNoData()
		}
		logger.Info("validation query finished", "begin_date", begin, "end_date", end, "has_data", hasData)
	}

	if s.AdvisedlyNoData() {
		logger.Info("country indicators have not been updated since last data collection, shortening update frequency")
		state.UpdateFrequency = cfg.MinUpdateFrequency
		return nil, nil
	}

	indicators := cfg.Source.Indicators
	perExecution := cfg.Source.MaxIndicatorsPerExecution
	if perExecution <= 0 {
		perExecution = len(indicators)
	}
	if index > len(indicators) {
		index = len(indicators)
	}

	maxIndex := index + perExecution
	finished := false
	if maxIndex >= len(indicators) {
		maxIndex = len(indicators)
		finished = true
	}
	batch := indicators[index:maxIndex]
	logger.Info("collecting indicators", "count", len(batch), "indicators", batch)

	var (
		data      []module.Record
		httpError bool
	)
	for i, indicator := range batch {
		values, err := c.collectIndicator(ctx, s, indicator, begin, end)
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) {
			logger.Warn("data for indicator could not be retrieved", "indicator", indicator, "status", statusErr.StatusCode)
			httpError = true
		} else if err != nil {
			return nil, err
		}
		data = append(data, values...)
		logger.Debug("data collected", "progress", float64(i+1)/float64(len(batch))*100)
	}

	if httpError && len(data) == 0 {
		logger.Info("data could not be retrieved due to World Bank API errors, data collection will be omitted")
		s.MarkAdvisedlyNoData()
	}

	if !finished {
		state.UpdateFrequency = cfg.DataCollectionMinUpdateFrequency
		state.SetCursor(CursorIndicatorIndex, index+perExecution)
		return data, nil
	}

	logger.Info("data collection has finished for all indicators")
	state.SetCursor(CursorBeginDate, end)
	state.SetCursor(CursorEndDate, end+1)
	state.ClearCursor(CursorIndicatorIndex)
	if end+1 <= lastYear(s) {
		state.UpdateFrequency = cfg.DataCollectionMinUpdateFrequency
		logger.Info("end year is prior to last year, collection will resume from it", "begin_date", end)
	} else {
		state.UpdateFrequency = cfg.MaxUpdateFrequency
	}
	return data, nil
}

// Save сохраняет индикаторы по ключу (indicator, country_id, year).
func (c *CountryIndicators) Save(ctx context.Context, s *module.Session, records []module.Record) (int, error) {
	return c.docs.UpsertMany(ctx, s.Name(), []string{"indicator", "country_id", "year"}, records, s.ExecutionID())
}

// validate выполняет контрольный запрос: есть ли данные за период.
func (c *CountryIndicators) validate(ctx context.Context, src module.SourceConfig, begin, end int) (bool, error) {
	target := expand(src.ValidationQuery, map[string]string{
		"BEGIN_DATE": itoa(begin),
		"END_DATE":   itoa(end),
	})

	var body []json.RawMessage
	if err := c.fetch.GetJSON(ctx, target, nil, nil, &body); err != nil {
		return false, err
	}
	if len(body) < 2 {
		return false, nil
	}
	var values []struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal(body[1], &values); err != nil {
		return false, fmt.Errorf("%w: validation data: %v", fetch.ErrDecode, err)
	}
	return len(values) > 0 && values[0].Value != nil, nil
}

// collectIndicator читает все страницы одного индикатора.
//
// HTTP-ошибка прекращает чтение индикатора; уже прочитанные страницы возвращаются.
func (c *CountryIndicators) collectIndicator(ctx context.Context, s *module.Session, indicator string, begin, end int) ([]module.Record, error) {
	src := s.Config().Source
	perPage := src.ItemsPerPage
	if perPage <= 0 {
		perPage = 1000
	}

	var out []module.Record
	for page := 1; ; page++ {
		target := expand(src.BaseURL, map[string]string{
			"LANG":           src.Lang,
			"INDICATOR":      indicator,
			"BEGIN_DATE":     itoa(begin),
			"END_DATE":       itoa(end),
			"PAGE":           itoa(page),
			"ITEMS_PER_PAGE": itoa(perPage),
		})

		var body []json.RawMessage
		if err := c.fetch.GetJSON(ctx, target, nil, nil, &body); err != nil {
			return out, err
		}
		if len(body) < 2 {
			return out, nil
		}

		var meta worldBankMeta
		if err := json.Unmarshal(body[0], &meta); err != nil {
			return out, fmt.Errorf("%w: metadata: %v", fetch.ErrDecode, err)
		}
		var raw []map[string]any
		if err := json.Unmarshal(body[1], &raw); err != nil {
			return out, fmt.Errorf("%w: data: %v", fetch.ErrDecode, err)
		}

		for _, v := range raw {
			out = append(out, flattenIndicator(v))
		}
		s.Logger().Debug("indicator page collected", "indicator", indicator, "elements", len(raw), "page", meta.Page, "pages", meta.Pages)

		if meta.Page >= meta.Pages {
			return out, nil
		}
	}
}

// flattenIndicator заменяет вложенные объекты идентификаторами.
func flattenIndicator(v map[string]any) module.Record {
	rec := module.Record(v)
	rec["indicator"] = nestedID(v["indicator"])
	rec["country_id"] = nestedID(v["country"])
	rec["year"] = v["date"]
	delete(rec, "decimal")
	delete(rec, "country")
	delete(rec, "date")
	return rec
}

func nestedID(v any) any {
	if m, ok := v.(map[string]any); ok {
		return m["id"]
	}
	return v
}

func lastYear(s *module.Session) int {
	return s.Now().Year() - 1
}
