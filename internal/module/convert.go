package module

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/fetch"
)

// convert читает до max_data_calls страниц собранных данных и конвертирует их.
//
// Сбои запроса (таймаут, неразбираемое тело) повторяются в пределах бюджета
// вызовов; ошибка возвращается только если сбоем завершился последний вызов
// и ни одна страница не была получена. Ответ с HTTP-ошибкой пропускается.
func (m *Module) convert(ctx context.Context) error {
	converter := m.impl.(Converter)
	s := m.session()
	defer m.touchLastRequest()

	if dc, ok := m.impl.(DependencyChecker); ok {
		satisfied, err := dc.DependenciesSatisfied(ctx, s)
		if err != nil {
			return fmt.Errorf("check dependencies: %w", err)
		}
		m.dependenciesSatisfied = &satisfied
		if !satisfied {
			m.logger.Info("dependencies are unsatisfied, conversion postponed",
				"dependencies", m.cfg.Dependencies,
				"update_frequency", m.cfg.DependenciesUnsatisfiedUpdateFrequency.String(),
			)
			m.state.UpdateFrequency = m.cfg.DependenciesUnsatisfiedUpdateFrequency
			return nil
		}
	}

	var (
		elements  []Record
		next      = m.state.StartIndex
		more      bool
		succeeded bool
	)

	for call := 1; call <= m.cfg.MaxDataCalls; call++ {
		page, err := m.pages.Page(ctx, m.cfg.Name, next, m.cfg.PageSize)
		if err != nil {
			var statusErr *fetch.StatusError
			if errors.As(err, &statusErr) {
				m.logger.Warn("data API returned an error response", "status", statusErr.StatusCode, "error", err)
				continue
			}
			m.logger.Warn("data API request failed", "call", call, "max_calls", m.cfg.MaxDataCalls, "error", err)
			if call == m.cfg.MaxDataCalls && !succeeded {
				return fmt.Errorf("too many failed data API requests: %w", err)
			}
			continue
		}
		succeeded = true

		if len(page.Data) == 0 {
			m.logger.Info("no data available", "start_index", next)
			more = false
			break
		}

		elements = append(elements, page.Data...)
		if page.NextStartIndex == nil {
			m.logger.Info("found data, no more data is available", "start_index", next)
			more = false
			break
		}
		m.logger.Info("found data, more data is available", "start_index", next, "next_start_index", *page.NextStartIndex)
		next = *page.NextStartIndex
		more = true
	}

	if len(elements) == 0 {
		m.logger.Info("there is no data available, shortening update frequency",
			"update_frequency", m.cfg.MinUpdateFrequency.String())
		m.state.UpdateFrequency = m.cfg.MinUpdateFrequency
		m.advisedlyNoData = true
		return nil
	}

	if more {
		m.state.UpdateFrequency = m.cfg.DataCollectionMinUpdateFrequency
	} else {
		m.state.UpdateFrequency = m.cfg.MaxUpdateFrequency
	}
	m.state.ElementsToConvert = domain.IntPtr(len(elements))

	converted, err := converter.Convert(ctx, s, elements)
	if err != nil {
		return err
	}
	m.data = converted
	m.state.ConvertedElements = domain.IntPtr(len(converted))

	if len(converted) == len(elements) {
		m.logger.Info("data conversion successfully performed", "elements", len(converted))
	} else {
		m.logger.Warn("some elements were not converted", "not_converted", len(elements)-len(converted), "total", len(elements))
	}
	return nil
}
