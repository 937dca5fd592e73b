package module

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/engine"
	"github.com/shaiso/Climatica/internal/telemetry"
)

// restore загружает состояние и сбрасывает поля текущего выполнения.
func (m *Module) restore(ctx context.Context) error {
	state, err := m.states.Load(m.cfg.Name, m.defaults)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	state.ResetVolatile()
	m.state = state

	if r, ok := m.impl.(Restorer); ok {
		if err := r.Restore(ctx, m.session()); err != nil {
			return fmt.Errorf("restore hook: %w", err)
		}
	}
	return nil
}

func (m *Module) checkPendingWork() error {
	decision := engine.HasPendingWork(m.now(), &m.state)
	m.pendingWork = decision.Pending
	m.backoffPrevented = decision.BackoffPrevented

	if decision.BackoffPrevented {
		m.logger.Info("exponential backoff prevented execution", "backoff", m.state.BackoffTime.String())
	}
	if !decision.Pending {
		m.logger.Debug("no pending work")
	}
	return nil
}

// collect вызывает Collector.Collect. last_request обновляется при любом исходе,
// чтобы backoff отсчитывался от последней попытки.
func (m *Module) collect(ctx context.Context) error {
	collector := m.impl.(Collector)
	defer m.touchLastRequest()

	records, err := collector.Collect(ctx, m.session())
	if err != nil {
		return err
	}

	m.data = records
	m.state.DataElements = domain.IntPtr(len(records))
	if len(records) == 0 && !m.advisedlyNoData {
		m.logger.Warn("no data has been collected, it will be retried in the next execution")
	} else {
		m.logger.Info("data collected", "elements", len(records))
	}
	return nil
}

// save сохраняет данные текущего выполнения и проверяет долю несохранённых записей.
func (m *Module) save(ctx context.Context) error {
	if len(m.data) == 0 {
		m.logger.Info("no elements were saved because no elements were produced")
		m.state.InsertedElements = domain.IntPtr(0)
		return nil
	}

	var (
		inserted int
		err      error
	)
	if c, ok := m.impl.(Converter); ok && m.cfg.Kind == domain.KindConverter {
		inserted, err = c.Save(ctx, m.session(), m.data)
	} else {
		inserted, err = m.impl.(Collector).Save(ctx, m.session(), m.data)
	}
	if err != nil {
		if domain.ClassOf(err) != domain.ClassDataIntegrity && !errors.Is(err, domain.ErrPersistence) {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return err
	}

	m.state.InsertedElements = domain.IntPtr(inserted)
	total := len(m.data)
	m.data = nil

	if err := checkIntegrity(total, inserted); err != nil {
		m.logger.Error("too many elements were not saved, aborting stage", "inserted", inserted, "total", total)
		return err
	}
	if inserted != total {
		m.logger.Warn("some elements were not saved", "not_saved", total-inserted, "total", total)
	} else {
		m.logger.Debug("all elements saved", "inserted", inserted)
	}
	return nil
}

// checkIntegrity возвращает ErrDataIntegrity, если не сохранено больше 10% записей.
func checkIntegrity(total, inserted int) error {
	missing := total - inserted
	if missing > 0 && missing*10 > total {
		return fmt.Errorf("%w: %d of %d elements were not saved", domain.ErrDataIntegrity, missing, total)
	}
	return nil
}

func (m *Module) checkExecution() {
	var verdict Verdict
	if m.cfg.Kind == domain.KindConverter {
		verdict = CheckConverter(ConverterCheck{
			PendingWork:           m.pendingWork,
			AdvisedlyNoData:       m.advisedlyNoData,
			DependenciesSatisfied: m.dependenciesSatisfied == nil || *m.dependenciesSatisfied,
			ElementsToConvert:     m.state.ElementsToConvert,
			ConvertedElements:     m.state.ConvertedElements,
			InsertedElements:      m.state.InsertedElements,
		})
	} else {
		verdict = CheckCollector(CollectorCheck{
			PendingWork:      m.pendingWork,
			AdvisedlyNoData:  m.advisedlyNoData,
			DataElements:     m.state.DataElements,
			InsertedElements: m.state.InsertedElements,
		})
	}

	for _, f := range verdict.Findings {
		m.logger.Log(context.Background(), f.Level, f.Message)
	}
	if verdict.Result == nil {
		m.logger.Warn("execution check is undecided, module will be reported as unsuccessful")
	}
	m.checkResult = verdict.Result
}

// saveState применяет политику backoff и сохраняет состояние.
//
// Политика применяется к копии: при ошибке записи состояние в памяти
// не меняется, и повторный вызов (ремонт Supervisor-ом) не удвоит счётчики.
func (m *Module) saveState() error {
	next := m.state.Clone()
	m.policy.Apply(&next, m.backoffPrevented)

	if m.cfg.Kind == domain.KindConverter {
		inserted := domain.IntValue(next.InsertedElements)
		switch {
		case m.cfg.RestartStartIndex:
			m.logger.Info("start_index is not advanced because restart_start_index is set")
		case m.checkResult != nil && *m.checkResult && inserted > 0:
			next.StartIndex += inserted
		}
	}

	if err := m.states.Save(m.cfg.Name, next); err != nil {
		return fmt.Errorf("%w: save state: %w", domain.ErrPersistence, err)
	}
	m.state = next

	telemetry.ModuleBackoffSeconds.WithLabelValues(m.subsystem, m.cfg.Name).Set(float64(next.BackoffTime.Seconds()))
	m.logger.Info("state saved", "backoff", next.BackoffTime.String(), "restart_required", next.RestartRequired)
	return nil
}

func (m *Module) finish() error {
	m.data = nil
	return nil
}

func (m *Module) touchLastRequest() {
	now := m.now().UTC()
	m.state.LastRequest = &now
}
