package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/mailbox"
	"github.com/shaiso/Climatica/internal/module"
	"github.com/shaiso/Climatica/internal/repo"
)

// memReports — ReportStore в памяти.
type memReports struct {
	aggregated *domain.AggregatedReport
	last       []*domain.LastExecution
	readErr    error
}

func (r *memReports) Aggregated(_ context.Context, _ string) (*domain.AggregatedReport, error) {
	if r.readErr != nil {
		return nil, r.readErr
	}
	if r.aggregated == nil {
		return nil, repo.ErrNotFound
	}
	return r.aggregated, nil
}

func (r *memReports) SaveReport(_ context.Context, aggregated *domain.AggregatedReport, last *domain.LastExecution) error {
	r.aggregated = aggregated
	r.last = append(r.last, last)
	return nil
}

type memStates struct {
	saved map[string]domain.ModuleState
}

func (s *memStates) Load(name string, defaults domain.ModuleState) (domain.ModuleState, error) {
	if st, ok := s.saved[name]; ok {
		return st.Clone(), nil
	}
	return defaults.Clone(), nil
}

func (s *memStates) Save(name string, state domain.ModuleState) error {
	s.saved[name] = state.Clone()
	return nil
}

// brokenConverter конвертирует всё, но не может сохранить.
type brokenConverter struct{}

func (brokenConverter) Convert(_ context.Context, _ *module.Session, elements []module.Record) ([]module.Record, error) {
	return elements, nil
}

func (brokenConverter) Save(context.Context, *module.Session, []module.Record) (int, error) {
	return 0, errors.New("connection refused")
}

// unreachableCollector не может получить данные из источника.
type unreachableCollector struct{}

func (unreachableCollector) Collect(context.Context, *module.Session) ([]module.Record, error) {
	return nil, fmt.Errorf("%w: GET /v2/country: 503 Service Unavailable", domain.ErrTransientFetch)
}

func (unreachableCollector) Save(context.Context, *module.Session, []module.Record) (int, error) {
	return 0, nil
}

type onePage struct{}

func (onePage) Page(context.Context, string, int, int) (*module.Page, error) {
	return &module.Page{Data: []module.Record{{"id": 1}, {"id": 2}}}, nil
}

// fakeTarget — Target с заданным результатом выполнения.
type fakeTarget struct {
	name      string
	kind      domain.Kind
	ok        bool
	pending   bool
	state     domain.ModuleState
	history   []domain.StateID
	overrides int
}

func (f *fakeTarget) Name() string              { return f.name }
func (f *fakeTarget) Kind() domain.Kind         { return f.kind }
func (f *fakeTarget) Successful() bool          { return f.ok }
func (f *fakeTarget) PendingWork() bool         { return f.pending }
func (f *fakeTarget) State() domain.ModuleState { return f.state }

func (f *fakeTarget) ExposeTransitionHistory(module.Capability) ([]domain.StateID, error) {
	return f.history, nil
}

func (f *fakeTarget) ExecuteStateActions(context.Context, domain.StateID, module.Capability) error {
	return nil
}

func (f *fakeTarget) OverrideState(_ module.Capability, state domain.ModuleState) error {
	f.overrides++
	f.state = state
	return nil
}

func (f *fakeTarget) PersistedState(module.Capability) (domain.ModuleState, error) {
	return f.state, nil
}

type fakeEvents struct {
	failed   []domain.ModuleEvent
	repaired []domain.ModuleEvent
	reports  int
}

func (e *fakeEvents) PublishModuleFailed(_ context.Context, ev domain.ModuleEvent) error {
	e.failed = append(e.failed, ev)
	return nil
}

func (e *fakeEvents) PublishModuleRepaired(_ context.Context, ev domain.ModuleEvent) error {
	e.repaired = append(e.repaired, ev)
	return nil
}

func (e *fakeEvents) PublishReport(context.Context, *domain.LastExecution) error {
	e.reports++
	return nil
}

func converterConfig() module.Config {
	return module.Config{
		Name: "countries",
		Kind: domain.KindConverter,
		StateStruct: map[string]any{
			"last_request":        nil,
			"update_frequency":    map[string]any{"value": 1, "units": "day"},
			"backoff_time":        map[string]any{"value": 60, "units": "s"},
			"restart_required":    false,
			"error":               nil,
			"errors":              map[string]any{},
			"last_error":          "",
			"data_elements":       nil,
			"inserted_elements":   nil,
			"elements_to_convert": nil,
			"converted_elements":  nil,
			"start_index":         0,
		},
		MinUpdateFrequency:               domain.Span(1, domain.UnitHour),
		MaxUpdateFrequency:               domain.Span(1, domain.UnitWeek),
		DataCollectionMinUpdateFrequency: domain.Span(1, domain.UnitMinute),
		PageSize:                         10,
		MaxDataCalls:                     1,
	}
}

func collectorConfig() module.Config {
	return module.Config{
		Name: "countries",
		Kind: domain.KindCollector,
		StateStruct: map[string]any{
			"last_request":      nil,
			"update_frequency":  map[string]any{"value": 1, "units": "day"},
			"backoff_time":      map[string]any{"value": 1, "units": "s"},
			"restart_required":  false,
			"error":             nil,
			"errors":            map[string]any{},
			"last_error":        "",
			"data_elements":     nil,
			"inserted_elements": nil,
		},
		MinUpdateFrequency: domain.Span(1, domain.UnitHour),
		MaxUpdateFrequency: domain.Span(1, domain.UnitWeek),
	}
}

// supervise прогоняет протокол одного выполнения для уже выполненных модулей.
func supervise(t *testing.T, sup *Supervisor, mb *mailbox.Mailbox, modules ...mailbox.Module) {
	t.Helper()
	for _, m := range modules {
		if err := mb.Send(mailbox.Register{Module: m}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mb.Send(mailbox.Finished{Module: m}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := mb.Send(mailbox.Report{Duration: 1.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mb.Send(mailbox.Exit{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newSupervisor(t *testing.T, mb *mailbox.Mailbox, reports ReportStore, token *module.Token, events EventPublisher) *Supervisor {
	t.Helper()
	sup, err := New(Config{
		Mailbox:     mb,
		Reports:     reports,
		Events:      events,
		Token:       token,
		SubsystemID: "gathering",
		ExecutionID: 42,
		Now:         func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sup
}

// --- Supervisor Tests ---

func TestNew_RequiresReportStore(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoReportStore) {
		t.Errorf("expected ErrNoReportStore, got %v", err)
	}
}

func TestSupervisorToken_NilSafe(t *testing.T) {
	var sup *Supervisor
	if sup.SupervisorToken() != nil {
		t.Error("nil supervisor must not hold a token")
	}
}

func TestSupervisor_RepairsAbortedModule(t *testing.T) {
	token := module.NewToken()
	states := &memStates{saved: map[string]domain.ModuleState{}}
	m := module.New(converterConfig(), brokenConverter{}, module.Options{
		States: states,
		Pages:  onePage{},
		Token:  token,
	})
	m.Run(context.Background())
	if m.Current() != domain.StateAborted {
		t.Fatalf("expected Aborted, got %s", m.Trace())
	}
	if _, ok := states.saved["countries"]; ok {
		t.Fatal("aborted converter must not save its state by itself")
	}

	mb := mailbox.New(1)
	reports := &memReports{}
	events := &fakeEvents{}
	sup := newSupervisor(t, mb, reports, token, events)
	supervise(t, sup, mb, m)

	saved, ok := states.saved["countries"]
	if !ok {
		t.Fatal("expected repair to save the state")
	}
	if !saved.RestartRequired {
		t.Error("expected restart_required after repair")
	}
	if saved.ErrorCounts[domain.ClassPersistence] != 1 {
		t.Errorf("expected one PersistenceError, got %v", saved.ErrorCounts)
	}
	if got := sup.Repaired(); len(got) != 1 || got[0] != "countries" {
		t.Errorf("expected countries to be repaired, got %v", got)
	}
	if got := sup.Failed(); len(got) != 1 {
		t.Errorf("repaired module is still unsuccessful, got %v", got)
	}
	if len(events.repaired) != 1 || len(events.failed) != 1 || events.reports != 1 {
		t.Errorf("unexpected events: %+v", events)
	}

	details := reports.aggregated.PerModule["countries"].FailureDetails
	if ids := details[domain.ClassPersistence]; len(ids) != 1 || ids[0] != 42 {
		t.Errorf("unexpected failure details: %v", details)
	}
}

func TestSupervisor_RepairsAbortedCollector(t *testing.T) {
	token := module.NewToken()
	states := &memStates{saved: map[string]domain.ModuleState{
		"countries": {
			UpdateFrequency: domain.Span(3, domain.UnitDay),
			BackoffTime:     domain.Span(4, domain.UnitSecond),
			ErrorCounts:     map[string]int{domain.ClassTransientFetch: 2},
			LastErrorClass:  domain.ClassTransientFetch,
		},
	}}
	m := module.New(collectorConfig(), unreachableCollector{}, module.Options{
		States: states,
		Token:  token,
	})
	m.Run(context.Background())

	if m.Current() != domain.StateAborted {
		t.Fatalf("expected Aborted, got %s", m.Trace())
	}
	if got := states.saved["countries"]; got.RestartRequired || got.ErrorCounts[domain.ClassTransientFetch] != 2 {
		t.Fatalf("aborted collector must not save its state by itself, got %+v", got)
	}

	mb := mailbox.New(1)
	events := &fakeEvents{}
	sup := newSupervisor(t, mb, &memReports{}, token, events)
	supervise(t, sup, mb, m)

	saved := states.saved["countries"]
	if !saved.RestartRequired {
		t.Error("expected restart_required after repair")
	}
	if saved.ErrorCounts[domain.ClassTransientFetch] != 3 {
		t.Errorf("expected TransientFetchError count 3, got %v", saved.ErrorCounts)
	}
	if saved.LastErrorClass != domain.ClassTransientFetch {
		t.Errorf("unexpected last_error %q", saved.LastErrorClass)
	}
	if saved.BackoffTime != domain.Span(8, domain.UnitSecond) {
		t.Errorf("expected doubled backoff 8 s, got %s", saved.BackoffTime)
	}
	if saved.UpdateFrequency != domain.Span(3, domain.UnitDay) {
		t.Errorf("update_frequency must survive the repair, got %s", saved.UpdateFrequency)
	}
	if saved.LastRequest == nil {
		t.Error("expected last_request of the failed attempt")
	}
	if got := sup.Repaired(); len(got) != 1 || got[0] != "countries" {
		t.Errorf("expected countries to be repaired, got %v", got)
	}
	if len(events.failed) != 1 || events.failed[0].ErrorClass != domain.ClassTransientFetch {
		t.Errorf("unexpected failure events: %+v", events.failed)
	}
}

func TestSupervisor_ForeignTokenIsRefused(t *testing.T) {
	states := &memStates{saved: map[string]domain.ModuleState{}}
	m := module.New(converterConfig(), brokenConverter{}, module.Options{
		States: states,
		Pages:  onePage{},
		Token:  module.NewToken(),
	})
	m.Run(context.Background())

	mb := mailbox.New(1)
	reports := &memReports{}
	sup := newSupervisor(t, mb, reports, module.NewToken(), nil)
	supervise(t, sup, mb, m)

	if _, ok := states.saved["countries"]; ok {
		t.Error("state must not be saved without the module's capability")
	}
	if len(sup.Repaired()) != 0 {
		t.Errorf("expected no repairs, got %v", sup.Repaired())
	}
	if len(reports.last) != 1 || reports.last[0].ModulesFailed.Amount != 1 {
		t.Error("report must still be generated")
	}
}

func TestSupervisor_NoRepairWhenRestartScheduled(t *testing.T) {
	target := &fakeTarget{
		name:    "energy_sources",
		kind:    domain.KindCollector,
		history: []domain.StateID{domain.StateCreated, domain.StateInitialized, domain.StateRestored, domain.StateAborted},
		state:   domain.ModuleState{RestartRequired: true},
	}

	mb := mailbox.New(1)
	sup := newSupervisor(t, mb, &memReports{}, module.NewToken(), nil)
	supervise(t, sup, mb, target)

	if target.overrides != 0 {
		t.Error("module with scheduled restart must not be repaired")
	}
}

func TestSupervisor_LastReportNotFetched(t *testing.T) {
	target := &fakeTarget{name: "countries", kind: domain.KindCollector, ok: true}

	mb := mailbox.New(1)
	reports := &memReports{}
	sup := newSupervisor(t, mb, reports, module.NewToken(), nil)
	supervise(t, sup, mb, target)

	last := sup.LastReport()
	if last == nil || !last.LastReportNotFetched {
		t.Fatalf("expected last_report_not_fetched, got %+v", last)
	}
	if !last.ExecutionSucceeded || last.ModulesFailed.Modules != nil {
		t.Errorf("unexpected report: %+v", last)
	}

	// Второе выполнение видит сохранённый агрегированный отчёт.
	mb = mailbox.New(1)
	sup = newSupervisor(t, mb, reports, module.NewToken(), nil)
	supervise(t, sup, mb, target)
	if sup.LastReport().LastReportNotFetched {
		t.Error("aggregated report must be found on the second run")
	}
	if reports.aggregated.Executions != 2 {
		t.Errorf("expected 2 executions, got %d", reports.aggregated.Executions)
	}
}

// --- BuildReport Tests ---

func TestBuildReport_Durations(t *testing.T) {
	agg := domain.NewAggregatedReport("gathering")
	modules := []Target{&fakeTarget{name: "countries", kind: domain.KindCollector, ok: true}}

	BuildReport(agg, modules, ReportInput{SubsystemID: "gathering", ExecutionID: 1, Duration: 17.84})
	BuildReport(agg, modules, ReportInput{SubsystemID: "gathering", ExecutionID: 2, Duration: 89.82})

	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
	if agg.Executions != 2 {
		t.Fatalf("expected 2 executions, got %d", agg.Executions)
	}
	if !near(agg.MaxDuration, 89.82) || !near(agg.MinDuration, 17.84) {
		t.Errorf("unexpected min/max: %v/%v", agg.MinDuration, agg.MaxDuration)
	}
	if !near(agg.MeanDuration, 53.83) {
		t.Errorf("expected mean 53.83, got %v", agg.MeanDuration)
	}
	if !near(agg.ExecutionTime, 107.66) {
		t.Errorf("expected execution time 107.66, got %v", agg.ExecutionTime)
	}
	if agg.LastExecutionID != 2 || agg.SucceededExecutions != 2 {
		t.Errorf("unexpected aggregated report: %+v", agg)
	}
}

func TestBuildReport_Totals(t *testing.T) {
	agg := domain.NewAggregatedReport("conversion")
	modules := []Target{
		&fakeTarget{
			name: "countries", kind: domain.KindConverter, ok: true, pending: true,
			state: domain.ModuleState{
				ElementsToConvert: domain.IntPtr(10),
				ConvertedElements: domain.IntPtr(9),
				InsertedElements:  domain.IntPtr(9),
			},
		},
		&fakeTarget{
			name: "country_indicators", kind: domain.KindConverter, pending: true,
			state: domain.ModuleState{Error: &domain.ErrorInfo{Class: domain.ClassTransientFetch}},
		},
		&fakeTarget{name: "unknown", kind: domain.KindConverter},
	}

	last := BuildReport(agg, modules, ReportInput{SubsystemID: "conversion", ExecutionID: 5, Duration: 3})

	if last.CollectedElements != 10 || last.ConvertedElements != 9 || last.InsertedElements != 9 {
		t.Errorf("unexpected totals: %+v", last)
	}
	if last.ExecutionSucceeded || last.ModulesSucceeded != 1 || last.ModulesFailed.Amount != 2 {
		t.Errorf("unexpected outcome: %+v", last)
	}
	if len(last.ModulesWithPendingWork) != 2 {
		t.Errorf("expected 2 pending modules, got %v", last.ModulesWithPendingWork)
	}
	if got := last.ModulesWithPendingWork["countries"].ConvertedElements; got == nil || *got != 9 {
		t.Errorf("unexpected pending counters: %v", got)
	}
	if ids := agg.PerModule["country_indicators"].FailureDetails[domain.ClassTransientFetch]; len(ids) != 1 || ids[0] != 5 {
		t.Errorf("unexpected failure details: %v", agg.PerModule["country_indicators"].FailureDetails)
	}
	if ids := agg.PerModule["unknown"].FailureDetails[domain.UnknownCause]; len(ids) != 1 {
		t.Errorf("expected unknown cause, got %v", agg.PerModule["unknown"].FailureDetails)
	}
	if agg.FailedExecutions != 1 || agg.PerModule["countries"].ExecutionsWithPendingWork != 1 {
		t.Errorf("unexpected aggregated report: %+v", agg)
	}
}

func TestNeedsRepair(t *testing.T) {
	tests := []struct {
		name    string
		history []domain.StateID
		restart bool
		want    bool
	}{
		{"aborted after restore", []domain.StateID{domain.StateRestored, domain.StateAborted}, false, true},
		{"restart already scheduled", []domain.StateID{domain.StateRestored, domain.StateAborted}, true, false},
		{"aborted on init", []domain.StateID{domain.StateCreated, domain.StateAborted}, false, false},
		{"finished", []domain.StateID{domain.StateStateSaved, domain.StateFinished}, false, false},
		{"short history", []domain.StateID{domain.StateAborted}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := needsRepair(tt.history, domain.ModuleState{RestartRequired: tt.restart})
			if got != tt.want {
				t.Errorf("needsRepair() = %v, want %v", got, tt.want)
			}
		})
	}
}
