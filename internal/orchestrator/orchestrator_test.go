package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/module"
	"github.com/shaiso/Climatica/internal/repo"
)

// memReports — ReportStore в памяти.
type memReports struct {
	mu         sync.Mutex
	next       int64
	aggregated *domain.AggregatedReport
	last       []*domain.LastExecution
}

func (r *memReports) NextExecutionID(context.Context, string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	return r.next, nil
}

func (r *memReports) Aggregated(context.Context, string) (*domain.AggregatedReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aggregated == nil {
		return nil, repo.ErrNotFound
	}
	return r.aggregated, nil
}

func (r *memReports) SaveReport(_ context.Context, agg *domain.AggregatedReport, last *domain.LastExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregated = agg
	r.last = append(r.last, last)
	return nil
}

// memStates — StateStore в памяти, безопасный для нескольких модулей.
type memStates struct {
	mu    sync.Mutex
	saved map[string]domain.ModuleState
}

func newMemStates() *memStates {
	return &memStates{saved: make(map[string]domain.ModuleState)}
}

func (s *memStates) Load(name string, defaults domain.ModuleState) (domain.ModuleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.saved[name]; ok {
		return st.Clone(), nil
	}
	return defaults.Clone(), nil
}

func (s *memStates) Save(name string, state domain.ModuleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[name] = state.Clone()
	return nil
}

// staticCollector собирает n записей; block задерживает сбор.
type staticCollector struct {
	n     int
	block chan struct{}
}

func (c *staticCollector) Collect(ctx context.Context, _ *module.Session) ([]module.Record, error) {
	if c.block != nil {
		<-c.block
	}
	out := make([]module.Record, c.n)
	for i := range out {
		out[i] = module.Record{"_id": i}
	}
	return out, nil
}

func (c *staticCollector) Save(_ context.Context, _ *module.Session, records []module.Record) (int, error) {
	return len(records), nil
}

func schema() map[string]any {
	return map[string]any{
		"last_request":      nil,
		"update_frequency":  map[string]any{"value": 1, "units": "day"},
		"backoff_time":      map[string]any{"value": 1, "units": "s"},
		"restart_required":  false,
		"error":             nil,
		"errors":            map[string]any{},
		"last_error":        "",
		"data_elements":     nil,
		"inserted_elements": nil,
	}
}

func collectorConfig(name string) module.Config {
	return module.Config{
		Name:               name,
		Kind:               domain.KindCollector,
		StateStruct:        schema(),
		MinUpdateFrequency: domain.Span(1, domain.UnitHour),
		MaxUpdateFrequency: domain.Span(1, domain.UnitDay),
	}
}

func registryWith(impls map[string]any) *module.Registry {
	r := module.NewRegistry()
	for name, impl := range impls {
		r.Register(name, func(module.Config, module.Deps) (any, error) { return impl, nil })
	}
	return r
}

// --- Orchestrator Tests ---

func TestNew_RequiresReportStore(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoReportStore) {
		t.Errorf("expected ErrNoReportStore, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	o, err := New(Config{Reports: &memReports{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.runTimeout != defaultRunTimeout {
		t.Errorf("expected default run timeout, got %v", o.runTimeout)
	}
	if o.maxRecommendedModules != defaultMaxRecommendedModules {
		t.Errorf("expected default recommended modules, got %d", o.maxRecommendedModules)
	}
	if o.registry == nil {
		t.Error("registry should be initialized")
	}
}

func TestRun_ExecutesModulesAndReports(t *testing.T) {
	reports := &memReports{}
	states := newMemStates()
	o, _ := New(Config{
		Kind:        domain.KindCollector,
		SubsystemID: "gathering",
		Configs: []module.Config{
			collectorConfig("countries"),
			collectorConfig("energy_sources"),
			collectorConfig("missing_factory"),
			{Name: "countries", Kind: domain.KindConverter, StateStruct: schema()},
		},
		Registry: registryWith(map[string]any{
			"countries":      &staticCollector{n: 3},
			"energy_sources": &staticCollector{n: 2},
		}),
		States:  states,
		Reports: reports,
	})

	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ExecutionID != 1 {
		t.Errorf("expected execution id 1, got %d", result.ExecutionID)
	}
	if len(result.Succeeded) != 2 || len(result.Failed) != 1 || result.Failed[0] != "missing_factory" {
		t.Errorf("unexpected outcome: succeeded=%v failed=%v", result.Succeeded, result.Failed)
	}
	if result.Report == nil || result.Report.ModulesExecuted != 3 || result.Report.CollectedElements != 5 {
		t.Fatalf("unexpected report: %+v", result.Report)
	}
	if len(reports.last) != 1 || reports.aggregated.Executions != 1 {
		t.Error("report must be saved once")
	}
	if st := states.saved["countries"]; domain.IntValue(st.InsertedElements) != 3 {
		t.Errorf("unexpected countries state: %+v", st)
	}
	if live := o.handles.live(); len(live) != 0 {
		t.Errorf("handles must be released, got %v", live)
	}
}

func TestRun_NoModules(t *testing.T) {
	o, _ := New(Config{
		Kind:       domain.KindConverter,
		ModulesDir: t.TempDir(),
		Reports:    &memReports{},
	})

	if _, err := o.Run(context.Background()); !errors.Is(err, ErrNoModules) {
		t.Errorf("expected ErrNoModules, got %v", err)
	}
}

func TestRun_DisabledModulesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	yaml := `name: countries
kind: collector
enabled: false
state_struct:
  last_request: null
`
	if err := os.WriteFile(filepath.Join(dir, "countries.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, _ := New(Config{Kind: domain.KindCollector, ModulesDir: dir, Reports: &memReports{}})

	if _, err := o.Run(context.Background()); !errors.Is(err, ErrNoModules) {
		t.Errorf("expected ErrNoModules, got %v", err)
	}
}

func TestRun_StorageUnreachable(t *testing.T) {
	reports := &memReports{}
	o, _ := New(Config{
		Kind:    domain.KindCollector,
		Configs: []module.Config{collectorConfig("countries")},
		Reports: reports,
		Storage: PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	if _, err := o.Run(context.Background()); !errors.Is(err, ErrStorageUnreachable) {
		t.Errorf("expected ErrStorageUnreachable, got %v", err)
	}
	if reports.next != 0 {
		t.Error("execution id must not be allocated")
	}
}

func TestRun_UpstreamUnreachable(t *testing.T) {
	o, _ := New(Config{
		Kind:     domain.KindConverter,
		Reports:  &memReports{},
		Upstream: PingFunc(func(context.Context) error { return errors.New("503") }),
	})

	if _, err := o.Run(context.Background()); !errors.Is(err, ErrUpstreamUnreachable) {
		t.Errorf("expected ErrUpstreamUnreachable, got %v", err)
	}
}

func TestRun_TimeoutKeepsHandles(t *testing.T) {
	block := make(chan struct{})
	o, _ := New(Config{
		Kind:       domain.KindCollector,
		Configs:    []module.Config{collectorConfig("countries")},
		Registry:   registryWith(map[string]any{"countries": &staticCollector{n: 1, block: block}}),
		States:     newMemStates(),
		Reports:    &memReports{},
		RunTimeout: 50 * time.Millisecond,
	})

	if _, err := o.Run(context.Background()); !errors.Is(err, ErrRunTimeout) {
		t.Fatalf("expected ErrRunTimeout, got %v", err)
	}

	if _, err := o.Run(context.Background()); !errors.Is(err, ErrModuleStillRunning) {
		t.Errorf("expected ErrModuleStillRunning, got %v", err)
	}

	close(block)
	deadline := time.Now().Add(2 * time.Second)
	for len(o.handles.live()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("handles were not released after the module finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSplitElapsed(t *testing.T) {
	h, m, s := splitElapsed(2*time.Hour + 3*time.Minute + 4500*time.Millisecond)
	if h != 2 || m != 3 || s != 4.5 {
		t.Errorf("splitElapsed() = %d, %d, %v", h, m, s)
	}
}
