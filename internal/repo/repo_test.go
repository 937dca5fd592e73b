package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/module"
)

// --- DocKey Tests ---

func TestDocKey(t *testing.T) {
	doc := module.Record{"indicator": "EN.ATM.CO2E.KT", "country_id": "ES", "year": "2016"}

	key, err := DocKey(doc, []string{"indicator", "country_id", "year"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "EN.ATM.CO2E.KT|ES|2016" {
		t.Errorf("unexpected key: %s", key)
	}

	same, _ := DocKey(module.Record{"year": "2016", "country_id": "ES", "indicator": "EN.ATM.CO2E.KT"},
		[]string{"indicator", "country_id", "year"})
	if same != key {
		t.Error("key must not depend on map order")
	}
}

func TestDocKey_DefaultsToID(t *testing.T) {
	key, err := DocKey(module.Record{"_id": "ES"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "ES" {
		t.Errorf("expected ES, got %s", key)
	}
}

func TestDocKey_Missing(t *testing.T) {
	_, err := DocKey(module.Record{"country_id": nil}, []string{"country_id"})
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
}

func TestStamp_DoesNotMutate(t *testing.T) {
	doc := module.Record{"_id": "ES"}
	out := stamp(doc, 42)

	if out[ExecutionIDField] != int64(42) {
		t.Errorf("expected execution_id 42, got %v", out[ExecutionIDField])
	}
	if _, ok := doc[ExecutionIDField]; ok {
		t.Error("original document must not be modified")
	}
}

// --- Page Tests ---

func TestNewPage(t *testing.T) {
	docs := []module.Record{{"_id": 1}, {"_id": 2}, {"_id": 3}}

	page := NewPage(docs, 10, 2)
	if len(page.Data) != 2 {
		t.Errorf("expected 2 documents, got %d", len(page.Data))
	}
	if page.NextStartIndex == nil || *page.NextStartIndex != 12 {
		t.Errorf("expected next_start_index 12, got %v", page.NextStartIndex)
	}

	last := NewPage(docs[:2], 10, 2)
	if last.NextStartIndex != nil {
		t.Errorf("expected no next page, got %d", *last.NextStartIndex)
	}

	empty := NewPage(nil, 0, 2)
	if empty.Data == nil || len(empty.Data) != 0 {
		t.Error("empty page must have non-nil empty data")
	}
}

func TestNewDocumentRepo_UnknownTable(t *testing.T) {
	_, err := NewDocumentRepo(nil, "users")
	if !errors.Is(err, ErrUnknownTable) {
		t.Errorf("expected ErrUnknownTable, got %v", err)
	}
}

// --- SQLiteReportRepo Tests ---

func newSQLite(t *testing.T) *SQLiteReportRepo {
	t.Helper()
	r, err := NewSQLiteReportRepo(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteReportRepo_NextExecutionID(t *testing.T) {
	r := newSQLite(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := r.NextExecutionID(ctx, "gathering")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	other, err := r.NextExecutionID(ctx, "conversion")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other != 1 {
		t.Errorf("counters must be per subsystem, got %d", other)
	}
}

func TestSQLiteReportRepo_AggregatedNotFound(t *testing.T) {
	r := newSQLite(t)

	_, err := r.Aggregated(context.Background(), "gathering")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteReportRepo_SaveReport(t *testing.T) {
	r := newSQLite(t)
	ctx := context.Background()

	agg := domain.NewAggregatedReport("gathering")
	agg.Executions = 1
	agg.LastExecutionID = 1
	agg.RecordDuration(17.84)
	agg.Module("countries").TotalExecutions = 1

	for id := int64(1); id <= 2; id++ {
		last := &domain.LastExecution{
			SubsystemID: "gathering",
			ExecutionID: id,
			Timestamp:   time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
			Duration:    17.84,
		}
		if err := r.SaveReport(ctx, agg, last); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := r.Aggregated(ctx, "gathering")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MaxDuration != 17.84 || got.PerModule["countries"].TotalExecutions != 1 {
		t.Errorf("unexpected aggregated report: %+v", got)
	}

	lasts, err := r.LastExecutions(ctx, "gathering", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lasts) != 2 || lasts[0].ExecutionID != 2 {
		t.Errorf("expected 2 reports newest first, got %+v", lasts)
	}
}

func TestSQLiteReportRepo_DuplicateExecution(t *testing.T) {
	r := newSQLite(t)
	ctx := context.Background()

	agg := domain.NewAggregatedReport("gathering")
	last := &domain.LastExecution{SubsystemID: "gathering", ExecutionID: 1}

	if err := r.SaveReport(ctx, agg, last); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.SaveReport(ctx, agg, last); err == nil {
		t.Error("expected error for duplicate execution id")
	}
}
