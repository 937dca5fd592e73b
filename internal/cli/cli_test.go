package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/shaiso/Climatica/internal/domain"
	"github.com/shaiso/Climatica/internal/mq"
	"github.com/shaiso/Climatica/internal/statefile"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.Execute()
}

// --- Client Tests ---

func TestClient_GetAggregatedReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"missing or invalid token"}}`))
			return
		}
		if r.URL.Path != "/api/v1/reports/gathering" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"subsystem_id":"gathering","executions":3}}`))
	}))
	defer srv.Close()

	agg, err := NewClient(srv.URL, "secret").GetAggregatedReport("gathering")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.Executions != 3 {
		t.Errorf("expected 3 executions, got %d", agg.Executions)
	}

	_, err = NewClient(srv.URL, "").GetAggregatedReport("gathering")
	if err == nil || !strings.Contains(err.Error(), "UNAUTHORIZED") {
		t.Errorf("expected UNAUTHORIZED error, got %v", err)
	}
}

func TestClient_GetDataPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("startIndex"); got != "10" {
			t.Errorf("expected startIndex=10, got %s", got)
		}
		w.Write([]byte(`{"data":[{"_id":"ES"}],"next_start_index":null}`))
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL+"/", "").GetDataPage("countries", 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Data) != 1 || page.NextStartIndex != nil {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestClient_ListExecutions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"execution_id":9},{"execution_id":8}],"total":2}`))
	}))
	defer srv.Close()

	executions, err := NewClient(srv.URL, "").ListExecutions("gathering", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(executions) != 2 || executions[0].ExecutionID != 9 {
		t.Errorf("unexpected executions: %+v", executions)
	}
}

// --- State Tests ---

func TestStateCommands(t *testing.T) {
	dir := t.TempDir()
	store := statefile.New(dir, nil)

	last := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Save("countries", domain.ModuleState{
		LastRequest:     &last,
		UpdateFrequency: domain.Span(1, domain.UnitDay),
		LastErrorClass:  "TransientFetchError",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stdout, stderr bytes.Buffer
	storeFn := func() *statefile.Store { return store }
	outputFn := func() *Output { return NewOutputTo(false, &stdout, &stderr) }

	if err := execute(t, NewStateCmd(storeFn, outputFn), "list"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"countries", "2024-03-01 10:00:00", "TransientFetchError"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("state list output must contain %q:\n%s", want, stdout.String())
		}
	}

	stdout.Reset()
	if err := execute(t, NewStateCmd(storeFn, outputFn), "show", "countries"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), `"last_error": "TransientFetchError"`) {
		t.Errorf("unexpected state show output:\n%s", stdout.String())
	}

	if err := execute(t, NewStateCmd(storeFn, outputFn), "reset", "countries"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(store.Path("countries")); !os.IsNotExist(err) {
		t.Error("state file must be removed")
	}
	if !strings.Contains(stderr.String(), "State of countries removed") {
		t.Errorf("unexpected stderr: %s", stderr.String())
	}
}

func TestStateReset_InvalidName(t *testing.T) {
	store := statefile.New(t.TempDir(), nil)
	cmd := NewStateCmd(
		func() *statefile.Store { return store },
		func() *Output { return NewOutputTo(false, &bytes.Buffer{}, &bytes.Buffer{}) },
	)

	if err := execute(t, cmd, "reset", "../etc"); err == nil {
		t.Error("expected error for path-like module name")
	}
}

// --- Modules Tests ---

func TestModulesList(t *testing.T) {
	dir := t.TempDir()
	yaml := `name: country_indicators
kind: converter
dependencies: [countries]
state_struct:
  last_request: null
`
	if err := os.WriteFile(filepath.Join(dir, "country_indicators.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stdout bytes.Buffer
	cmd := NewModulesCmd(
		func() string { return dir },
		func() *Output { return NewOutputTo(false, &stdout, &bytes.Buffer{}) },
	)
	if err := execute(t, cmd, "list"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"country_indicators", "converter", "countries"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("modules list output must contain %q:\n%s", want, stdout.String())
		}
	}
}

// --- Notify Tests ---

func TestAlertHandlers(t *testing.T) {
	ev := domain.ModuleEvent{SubsystemID: "gathering", ExecutionID: 2, Module: "countries", Kind: domain.KindCollector}
	body, _ := json.Marshal(mq.NewMessage(mq.MessageTypeModuleFailed, ev, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	var msg mq.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stdout bytes.Buffer
	handlers := AlertHandlers(NewOutputTo(false, &stdout, &bytes.Buffer{}))
	if err := handlers.Dispatch(context.Background(), &msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "2024-03-01 10:00:00 [gathering #2] module countries (collector) failed\n"
	if stdout.String() != want {
		t.Errorf("expected %q, got %q", want, stdout.String())
	}

	msg.Type = "run.pending"
	if err := handlers.Dispatch(context.Background(), &msg); !errors.Is(err, mq.ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestAlertHandlers_JSON(t *testing.T) {
	report := &domain.LastExecution{SubsystemID: "conversion", ExecutionID: 5, ExecutionSucceeded: true, ModulesExecuted: 2, ModulesSucceeded: 2}
	msg := mq.NewMessage(mq.MessageTypeReport, mq.NewReportPayload(report), time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	var stdout bytes.Buffer
	handlers := AlertHandlers(NewOutputTo(true, &stdout, &bytes.Buffer{}))
	if err := handlers.Dispatch(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["type"] != string(mq.MessageTypeReport) {
		t.Errorf("unexpected type: %v", got["type"])
	}
	event, _ := got["event"].(map[string]any)
	if event["subsystem_id"] != "conversion" {
		t.Errorf("unexpected event: %v", got["event"])
	}
	if summary, _ := got["summary"].(string); !strings.Contains(summary, "2/2 modules ok") {
		t.Errorf("unexpected summary: %v", got["summary"])
	}
}
