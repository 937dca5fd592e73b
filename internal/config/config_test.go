package config

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Climatica/internal/domain"
)

// --- Load Tests ---

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SUBSYSTEM_ID", "STATE_DIR", "RUN_TIMEOUT", "MAX_RECOMMENDED_MODULES", "SCHEDULE", "REPORT_STORE", "METRICS_PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(domain.KindCollector)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SubsystemID != "climatica-collector" {
		t.Errorf("expected default subsystem id, got %s", cfg.SubsystemID)
	}
	if cfg.RunTimeout != DefaultRunTimeout {
		t.Errorf("expected default timeout, got %s", cfg.RunTimeout)
	}
	if cfg.ReportStore != ReportStorePostgres {
		t.Errorf("expected postgres report store, got %s", cfg.ReportStore)
	}
	if cfg.MetricsPort != "8091" {
		t.Errorf("expected collector metrics port, got %s", cfg.MetricsPort)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SUBSYSTEM_ID", "conv-1")
	t.Setenv("RUN_TIMEOUT", "90s")
	t.Setenv("MAX_RECOMMENDED_MODULES", "3")
	t.Setenv("SCHEDULE", "*/15 * * * *")
	t.Setenv("REPORT_STORE", "sqlite")

	cfg, err := Load(domain.KindConverter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SubsystemID != "conv-1" || cfg.RunTimeout != 90*time.Second || cfg.MaxRecommendedModules != 3 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.ReportStore != ReportStoreSQLite {
		t.Errorf("expected sqlite, got %s", cfg.ReportStore)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"RUN_TIMEOUT", "soon"},
		{"MAX_RECOMMENDED_MODULES", "-1"},
		{"SCHEDULE", "every day"},
		{"REPORT_STORE", "mongo"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(domain.KindCollector)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

// --- LoadAPI Tests ---

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_PORT", "")
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("API_MAX_PAGE_SIZE", "")
	t.Setenv("REPORT_STORE", "sqlite")

	cfg, err := LoadAPI()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.Token != "secret" || cfg.MaxPageSize != DefaultMaxPageSize {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.ReportStore != ReportStoreSQLite {
		t.Errorf("expected sqlite report store, got %s", cfg.ReportStore)
	}
}

func TestLoadAPI_InvalidPageSize(t *testing.T) {
	t.Setenv("API_MAX_PAGE_SIZE", "-5")

	if _, err := LoadAPI(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
