package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "zero page",
			mutate: func(cfg *Config) {
				cfg.Page = 0
			},
			wantErr: "page",
		},
		{
			name: "zero page size",
			mutate: func(cfg *Config) {
				cfg.PageSize = 0
			},
			wantErr: "page size",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "short year",
			mutate: func(cfg *Config) {
				cfg.Year = "9"
			},
			wantErr: "term",
		},
		{
			name: "unknown semester",
			mutate: func(cfg *Config) {
				cfg.Semester = "winter"
			},
			wantErr: "term",
		},
		{
			name: "blank department",
			mutate: func(cfg *Config) {
				cfg.Departments = []string{"CSCE", " "}
			},
			wantErr: "departments",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 3 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	tm, err := cfg.Term()
	if err != nil {
		t.Fatalf("default term: %v", err)
	}
	if tm.Code() != "201931" {
		t.Fatalf("default term code = %q, want 201931", tm.Code())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.toml")
	contents := `
year = "2020"
semester = "spring"
location = "galveston"
departments = ["csce", "math, ecen"]
parallelism = 3
timeout = "5s"
retry_backoff = "100ms"
descriptions = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load file: %v", err)
	}

	tm, err := cfg.Term()
	if err != nil {
		t.Fatalf("term: %v", err)
	}
	if tm.Code() != "202012" {
		t.Fatalf("term code = %q, want 202012", tm.Code())
	}
	if got := strings.Join(cfg.Departments, ","); got != "CSCE,MATH,ECEN" {
		t.Fatalf("departments = %q", got)
	}
	if cfg.Parallelism != 3 || cfg.Timeout != 5*time.Second || cfg.RetryBackoff != 100*time.Millisecond {
		t.Fatalf("unexpected overlay: parallelism=%d timeout=%s backoff=%s", cfg.Parallelism, cfg.Timeout, cfg.RetryBackoff)
	}
	if !cfg.FetchDescriptions {
		t.Fatalf("descriptions should be enabled")
	}
	if cfg.PageSize != DefaultConfig().PageSize {
		t.Fatalf("unset keys should keep defaults, page size = %d", cfg.PageSize)
	}
}

func TestLoadFileBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.toml")
	if err := os.WriteFile(path, []byte(`timeout = "soon"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := DefaultConfig().LoadFile(path); err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("REGISTRAR_DEPARTMENTS", "acct, csce")
	t.Setenv("REGISTRAR_PARALLEL", "7")
	t.Setenv("REGISTRAR_SEMESTER", "summer")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if got := strings.Join(cfg.Departments, ","); got != "ACCT,CSCE" {
		t.Fatalf("departments = %q", got)
	}
	if cfg.Parallelism != 7 {
		t.Fatalf("parallelism = %d, want 7", cfg.Parallelism)
	}
	if cfg.Semester != "summer" {
		t.Fatalf("semester = %q", cfg.Semester)
	}

	t.Setenv("REGISTRAR_PARALLEL", "many")
	if err := DefaultConfig().ApplyEnv(); err == nil {
		t.Fatalf("expected parse error for REGISTRAR_PARALLEL")
	}
}
