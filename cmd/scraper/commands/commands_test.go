package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aggieschedule/registrar-scraper/pipeline"
)

// resetFlags restores persistent flags so later commands see defaults.
func resetFlags(names ...string) {
	for _, name := range names {
		f := rootCmd.PersistentFlags().Lookup(name)
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
}

func TestTermCodeCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"fall college station", []string{"--year", "2019", "--semester", "fall", "--location", "college_station"}, "201931"},
		{"spring galveston", []string{"--year", "2020", "--semester", "SPRING", "--location", "galveston"}, "202012"},
		{"summer qatar", []string{"--year", "2021", "--semester", "summer", "--location", "qatar"}, "202123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(append([]string{"term-code"}, tt.args...))
			t.Cleanup(func() {
				rootCmd.SetOut(nil)
				rootCmd.SetArgs(nil)
				resetFlags("year", "semester", "location")
			})

			if err := rootCmd.ExecuteContext(context.Background()); err != nil {
				t.Fatalf("execute: %v", err)
			}
			if got := strings.TrimSpace(out.String()); got != tt.want {
				t.Fatalf("term code = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTermCodeCommand_BadYear(t *testing.T) {
	rootCmd.SetArgs([]string{"term-code", "--year", "19", "--semester", "fall", "--location", "qatar"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags("year", "semester", "location")
	})

	err := rootCmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "4 digits") {
		t.Fatalf("expected year error, got %v", err)
	}
}

func TestListingCommandsValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"departments zero parallel", []string{"departments", "--parallel", "0"}, "parallelism"},
		{"terms negative timeout", []string{"terms", "--timeout=-1s"}, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			rootCmd.SetOut(&bytes.Buffer{})
			rootCmd.SetErr(&bytes.Buffer{})
			t.Cleanup(func() {
				rootCmd.SetArgs(nil)
				rootCmd.SetOut(nil)
				rootCmd.SetErr(nil)
				resetFlags("parallel", "timeout")
			})

			err := rootCmd.ExecuteContext(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q validation error, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateWriter(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		format  string
		wantErr bool
	}{
		{"csv", false},
		{"json", false},
		{"dual", false},
		{"xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w, err := createWriter(tt.format, filepath.Join(dir, tt.format, "courses.csv"))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unsupported format")
				}
				return
			}
			if err != nil {
				t.Fatalf("createWriter: %v", err)
			}
			if err := w.Write(nil); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if tt.format == "dual" {
				if _, ok := w.(*pipeline.MultiWriter); !ok {
					t.Fatalf("dual format returned %T", w)
				}
			}
		})
	}
}
