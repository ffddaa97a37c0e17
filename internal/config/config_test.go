package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/clinicaleventflow/internal/stitch"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.GCP.ProjectID = "claims-prod"
	cfg.OCR.ProcessorID = "abc123"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.OCR.PageLimit != 15 {
		t.Errorf("OCR.PageLimit = %d, want 15", cfg.OCR.PageLimit)
	}
	if cfg.Model.Name != "gemini-1.5-pro" {
		t.Errorf("Model.Name = %q, want gemini-1.5-pro", cfg.Model.Name)
	}
	if cfg.Pipeline.Policy != string(stitch.PolicyGapMarker) {
		t.Errorf("Pipeline.Policy = %q, want gap_marker", cfg.Pipeline.Policy)
	}
	if cfg.Pipeline.Timeout != 10*time.Minute {
		t.Errorf("Pipeline.Timeout = %s, want 10m", cfg.Pipeline.Timeout)
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("EVENTFLOW_GCP_PROJECT_ID", "claims-prod")
	t.Setenv("EVENTFLOW_OCR_PROCESSOR_ID", "abc123")
	t.Setenv("EVENTFLOW_OCR_CONCURRENCY", "8")
	t.Setenv("EVENTFLOW_PIPELINE_TIMEOUT", "90s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GCP.ProjectID != "claims-prod" {
		t.Errorf("GCP.ProjectID = %q, want claims-prod", cfg.GCP.ProjectID)
	}
	if cfg.OCR.ProcessorID != "abc123" {
		t.Errorf("OCR.ProcessorID = %q, want abc123", cfg.OCR.ProcessorID)
	}
	if cfg.OCR.Concurrency != 8 {
		t.Errorf("OCR.Concurrency = %d, want 8", cfg.OCR.Concurrency)
	}
	if cfg.Pipeline.Timeout != 90*time.Second {
		t.Errorf("Pipeline.Timeout = %s, want 90s", cfg.Pipeline.Timeout)
	}
	if cfg.OCR.PageLimit != 15 {
		t.Errorf("OCR.PageLimit = %d, want default 15", cfg.OCR.PageLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventflow.yaml")
	content := `gcp:
  project_id: from-file
ocr:
  processor_id: proc-1
  page_limit: 10
pipeline:
  policy: skip
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("file values", func(t *testing.T) {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.GCP.ProjectID != "from-file" || cfg.OCR.PageLimit != 10 || cfg.Pipeline.Policy != "skip" {
			t.Errorf("Load() = %+v", cfg)
		}
		if cfg.GCP.Region != "us-central1" {
			t.Errorf("GCP.Region = %q, want default", cfg.GCP.Region)
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("EVENTFLOW_GCP_PROJECT_ID", "from-env")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.GCP.ProjectID != "from-env" {
			t.Errorf("GCP.ProjectID = %q, want from-env", cfg.GCP.ProjectID)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventflow.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# eventflow configuration") {
		t.Error("missing header comment")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := DefaultConfig()
	if cfg.OCR != want.OCR || cfg.Service != want.Service ||
		cfg.Pipeline.Policy != want.Pipeline.Policy || cfg.Pipeline.Timeout != want.Pipeline.Timeout {
		t.Errorf("Load(WriteDefault()) = %+v, want %+v", cfg, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no project", func(c *Config) { c.GCP.ProjectID = "" }, "gcp.project_id"},
		{"no processor", func(c *Config) { c.OCR.ProcessorID = "" }, "ocr.processor_id"},
		{"zero page limit", func(c *Config) { c.OCR.PageLimit = 0 }, "ocr.page_limit"},
		{"page limit above backend", func(c *Config) { c.OCR.PageLimit = 16 }, "ocr.page_limit"},
		{"zero concurrency", func(c *Config) { c.OCR.Concurrency = 0 }, "ocr.concurrency"},
		{"negative rate", func(c *Config) { c.OCR.RequestsPerMinute = -1 }, "requests_per_minute"},
		{"bad policy", func(c *Config) { c.Pipeline.Policy = "drop" }, "pipeline.policy"},
		{"no timeout", func(c *Config) { c.Pipeline.Timeout = 0 }, "pipeline.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateService(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateService(); err == nil || !strings.Contains(err.Error(), "service.output_bucket") {
		t.Errorf("ValidateService() error = %v, want output bucket error", err)
	}
	cfg.Service.OutputBucket = "events-out"
	if err := cfg.ValidateService(); err != nil {
		t.Errorf("ValidateService() error = %v", err)
	}
}

func TestDirective(t *testing.T) {
	cfg := validConfig()
	if got, err := cfg.Directive(); err != nil || got != "" {
		t.Errorf("Directive() = %q, %v; want empty", got, err)
	}

	path := filepath.Join(t.TempDir(), "directive.tmpl")
	if err := os.WriteFile(path, []byte("Extract events from {{.Record}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Model.DirectiveFile = path
	got, err := cfg.Directive()
	if err != nil {
		t.Fatalf("Directive() error = %v", err)
	}
	if got != "Extract events from {{.Record}}" {
		t.Errorf("Directive() = %q", got)
	}
}
