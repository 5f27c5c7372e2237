package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/KevinDz11/nopro/internal/catalog"
	"github.com/KevinDz11/nopro/internal/model"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	configureEnv()
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	def := model.DefaultConfig()
	if cfg.Vision.Provider != def.Vision.Provider {
		t.Errorf("Vision.Provider = %q, want %q", cfg.Vision.Provider, def.Vision.Provider)
	}
	if cfg.Concurrency.AnalysisTimeout != def.Concurrency.AnalysisTimeout {
		t.Errorf("AnalysisTimeout = %v, want %v", cfg.Concurrency.AnalysisTimeout, def.Concurrency.AnalysisTimeout)
	}
	if len(cfg.Vision.OCRLanguages) != 2 {
		t.Errorf("OCRLanguages = %v", cfg.Vision.OCRLanguages)
	}
	if !cfg.Labs.Enabled || cfg.Labs.Limit != 3 {
		t.Errorf("Unexpected labs config: %+v", cfg.Labs)
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("NOPRO_VISION_PROVIDER", "tesseract")
	t.Setenv("NOPRO_CONCURRENCY_ANALYSIS_TIMEOUT", "90s")
	t.Setenv("NOPRO_STORE_DRIVER", "sqlite")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	resetViper(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Vision.Provider != "tesseract" {
		t.Errorf("Vision.Provider = %q, want tesseract", cfg.Vision.Provider)
	}
	if cfg.Concurrency.AnalysisTimeout != 90*time.Second {
		t.Errorf("AnalysisTimeout = %v, want 90s", cfg.Concurrency.AnalysisTimeout)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Vision.APIKey != "sk-test" {
		t.Errorf("Vision.APIKey not read from OPENAI_API_KEY")
	}
}

func TestLoadConfig_File(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "vision:\n  min_confidence: 0.5\nlabs:\n  limit: 5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Vision.MinConfidence != 0.5 {
		t.Errorf("MinConfidence = %v, want 0.5", cfg.Vision.MinConfidence)
	}
	if cfg.Labs.Limit != 5 {
		t.Errorf("Labs.Limit = %d, want 5", cfg.Labs.Limit)
	}
	if cfg.Vision.DPI != model.DefaultConfig().Vision.DPI {
		t.Errorf("Unset keys must keep defaults, DPI = %d", cfg.Vision.DPI)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "min_confidence:") {
		t.Errorf("Expected defaults in config file, got:\n%s", data)
	}
	if err := writeDefaultConfig(path); err == nil {
		t.Error("Expected an error when the file already exists")
	}
}

func TestRedact(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Vision.APIKey = "sk-secret"

	out := redact(cfg)
	if out.Vision.APIKey == "sk-secret" {
		t.Error("API key was not redacted")
	}
	if cfg.Vision.APIKey != "sk-secret" {
		t.Error("redact must not modify its input")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"docs/laptop/ficha técnica.pdf", "ficha-técnica"},
		{"https://example.com/files/manual.pdf?v=2", "manual"},
		{"etiqueta:1.png", "etiqueta_1"},
		{"/", "document"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeFilename(tt.in); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildRequests_Layout(t *testing.T) {
	root := t.TempDir()
	category, docType, layoutRoot = "", "", root
	t.Cleanup(func() { category, docType, layoutRoot = "", "", "" })

	reqs := buildRequests([]string{
		filepath.Join(root, "Laptop", "manual", "a.pdf"),
		filepath.Join(root, "stray.pdf"),
	})
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(reqs))
	}
	if reqs[0].Category != "Laptop" || reqs[0].DocType != "manual" {
		t.Errorf("Unexpected classification: %+v", reqs[0])
	}
}

func TestBuildRequests_Flags(t *testing.T) {
	category, docType, layoutRoot = "Luminaire", "Label", ""
	t.Cleanup(func() { category, docType = "", "" })

	reqs := buildRequests([]string{"a.png", "b.png"})
	if len(reqs) != 2 || reqs[1].Category != "Luminaire" || reqs[1].DocType != "Label" {
		t.Errorf("Unexpected requests: %+v", reqs)
	}
}

func TestPrintCatalog(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := printCatalog(&buf, cat, "laptop"); err != nil {
		t.Fatalf("printCatalog() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "NOM-001-SCFI-2018") {
		t.Errorf("Expected NOM-001-SCFI-2018 in output:\n%s", out)
	}
	if !strings.Contains(out, "forced") {
		t.Errorf("Expected forced label entries in output:\n%s", out)
	}
}

func TestValidateCatalog_BuiltIn(t *testing.T) {
	var buf bytes.Buffer
	if err := validateCatalog(&buf, ""); err != nil {
		t.Fatalf("validateCatalog() error: %v", err)
	}
	if !strings.Contains(buf.String(), "catalog loaded") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
}

func TestValidateCatalog_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, catalog.RulesFile), []byte("rule_sets: 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := validateCatalog(&buf, dir); err == nil {
		t.Errorf("Expected validation failure, output:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "✗  "+catalog.RulesFile) {
		t.Errorf("Expected failure line for %s:\n%s", catalog.RulesFile, buf.String())
	}
}

func TestPrintLabs_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := printLabs(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No laboratories") {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}

func TestNewLimiter_LocalOCRUnthrottled(t *testing.T) {
	limiter := newLimiter(model.VisionConfig{RequestsPerSecond: 0.01, Burst: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx, "tesseract"); err != nil {
			t.Fatalf("tesseract call %d throttled: %v", i, err)
		}
	}

	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Fatalf("first openai call failed: %v", err)
	}
	if err := limiter.Wait(ctx, "openai"); err == nil {
		t.Error("expected the second openai call to be throttled")
	}
}
