package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageBackend != BackendSQLite {
		t.Errorf("StorageBackend = %q", cfg.StorageBackend)
	}
	if cfg.StorageKeyPrefix != "bookImages_" {
		t.Errorf("StorageKeyPrefix = %q", cfg.StorageKeyPrefix)
	}
	if cfg.PageFormat != "A4" || cfg.Orientation != "P" {
		t.Errorf("page = %s/%s", cfg.PageFormat, cfg.Orientation)
	}
	if cfg.JPEGQuality != 0.92 {
		t.Errorf("JPEGQuality = %v", cfg.JPEGQuality)
	}
	if cfg.CaptureTimeout != 0 {
		t.Errorf("CaptureTimeout = %v, want 0", cfg.CaptureTimeout)
	}
	if cfg.Headless || !cfg.ShowControls || !cfg.Stealth {
		t.Errorf("browser defaults: headless=%v controls=%v stealth=%v", cfg.Headless, cfg.ShowControls, cfg.Stealth)
	}
	if got := cfg.OutputPath(); got != "book.pdf" {
		t.Errorf("OutputPath = %q", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_EnvFileEnvAndFlags(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "archiver.env")
	content := "STORAGE_BACKEND=redis\nCAPTURE_TIMEOUT=30s\nPROXIES=http://a:8000,http://b:8000\nORIENTATION=landscape\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OUTPUT_DIR", "/tmp/books")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("backend", "", "")
	fs.String("url", "", "")
	if err := fs.Parse([]string{"--backend", "Memory", "--url", "https://reader.example/book/1"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(envFile, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageBackend != BackendMemory {
		t.Errorf("flag should win: StorageBackend = %q", cfg.StorageBackend)
	}
	if cfg.ReaderURL != "https://reader.example/book/1" {
		t.Errorf("ReaderURL = %q", cfg.ReaderURL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("env should win over file: LogLevel = %q", cfg.LogLevel)
	}
	if cfg.CaptureTimeout != 30*time.Second {
		t.Errorf("CaptureTimeout = %v", cfg.CaptureTimeout)
	}
	if !slices.Equal(cfg.Proxies, []string{"http://a:8000", "http://b:8000"}) {
		t.Errorf("Proxies = %v", cfg.Proxies)
	}
	if cfg.Orientation != "L" {
		t.Errorf("Orientation = %q, want L", cfg.Orientation)
	}
	if got := cfg.OutputPath(); got != filepath.Join("/tmp/books", "book.pdf") {
		t.Errorf("OutputPath = %q", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StorageBackend: BackendSQLite,
			PageFormat:     "A4",
			Orientation:    "P",
			JPEGQuality:    0.92,
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StorageBackend = "mongo" }},
		{"postgres without url", func(c *Config) { c.StorageBackend = BackendPostgres }},
		{"unknown format", func(c *Config) { c.PageFormat = "B5" }},
		{"unknown orientation", func(c *Config) { c.Orientation = "X" }},
		{"zero quality", func(c *Config) { c.JPEGQuality = 0 }},
		{"quality above one", func(c *Config) { c.JPEGQuality = 1.5 }},
		{"negative timeout", func(c *Config) { c.CaptureTimeout = -time.Second }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
