package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/user/book-archiver/internal/export"
)

// Storage backends understood by storage.Open.
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config stores all configuration for the application.
type Config struct {
	ReaderURL  string `mapstructure:"READER_URL"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	ServerPort string `mapstructure:"SERVER_PORT"`

	StorageBackend   string `mapstructure:"STORAGE_BACKEND"`
	StorageKeyPrefix string `mapstructure:"STORAGE_KEY_PREFIX"`
	SQLitePath       string `mapstructure:"SQLITE_PATH"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int    `mapstructure:"REDIS_DB"`
	PostgresURL      string `mapstructure:"POSTGRES_URL"`

	OutputDir   string  `mapstructure:"OUTPUT_DIR"`
	PDFFilename string  `mapstructure:"PDF_FILENAME"`
	PageFormat  string  `mapstructure:"PAGE_FORMAT"`
	Orientation string  `mapstructure:"ORIENTATION"`
	JPEGQuality float64 `mapstructure:"JPEG_QUALITY"`

	CaptureTimeout      time.Duration `mapstructure:"CAPTURE_TIMEOUT"`
	Headless            bool          `mapstructure:"HEADLESS"`
	ChromePath          string        `mapstructure:"CHROME_PATH"`
	UserDataDir         string        `mapstructure:"USER_DATA_DIR"`
	AutoDownloadBrowser bool          `mapstructure:"AUTO_DOWNLOAD_BROWSER"`
	NoSandbox           bool          `mapstructure:"NO_SANDBOX"`
	Stealth             bool          `mapstructure:"STEALTH"`
	ShowControls        bool          `mapstructure:"SHOW_CONTROLS"`
	Proxies             []string      `mapstructure:"PROXIES"`
	UserAgents          []string      `mapstructure:"USER_AGENTS"`
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"url":        "READER_URL",
	"log-level":  "LOG_LEVEL",
	"port":       "SERVER_PORT",
	"backend":    "STORAGE_BACKEND",
	"output-dir": "OUTPUT_DIR",
	"format":     "PAGE_FORMAT",
	"headless":   "HEADLESS",
}

// Load reads configuration from the env file, environment variables and any
// flags in fs that appear in FlagKeys. envFile may be empty.
func Load(envFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if envFile == "" {
		envFile = ".env"
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present
	_ = v.ReadInConfig()

	v.SetDefault("READER_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("STORAGE_BACKEND", BackendSQLite)
	v.SetDefault("STORAGE_KEY_PREFIX", "bookImages_")
	v.SetDefault("SQLITE_PATH", filepath.Join("data", "archive.db"))
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("OUTPUT_DIR", ".")
	v.SetDefault("PDF_FILENAME", "book.pdf")
	v.SetDefault("PAGE_FORMAT", "A4")
	v.SetDefault("ORIENTATION", "P")
	v.SetDefault("JPEG_QUALITY", 0.92)
	v.SetDefault("CAPTURE_TIMEOUT", "0s")
	v.SetDefault("HEADLESS", false)
	v.SetDefault("CHROME_PATH", "")
	v.SetDefault("USER_DATA_DIR", "")
	v.SetDefault("AUTO_DOWNLOAD_BROWSER", false)
	v.SetDefault("NO_SANDBOX", false)
	v.SetDefault("STEALTH", true)
	v.SetDefault("SHOW_CONTROLS", true)
	v.SetDefault("PROXIES", []string{})
	v.SetDefault("USER_AGENTS", []string{})

	if fs != nil {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if o, err := export.ParseOrientation(cfg.Orientation); err == nil {
		cfg.Orientation = string(o)
	}
	return &cfg, nil
}

// Validate checks value ranges that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendSQLite, BackendRedis, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.StorageBackend)
	}
	if c.StorageBackend == BackendPostgres && c.PostgresURL == "" {
		return fmt.Errorf("config: POSTGRES_URL is required for the postgres backend")
	}
	if _, err := export.LookupFormat(c.PageFormat); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := export.ParseOrientation(c.Orientation); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 1 {
		return fmt.Errorf("config: JPEG quality must be in (0, 1], got %v", c.JPEGQuality)
	}
	if c.CaptureTimeout < 0 {
		return fmt.Errorf("config: capture timeout must not be negative")
	}
	return nil
}

// OutputPath is where exports triggered from the page are written.
func (c *Config) OutputPath() string {
	return filepath.Join(c.OutputDir, c.PDFFilename)
}
