package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultReportAPIURL = "https://pax-report.vercel.app"

type Config struct {
	Env         string
	LogLevel    string
	ListenAddr  string
	DatabaseURL string
	ScanWorkers int

	// Credentials are read once here and passed to the adapters.
	PaxAPIKey      string
	NgrokAuthtoken string
	ToolsToken     string

	ReportAPIURL string
	IngestSource string
	ScannerURL   string

	RateLimitEnabled bool
	ScanRatePerMin   float64
	PollInterval     time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the environment, after merging a .env file if one exists.
// Missing optional credentials are reported through the returned error while
// cfg is still usable; callers decide whether that is fatal.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:         getenv("APP_ENV", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ScanWorkers: getenvInt("SCAN_WORKERS", 0),

		PaxAPIKey:      os.Getenv("PAX_API_KEY"),
		NgrokAuthtoken: os.Getenv("NGROK_AUTHTOKEN"),
		ToolsToken:     os.Getenv("TOOLS_TOKEN"),

		ReportAPIURL: getenv("REPORT_API_URL", DefaultReportAPIURL),
		IngestSource: getenv("INGEST_SOURCE", "claude-code"),
		ScannerURL:   os.Getenv("SCANNER_URL"),

		RateLimitEnabled: getbool("RATE_LIMIT_ENABLED", true),
		ScanRatePerMin:   getfloat("SCAN_RATE_PER_MIN", 10),
		PollInterval:     getdur("SCAN_POLL_INTERVAL", 500*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	var missing []string
	if cfg.PaxAPIKey == "" {
		missing = append(missing, "PAX_API_KEY")
	}
	if cfg.NgrokAuthtoken == "" {
		missing = append(missing, "NGROK_AUTHTOKEN")
	}
	if cfg.ScannerURL == "" {
		missing = append(missing, "SCANNER_URL")
	}
	if len(missing) > 0 {
		return cfg, &MissingError{Keys: missing}
	}
	return cfg, nil
}

// MissingError lists unset optional variables. The config is still usable.
type MissingError struct{ Keys []string }

func (e *MissingError) Error() string {
	return strings.Join(e.Keys, ", ") + " not set"
}

// IsMissing reports whether err only concerns unset optional variables.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}

func (c Config) Validate() error {
	if c.ScanWorkers < 0 || c.ScanWorkers > 16 {
		return fmt.Errorf("SCAN_WORKERS must be between 0 and 16, got %d", c.ScanWorkers)
	}
	if c.ScanWorkers > 0 && c.DatabaseURL == "" {
		return fmt.Errorf("SCAN_WORKERS=%d requires DATABASE_URL", c.ScanWorkers)
	}
	if c.ScanRatePerMin <= 0 {
		return fmt.Errorf("SCAN_RATE_PER_MIN must be positive, got %v", c.ScanRatePerMin)
	}
	if c.PollInterval < 10*time.Millisecond {
		return fmt.Errorf("SCAN_POLL_INTERVAL must be at least 10ms, got %s", c.PollInterval)
	}
	if c.ToolsToken != "" && len(c.ToolsToken) < 16 {
		return fmt.Errorf("TOOLS_TOKEN must be at least 16 characters long, got %d", len(c.ToolsToken))
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
