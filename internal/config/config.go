// Package config loads dispatchdesk settings from an optional config file
// and DISPATCH_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAPIURL         = "http://localhost:3000/api/v1"
	DefaultSearchDebounce = 300 * time.Millisecond
	DefaultLogFile        = "/tmp/dispatchdesk.log"
)

// Config holds all configuration values.
type Config struct {
	// Remote API
	APIURL    string
	APIToken  string
	SignInURL string

	// ClientTimeout bounds each API request. Zero means no client-side limit.
	ClientTimeout time.Duration

	// SearchDebounce is the settle delay of the console search box.
	SearchDebounce time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the on-disk shape shared by the YAML and TOML formats.
type fileConfig struct {
	APIURL         string `yaml:"api_url" toml:"api_url"`
	APIToken       string `yaml:"api_token" toml:"api_token"`
	SignInURL      string `yaml:"sign_in_url" toml:"sign_in_url"`
	ClientTimeout  string `yaml:"client_timeout" toml:"client_timeout"`
	SearchDebounce string `yaml:"search_debounce" toml:"search_debounce"`
	LogFile        string `yaml:"log_file" toml:"log_file"`
	LogLevel       string `yaml:"log_level" toml:"log_level"`
}

// Load builds the configuration. Values come from defaults, then the
// config file at path (if any), then environment variables. An empty path
// falls back to $DISPATCH_CONFIG.
func Load(path string) (Config, error) {
	cfg := Config{
		APIURL:         DefaultAPIURL,
		SearchDebounce: DefaultSearchDebounce,
		LogFile:        DefaultLogFile,
		LogLevel:       slog.LevelInfo,
	}

	if path == "" {
		path = os.Getenv("DISPATCH_CONFIG")
	}
	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := cfg.apply(fc, "config file "+path); err != nil {
			return Config{}, err
		}
	}

	env := fileConfig{
		APIURL:         os.Getenv("DISPATCH_API_URL"),
		APIToken:       os.Getenv("DISPATCH_API_TOKEN"),
		SignInURL:      os.Getenv("DISPATCH_SIGN_IN_URL"),
		ClientTimeout:  os.Getenv("DISPATCH_CLIENT_TIMEOUT"),
		SearchDebounce: os.Getenv("DISPATCH_SEARCH_DEBOUNCE"),
		LogFile:        os.Getenv("DISPATCH_LOG_FILE"),
		LogLevel:       os.Getenv("DISPATCH_LOG_LEVEL"),
	}
	if err := cfg.apply(env, "environment"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// apply overlays every non-empty field of fc.
func (c *Config) apply(fc fileConfig, source string) error {
	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	if fc.APIToken != "" {
		c.APIToken = fc.APIToken
	}
	if fc.SignInURL != "" {
		c.SignInURL = fc.SignInURL
	}
	if fc.ClientTimeout != "" {
		d, err := parseDuration(fc.ClientTimeout)
		if err != nil {
			return fmt.Errorf("%s: client_timeout: %w", source, err)
		}
		c.ClientTimeout = d
	}
	if fc.SearchDebounce != "" {
		d, err := parseDuration(fc.SearchDebounce)
		if err != nil {
			return fmt.Errorf("%s: search_debounce: %w", source, err)
		}
		if d > 0 {
			c.SearchDebounce = d
		}
	}
	if fc.LogFile != "" {
		c.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	return nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return fc, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fc, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fc, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return fc, nil
}

// parseDuration accepts Go duration strings ("300ms", "5s") or a bare
// integer number of milliseconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.Atoi(s); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
