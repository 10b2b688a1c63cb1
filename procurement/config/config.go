package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go-temporal-procurement/procurement/types"
)

const (
	defaultTemporalHost    = "localhost:7233"
	defaultTaskQueue       = "procurement-task-queue"
	defaultProviderTimeout = 30
)

// ProviderConfig selects and configures the call session provider
type ProviderConfig struct {
	Kind            string   `yaml:"kind"`
	BaseURL         string   `yaml:"base_url"`
	AccountSID      string   `yaml:"account_sid"`
	AuthToken       string   `yaml:"auth_token"`
	FromNumber      string   `yaml:"from_number"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	AllowedContacts []string `yaml:"allowed_contacts"`
}

type Config struct {
	TemporalHost string `yaml:"temporal_host"`
	TaskQueue    string `yaml:"task_queue"`

	CatalogPath string `yaml:"catalog_path"`
	DBPath      string `yaml:"db_path"`

	CallbackAddr    string `yaml:"callback_addr"`
	CallbackBaseURL string `yaml:"callback_base_url"`

	Provider ProviderConfig `yaml:"provider"`

	// Schedule is a 5-field cron expression; empty runs procurement once
	Schedule string `yaml:"schedule"`
	LogLevel string `yaml:"log_level"`

	Run types.RunConfig `yaml:"run"`
}

// Load reads config.yaml (or CONFIG_PATH), applies environment overrides and
// fills defaults. A missing file is not an error.
func Load() (Config, error) {
	// yaml only overwrites keys present in the file, so an explicit 0 survives
	cfg := Config{Run: types.DefaultRunConfig()}

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing %s: %w", configPath, err)
		}
		slog.Info("Loaded config", "path", configPath)
	}

	var errs []error
	envOverride(&cfg.TemporalHost, "TEMPORAL_HOST")
	envOverride(&cfg.TaskQueue, "PROCUREMENT_TASK_QUEUE")
	envOverride(&cfg.CatalogPath, "CATALOG_PATH")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.CallbackAddr, "CALLBACK_ADDR")
	envOverride(&cfg.CallbackBaseURL, "CALLBACK_BASE_URL")
	envOverride(&cfg.Provider.Kind, "PROVIDER_KIND")
	envOverride(&cfg.Provider.BaseURL, "PROVIDER_BASE_URL")
	envOverride(&cfg.Provider.AccountSID, "PROVIDER_ACCOUNT_SID")
	envOverride(&cfg.Provider.AuthToken, "PROVIDER_AUTH_TOKEN")
	envOverride(&cfg.Provider.FromNumber, "PROVIDER_FROM_NUMBER")
	errs = append(errs, envOverrideInt(&cfg.Provider.TimeoutSeconds, "PROVIDER_TIMEOUT_SECONDS"))
	envOverrideList(&cfg.Provider.AllowedContacts, "ALLOWED_CONTACTS")
	envOverrideAllowEmpty(&cfg.Schedule, "PROCUREMENT_SCHEDULE")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	errs = append(errs,
		envOverrideDuration(&cfg.Run.CollectionWindow, "COLLECTION_WINDOW"),
		envOverrideDuration(&cfg.Run.CollectionCeiling, "COLLECTION_CEILING"),
		envOverrideInt(&cfg.Run.DispatchRetries, "DISPATCH_RETRIES"),
		envOverrideInt(&cfg.Run.ConfirmRetries, "CONFIRM_RETRIES"),
		envOverrideFloat(&cfg.Run.MinCoverage, "MIN_COVERAGE"),
		envOverrideFloat(&cfg.Run.AutoApproveThreshold, "AUTO_APPROVE_THRESHOLD"),
	)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if cfg.TemporalHost == "" {
		cfg.TemporalHost = defaultTemporalHost
	}
	if cfg.TaskQueue == "" {
		cfg.TaskQueue = defaultTaskQueue
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "./catalog.yaml"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./procurement.db"
	}
	if cfg.CallbackAddr == "" {
		cfg.CallbackAddr = ":8090"
	}
	if cfg.CallbackBaseURL == "" {
		cfg.CallbackBaseURL = "http://localhost" + cfg.CallbackAddr
	}
	if cfg.Provider.Kind == "" {
		cfg.Provider.Kind = "simulated"
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = defaultProviderTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot be defaulted
func (c Config) Validate() error {
	switch c.Provider.Kind {
	case "simulated":
	case "http":
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("provider.base_url is required when provider.kind=http")
		}
		if c.Provider.FromNumber == "" {
			return fmt.Errorf("provider.from_number is required when provider.kind=http")
		}
	default:
		return fmt.Errorf("provider.kind must be 'http' or 'simulated', got '%s'", c.Provider.Kind)
	}
	if c.Run.MinCoverage < 0 || c.Run.MinCoverage > 1 {
		return fmt.Errorf("invalid min_coverage '%f': must be between 0 and 1", c.Run.MinCoverage)
	}
	if c.Run.DispatchRetries < 0 || c.Run.ConfirmRetries < 0 {
		return fmt.Errorf("retry counts must be >= 0")
	}
	return nil
}

// ProviderTimeout is the HTTP timeout for provider calls
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// SlogLevel maps LogLevel onto slog
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			*field = append(*field, part)
		}
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideDuration(field *time.Duration, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
