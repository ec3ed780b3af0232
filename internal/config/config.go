package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	configFileBase = "charity_hub_config"
	envPrefix      = "CHARITY_HUB_"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// StorageConfig selects and locates the storage adapter
type StorageConfig struct {
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER" validate:"required,oneof=postgres sqlite"`
	DatabaseURL string `yaml:"databaseURL,omitempty" env:"DATABASE_URL" validate:"required_if=Driver postgres"`
	SQLitePath  string `yaml:"sqlitePath,omitempty" env:"SQLITE_PATH" validate:"required_if=Driver sqlite"`
}

// RetryConfig bounds coordinator retries. Attempts include the first try.
type RetryConfig struct {
	ConflictAttempts int           `yaml:"conflictAttempts" env:"RETRY_CONFLICT_ATTEMPTS" validate:"min=1,max=20"`
	StorageAttempts  int           `yaml:"storageAttempts" env:"RETRY_STORAGE_ATTEMPTS" validate:"min=1,max=10"`
	InitialInterval  time.Duration `yaml:"initialInterval" env:"RETRY_INITIAL_INTERVAL" validate:"min=0"`
	MaxInterval      time.Duration `yaml:"maxInterval" env:"RETRY_MAX_INTERVAL" validate:"gtefield=InitialInterval"`
}

// ReconcileConfig schedules background balance reconciliation
type ReconcileConfig struct {
	// Schedule is an RRULE, e.g. FREQ=DAILY;BYHOUR=3;BYMINUTE=0;BYSECOND=0
	Schedule string `yaml:"schedule,omitempty" env:"RECONCILE_SCHEDULE"`
	// AdminID is the admin user the scheduled passes run as
	AdminID string `yaml:"adminID,omitempty" env:"RECONCILE_ADMIN_ID" validate:"required_with=Schedule"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" env:"OTEL_ENDPOINT" validate:"omitempty,url"`
	ServiceName string `yaml:"serviceName" env:"OTEL_SERVICE_NAME" validate:"required"`
}

// LoggingConfig controls the log file location
type LoggingConfig struct {
	Dir string `yaml:"dir,omitempty" env:"LOG_DIR"`
}

// AuthConfig holds the secret used with --email. It is only read from the
// environment, never from the config file.
type AuthConfig struct {
	Password string `yaml:"-" env:"PASSWORD"`
}

// Config represents the application configuration
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Retry     RetryConfig     `yaml:"retry"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"-"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default returns the values used for anything the file and environment
// leave unset
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: "charity_hub.db",
		},
		Retry: RetryConfig{
			ConflictAttempts: 5,
			StorageAttempts:  2,
			InitialInterval:  20 * time.Millisecond,
			MaxInterval:      time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "charity-hub",
		},
		Logging: LoggingConfig{
			Dir: "logs",
		},
	}
}

// Load loads configuration for environment appEnv.
// A .env file in the working directory is loaded first if present. The
// config file is optional: without one the defaults apply. CHARITY_HUB_*
// environment variables override both.
func Load(appEnv string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	path, err := findConfigFile(appEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}
	if path == "" {
		cfg := Default()
		return finish(&cfg)
	}
	return LoadFromPath(path)
}

// LoadFromPath loads, overrides from the environment and validates the
// configuration at path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Reconcile.Schedule != "" {
		if _, err := rrule.StrToRRule(cfg.Reconcile.Schedule); err != nil {
			return fmt.Errorf("invalid rrule in reconcile.schedule: %w", err)
		}
	}

	return nil
}

// findConfigFile searches the current directory, then the home directory,
// for charity_hub_config.<env>.yaml and then charity_hub_config.yaml.
// It returns "" when neither exists anywhere.
func findConfigFile(appEnv string) (string, error) {
	var names []string
	if appEnv != "" {
		names = append(names, fmt.Sprintf("%s.%s.yaml", configFileBase, appEnv))
	}
	names = append(names, configFileBase+".yaml")

	dirs := []string{"."}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dirs = append(dirs, homeDir)

	for _, dir := range dirs {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", nil
}
