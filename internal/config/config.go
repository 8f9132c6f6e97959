package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"football/internal/footballapi"
)

// Config is the full process configuration. Values come from defaults, then
// an optional YAML file, then the environment.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig contains upstream API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Key        string        `yaml:"key"`
	Timeout    time.Duration `yaml:"timeout"`
	RateCalls  int           `yaml:"rate_limit_calls"`
	RatePeriod time.Duration `yaml:"rate_limit_period"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_base_delay"`
}

// WarehouseConfig contains destination database settings.
type WarehouseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	Schema   string `yaml:"schema"`
}

// PipelineConfig contains pipeline behaviour settings.
type PipelineConfig struct {
	CompetitionsPlan string        `yaml:"competitions_plan"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
}

// RuntimeConfig contains process-level settings.
type RuntimeConfig struct {
	RunLogPath   string `yaml:"run_log_path"`
	MetricsAddr  string `yaml:"metrics_addr"`
	ScheduleCron string `yaml:"schedule_cron"`
}

// ArchiveConfig enables the raw payload archive when URI is set.
type ArchiveConfig struct {
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    footballapi.DefaultBaseURL,
			Timeout:    30 * time.Second,
			RateCalls:  footballapi.DefaultCalls,
			RatePeriod: footballapi.DefaultPeriod,
			MaxRetries: footballapi.DefaultMaxRetries,
			RetryDelay: footballapi.DefaultBaseDelay,
		},
		Warehouse: WarehouseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Schema:  "raw",
		},
		Pipeline: PipelineConfig{
			CompetitionsPlan: "TIER_ONE",
			RunTimeout:       30 * time.Minute,
		},
		Runtime: RuntimeConfig{
			RunLogPath:  "data/runs.db",
			MetricsAddr: ":9090",
		},
		Archive: ArchiveConfig{
			MongoDatabase: "football_raw",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. path may be empty. Missing credentials are
// not an error here; they surface when the API or warehouse is first used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.API.Key = getEnvOrDefault("API_KEY", c.API.Key)
	c.API.BaseURL = getEnvOrDefault("API_BASE_URL", c.API.BaseURL)
	c.API.RateCalls = getEnvAsInt("RATE_LIMIT_CALLS", c.API.RateCalls)
	c.API.MaxRetries = getEnvAsInt("MAX_RETRIES", c.API.MaxRetries)

	c.Warehouse.Driver = getEnvOrDefault("DB_DRIVER", c.Warehouse.Driver)
	c.Warehouse.Host = getEnvOrDefault("PG_HOST", c.Warehouse.Host)
	c.Warehouse.Port = getEnvAsInt("PG_PORT", c.Warehouse.Port)
	c.Warehouse.User = getEnvOrDefault("PG_USER", c.Warehouse.User)
	c.Warehouse.Password = getEnvOrDefault("PG_PASS", c.Warehouse.Password)
	c.Warehouse.Database = getEnvOrDefault("PG_DB", c.Warehouse.Database)
	c.Warehouse.SSLMode = getEnvOrDefault("DB_SSLMODE", c.Warehouse.SSLMode)
	c.Warehouse.Schema = getEnvOrDefault("DB_SCHEMA", c.Warehouse.Schema)

	c.Pipeline.CompetitionsPlan = getEnvOrDefault("COMPETITIONS_PLAN", c.Pipeline.CompetitionsPlan)

	c.Runtime.RunLogPath = getEnvOrDefault("RUN_LOG_PATH", c.Runtime.RunLogPath)
	c.Runtime.MetricsAddr = getEnvOrDefault("METRICS_ADDR", c.Runtime.MetricsAddr)
	c.Runtime.ScheduleCron = getEnvOrDefault("SCHEDULE_CRON", c.Runtime.ScheduleCron)

	c.Archive.MongoURI = getEnvOrDefault("ARCHIVE_MONGO_URI", c.Archive.MongoURI)
	c.Archive.MongoDatabase = getEnvOrDefault("ARCHIVE_MONGO_DB", c.Archive.MongoDatabase)

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)

	var err error
	if c.API.RatePeriod, err = getEnvAsDuration("RATE_LIMIT_PERIOD", c.API.RatePeriod); err != nil {
		return err
	}
	if c.API.RetryDelay, err = getEnvAsDuration("RETRY_BASE_DELAY", c.API.RetryDelay); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings no component could work with.
func (c *Config) Validate() error {
	if c.API.RateCalls <= 0 {
		return fmt.Errorf("rate_limit_calls must be positive, got %d", c.API.RateCalls)
	}
	if c.API.RatePeriod <= 0 {
		return fmt.Errorf("rate_limit_period must be positive, got %s", c.API.RatePeriod)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.API.MaxRetries)
	}
	switch c.Warehouse.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported warehouse driver %q", c.Warehouse.Driver)
	}
	if c.Warehouse.Schema == "" {
		return fmt.Errorf("warehouse schema must not be empty")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("60").
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
