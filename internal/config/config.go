// Package config loads service configuration. Values come from, in order of
// increasing precedence: built-in defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables. A .env file in the working
// directory is loaded into the environment first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	APIToken    string `yaml:"api_token"`
	JWTSecret   string `yaml:"jwt_secret"`
	DBDriver    string `yaml:"db_driver"`
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

func defaults() Config {
	return Config{
		DBDriver:  "sqlite",
		DBPath:    "./devices.db",
		Port:      "8080",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads the configuration and validates it. It returns an error when a
// required value is absent or a value is out of range.
func Load() (*Config, error) {
	// a missing .env is the normal case
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&cfg.APIToken, "API_TOKEN")
	override(&cfg.JWTSecret, "JWT_SECRET")
	override(&cfg.DBDriver, "DB_DRIVER")
	override(&cfg.DBPath, "DB_PATH")
	override(&cfg.DatabaseURL, "DATABASE_URL")
	override(&cfg.Port, "PORT")
	override(&cfg.LogLevel, "LOG_LEVEL")
	override(&cfg.LogFormat, "LOG_FORMAT")
}

func (c *Config) validate() error {
	if c.APIToken == "" && c.JWTSecret == "" {
		return errors.New("API_TOKEN or JWT_SECRET environment variable is required")
	}
	switch c.DBDriver {
	case "sqlite", "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER: unsupported value %q", c.DBDriver)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL: unsupported value %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT: unsupported value %q", c.LogFormat)
	}
	return nil
}

// DSN returns the data source for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}
