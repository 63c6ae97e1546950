package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort string

	// StoreDriver selects the account store: sqlite, postgres, mysql or mongo
	StoreDriver   string
	DatabasePath  string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	StoreTimeout  time.Duration

	// Timezone decides which calendar day an answer counts towards
	Timezone string
	MinAge   int
	MaxAge   int

	// MaxPoints caps the points one correct answer may award
	MaxPoints int

	// SupportGatePassword enables the shared-password bulk account view when non-empty
	SupportGatePassword string

	RedisURL        string
	LoginRateLimit  int
	LoginRateWindow time.Duration
	CORSOrigin      string
}

// fileConfig mirrors Config for the optional YAML file. Every field is
// optional; environment variables win over file values.
type fileConfig struct {
	Port  string `yaml:"port"`
	Store struct {
		Driver        string `yaml:"driver"`
		Path          string `yaml:"path"`
		URL           string `yaml:"url"`
		MongoURI      string `yaml:"mongo_uri"`
		MongoDatabase string `yaml:"mongo_database"`
		Timeout       string `yaml:"timeout"`
	} `yaml:"store"`
	Timezone string `yaml:"timezone"`
	Age      struct {
		Min int `yaml:"min"`
		Max int `yaml:"max"`
	} `yaml:"age"`
	MaxPoints           int    `yaml:"max_points"`
	SupportGatePassword string `yaml:"support_gate_password"`
	RateLimit           struct {
		RedisURL string `yaml:"redis_url"`
		Requests int    `yaml:"requests"`
		Window   string `yaml:"window"`
	} `yaml:"rate_limit"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present, and
// CONFIG_FILE may point at a YAML file supplying defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var file fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ServerPort:          getEnv("PORT", orDefault(file.Port, "8080")),
		StoreDriver:         getEnv("STORE_DRIVER", orDefault(file.Store.Driver, "sqlite")),
		DatabasePath:        getEnv("DB_PATH", orDefault(file.Store.Path, "./mathquest.db")),
		DatabaseURL:         getEnv("DATABASE_URL", file.Store.URL),
		MongoURI:            getEnv("MONGO_URI", orDefault(file.Store.MongoURI, "mongodb://localhost:27017")),
		MongoDatabase:       getEnv("MONGO_DATABASE", orDefault(file.Store.MongoDatabase, "MathGameDB")),
		Timezone:            getEnv("TIMEZONE", orDefault(file.Timezone, "UTC")),
		SupportGatePassword: getEnv("SUPPORT_GATE_PASSWORD", file.SupportGatePassword),
		RedisURL:            getEnv("REDIS_URL", file.RateLimit.RedisURL),
		CORSOrigin:          getEnv("CORS_ORIGIN", orDefault(file.CORSOrigin, "*")),
	}

	var err error
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", orDefault(file.Store.Timeout, "5s")); err != nil {
		return nil, err
	}
	if cfg.LoginRateWindow, err = getDuration("LOGIN_RATE_WINDOW", orDefault(file.RateLimit.Window, "1m")); err != nil {
		return nil, err
	}
	if cfg.MinAge, err = getInt("MIN_AGE", orDefaultInt(file.Age.Min, 1)); err != nil {
		return nil, err
	}
	if cfg.MaxAge, err = getInt("MAX_AGE", orDefaultInt(file.Age.Max, 120)); err != nil {
		return nil, err
	}
	if cfg.LoginRateLimit, err = getInt("LOGIN_RATE_LIMIT", orDefaultInt(file.RateLimit.Requests, 10)); err != nil {
		return nil, err
	}
	if cfg.MaxPoints, err = getInt("MAX_POINTS", orDefaultInt(file.MaxPoints, 5)); err != nil {
		return nil, err
	}

	if cfg.MinAge < 0 || cfg.MaxAge < cfg.MinAge {
		return nil, fmt.Errorf("invalid age range %d..%d", cfg.MinAge, cfg.MaxAge)
	}
	if cfg.LoginRateWindow <= 0 {
		return nil, fmt.Errorf("LOGIN_RATE_WINDOW must be positive, got %s", cfg.LoginRateWindow)
	}
	if cfg.LoginRateLimit <= 0 {
		return nil, fmt.Errorf("LOGIN_RATE_LIMIT must be positive, got %d", cfg.LoginRateLimit)
	}
	if cfg.MaxPoints <= 0 {
		return nil, fmt.Errorf("MAX_POINTS must be positive, got %d", cfg.MaxPoints)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves the configured time zone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func orDefaultInt(value, defaultValue int) int {
	if value != 0 {
		return value
	}
	return defaultValue
}
