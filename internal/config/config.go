package config

import (
	"os"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/yaml.v3"

	"rollbook/internal/attendance"
)

var logger = loggo.GetLogger("rollbook.config")

// App holds the runtime configuration loaded from environment variables and
// an optional YAML file.
type App struct {
	Env             string            `yaml:"env"`
	HTTPPort        string            `yaml:"http_port"`
	DBDriver        string            `yaml:"db_driver"`
	DatabaseURL     string            `yaml:"database_url"`
	RedisAddr       string            `yaml:"redis_addr"`
	CacheTTL        time.Duration     `yaml:"cache_ttl"`
	RateLimitPerMin int               `yaml:"rate_limit_per_min"`
	RateLimitBurst  int               `yaml:"rate_limit_burst"`
	LogLevel        string            `yaml:"log_level"`
	Cohort          attendance.Cohort `yaml:"cohort"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() App {
	return App{
		Env:             "dev",
		HTTPPort:        "8081",
		DBDriver:        "sqlite3",
		DatabaseURL:     "attendance_batch.db",
		CacheTTL:        10 * time.Minute,
		RateLimitPerMin: 120,
		LogLevel:        "<root>=INFO",
		Cohort:          attendance.DefaultCohort,
	}
}

// Load returns application config: defaults, overlaid by the YAML file named
// in ROLLBOOK_CONFIG, overlaid by environment variables.
func Load() (App, error) {
	cfg := Defaults()
	if path := os.Getenv("ROLLBOOK_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return App{}, errors.Trace(err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (a *App) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Annotatef(err, "reading config file %q", path)
	}
	if err := yaml.Unmarshal(data, a); err != nil {
		return errors.Annotatef(err, "parsing config file %q", path)
	}
	return nil
}

func (a *App) applyEnv() {
	a.Env = getEnv("APP_ENV", a.Env)
	a.HTTPPort = getEnv("HTTP_PORT", a.HTTPPort)
	a.DBDriver = getEnv("DB_DRIVER", a.DBDriver)
	a.DatabaseURL = getEnv("DATABASE_URL", a.DatabaseURL)
	a.RedisAddr = getEnv("REDIS_ADDR", a.RedisAddr)
	a.CacheTTL = durationEnv("CACHE_TTL", a.CacheTTL)
	a.RateLimitPerMin = intEnv("RATE_LIMIT_PER_MIN", a.RateLimitPerMin)
	a.RateLimitBurst = intEnv("RATE_LIMIT_BURST", a.RateLimitBurst)
	a.LogLevel = getEnv("LOG_LEVEL", a.LogLevel)
	a.Cohort.Batch = getEnv("BATCH", a.Cohort.Batch)
	a.Cohort.Department = getEnv("DEPARTMENT", a.Cohort.Department)
}

// Production reports whether the app runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			logger.Warningf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			logger.Warningf("invalid int for %s, using fallback %d", key, fallback)
			return fallback
		}
		return parsed
	}
	return fallback
}
