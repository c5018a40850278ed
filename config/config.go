package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"drinklog/models"
)

// Sink names accepted by SINK.
const (
	SinkNone     = "none"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	RawInputPath string
	CleanPath    string
	EnrichedPath string
	ResultsDir   string
	RulesPath    string

	DefaultYear int
	DatePolicy  models.DatePolicy
	PricePolicy models.PricePolicy
	LogLevel    string

	PieThreshold float64
	TopPlaces    int
	TopDays      int
	MapScale     float64

	Sink             string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	SnapshotEnabled     bool
	SnapshotConcurrency int
	SnapshotRateLimitMs int
	MaxRetries          int
	ChromeBin           string
	ChartAssetsHost     string

	ServeAddr string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		RawInputPath: getEnv("RAW_INPUT_PATH", "./data/alcohol_raw.csv"),
		CleanPath:    getEnv("CLEAN_PATH", "./data/alcohol_clean.csv"),
		EnrichedPath: getEnv("ENRICHED_PATH", "./data/alcohol_enriched.csv"),
		ResultsDir:   getEnv("RESULTS_DIR", "./results"),
		RulesPath:    getEnv("RULES_PATH", ""),

		DefaultYear: getEnvInt("DEFAULT_YEAR", 2025),
		DatePolicy:  models.DatePolicy(strings.ToLower(getEnv("DATE_POLICY", string(models.DatePolicyKeep)))),
		PricePolicy: models.PricePolicy(strings.ToLower(getEnv("PRICE_POLICY", string(models.PricePolicyFail)))),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		PieThreshold: getEnvFloat("PIE_THRESHOLD", 0.02),
		TopPlaces:    getEnvInt("TOP_PLACES", 15),
		TopDays:      getEnvInt("TOP_DAYS", 10),
		MapScale:     getEnvFloat("MAP_SCALE", 300),

		Sink:             strings.ToLower(getEnv("SINK", SinkNone)),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "drinklog"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "drinklog"),
		PostgresDB:       getEnv("POSTGRES_DB", "drinklog"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/drinklog.sqlite"),

		SnapshotEnabled:     getEnvBool("SNAPSHOT_ENABLED", true),
		SnapshotConcurrency: getEnvInt("SNAPSHOT_CONCURRENCY", 2),
		SnapshotRateLimitMs: getEnvInt("SNAPSHOT_RATE_LIMIT_MS", 0),
		MaxRetries:          getEnvInt("MAX_RETRIES", 3),
		ChromeBin:           getEnv("CHROME_BIN", ""),
		ChartAssetsHost:     getEnv("CHART_ASSETS_HOST", "https://go-echarts.github.io/go-echarts-assets/assets/"),

		ServeAddr: getEnv("SERVE_ADDR", ":8080"),
	}
}

// Validate rejects settings that would make the pipeline misbehave: unknown
// policies or sinks, and stages sharing an output file.
func (c *Config) Validate() error {
	var errs []error

	switch c.DatePolicy {
	case models.DatePolicyKeep, models.DatePolicyFail:
	default:
		errs = append(errs, fmt.Errorf("DATE_POLICY: unknown value %q", c.DatePolicy))
	}
	switch c.PricePolicy {
	case models.PricePolicyFail, models.PricePolicyZero:
	default:
		errs = append(errs, fmt.Errorf("PRICE_POLICY: unknown value %q", c.PricePolicy))
	}
	switch c.Sink {
	case SinkNone, SinkPostgres, SinkSQLite:
	default:
		errs = append(errs, fmt.Errorf("SINK: unknown value %q", c.Sink))
	}

	if c.DefaultYear < 1 {
		errs = append(errs, fmt.Errorf("DEFAULT_YEAR: %d is not a valid year", c.DefaultYear))
	}
	if c.PieThreshold < 0 || c.PieThreshold >= 1 {
		errs = append(errs, fmt.Errorf("PIE_THRESHOLD: %v outside [0, 1)", c.PieThreshold))
	}
	if c.SnapshotConcurrency < 1 {
		errs = append(errs, errors.New("SNAPSHOT_CONCURRENCY: must be at least 1"))
	}

	paths := map[string]string{}
	for name, p := range map[string]string{
		"RAW_INPUT_PATH": c.RawInputPath,
		"CLEAN_PATH":     c.CleanPath,
		"ENRICHED_PATH":  c.EnrichedPath,
	} {
		if p == "" {
			errs = append(errs, fmt.Errorf("%s: must not be empty", name))
			continue
		}
		key := filepath.Clean(p)
		if other, dup := paths[key]; dup {
			errs = append(errs, fmt.Errorf("%s and %s point at the same file %s", other, name, key))
			continue
		}
		paths[key] = name
	}

	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
