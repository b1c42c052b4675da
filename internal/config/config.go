package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ErrEnvFileNotFound is returned when the .env file is not found
	ErrEnvFileNotFound = errors.New(".env file not found")

	// loadOnce ensures .env is loaded only once
	loadOnce sync.Once

	// loadErr keeps the result of the first load for later callers
	loadErr error
)

// LoadEnv loads environment variables from the .env file.
// Variables already present in the environment are not overridden.
func LoadEnv() error {
	loadOnce.Do(func() {
		loadErr = loadEnvFile(".env")
	})
	return loadErr
}

func loadEnvFile(filename string) error {
	if _, err := os.Stat(filename); err != nil {
		if os.IsNotExist(err) {
			return ErrEnvFileNotFound
		}
		return fmt.Errorf("error opening .env file: %w", err)
	}

	if err := godotenv.Load(filename); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}
	return nil
}

// Get retrieves an environment variable with a fallback value
func Get(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// MustGet retrieves an environment variable or panics if it's not set
func MustGet(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// GetInt retrieves an integer environment variable with a fallback value
func GetInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if result, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return fallback
}

// GetFloat retrieves a floating point environment variable with a fallback value
func GetFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if result, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return result
		}
	}
	return fallback
}

// GetDuration retrieves a duration such as "30s" or "10m" with a fallback value
func GetDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if result, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return fallback
}

// GetList splits a comma-separated variable, dropping empty entries
func GetList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetBool retrieves a boolean environment variable with a fallback value
func GetBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		value = strings.ToLower(value)
		if value == "true" || value == "1" || value == "yes" || value == "y" {
			return true
		}
		if value == "false" || value == "0" || value == "no" || value == "n" {
			return false
		}
	}
	return fallback
}

// Config holds the settings of the dispatch service
type Config struct {
	Port    string
	GinMode string

	// DatabaseURL selects the Postgres store; empty keeps cases and hospitals in memory
	DatabaseURL string

	// RedisAddr enables the snapshot cache when set
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotKey   string
	SnapshotTTL   time.Duration

	// StatusTTL bounds how long a hospital overlay is served from memory
	StatusTTL time.Duration

	// RefreshSchedule is a cron spec for periodic recomputation
	RefreshSchedule  string
	HospitalSeedFile string
	APITimeout       time.Duration

	// CORSAllowedOrigins is read from a comma-separated list; empty allows any origin
	CORSAllowedOrigins []string
}

// Load reads the service configuration from the environment
func Load() Config {
	return Config{
		Port:             Get("PORT", "8080"),
		GinMode:          Get("GIN_MODE", "release"),
		DatabaseURL:      Get("DATABASE_URL", ""),
		RedisAddr:        Get("REDIS_ADDR", ""),
		RedisPassword:    Get("REDIS_PASSWORD", ""),
		RedisDB:          GetInt("REDIS_DB", 0),
		SnapshotKey:      Get("SNAPSHOT_KEY", "dispatch:snapshot"),
		SnapshotTTL:      GetDuration("SNAPSHOT_TTL", 10*time.Minute),
		StatusTTL:        GetDuration("STATUS_CACHE_TTL", time.Minute),
		RefreshSchedule:  Get("REFRESH_SCHEDULE", "@every 30s"),
		HospitalSeedFile: Get("HOSPITAL_SEED_FILE", ""),
		APITimeout:       time.Duration(GetInt("API_TIMEOUT_SECONDS", 30)) * time.Second,

		CORSAllowedOrigins: GetList("CORS_ALLOWED_ORIGINS"),
	}
}
