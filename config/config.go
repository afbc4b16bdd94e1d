package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Spoonacular SpoonacularConfig `mapstructure:"spoonacular"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Favorites   FavoritesConfig   `mapstructure:"favorites"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SpoonacularConfig holds recipe catalog API configuration
type SpoonacularConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// CacheConfig holds the freshness window of each catalog query
type CacheConfig struct {
	SearchTTL  time.Duration `mapstructure:"search_ttl"`
	DetailsTTL time.Duration `mapstructure:"details_ttl"`
	RandomTTL  time.Duration `mapstructure:"random_ttl"`
}

// StorageConfig selects the key-value backend
type StorageConfig struct {
	Type     string `mapstructure:"type"` // "memory", "file", "sqlite" or "redis"
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
}

// FavoritesConfig holds favorites persistence options
type FavoritesConfig struct {
	DeleteLegacyAfterMigration bool `mapstructure:"delete_legacy_after_migration"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP       int `mapstructure:"per_ip"`      // inbound, per minute
	Spoonacular int `mapstructure:"spoonacular"` // outbound, per hour
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

var storageTypes = []string{"memory", "file", "sqlite", "redis"}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/recipebox/")

	// Environment variable settings: server.port <- RECIPEBOX_SERVER_PORT
	v.SetEnvPrefix("RECIPEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env into the process environment when present.
// Variables that are already set are not overridden.
func loadEnvFile() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	// Catalog defaults; the key has no default but must be known for env binding
	v.SetDefault("spoonacular.api_key", "")
	v.SetDefault("spoonacular.base_url", "https://api.spoonacular.com/recipes")
	v.SetDefault("spoonacular.timeout", "15s")
	v.SetDefault("spoonacular.max_retries", 3)

	// Cache defaults
	v.SetDefault("cache.search_ttl", "1h")
	v.SetDefault("cache.details_ttl", "24h")
	v.SetDefault("cache.random_ttl", "10m")

	// Storage defaults; an empty path picks the backend's default location
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.redis_url", "")

	v.SetDefault("favorites.delete_legacy_after_migration", false)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)
	v.SetDefault("ratelimit.spoonacular", 150)

	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Spoonacular.APIKey == "" {
		return fmt.Errorf("Spoonacular API key is required (set RECIPEBOX_SPOONACULAR_API_KEY)")
	}

	if !slices.Contains(storageTypes, config.Storage.Type) {
		return fmt.Errorf("storage type must be one of %s, got: %s", strings.Join(storageTypes, ", "), config.Storage.Type)
	}

	if config.Storage.Type == "redis" && config.Storage.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when storage type is 'redis'")
	}

	ttls := map[string]time.Duration{
		"cache.search_ttl":  config.Cache.SearchTTL,
		"cache.details_ttl": config.Cache.DetailsTTL,
		"cache.random_ttl":  config.Cache.RandomTTL,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive, got: %s", name, ttl)
		}
	}

	return nil
}
