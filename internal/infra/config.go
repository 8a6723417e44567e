package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment
// variables. It is read once at process start and passed by reference; no
// core logic re-reads the environment per request.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	StabilityAPIKey  string
	StabilityBaseURL string
	GenerateTimeout  time.Duration

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	MaxImageSizeMB    int
	AllowedImageTypes []string
	MaxImageDimension int
	LogoPath          string
	LogoWidthPercent  int
	LogoPadding       int

	StoragePath    string
	StorageBaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins   []string
	GeoIPDBPath   string
	DefaultLocale string

	MigrationsPath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	RollupInterval time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StabilityAPIKey:  os.Getenv("STABILITY_API_KEY"),
		StabilityBaseURL: getEnv("STABILITY_BASE_URL", "https://api.stability.ai"),
		GenerateTimeout:  time.Second * time.Duration(getEnvInt("GENERATE_TIMEOUT_SECONDS", 30)),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		MaxImageSizeMB:    getEnvInt("MAX_IMAGE_SIZE_MB", 10),
		AllowedImageTypes: getEnvList("ALLOWED_IMAGE_TYPES", []string{"image/jpeg", "image/png", "image/webp"}),
		MaxImageDimension: getEnvInt("MAX_IMAGE_DIMENSION", 1024),
		LogoPath:          os.Getenv("LOGO_PATH"),
		LogoWidthPercent:  getEnvInt("LOGO_WIDTH_PERCENT", 10),
		LogoPadding:       getEnvInt("LOGO_PADDING_PX", 20),

		StoragePath:    getEnv("STORAGE_PATH", "./data"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),

		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 10),

		RollupInterval: time.Minute * time.Duration(getEnvInt("ROLLUP_INTERVAL_MINUTES", 15)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MaxImageSizeMB <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_SIZE_MB must be positive")
	}
	if cfg.MaxImageDimension <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_DIMENSION must be positive")
	}

	return cfg, nil
}

// MaxImageBytes converts the configured megabyte limit to bytes.
func (c *Config) MaxImageBytes() int64 {
	return int64(c.MaxImageSizeMB) << 20
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
