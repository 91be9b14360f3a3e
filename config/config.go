// config/config.go - Environment driven settings for the portal gateway and CLI
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Environment string
	Port        string

	// Backend API
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Session / role guard
	JWTSecret  string // optional, signature is only verified when set
	LoginPath  string
	LandingURL string

	// Token storage; empty RedisURL keeps tokens in memory
	RedisURL string

	// Geolocation
	GeocoderURL        string
	GeolocationTimeout time.Duration
	DefaultLatitude    float64
	DefaultLongitude   float64

	// Workflow settings
	AssignConcurrency int
	ViewIdleTTL       time.Duration

	// Passive realtime feeds
	RealtimeEnabled bool
	SocketURL       string
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8090"),

		APIBaseURL:  strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:3000"), "/"),
		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 15*time.Second),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		LoginPath:  getEnv("LOGIN_PATH", "/login"),
		LandingURL: getEnv("LANDING_URL", "http://localhost:8080/"),

		RedisURL: getEnv("REDIS_URL", ""),

		GeocoderURL:        strings.TrimRight(getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"), "/"),
		GeolocationTimeout: getEnvAsDuration("GEOLOCATION_TIMEOUT", 10*time.Second),
		DefaultLatitude:    getEnvAsFloat("DEFAULT_LATITUDE", 0),
		DefaultLongitude:   getEnvAsFloat("DEFAULT_LONGITUDE", 0),

		AssignConcurrency: getEnvAsInt("ASSIGN_CONCURRENCY", 4),
		ViewIdleTTL:       getEnvAsDuration("VIEW_IDLE_TTL", 30*time.Minute),

		RealtimeEnabled: getEnvAsBool("REALTIME_ENABLED", true),
		SocketURL:       getEnv("SOCKET_URL", ""),
	}
}

// IsDevelopment reports whether verbose logging and gin debug mode apply.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// InitRedis returns nil when no Redis URL is configured.
func InitRedis(cfg *Config) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logrus.Warnf("Invalid REDIS_URL %q, falling back to localhost: %v", cfg.RedisURL, err)
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	return redis.NewClient(opt)
}

func getEnv(key, defaultValue string) string {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
