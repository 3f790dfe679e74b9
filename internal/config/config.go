// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	JWTSecret            string
	LogFile              string
	RequestTimeout       time.Duration
	OverdueSweepInterval time.Duration
	KafkaBrokers         []string
	KafkaTopic           string
	KafkaGroup           string
	RedisAddr            string
	ServiceName          string
	AdminEmail           string
	CORSOrigins          []string
}

// Production reports whether internal error details must be hidden.
func (c Config) Production() bool {
	return c.Env == "production"
}

// Load reads a .env file if one exists, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment with defaults for anything unset.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:          getenv("APP_ENV", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:  getenv("DATABASE_URL", "gudang.sqlite3"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		LogFile:      os.Getenv("LOG_FILE"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "gudang.events"),
		KafkaGroup:   getenv("KAFKA_GROUP", "gudang-notifier"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		ServiceName:  getenv("SERVICE_NAME", "gudang"),
		AdminEmail:   getenv("ADMIN_EMAIL", "admin@gudang.local"),
		CORSOrigins:  splitCSV(getenv("CORS_ORIGINS", "*")),
	}

	var err error
	if cfg.RequestTimeout, err = duration("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OverdueSweepInterval, err = duration("OVERDUE_SWEEP_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func duration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", k, v)
	}
	return d, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
