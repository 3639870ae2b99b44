package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr              string
	DatabaseURL       string
	RedisAddr         string
	KafkaBrokers      []string
	CompilerBaseURL   string
	CompilerTimeout   time.Duration
	JWTSigningKey     string
	Env               string
	AggregateCacheTTL time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults. Production deployments override every secret-bearing value.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("AEGIS_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("AEGIS_DATABASE_URL"),
		RedisAddr:         envOr("AEGIS_REDIS_ADDR", "localhost:6379"),
		CompilerBaseURL:   envOr("AEGIS_COMPILER_URL", "http://localhost:9090"),
		CompilerTimeout:   durationOr("AEGIS_COMPILER_TIMEOUT", 15*time.Second),
		JWTSigningKey:     envOr("AEGIS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Env:               envOr("AEGIS_ENV", "dev"),
		AggregateCacheTTL: durationOr("AEGIS_AGGREGATE_CACHE_TTL", 30*time.Second),
	}
	if brokers := os.Getenv("AEGIS_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
