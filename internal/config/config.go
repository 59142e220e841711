//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package config loads stockstream's process configuration from the
// environment. Every subcommand constructs its own Config at startup;
// there is no package-level singleton.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-driven setting used across the
// ingest/persist/fanout/serve subcommands.
type Config struct {
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	RedisHost         string
	RedisPort         int
	RedisStreamMaxLen int64

	KafkaBootstrapServers string
	KafkaEnableAutoCommit bool

	AlpacaAPIKey    string
	AlpacaSecretKey string
	AlpacaBaseURL   string

	AllowedOrigins []string

	EODVendorAPIKey  string
	EODVendorBaseURL string
	EODArchiveBucket string

	EODArchiveS3AccessKey string
	EODArchiveS3SecretKey string
	EODArchiveS3Endpoint  string
}

// Load reads Config from the process environment. Callers that need
// .env support should load it (via github.com/joho/godotenv) before
// calling Load, matching the teacher's loadEnv pattern in cmd/root.go.
func Load() (*Config, error) {
	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBName:     getEnv("DB_NAME", "stockstream"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),

		RedisHost: getEnv("REDIS_HOST", "localhost"),

		KafkaBootstrapServers: getEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"),

		AlpacaAPIKey:    os.Getenv("ALPACA_API_KEY"),
		AlpacaSecretKey: os.Getenv("ALPACA_SECRET_KEY"),
		AlpacaBaseURL:   getEnv("ALPACA_BASE_URL", "wss://stream.data.alpaca.markets/v2"),

		EODVendorAPIKey:  os.Getenv("EOD_VENDOR_API_KEY"),
		EODVendorBaseURL: getEnv("EOD_VENDOR_BASE_URL", "https://api.eodvendor.com"),
		EODArchiveBucket: os.Getenv("EOD_ARCHIVE_BUCKET"),

		EODArchiveS3AccessKey: os.Getenv("EOD_ARCHIVE_S3_ACCESS_KEY"),
		EODArchiveS3SecretKey: os.Getenv("EOD_ARCHIVE_S3_SECRET_KEY"),
		EODArchiveS3Endpoint:  os.Getenv("EOD_ARCHIVE_S3_ENDPOINT"),
	}

	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	cfg.DBPort = dbPort

	redisPort, err := getEnvInt("REDIS_PORT", 6379)
	if err != nil {
		return nil, err
	}
	cfg.RedisPort = redisPort

	maxLen, err := getEnvInt64("REDIS_STREAM_MAXLEN", 20000)
	if err != nil {
		return nil, err
	}
	cfg.RedisStreamMaxLen = maxLen

	autoCommit, err := getEnvBool("KAFKA_ENABLE_AUTO_COMMIT", false)
	if err != nil {
		return nil, err
	}
	cfg.KafkaEnableAutoCommit = autoCommit

	cfg.AllowedOrigins = parseCommaSeparated(os.Getenv("ALLOWED_ORIGINS"))

	return cfg, nil
}

// DSN builds a libpq-style connection string for pgx's stdlib driver.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword)
}

// RedisAddr returns the host:port pair go-redis expects.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Masked returns a copy of Config with secrets replaced by a fixed
// placeholder, safe to print from `stockstream config show`.
func (c *Config) Masked() *Config {
	masked := *c
	if masked.DBPassword != "" {
		masked.DBPassword = "********"
	}
	if masked.AlpacaAPIKey != "" {
		masked.AlpacaAPIKey = "********"
	}
	if masked.AlpacaSecretKey != "" {
		masked.AlpacaSecretKey = "********"
	}
	if masked.EODVendorAPIKey != "" {
		masked.EODVendorAPIKey = "********"
	}
	if masked.EODArchiveS3SecretKey != "" {
		masked.EODArchiveS3SecretKey = "********"
	}
	return &masked
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
