package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server reads from the environment.
type Config struct {
	ListenAddr    string
	DatabaseURL   string
	JWTSecret     string
	WebhookSecret string

	// Base URL prepended to invite tokens when building shareable links,
	// e.g. https://app.example.com
	InviteBaseURL string

	// Redis is optional; an empty addr disables rate limiting.
	RedisAddr     string
	RedisPassword string
	RateLimitMax  int
	RateLimitWin  time.Duration
}

// Load reads the environment into a Config. The JWT secret is the only
// hard requirement; everything else has a workable default.
func Load() (*Config, error) {
	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}

	cfg := &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		DatabaseURL:   buildDatabaseURL(),
		JWTSecret:     jwtSecret,
		WebhookSecret: strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		InviteBaseURL: getEnv("INVITE_BASE_URL", "http://localhost:8080"),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RateLimitMax:  getEnvInt("RATE_LIMIT_MAX", 5),
		RateLimitWin:  time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 120)) * time.Second,
	}
	return cfg, nil
}

func buildDatabaseURL() string {
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		return url
	}
	user := strings.TrimSpace(os.Getenv("user"))
	pass := strings.TrimSpace(os.Getenv("password"))
	host := strings.TrimSpace(os.Getenv("host"))
	port := strings.TrimSpace(os.Getenv("port"))
	name := strings.TrimSpace(os.Getenv("dbname"))
	sslmode := getEnv("sslmode", "require")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, name, sslmode)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
