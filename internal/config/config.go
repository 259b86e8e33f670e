package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string

	// RedisAddr is optional; when empty the wake-signal bus is disabled and
	// the system runs on the scheduled poller alone.
	RedisAddr string

	PollSecret    string
	WebhookSecret string
	JWTSecret     string

	AdminEmail    string
	AdminPassword string

	AuditorURL       string
	NotifyWebhookURL string

	ProcessTimeout time.Duration
	MaxRetries     int
	PollInterval   time.Duration

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		RedisAddr:            getenv("REDIS_ADDR", ""),
		PollSecret:           mustGetenv("POLL_SECRET"),
		WebhookSecret:        mustGetenv("WEBHOOK_SECRET"),
		JWTSecret:            mustGetenv("JWT_SECRET"),
		AdminEmail:           getenv("ADMIN_EMAIL", ""),
		AdminPassword:        getenv("ADMIN_PASSWORD", ""),
		AuditorURL:           mustGetenv("AUDITOR_URL"),
		NotifyWebhookURL:     getenv("NOTIFY_WEBHOOK_URL", ""),
		ProcessTimeout:       getenvDuration("PROCESS_TIMEOUT", 5*time.Minute),
		MaxRetries:           getenvInt("MAX_RETRIES", 3),
		PollInterval:         getenvDuration("POLL_INTERVAL", time.Minute),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
