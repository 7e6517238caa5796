package config

import (
	"os"
	"strconv"
)

type Config struct {
	AppPort       string
	DBDSN         string
	JWTSecret     string
	JWTExpiresMin int

	RedisAddr     string
	RedisPassword string

	StripeSecretKey     string
	StripeWebhookSecret string

	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string

	UploadDir string
	LogLevel  string
	LogFile   string
}

func Load() Config {
	expires, _ := strconv.Atoi(get("JWT_EXPIRES_MIN", "10080"))
	return Config{
		AppPort:       get("APP_PORT", "8080"),
		DBDSN:         must("DB_DSN"),
		JWTSecret:     must("JWT_SECRET"),
		JWTExpiresMin: expires,

		RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
		RedisPassword: get("REDIS_PASSWORD", ""),

		StripeSecretKey:     get("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: get("STRIPE_WEBHOOK_SECRET", ""),

		GoogleClientID:  get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:    get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirect:  get("GOOGLE_REDIRECT_URL", ""),
		FrontendBaseURL: get("FRONTEND_BASE_URL", "http://localhost:5173"),

		UploadDir: get("UPLOAD_DIR", "./uploads"),
		LogLevel:  get("LOG_LEVEL", "info"),
		LogFile:   get("LOG_FILE", ""),
	}
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
