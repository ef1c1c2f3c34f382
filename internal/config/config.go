package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string
	LogJSON  bool

	// Remote attendance API.
	APIURL     string
	APITimeout time.Duration

	// Capture loop and camera source. CameraCommand wins over CameraDir.
	CaptureInterval time.Duration
	CameraCommand   string
	CameraDir       string
	CameraMaxAge    time.Duration

	// Local journal; empty DatabaseURL disables it.
	DatabaseURL        string
	JournalDedupWindow time.Duration
	RedisAddr          string
	QueueBackend       string

	JWTIssuer     string
	JWTSigningKey string
	OperatorTTL   time.Duration

	RateLimitPerMin int
	CORSOrigins     []string
}

// Load returns application config populated from environment variables with
// sensible defaults. A .env file in the working directory is read first when
// present; real environment variables take precedence over it.
func Load() App {
	_ = godotenv.Load()

	return App{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPPort:           getEnv("HTTP_PORT", "8081"),
		LogJSON:            boolEnv("LOG_JSON", false),
		APIURL:             strings.TrimRight(getEnv("API_URL", "http://localhost:8000"), "/"),
		APITimeout:         durationEnv("API_TIMEOUT", 30*time.Second),
		CaptureInterval:    durationEnv("CAPTURE_INTERVAL", 5*time.Second),
		CameraCommand:      getEnv("CAMERA_COMMAND", ""),
		CameraDir:          getEnv("CAMERA_DIR", ""),
		CameraMaxAge:       durationEnv("CAMERA_MAX_AGE", 10*time.Second),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JournalDedupWindow: durationEnv("JOURNAL_DEDUP_WINDOW", 5*time.Minute),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		QueueBackend:       getEnv("QUEUE_BACKEND", "memory"),
		JWTIssuer:          getEnv("JWT_ISSUER", "attendance-kiosk"),
		JWTSigningKey:      getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		OperatorTTL:        durationEnv("OPERATOR_TTL", 12*time.Hour),
		RateLimitPerMin:    intEnv("RATE_LIMIT_PER_MIN", 120),
		CORSOrigins:        listEnv("CORS_ORIGINS", []string{"*"}),
	}
}

// Production reports whether the kiosk runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// Logger builds the process logger: JSON in production or when LOG_JSON is
// set, text otherwise.
func (a App) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if a.Env == "dev" {
		opts.Level = slog.LevelDebug
	}
	if a.LogJSON || a.Production() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Validate rejects settings the kiosk cannot run with.
func (a App) Validate() error {
	if a.APIURL == "" {
		return fmt.Errorf("API_URL is required")
	}
	if a.CaptureInterval <= 0 {
		return fmt.Errorf("CAPTURE_INTERVAL must be positive, got %s", a.CaptureInterval)
	}
	if a.QueueBackend != "memory" && a.QueueBackend != "redis" {
		return fmt.Errorf("QUEUE_BACKEND must be memory or redis, got %q", a.QueueBackend)
	}
	if a.Production() && a.JWTSigningKey == "dev-signing-secret-change" {
		return fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			slog.Warn("invalid duration, using fallback", "key", key, "error", err, "fallback", fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		slog.Warn("invalid bool, using fallback", "key", key, "fallback", fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		slog.Warn("invalid int, using fallback", "key", key, "fallback", fallback)
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
