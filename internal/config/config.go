package config

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	ServiceName string
	// AppURL is the public site; reminder links point at {AppURL}/conventions/{id}.
	AppURL   string
	Timezone string

	DB        DBConfig
	Redis     RedisConfig
	Platform  PlatformConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	JWT       JWTConfig
	Otel      OtelConfig
	Reminders RemindersConfig
	HTTP      HTTPConfig

	DirectoryCacheTTL time.Duration
}

type DBConfig struct {
	URL      string
	MaxConns int32
	Migrate  bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PlatformConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type StorageConfig struct {
	Driver   string // local | s3
	LocalDir string

	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string
	S3PresignExpire   time.Duration
}

type WorkerConfig struct {
	Concurrency   int
	PollTimeout   time.Duration
	ShutdownGrace time.Duration
	HealthPort    int
}

type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
}

type OtelConfig struct {
	Enabled  bool
	Endpoint string
}

type HTTPConfig struct {
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	// RegisterRateLimit requests per RegisterRateWindow, per caller.
	RegisterRateLimit  int
	RegisterRateWindow time.Duration
}

type RemindersConfig struct {
	PollInterval     time.Duration
	SendTimeout      time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	RetryDelay       time.Duration
	MaxAttempts      int
}

// Load reads the environment, after an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		Port:        getEnvInt("PORT", 8080),
		ServiceName: getEnv("SERVICE_NAME", "conventionhub"),
		AppURL:      getEnv("APP_URL", "http://localhost:3000"),
		Timezone:    getEnv("APP_TIMEZONE", "Europe/Moscow"),
		DB: DBConfig{
			URL:      getEnv("DATABASE_URL", buildDBURL()),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			Migrate:  getEnvBool("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Platform: PlatformConfig{
			BaseURL: getEnv("WEBINAR_API_URL", "https://userapi.webinar.ru/v3"),
			APIKey:  getEnv("WEBINAR_API_KEY", ""),
			Timeout: getEnvDuration("WEBINAR_API_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Driver:            getEnv("STORAGE_DRIVER", "local"),
			LocalDir:          getEnv("STORAGE_LOCAL_DIR", "./var/artifacts"),
			S3Region:          getEnv("AWS_REGION", "us-east-1"),
			S3Bucket:          getEnv("AWS_S3_EXPORTS_BUCKET", ""),
			S3AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			S3PresignExpire:   time.Duration(getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 60)) * time.Minute,
		},
		Worker: WorkerConfig{
			Concurrency:   getEnvInt("WORKER_CONCURRENCY", 4),
			PollTimeout:   getEnvDuration("WORKER_POLL_TIMEOUT", 2*time.Second),
			ShutdownGrace: getEnvDuration("WORKER_SHUTDOWN_GRACE", 10*time.Second),
			HealthPort:    getEnvInt("WORKER_HEALTH_PORT", 8081),
		},
		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", "dev-secret-change-me"),
			AccessTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		},
		Otel: OtelConfig{
			Enabled:  getEnvBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		Reminders: RemindersConfig{
			PollInterval:     getEnvDuration("REMINDERS_POLL_INTERVAL", 30*time.Second),
			SendTimeout:      getEnvDuration("REMINDERS_SEND_TIMEOUT", 5*time.Second),
			FailureThreshold: getEnvInt("REMINDERS_FAILURE_THRESHOLD", 5),
			Cooldown:         getEnvDuration("REMINDERS_COOLDOWN", time.Minute),
			RetryDelay:       getEnvDuration("REMINDERS_RETRY_DELAY", time.Minute),
			MaxAttempts:      getEnvInt("REMINDERS_MAX_ATTEMPTS", 5),
		},
		HTTP: HTTPConfig{
			CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxBodyBytes:       int64(getEnvInt("HTTP_MAX_BODY_BYTES", 1<<20)),
			RegisterRateLimit:  getEnvInt("REGISTER_RATE_LIMIT", 10),
			RegisterRateWindow: getEnvDuration("REGISTER_RATE_WINDOW", time.Minute),
		},
		DirectoryCacheTTL: getEnvDuration("DIRECTORY_CACHE_TTL", 10*time.Minute),
	}
}

// Validate rejects settings the services cannot start with outside dev.
func (c Config) Validate() error {
	var errs []error
	if c.Env != "dev" && c.JWT.Secret == "dev-secret-change-me" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.Platform.APIKey == "" && c.Env != "dev" {
		errs = append(errs, errors.New("WEBINAR_API_KEY must be set"))
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("AWS_S3_EXPORTS_BUCKET must be set for the s3 driver"))
		}
	default:
		errs = append(errs, errors.New("STORAGE_DRIVER must be local or s3"))
	}
	return errors.Join(errs...)
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "conventionhub")
	pass := getEnv("DB_PASSWORD", "conventionhub")
	name := getEnv("DB_NAME", "conventionhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// getEnvDuration accepts Go durations ("30s") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
