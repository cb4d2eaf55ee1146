package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")

	cfg := Load()

	if cfg.Env != "dev" || cfg.Port != 8080 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DB.URL != "postgres://conventionhub:conventionhub@db:5432/conventionhub?sslmode=disable" {
		t.Fatalf("unexpected db url %q", cfg.DB.URL)
	}
	if cfg.Platform.Timeout != 30*time.Second {
		t.Fatalf("unexpected platform timeout %v", cfg.Platform.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dev defaults should validate: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("WEBINAR_API_TIMEOUT", "5")
	t.Setenv("REMINDERS_POLL_INTERVAL", "250ms")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("PORT", "not-a-number")

	cfg := Load()

	if cfg.Worker.Concurrency != 8 {
		t.Fatalf("concurrency = %d", cfg.Worker.Concurrency)
	}
	if cfg.Platform.Timeout != 5*time.Second {
		t.Fatalf("plain seconds not parsed: %v", cfg.Platform.Timeout)
	}
	if cfg.Reminders.PollInterval != 250*time.Millisecond {
		t.Fatalf("duration not parsed: %v", cfg.Reminders.PollInterval)
	}
	if !cfg.Otel.Enabled {
		t.Fatal("otel not enabled")
	}
	if cfg.Port != 8080 {
		t.Fatalf("bad int should fall back, got %d", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("WEBINAR_API_KEY", "")
	t.Setenv("AWS_S3_EXPORTS_BUCKET", "")

	if err := Load().Validate(); err == nil {
		t.Fatal("expected validation errors")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("WEBINAR_API_KEY", "key")
	t.Setenv("AWS_S3_EXPORTS_BUCKET", "exports")
	if err := Load().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocation(t *testing.T) {
	if loc := (Config{Timezone: "Nowhere/Invalid"}).Location(); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", loc)
	}
}

func TestLoad_CORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()

	got := cfg.HTTP.CORSAllowedOrigins
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("origins = %q", got)
	}
}
