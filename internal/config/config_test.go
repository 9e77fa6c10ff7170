package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
env: prod
http:
  addr: ":9090"
  read_timeout: 15s
auth:
  jwt_access_ttl: 2h
payments:
  queue: custom_payments
upload:
  max_size_bytes: 1048576
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Env != "prod" {
		t.Fatalf("unexpected env: %s", cfg.Env)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected read timeout: %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Auth.JWTAccessTTL != 2*time.Hour {
		t.Fatalf("unexpected access ttl: %s", cfg.Auth.JWTAccessTTL)
	}
	if cfg.Payments.Queue != "custom_payments" {
		t.Fatalf("unexpected payments queue: %s", cfg.Payments.Queue)
	}
	if cfg.Upload.MaxSizeBytes != 1048576 {
		t.Fatalf("unexpected upload limit: %d", cfg.Upload.MaxSizeBytes)
	}

	if cfg.HTTP.WriteTimeout != 10*time.Second {
		t.Fatalf("write timeout default should stay 10s")
	}
	if cfg.Payments.OnError != "drop" {
		t.Fatalf("payments.on_error default should stay drop, got %s", cfg.Payments.OnError)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected redis addr default: %s", cfg.Redis.Addr)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Payments.Queue != "payment_requests_queue" {
		t.Fatalf("unexpected default payments queue: %s", cfg.Payments.Queue)
	}
	if cfg.Auth.RefreshTTL != 720*time.Hour {
		t.Fatalf("unexpected default refresh ttl: %s", cfg.Auth.RefreshTTL)
	}
	if cfg.Upload.MaxSizeBytes != 500*1024*1024 {
		t.Fatalf("unexpected default upload limit: %d", cfg.Upload.MaxSizeBytes)
	}
	if cfg.RabbitMQ.ConnectAttempts != 5 {
		t.Fatalf("unexpected default connect attempts: %d", cfg.RabbitMQ.ConnectAttempts)
	}
}

func TestLoadEnvOverridesWinOverYAML(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PAYMENTS_QUEUE", "env_queue")
	t.Setenv("REDIS_DB", "3")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
payments:
  queue: yaml_queue
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Payments.Queue != "env_queue" {
		t.Fatalf("env override should win, got %s", cfg.Payments.Queue)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("unexpected redis db: %d", cfg.Redis.DB)
	}
}

func TestLoadRejectsUnknownFailurePolicy(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PAYMENTS_ON_ERROR", "retry_forever")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for unknown payments.on_error")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_USE_SSL",
		"RABBITMQ_URL",
		"RABBITMQ_CONNECT_ATTEMPTS",
		"RABBITMQ_CONNECT_DELAY",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"REFRESH_TTL",
		"PAYMENTS_QUEUE",
		"PAYMENTS_ON_ERROR",
		"UPLOAD_MAX_SIZE_BYTES",
	} {
		t.Setenv(key, "")
	}
}
