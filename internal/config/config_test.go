package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err)
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

storage:
  provider: "s3"
  bucket: "academy-uploads"
  region: "us-west-2"
  cdn_domain: "cdn.example.com"
  max_upload_mb: 25

email:
  provider: "ses"
  region: "us-west-2"
  from_email: "no-reply@example.com"
  timeout_seconds: 45

cache:
  provider: "redis"
  addr: "redis:6379"

store:
  driver: "postgres"
  database_url: "postgres://localhost/academy"

health:
  interval_seconds: 15
  probe_timeout_seconds: 2
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "s3", cfg.Storage.Provider)
	assert.Equal(t, "academy-uploads", cfg.Storage.Bucket)
	assert.Equal(t, "cdn.example.com", cfg.Storage.CDNDomain)
	assert.Equal(t, 25, cfg.Storage.MaxUploadMB)

	assert.Equal(t, "ses", cfg.Email.Provider)
	assert.Equal(t, "no-reply@example.com", cfg.Email.FromEmail)
	assert.Equal(t, 45, cfg.Email.TimeoutSeconds)

	assert.Equal(t, "redis", cfg.Cache.Provider)
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)

	assert.Equal(t, "postgres", cfg.Store.Driver)

	assert.Equal(t, 15, cfg.Health.IntervalSeconds)
	assert.Equal(t, 2, cfg.Health.ProbeTimeoutSeconds)
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 8081
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "./data/uploads", cfg.Storage.LocalPath)
	assert.Equal(t, 50, cfg.Storage.MaxUploadMB)
	assert.Equal(t, "smtp", cfg.Email.Provider)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, 30, cfg.Email.TimeoutSeconds)
	assert.Equal(t, 8, cfg.Email.BatchWorkers)
	assert.Equal(t, "memory", cfg.Cache.Provider)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 30, cfg.Health.IntervalSeconds)
	assert.Equal(t, 3, cfg.Health.ProbeTimeoutSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "server: [not: valid")
	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
storage:
  provider: "local"
email:
  provider: "smtp"
`)

	t.Setenv("STORAGE_PROVIDER", "s3")
	t.Setenv("STORAGE_BUCKET", "env-bucket")
	t.Setenv("EMAIL_PROVIDER", "sparkpost")
	t.Setenv("EMAIL_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_ADDR", "envredis:6379")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.Storage.Provider)
	assert.Equal(t, "env-bucket", cfg.Storage.Bucket)
	assert.Equal(t, "sparkpost", cfg.Email.Provider)
	assert.Equal(t, "sk-test", cfg.Email.APIKey)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://env/db", cfg.Store.DatabaseURL)
	assert.Equal(t, "redis", cfg.Cache.Provider)
	assert.Equal(t, "envredis:6379", cfg.Cache.Addr)
}

func TestTimeoutHelpers(t *testing.T) {
	cfg := EmailConfig{TimeoutSeconds: 45}
	assert.Equal(t, 45, int(cfg.Timeout().Seconds()))

	h := HealthConfig{IntervalSeconds: 15, ProbeTimeoutSeconds: 2}
	assert.Equal(t, 15, int(h.Interval().Seconds()))
	assert.Equal(t, 2, int(h.ProbeTimeout().Seconds()))
}
