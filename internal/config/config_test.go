package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

database:
  url: "postgres://localhost/mailjobs?sslmode=disable"
  max_open_conns: 10

dispatch:
  inter_send_delay_ms: 250
  smtp_host: "smtp.example.com"
  smtp_port: 2525
  smtp_timeout_seconds: 10

profiles:
  dir: "./test-profiles"
  refresh_seconds: 5
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres://localhost/mailjobs?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 250, cfg.Dispatch.InterSendDelayMs)
	assert.Equal(t, "smtp.example.com", cfg.Dispatch.SMTPHost)
	assert.Equal(t, 2525, cfg.Dispatch.SMTPPort)
	assert.Equal(t, "./test-profiles", cfg.Profiles.Dir)

	// An explicit port must not turn STARTTLS off.
	assert.False(t, cfg.Dispatch.SMTPDisableTLS)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 0\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 1000, cfg.Dispatch.InterSendDelayMs)
	assert.Equal(t, "smtp.gmail.com", cfg.Dispatch.SMTPHost)
	assert.Equal(t, 587, cfg.Dispatch.SMTPPort)
	assert.False(t, cfg.Dispatch.SMTPDisableTLS)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("database:\n  url: \"postgres://file/db\"\n"), 0644))

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("SMTP_HOST", "relay.example.com")
	t.Setenv("SMTP_PORT", "465")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "relay.example.com", cfg.Dispatch.SMTPHost)
	assert.Equal(t, 465, cfg.Dispatch.SMTPPort)
}

func TestDispatchDurations(t *testing.T) {
	cfg := DispatchConfig{InterSendDelayMs: 1000, SMTPTimeoutSecs: 30, DNSTimeoutSecs: 5}
	assert.Equal(t, "1s", cfg.InterSendDelay().String())
	assert.Equal(t, "30s", cfg.SMTPTimeout().String())
	assert.Equal(t, "5s", cfg.DNSTimeout().String())
}
