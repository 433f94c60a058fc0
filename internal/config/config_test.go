package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	assert.Equal(t, 10*time.Minute, cfg.Cache.ConversationTTL.std())
	assert.Equal(t, 1024, cfg.Metering.Capacity)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  model: gpt-4o
  timeout: 90s
cache:
  backend: badger
  path: /tmp/deskmate-cache
  conversation_ttl: 5m
metering:
  audit_enabled: true
logger:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, 90*time.Second, cfg.Provider.Timeout.std())
	assert.Equal(t, "badger", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ConversationTTL.std())
	assert.True(t, cfg.Metering.AuditEnabled)
	// untouched sections keep their defaults
	assert.Equal(t, 24*time.Hour, cfg.Cache.GenerationTTL.std())
	assert.Equal(t, 2048, cfg.Provider.MaxTokens)
}

func TestLoadAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("DESKMATE_API_KEY", "sk-env")

	path := writeConfig(t, "provider:\n  api_key: sk-file\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Provider.APIKey)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "cache:\n  backend: memcached\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "calendar:\n  backend: rest\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "provider:\n  timeout: soon\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigMappings(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = "sk-test"

	pc := cfg.ProviderConfig()
	assert.Equal(t, "sk-test", pc.APIKey)
	assert.Equal(t, 60*time.Second, pc.Timeout)

	ec := cfg.EngineConfig()
	assert.Equal(t, "gpt-4o-mini", ec.DefaultModel)
	assert.Equal(t, 3, ec.RetryAttempts)
	assert.Equal(t, 10*time.Minute, ec.ConversationTTL)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggerSettings{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}
