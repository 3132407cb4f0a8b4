package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, 20, cfg.Agent.WindowTurns)
	assert.Equal(t, 50, cfg.Agent.HistoryLimit)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout.Std())
	assert.Equal(t, "wads.db", cfg.Store.Path)
	assert.Equal(t, ":8950", cfg.Channels.Twilio.ListenAddr)
	assert.False(t, cfg.Tracer.Enabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().LLM.Model, cfg.LLM.Model)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  max_iterations: 5
llm:
  model: test-model
  api_key: sk-test
  timeout: 90s
  circuit_breaker:
    timeout: 45s
    interval: 2m
media:
  radarr:
    url: http://radarr:7878
    api_key: rk
  routing:
    quality_hint: 1080p
    anime_folder_hint: anime
    cmovies_folder_hint: cmovies
channels:
  telegram:
    token: tg-token
admin:
  phone: "+15550009999"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout.Std())
	assert.Equal(t, 45*time.Second, cfg.LLM.CircuitBreaker.Timeout.Std())
	assert.Equal(t, 2*time.Minute, cfg.LLM.CircuitBreaker.Interval.Std())
	assert.Equal(t, "http://radarr:7878", cfg.Media.Radarr.URL)
	assert.True(t, cfg.Media.Radarr.Configured())
	assert.False(t, cfg.Media.Sonarr.Configured())
	assert.Equal(t, "anime", cfg.Media.Routing.AnimeHint)
	assert.Equal(t, "tg-token", cfg.Channels.Telegram.Token)
	assert.Equal(t, "+15550009999", cfg.Admin.Phone)
	// Untouched sections keep their defaults.
	assert.Equal(t, 20, cfg.Agent.WindowTurns)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  timeout: fast\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WADS_LLM_API_KEY", "sk-env")
	t.Setenv("WADS_SONARR_URL", "http://sonarr:8989")
	t.Setenv("WADS_ADMIN_TELEGRAM_CHAT_ID", "4242")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "http://sonarr:8989", cfg.Media.Sonarr.URL)
	assert.Equal(t, "4242", cfg.Admin.TelegramChatID)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))

	cfg.Agent.HistoryLimit = 5 // below the window size
	assert.Error(t, Validate(cfg))

	cfg = Defaults()
	cfg.LLM.Model = ""
	assert.Error(t, Validate(cfg))

	cfg = Defaults()
	cfg.Logger.Format = "xml"
	assert.Error(t, Validate(cfg))
}
