package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Persist.Std())
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Notify.Std())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Std())
	assert.True(t, cfg.Auth.SchedulingRequiresAuth())
	assert.False(t, cfg.Mail.Configured())
	assert.Equal(t, "Dropbox Draughtsman", cfg.Mail.FromName)
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte(`
server:
  addr: ":9000"
auth:
  require_for_scheduling: false
timeouts:
  notify: 5s
webhooks:
  - url: http://example.test/hook
    events: [record.created]
`))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.False(t, cfg.Auth.SchedulingRequiresAuth())
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Notify.Std())
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Persist.Std())
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"record.created"}, cfg.Webhooks[0].Events)
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "server: [",
		"bad duration":   "timeouts:\n  persist: soon\n",
		"bad base path":  "server:\n  base_path: v0\n",
		"bad from":       "mail:\n  from: not an address\n",
		"webhook no url": "webhooks:\n  - events: [record.created]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "draughtsman.yml"), []byte("site:\n  name: Test Site\n"), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, "Test Site", cfg.Site.Name)
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestOverlayFromLegacyEnvNames(t *testing.T) {
	t.Setenv("EMAIL_SERVER_HOST", "smtp.example.test")
	t.Setenv("EMAIL_SERVER_PORT", "465")
	t.Setenv("EMAIL_SERVER_USER", "mailer")
	t.Setenv("EMAIL_SERVER_PASSWORD", "secret")
	t.Setenv("EMAIL_FROM", "noreply@example.test")
	t.Setenv("ADMIN_EMAIL", "ops@example.test")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	v := viper.New()
	require.NoError(t, BindEnv(v))
	cfg := Default()
	require.NoError(t, Overlay(cfg, v))

	assert.True(t, cfg.Mail.Configured())
	assert.Equal(t, 465, cfg.Mail.Port)
	assert.Equal(t, "ops@example.test", cfg.Notifications.OperatorAddress)
	assert.Equal(t, "gem-key", cfg.AI.APIKey)
	assert.Equal(t, "Dropbox Draughtsman", cfg.Mail.FromName)
}

func TestOverlayPrefixedNameWins(t *testing.T) {
	t.Setenv("DRAUGHTSMAN_MAIL_HOST", "primary.test")
	t.Setenv("EMAIL_SERVER_HOST", "legacy.test")
	v := viper.New()
	require.NoError(t, BindEnv(v))
	cfg := Default()
	require.NoError(t, Overlay(cfg, v))
	assert.Equal(t, "primary.test", cfg.Mail.Host)
}

func TestOverlayLeavesUnsetKeys(t *testing.T) {
	v := viper.New()
	require.NoError(t, BindEnv(v))
	cfg := Default()
	cfg.Mail.Host = "from-file.test"
	require.NoError(t, Overlay(cfg, v))
	assert.Equal(t, "from-file.test", cfg.Mail.Host)
}
