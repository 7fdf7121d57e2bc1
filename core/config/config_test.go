package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{WhatsApp: WhatsAppConfig{Token: " tok "}}
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, "tok", cfg.WhatsApp.Token)
	assert.Equal(t, defaultVerifyToken, cfg.WhatsApp.VerifyToken)
	assert.Equal(t, defaultAPIBase, cfg.WhatsApp.APIBase)
	assert.Equal(t, defaultAPIVersion, cfg.WhatsApp.APIVersion)
	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, "/webhook", cfg.HTTP.WebhookPath)

	first, second, expiry := cfg.Session.Durations()
	assert.Equal(t, 30*time.Minute, first)
	assert.Equal(t, 60*time.Minute, second)
	assert.Equal(t, 65*time.Minute, expiry)
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing token", cfg: Config{}},
		{
			name: "ladder out of order",
			cfg: Config{
				WhatsApp: WhatsAppConfig{Token: "t"},
				Session:  SessionConfig{FirstReminderMinutes: 40, SecondReminderMinutes: 30, ExpiryMinutes: 50},
			},
		},
		{
			name: "telegram without admin",
			cfg: Config{
				WhatsApp: WhatsAppConfig{Token: "t"},
				Telegram: TelegramConfig{Token: "123:abc"},
			},
		},
		{
			name: "database without host",
			cfg: Config{
				WhatsApp: WhatsAppConfig{Token: "t"},
				Database: DatabaseConfig{Enabled: true, Name: "leads"},
			},
		},
		{
			name: "bad port",
			cfg: Config{
				WhatsApp: WhatsAppConfig{Token: "t"},
				HTTP:     HTTPConfig{Port: 70000},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.Error(t, Normalize(&cfg))
		})
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
whatsapp:
  token: from-file
  team_number: "919800000000"
http:
  port: 8081
  webhook_path: hooks/wa
session:
  first_reminder_minutes: 5
  second_reminder_minutes: 10
  expiry_minutes: 12
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("WHATSAPP_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.WhatsApp.Token)
	assert.Equal(t, "919800000000", cfg.WhatsApp.TeamNumber)
	assert.Equal(t, 8081, cfg.HTTP.Port)
	assert.Equal(t, "/hooks/wa", cfg.HTTP.WebhookPath)
	assert.Equal(t, 12, cfg.Session.ExpiryMinutes)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("WHATSAPP_TOKEN", "env-only")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.WhatsApp.Token)
}
