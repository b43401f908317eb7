package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Minute, cfg.Cooldown())
	assert.Equal(t, 6*time.Second, cfg.CallDelay())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wordmate.toml")
	content := `
log_mode = "prod"

[gemini]
api_key = "from-file"
model = "file-model"

[database]
driver = "postgres"
dsn = "postgres://localhost/wordmate"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("IMPORT_CALL_DELAY_SECONDS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.LogMode)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, "file-model", cfg.Gemini.Model)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.CallDelay())
	// untouched defaults survive a partial file
	assert.Equal(t, 15, cfg.Gemini.CooldownMinutes)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":   func(c *Config) { c.Database.Driver = "mysql" },
		"dsn":      func(c *Config) { c.Database.DSN = " " },
		"timeout":  func(c *Config) { c.Gemini.TimeoutSeconds = 0 },
		"cooldown": func(c *Config) { c.Gemini.CooldownMinutes = -1 },
		"reminder": func(c *Config) { c.Reminder.At = "7pm" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
