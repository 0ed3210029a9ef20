package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 500, cfg.OpenAI.MaxTokens)
	assert.Equal(t, "UTC", cfg.User.Timezone)
	assert.Contains(t, cfg.Google.Scopes, "https://www.googleapis.com/auth/gmail.send")
	assert.Contains(t, cfg.Paths.TokensFile, ".butler")
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9999"

[openai]
model = "gpt-4o"

[user]
timezone = "Europe/Berlin"

[paths]
history_db = "~/custom/history.db"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "Europe/Berlin", cfg.User.Timezone)
	// untouched sections keep their defaults
	assert.Equal(t, 500, cfg.OpenAI.MaxTokens)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "custom/history.db"), cfg.Paths.HistoryDB)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\naddr="), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := Default()
	cfg.Server.Addr = ":7777"
	cfg.User.Name = "Dana"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", loaded.Server.Addr)
	assert.Equal(t, "Dana", loaded.User.Name)
}
