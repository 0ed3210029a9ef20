// Package config handles Butler configuration loading and management.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".butler")

	return &Config{
		Server: Server{
			Addr:         ":8000",
			AllowOrigins: []string{"*"},
		},
		OpenAI: OpenAI{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     "gpt-4o-mini",
			MaxTokens: 500,
		},
		Google: Google{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  "http://localhost:8000/auth/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/gmail.readonly",
				"https://www.googleapis.com/auth/gmail.send",
				"https://www.googleapis.com/auth/calendar",
			},
		},
		User: User{
			Name:     "",
			Timezone: "UTC",
		},
		Paths: Paths{
			DataDir:    dataDir,
			TokensFile: filepath.Join(dataDir, "tokens.json"),
			HistoryDB:  filepath.Join(dataDir, "history.db"),
		},
	}
}

// Load loads the configuration from the given path.
// If the file doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return expandPaths(cfg), nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(c)
}

// expandPaths expands a leading ~ in path settings.
func expandPaths(cfg *Config) *Config {
	homeDir, _ := os.UserHomeDir()

	expand := func(p string) string {
		if len(p) > 0 && p[0] == '~' {
			return filepath.Join(homeDir, p[1:])
		}
		return p
	}

	cfg.Paths.DataDir = expand(cfg.Paths.DataDir)
	cfg.Paths.TokensFile = expand(cfg.Paths.TokensFile)
	cfg.Paths.HistoryDB = expand(cfg.Paths.HistoryDB)

	return cfg
}
