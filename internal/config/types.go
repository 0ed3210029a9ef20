// Package config provides configuration types for Butler.
package config

// Config represents the main Butler configuration.
type Config struct {
	Server Server `toml:"server"`
	OpenAI OpenAI `toml:"openai"`
	Google Google `toml:"google"`
	User   User   `toml:"user"`
	Paths  Paths  `toml:"paths"`
}

// Server contains HTTP server settings.
type Server struct {
	Addr         string   `toml:"addr"`
	AllowOrigins []string `toml:"allow_origins"`
}

// OpenAI configures the reasoning service.
type OpenAI struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"` // optional OpenAI-compatible endpoint
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

// Google contains OAuth client settings for the Gmail/Calendar APIs.
type Google struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURL  string   `toml:"redirect_url"`
	Scopes       []string `toml:"scopes"`
}

// User contains user preferences.
type User struct {
	Name     string `toml:"name"`
	Timezone string `toml:"timezone"`
}

// Paths contains file path settings.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	TokensFile string `toml:"tokens_file"`
	HistoryDB  string `toml:"history_db"`
}
