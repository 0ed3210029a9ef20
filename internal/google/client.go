// Package google provides the OAuth client and the Gmail/Calendar API wrappers.
package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/butler-ai/butler/internal/errors"
)

const tokenEndpoint = "https://oauth2.googleapis.com/token"

// ClientConfig configures the Google OAuth client.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	TokensFile   string
}

// Tokens holds the persisted OAuth tokens.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Client manages OAuth tokens for the Gmail/Calendar APIs.
type Client struct {
	cfg      ClientConfig
	http     *http.Client
	tokenURL string

	mu     sync.Mutex
	tokens Tokens
}

// NewClient creates a new Google client, loading any persisted tokens.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: 30 * time.Second},
		tokenURL: tokenEndpoint,
	}
	c.tokens = c.loadTokens()
	return c
}

// IsConnected reports whether an access token is available.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens.AccessToken != ""
}

// AuthURL returns the Google consent page URL to start the OAuth flow.
func (c *Client) AuthURL() string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	return "https://accounts.google.com/o/oauth2/v2/auth?" + q.Encode()
}

// Exchange trades an authorization code for tokens and persists them.
func (c *Client) Exchange(ctx context.Context, code string) error {
	tokens, err := c.tokenRequest(ctx, url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {c.cfg.RedirectURL},
	})
	if err != nil {
		return err
	}
	if tokens.AccessToken == "" {
		return apperrors.New("oauth_exchange", "token exchange returned no access token", apperrors.CategoryCollaborator)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
	return c.saveTokens()
}

// Refresh obtains a new access token using the stored refresh token.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.tokens.RefreshToken
	c.mu.Unlock()

	if refreshToken == "" {
		return apperrors.New("oauth_refresh", "no refresh token available", apperrors.CategoryConnectivity)
	}

	tokens, err := c.tokenRequest(ctx, url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	})
	if err != nil {
		return err
	}
	if tokens.AccessToken == "" {
		return apperrors.New("oauth_refresh", "token refresh returned no access token", apperrors.CategoryCollaborator)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens.AccessToken = tokens.AccessToken
	return c.saveTokens()
}

// authHeader returns the bearer authorization header value.
func (c *Client) authHeader() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return "Bearer " + c.tokens.AccessToken
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Tokens{}, apperrors.Wrap(err, "oauth_request", "failed to build token request", apperrors.CategoryCollaborator)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return Tokens{}, apperrors.Wrap(err, "oauth_request", "token request failed", apperrors.CategoryCollaborator)
	}
	defer resp.Body.Close()

	var tokens Tokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return Tokens{}, apperrors.Wrap(err, "oauth_decode", "failed to decode token response", apperrors.CategoryCollaborator)
	}
	return tokens, nil
}

func (c *Client) loadTokens() Tokens {
	var tokens Tokens
	data, err := os.ReadFile(c.cfg.TokensFile)
	if err != nil {
		return tokens
	}
	_ = json.Unmarshal(data, &tokens)
	return tokens
}

// saveTokens persists tokens to disk. Caller must hold c.mu.
func (c *Client) saveTokens() error {
	if err := os.MkdirAll(filepath.Dir(c.cfg.TokensFile), 0700); err != nil {
		return apperrors.Wrap(err, "token_store", "failed to create token directory", apperrors.CategoryCollaborator)
	}
	data, err := json.Marshal(c.tokens)
	if err != nil {
		return apperrors.Wrap(err, "token_store", "failed to encode tokens", apperrors.CategoryCollaborator)
	}
	if err := os.WriteFile(c.cfg.TokensFile, data, 0600); err != nil {
		return apperrors.Wrap(err, "token_store", "failed to write tokens", apperrors.CategoryCollaborator)
	}
	return nil
}
