// Package server exposes the assistant over HTTP with server-sent events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/butler-ai/butler/internal/agent"
	"github.com/butler-ai/butler/internal/history"
)

// Agent runs one conversation turn. Satisfied by *agent.Orchestrator.
type Agent interface {
	Process(ctx context.Context, prompt string) <-chan agent.Event
}

// Authenticator handles the Google OAuth flow. Satisfied by *google.Client.
type Authenticator interface {
	IsConnected() bool
	AuthURL() string
	Exchange(ctx context.Context, code string) error
}

// History reads back recorded turns. Satisfied by *history.Store.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.Turn, error)
}

// Config holds server settings.
type Config struct {
	Addr         string
	AllowOrigins []string
}

// Server is the HTTP front end.
type Server struct {
	e       *echo.Echo
	cfg     Config
	agent   Agent
	auth    Authenticator
	history History
}

// New builds the server and its routes.
func New(cfg Config, ag Agent, auth Authenticator, hist History) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	s := &Server{e: e, cfg: cfg, agent: ag, auth: auth, history: hist}

	e.HTTPErrorHandler = s.errorHandler

	e.GET("/healthz", s.handleHealth)
	e.POST("/chat", s.handleChat)
	e.GET("/auth/google", s.handleAuthStart)
	e.GET("/auth/callback", s.handleAuthCallback)
	e.GET("/auth/status", s.handleAuthStatus)
	e.GET("/history", s.handleHistory)

	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Printf("listening on %s", s.cfg.Addr)
	return s.e.Start(s.cfg.Addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// ServeHTTP lets the server be driven without a listener. Used by tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

// handleChat streams the turn's events to the client as SSE frames, one
// `data:` line per event, ending with the done event.
func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	ctx := c.Request().Context()
	for ev := range s.agent.Process(ctx, req.Prompt) {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
			return nil // client went away
		}
		resp.Flush()
	}
	return nil
}

func (s *Server) handleAuthStart(c echo.Context) error {
	return c.Redirect(http.StatusTemporaryRedirect, s.auth.AuthURL())
}

func (s *Server) handleAuthCallback(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing authorization code")
	}
	if err := s.auth.Exchange(c.Request().Context(), code); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.HTML(http.StatusOK,
		`<html><body><p>Google account connected. You can close this window.</p><script>window.close()</script></body></html>`)
}

func (s *Server) handleAuthStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"connected": s.auth.IsConnected()})
}

func (s *Server) handleHistory(c echo.Context) error {
	turns, err := s.history.Recent(c.Request().Context(), 20)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	return c.JSON(http.StatusOK, turns)
}
