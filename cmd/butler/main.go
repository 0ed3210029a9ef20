package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/butler-ai/butler/internal/agent"
	"github.com/butler-ai/butler/internal/config"
	"github.com/butler-ai/butler/internal/google"
	"github.com/butler-ai/butler/internal/history"
	"github.com/butler-ai/butler/internal/model"
	"github.com/butler-ai/butler/internal/server"
	"github.com/butler-ai/butler/internal/tools"
)

func main() {
	home, _ := os.UserHomeDir()
	cfgPath := flag.String("config", filepath.Join(home, ".butler", "config.toml"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.OpenAI.APIKey == "" {
		log.Fatal("no OpenAI API key configured; set OPENAI_API_KEY or [openai] api_key in the config file")
	}

	googleClient := google.NewClient(google.ClientConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Scopes:       cfg.Google.Scopes,
		TokensFile:   cfg.Paths.TokensFile,
	})
	gmail := google.NewGmail(googleClient)
	calendar := google.NewCalendar(googleClient, cfg.User.Timezone)

	llm := model.NewOpenAIClient(model.OpenAIConfig{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
	})

	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		log.Fatalf("open history store: %v", err)
	}
	defer store.Close()

	planner := agent.NewPlanner(llm, tools.DefaultRegistry())
	runner := agent.NewRunner(tools.NewExecutor(gmail, calendar))
	orchestrator := agent.NewOrchestrator(planner, runner, llm, googleClient.IsConnected).
		WithHistory(store)

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		AllowOrigins: cfg.Server.AllowOrigins,
	}, orchestrator, googleClient, store)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exited: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
