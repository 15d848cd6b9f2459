package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/irfndi/newsindex-ai-go/internal/config"
	"github.com/irfndi/newsindex-ai-go/internal/logging"
	"github.com/irfndi/newsindex-ai-go/pkg/llm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	active := cfg.LLM.Active()
	client, err := llm.NewClient(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      active.APIKey,
		Model:       active.Model,
		MaxTokens:   active.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}

	app, err := newApplication(ctx, cfg, logger, client)
	if err != nil {
		return err
	}
	return app.serve(ctx)
}
