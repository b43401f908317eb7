package main

import (
	"context"
	"fmt"
	"io"

	"github.com/example/wordmate/internal/ai"
	"github.com/example/wordmate/internal/config"
	"github.com/example/wordmate/internal/database"
	"github.com/example/wordmate/internal/logger"
	"github.com/example/wordmate/internal/notify"
	"github.com/example/wordmate/internal/vocab"
	"github.com/jmoiron/sqlx"
)

// app holds the components every command shares
type app struct {
	cfg   config.Config
	log   *logger.Logger
	db    *sqlx.DB
	state *database.StateRepository
	relay *notify.Relay
	vocab *vocab.Vocabulary
	gate  *ai.Gate
	ai    *ai.Service
}

// newApp wires config, logging, storage and the AI service. Notices go to
// the relay until a frontend attaches.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to database", "driver", cfg.Database.Driver)

	relay := &notify.Relay{}
	state := database.NewStateRepository(db)
	words, err := vocab.Open(ctx, state, relay, log.With("component", "vocab"))
	if err != nil {
		db.Close()
		return nil, err
	}

	gate := ai.NewGate(cfg.Cooldown(), relay, log.With("component", "ai-gate"))
	gemini := ai.NewGemini(ai.Config{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.HTTPTimeout(),
	}, nil)
	if !gemini.Enabled() {
		log.Warn("GEMINI_API_KEY is not set, AI features are disabled")
	}
	service := ai.NewService(gemini, gate, relay, log.With("component", "ai"))

	return &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		state: state,
		relay: relay,
		vocab: words,
		gate:  gate,
		ai:    service,
	}, nil
}

// Close releases the database and flushes the logger
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("Failed to close database", "error", err)
	}
	a.log.Sync()
}

// consoleNotifier prints notices for CLI commands
func consoleNotifier(w io.Writer) notify.Notifier {
	return notify.Func(func(n notify.Notice) {
		fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Message)
	})
}
