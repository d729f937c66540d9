package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yangwenmai/sitebook/internal/config"
	"github.com/yangwenmai/sitebook/internal/engine"
	"github.com/yangwenmai/sitebook/internal/intent"
	"github.com/yangwenmai/sitebook/internal/logutil"
	"github.com/yangwenmai/sitebook/internal/store"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg        config.Config
	log        zerolog.Logger
	db         *sql.DB
	store      *store.Store
	references *engine.CachedReferenceReader
	dispatcher *intent.Dispatcher
	processor  *intent.Processor
	pipeline   *engine.Pipeline

	closeLog func()
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logutil.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("open db: %w", err)
	}
	s, err := store.New(db)
	if err != nil {
		db.Close()
		closeLog()
		return nil, fmt.Errorf("init store: %w", err)
	}

	mc, err := newModelClient(ctx, cfg, log)
	if err != nil {
		db.Close()
		closeLog()
		return nil, err
	}

	var fetcher engine.ReferenceReader = engine.NewHTTPReferenceReader(cfg.HTTPTimeout, cfg.ReferenceMaxChars)
	if cfg.UseStubs() {
		fetcher = &engine.StubReferenceReader{}
	}
	// The worker refreshes every interval; entries outlive one missed pass.
	refs := engine.NewCachedReferenceReader(fetcher, 2*cfg.ReferenceRefresh)

	dispatcher := intent.NewDispatcher(intent.NewResolver(s, log), s, log)
	processor := intent.NewProcessor(dispatcher, log)
	assembler := engine.NewContextAssembler(s, log,
		engine.WithItemLimit(cfg.ContextItemLimit),
		engine.WithNoteLimit(cfg.ContextNoteLimit),
		engine.WithReferenceReader(refs),
	)
	pipeline := engine.NewPipeline(
		&engine.ContextStep{Assembler: assembler},
		&engine.ModelStep{Model: mc},
		&engine.ApplyStep{Processor: processor},
	)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		store:      s,
		references: refs,
		dispatcher: dispatcher,
		processor:  processor,
		pipeline:   pipeline,
		closeLog:   closeLog,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.closeLog()
}

// newModelClient picks the LM backend. Without credentials for the chosen
// provider the stub client is used.
func newModelClient(ctx context.Context, cfg config.Config, log zerolog.Logger) (engine.ModelClient, error) {
	if cfg.UseStubs() {
		log.Warn().Str("provider", cfg.LLMProvider).Msg("no API key configured, using stub model client")
		return &engine.StubModelClient{}, nil
	}

	log.Info().Str("provider", cfg.LLMProvider).Msg("using model client")
	switch cfg.LLMProvider {
	case "claude":
		return engine.NewClaudeClient(cfg.AnthropicKey,
			engine.WithClaudeModel(cfg.AnthropicModel),
			engine.WithClaudeTimeout(cfg.HTTPTimeout),
		), nil
	case "gemini":
		return engine.NewGeminiClient(ctx, cfg.GeminiKey,
			engine.WithGeminiModel(cfg.GeminiModel),
			engine.WithGeminiTimeout(cfg.HTTPTimeout),
		)
	case "ollama":
		return engine.NewOllamaClient(cfg.OllamaURL, engine.WithOllamaModel(cfg.OllamaModel)), nil
	default:
		return engine.NewOpenAIClient(cfg.OpenAIKey,
			engine.WithModel(cfg.OpenAIModel),
			engine.WithBaseURL(cfg.OpenAIBaseURL),
			engine.WithTimeout(cfg.HTTPTimeout),
		), nil
	}
}
