package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/harborbank/teller/internal/audit"
	"github.com/harborbank/teller/internal/auth"
	"github.com/harborbank/teller/internal/config"
	"github.com/harborbank/teller/internal/fraud"
	"github.com/harborbank/teller/internal/intent"
	"github.com/harborbank/teller/internal/ledger"
	"github.com/harborbank/teller/internal/llm"
	"github.com/harborbank/teller/internal/orchestrator"
	"github.com/harborbank/teller/internal/retrieval"
	"github.com/harborbank/teller/internal/session"
	"github.com/harborbank/teller/internal/workflow"
)

// app bundles the wired components shared by the serve and chat
// commands.
type app struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	auth     *auth.Service
	sessions *session.Store
	workflow *workflow.Engine
	closers  []func() error
}

// buildApp constructs the full component graph from configuration.
func buildApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.Default()

	var closers []func() error

	// Audit: rotating file sink always; SQLite sink only when a path
	// is configured.
	var sink audit.Sink
	fileSink := audit.NewFileSink(cfg.Audit.FilePath, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups, logger)
	closers = append(closers, fileSink.Close)
	sink = fileSink
	if cfg.Audit.DBPath != "" {
		dbSink, err := audit.NewSQLiteSink(cfg.Audit.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		closers = append(closers, dbSink.Close)
		sink = multiSink{fileSink, dbSink}
	}

	gateway := ledger.NewMockGateway(logger)

	keyword := intent.NewKeywordClassifier()
	var primary intent.Classifier
	var retriever retrieval.Retriever
	var generator orchestrator.TextGenerator
	if cfg.LLM.Enabled() {
		client, err := llm.NewMistralClient(llm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			MaxRetries:  cfg.LLM.MaxRetries,
			RetryDelay:  cfg.LLM.RetryDelay,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		primary = intent.NewDelegatedClassifier(client, keyword.Intents())
		generator = llm.NewGenerator(client)

		store, err := retrieval.NewStore(cfg.Retrieval.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open knowledge base: %w", err)
		}
		closers = append(closers, store.Close)
		retriever = store
	}
	classifier := intent.NewChain(primary, keyword, logger)

	scorer := fraud.NewScorer(fraud.Config{
		VelocityLimit:   cfg.Fraud.VelocityLimit,
		VelocityWindow:  cfg.Fraud.VelocityWindow,
		AmountThreshold: cfg.Fraud.AmountThreshold,
	}, logger)

	validator := workflow.NewValidator(cfg.Limits.TransferMax, cfg.Limits.BillMax)
	engine := workflow.NewEngine(validator, scorer, gateway, sink, cfg.Ledger.Timeout, logger)

	sessions := session.NewStore()

	orch := orchestrator.New(orchestrator.Config{
		Sessions:   sessions,
		Classifier: classifier,
		Workflow:   engine,
		Gateway:    gateway,
		Retriever:  retriever,
		Generator:  generator,
		Audit:      sink,
		Logger:     logger,
		TopK:       cfg.Retrieval.TopK,
	})

	authSvc := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry, logger)

	return &app{
		cfg:      cfg,
		orch:     orch,
		auth:     authSvc,
		sessions: sessions,
		workflow: engine,
		closers:  closers,
	}, nil
}

// close releases resources in reverse construction order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}
}

// multiSink fans audit events out to several sinks.
type multiSink []audit.Sink

func (m multiSink) Record(event audit.Event) {
	for _, sink := range m {
		sink.Record(event)
	}
}
