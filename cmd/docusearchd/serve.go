package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/internal/config"
	"github.com/fyrsmithlabs/contextd/internal/embeddings"
	"github.com/fyrsmithlabs/contextd/internal/httpapi"
	"github.com/fyrsmithlabs/contextd/internal/ingestion"
	"github.com/fyrsmithlabs/contextd/internal/logging"
	"github.com/fyrsmithlabs/contextd/internal/parsing"
	"github.com/fyrsmithlabs/contextd/internal/search"
	"github.com/fyrsmithlabs/contextd/internal/telemetry"
	"github.com/fyrsmithlabs/contextd/internal/vectorstore"
)

// serveCmd starts the docusearchd HTTP daemon: ingestion pipeline, search
// engine, and HTTP API, wired from environment-sourced config.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the docusearchd HTTP daemon",
	Long: `Run the docusearchd HTTP daemon: ingestion pipeline, search engine,
and HTTP API, wired from environment-sourced config.

Examples:
  # Run with defaults
  docusearchd serve

  # Run against a remote Qdrant instance
  STORE_HOST=qdrant.internal docusearchd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx)
}

// dependencies holds every external resource run wires up, so shutdown can
// close them in one place regardless of where initialization stopped.
type dependencies struct {
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	store    vectorstore.Client
	engine   embeddings.Engine
	pipeline *ingestion.Pipeline
	search   *search.Engine
}

func (d *dependencies) Close(ctx context.Context) {
	if d.search != nil {
		d.search.Close()
	}
	if d.pipeline != nil {
		_ = d.pipeline.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
	if d.tel != nil {
		_ = d.tel.Shutdown(ctx)
	}
	if d.logger != nil {
		_ = d.logger.Sync()
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deps, err := initDependencies(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		deps.Close(shutdownCtx)
	}()

	parser := parsing.NewTextParser(parsing.Config{})

	pipeline, err := ingestion.New(parser, deps.engine, deps.store, cfg.ToIngestionConfig(), deps.logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating ingestion pipeline: %w", err)
	}
	deps.pipeline = pipeline

	searchEngine, err := search.New(deps.engine, deps.store, cfg.ToSearchConfig(), deps.logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating search engine: %w", err)
	}
	deps.search = searchEngine

	server, err := httpapi.NewServer(pipeline, searchEngine, deps.store, deps.logger.Underlying(), cfg.ToHTTPConfig())
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		deps.logger.Underlying().Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// initDependencies constructs every external-facing resource: logging,
// telemetry, the vector store client, and the embedding engine.
func initDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	logCfg := logging.NewDefaultConfig()
	if lvl, err := logging.LevelFromString(cfg.LogLevel); err == nil {
		logCfg.Level = lvl
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	telCfg := telemetry.NewDefaultConfig()
	telCfg.ServiceName = "docusearchd"
	telCfg.ServiceVersion = version
	if cfg.OTELExporterOTLPEndpoint != "" {
		telCfg.Enabled = true
		telCfg.Endpoint = cfg.OTELExporterOTLPEndpoint
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		logger.Warn(ctx, "telemetry initialization failed, continuing without it", zap.Error(err))
		tel = nil
	}

	store, err := vectorstore.NewQdrantClient(cfg.ToVectorStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("connecting to vector store: %w", err)
	}

	engine, err := embeddings.NewHTTPEngine(cfg.ToEmbeddingsConfig())
	if err != nil {
		return nil, fmt.Errorf("creating embedding engine: %w", err)
	}

	return &dependencies{
		logger: logger,
		tel:    tel,
		store:  store,
		engine: engine,
	}, nil
}
