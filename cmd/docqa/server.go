package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/api/handlers"
	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/internal/server"
	"github.com/BaSui01/docqa/providers/ollama"
	"github.com/BaSui01/docqa/rag"
)

// Server wires the engine, backends, and HTTP surface together.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager *server.Manager

	collector *metrics.Collector
	llm       *ollama.Client
	engine    *rag.Engine

	healthHandler   *handlers.HealthHandler
	documentHandler *handlers.DocumentHandler
	queryHandler    *handlers.QueryHandler
	settingsHandler *handlers.SettingsHandler
	statsHandler    *handlers.StatsHandler
}

// NewServer creates a server instance from loaded config.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// Start builds the engine, resets the session index, and begins serving.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("docqa", nil, s.logger)

	if err := s.initEngine(); err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.logger.Info("Server started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.String("collection", s.cfg.Qdrant.Collection),
	)

	return nil
}

// initEngine constructs the backends and the QA engine. The session corpus
// is in-memory plus a dedicated Qdrant collection, so startup begins from an
// empty index.
func (s *Server) initEngine() error {
	s.llm = ollama.New(ollama.Config{
		BaseURL:    s.cfg.Ollama.BaseURL,
		Model:      s.cfg.Ollama.Model,
		EmbedModel: s.cfg.Ollama.EmbedModel,
		Timeout:    s.cfg.Ollama.Timeout,
	}, s.collector, s.logger)

	vectors := rag.NewQdrantStore(rag.QdrantConfig{
		BaseURL:    s.cfg.Qdrant.BaseURL,
		APIKey:     s.cfg.Qdrant.APIKey,
		Collection: s.cfg.Qdrant.Collection,
		Timeout:    s.cfg.Qdrant.Timeout,
	}, s.logger)

	s.engine = rag.NewEngine(vectors, s.llm, s.llm, rag.EngineConfig{
		TopK: s.cfg.Engine.TopK,
		Synthesizer: rag.SynthesizerConfig{
			TargetLanguage:  s.cfg.Engine.TargetLanguage,
			NotFoundMessage: s.cfg.Engine.NotFoundMessage,
			ContextTokens:   s.cfg.Engine.ContextTokens,
		},
	}, s.collector, s.logger)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Qdrant.Timeout)
	defer cancel()

	if err := s.engine.ClearAll(ctx); err != nil {
		s.logger.Warn("Failed to reset vector collection at startup", zap.Error(err))
	}

	if err := s.llm.Health(ctx); err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", s.cfg.Ollama.BaseURL, err)
	}

	return nil
}

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("ollama", s.llm.Health))
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("qdrant", func(ctx context.Context) error {
		if stats := s.engine.Stats(ctx); stats.VectorStatus != "ok" {
			return fmt.Errorf("vector store: %s", stats.VectorStatus)
		}
		return nil
	}))

	s.documentHandler = handlers.NewDocumentHandler(s.engine, s.cfg.Server.MaxUploadBytes, s.logger)
	s.queryHandler = handlers.NewQueryHandler(s.engine, s.logger)
	s.settingsHandler = handlers.NewSettingsHandler(s.engine, s.logger)
	s.statsHandler = handlers.NewStatsHandler(s.engine, s.cfg.Qdrant.Collection, s.logger)

	s.logger.Info("Handlers initialized")
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/api/documents", s.documentHandler.HandleCollection)
	mux.HandleFunc("/api/documents/", s.documentHandler.HandleItem)
	mux.HandleFunc("/api/query", s.queryHandler.HandleQuery)
	mux.HandleFunc("/api/settings", s.settingsHandler.HandleSettings)
	mux.HandleFunc("/api/stats", s.statsHandler.HandleStats)

	mux.Handle("/metrics", promhttp.Handler())

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// WaitForShutdown blocks until a signal or serve error, then shuts down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(context.Background()); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
