package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JasonDeee/Project-L.I.F.E/api/handlers"
	"github.com/JasonDeee/Project-L.I.F.E/chat"
	"github.com/JasonDeee/Project-L.I.F.E/compression"
	"github.com/JasonDeee/Project-L.I.F.E/config"
	"github.com/JasonDeee/Project-L.I.F.E/internal/metrics"
	"github.com/JasonDeee/Project-L.I.F.E/internal/server"
	"github.com/JasonDeee/Project-L.I.F.E/internal/telemetry"
	"github.com/JasonDeee/Project-L.I.F.E/llm"
	"github.com/JasonDeee/Project-L.I.F.E/llm/providers/lmstudio"
	"github.com/JasonDeee/Project-L.I.F.E/llm/tokenizer"
	"github.com/JasonDeee/Project-L.I.F.E/persistence"
)

// Server wires the whole application together: stores, provider,
// compression, the turn service, and the HTTP endpoints.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	otel       *telemetry.Providers

	httpManager *server.Manager
	collector   *metrics.Collector

	messages  persistence.MessageStore
	summaries persistence.SummaryStore
	provider  llm.Provider
	engine    *compression.Engine
	scheduler *compression.Scheduler
	service   *chat.Service

	watcher           *config.Watcher
	rateLimiterCancel context.CancelFunc
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		otel:       otel,
	}
}

// Start builds the service graph and begins serving.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("life", s.logger)

	if err := s.initService(); err != nil {
		return fmt.Errorf("init service: %w", err)
	}
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	s.startConfigWatcher()

	s.logger.Info("Server started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.String("store", string(s.cfg.Store.Type)),
		zap.Bool("compression_enabled", s.cfg.Compression.Enabled),
	)
	return nil
}

func (s *Server) initService() error {
	messages, err := persistence.NewMessageStore(s.cfg.Store)
	if err != nil {
		return fmt.Errorf("open message store: %w", err)
	}
	summaries, err := persistence.NewSummaryStore(s.cfg.Store)
	if err != nil {
		return fmt.Errorf("open summary store: %w", err)
	}
	s.messages = messages
	s.summaries = summaries

	provider := lmstudio.New(lmstudio.Config{
		BaseURL:      s.cfg.LLM.BaseURL,
		APIKey:       s.cfg.LLM.APIKey,
		DefaultModel: s.cfg.LLM.Model,
		Timeout:      s.cfg.LLM.Timeout,
	}, s.logger)

	tk := tokenizer.ForModel(s.cfg.LLM.Model, s.cfg.Compression.ContextLength, tokenizer.DefaultCharsPerToken)
	s.logger.Info("tokenizer selected",
		zap.String("tokenizer", tk.Name()),
		zap.Int("context_length", tk.MaxTokens()),
	)

	s.engine = compression.NewEngine(s.cfg.Compression, provider, tk, messages, summaries, s.collector, s.logger)
	if s.cfg.Compression.Enabled {
		s.scheduler = compression.NewScheduler(s.engine, s.logger)
	}

	builder := chat.NewChainBuilder(messages, summaries, s.cfg.Compression.KeepRecentMessages, s.logger)
	s.service = chat.NewService(s.cfg.Chat, provider, builder, s.engine, s.scheduler, messages, summaries, s.collector, s.logger)

	// The model backend must be up before the first turn; refusing to
	// start beats serving turns that can only fail.
	status, err := provider.HealthCheck(context.Background())
	if err != nil {
		return fmt.Errorf("model backend unreachable at %s: %w", s.cfg.LLM.BaseURL, err)
	}
	s.logger.Info("model backend healthy", zap.Duration("latency", status.Latency))

	s.provider = provider
	return nil
}

func (s *Server) startHTTPServer() error {
	chatHandler := handlers.NewChatHandler(s.service, s.logger)
	statusHandler := handlers.NewStatusHandler(s.service, s.engine, s.logger)
	wsHandler := handlers.NewWSHandler(s.service, s.cfg.Chat.AssistantName, s.logger)

	healthHandler := handlers.NewHealthHandler(s.logger)
	healthHandler.RegisterCheck(handlers.NewPingHealthCheck("messages", s.messages.Ping))
	healthHandler.RegisterCheck(handlers.NewPingHealthCheck("summaries", s.summaries.Ping))
	healthHandler.RegisterCheck(handlers.NewProviderHealthCheck(s.provider))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.HandleHealthz)
	mux.HandleFunc("/readyz", healthHandler.HandleReady)
	mux.HandleFunc("/version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/chat", chatHandler.HandleTurn)
	mux.HandleFunc("/v1/chat/stream", chatHandler.HandleStream)
	mux.HandleFunc("/v1/ws", wsHandler.HandleWS)
	mux.HandleFunc("/v1/compression/status", statusHandler.HandleStatus)
	mux.HandleFunc("/v1/compression/compress", statusHandler.HandleCompress)
	mux.HandleFunc("/v1/config/task-manager", statusHandler.HandleTaskManager)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	if s.cfg.Server.RateLimit > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.rateLimiterCancel = cancel
		middlewares = append(middlewares, RateLimiter(ctx, s.cfg.Server.RateLimit, s.cfg.Server.RateBurst, s.logger))
	}
	handler := Chain(mux, middlewares...)

	s.httpManager = server.NewManager(handler, server.Config{
		Addr:            fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	return s.httpManager.Start()
}

// startConfigWatcher applies the runtime-safe parts of a changed
// config file without a restart.
func (s *Server) startConfigWatcher() {
	if s.configPath == "" {
		return
	}
	s.watcher = config.NewWatcher(config.NewLoader(), s.configPath, 0, func(cfg *config.Config) {
		s.service.SetTaskManagerEnabled(cfg.Chat.TaskManagerEnabled)
		s.logger.Info("runtime config applied",
			zap.Bool("task_manager_enabled", cfg.Chat.TaskManagerEnabled),
		)
	}, s.logger)
	s.watcher.Start()
}

// WaitForShutdown blocks until a signal arrives, then shuts down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown releases everything in dependency order.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")
	ctx := context.Background()

	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	// Let in-flight compression passes finish; they persist records.
	if s.scheduler != nil {
		s.scheduler.Close()
	}
	var g errgroup.Group
	if s.messages != nil {
		g.Go(s.messages.Close)
	}
	if s.summaries != nil {
		g.Go(s.summaries.Close)
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("store close error", zap.Error(err))
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}
	s.logger.Info("Graceful shutdown complete")
}
