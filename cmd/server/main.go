// University chatbot server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/unichat/internal/agent"
	"github.com/ashureev/unichat/internal/answer"
	"github.com/ashureev/unichat/internal/api"
	"github.com/ashureev/unichat/internal/config"
	"github.com/ashureev/unichat/internal/gate"
	"github.com/ashureev/unichat/internal/identity"
	"github.com/ashureev/unichat/internal/llm"
	"github.com/ashureev/unichat/internal/middleware"
	"github.com/ashureev/unichat/internal/store"
	"github.com/ashureev/unichat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	curriculum, err := config.LoadCurriculum(cfg.CurriculumFile)
	if err != nil {
		slog.Error("Failed to load curriculum", "error", err, "path", cfg.CurriculumFile)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"gate", cfg.GateStrategy,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"subjects", len(curriculum.Subjects),
	)
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != config.ProviderMock {
		slog.Warn("GEMINI_API_KEY is not set; model requests will fail until it is configured")
	}

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	client, err := llm.New(llm.Settings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		slog.Error("Failed to initialize model client", "error", err)
		os.Exit(1)
	}

	relevance, err := gate.New(cfg.GateStrategy, client)
	if err != nil {
		slog.Error("Failed to initialize relevance gate", "error", err)
		os.Exit(1)
	}

	orchestrator, err := answer.NewOrchestrator(client, curriculum.SystemPersona(), logger)
	if err != nil {
		slog.Error("Failed to initialize answer orchestrator", "error", err)
		os.Exit(1)
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
		MaxOpenFiles:  cfg.ConversationLog.MaxOpenFiles,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	svc, err := agent.NewService(agent.ServiceConfig{
		Gate:     relevance,
		Answerer: orchestrator,
		Subjects: curriculum.SubjectSet(),
		Repo:     repo,
		Log:      conversationLogger,
		Logger:   logger,
	})
	if err != nil {
		slog.Error("Failed to initialize chat service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	limiter := agent.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	if cfg.RateLimit.Enabled() {
		slog.Info("Rate limiting enabled", "per_minute", cfg.RateLimit.RequestsPerMinute, "burst", cfg.RateLimit.Burst)
	}

	info := api.ServerInfo{
		Gate:     relevance.Name(),
		Provider: client.Name(),
		Model:    cfg.LLM.Model,
		Title:    curriculum.Title,
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, info, cfg.SessionTTL)
	chatHandler := agent.NewHandler(svc, limiter, cfg.MaxRequestBodySize)
	wsHandler := agent.NewWebSocketHandler(svc, repo, limiter, agent.WebSocketConfig{
		Intro:         curriculum.Intro,
		ReadLimit:     cfg.MaxRequestBodySize,
		AllowedOrigin: cfg.FrontendURL,
		IsDev:         cfg.IsDevelopment(),
	})
	healthHandler := api.NewHealthHandler(repo, info, wsHandler.ActiveConnections)
	pageHandler, err := web.NewPageHandler(svc, limiter, curriculum)
	if err != nil {
		slog.Error("Failed to initialize page templates", "error", err)
		os.Exit(1)
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}, identity.SessionHeaderName))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	baseHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)
	pageHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// No WriteTimeout: model calls block for as long as the provider takes.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent.StartSessionSweeper(ctx, repo, cfg.SessionTTL, limiter)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
