// EDUCTOME - Socratic Mentor Server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/eductome/eductome/internal/api"
	"github.com/eductome/eductome/internal/config"
	"github.com/eductome/eductome/internal/convlog"
	"github.com/eductome/eductome/internal/live"
	"github.com/eductome/eductome/internal/mentor"
	"github.com/eductome/eductome/internal/middleware"
	"github.com/eductome/eductome/internal/session"
	"github.com/eductome/eductome/internal/store"
	"github.com/eductome/eductome/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

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
	slog.Info("Database connected", "path", cfg.DBPath)

	convLogger, err := convlog.New(convlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	})
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := convLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// Mentor client. A missing API key degrades to per-turn config errors
	// instead of refusing to start.
	var mentorClient mentor.Client
	if cfg.MentorEnabled() {
		client, err := mentor.NewGenAIClient(context.Background(), mentor.Config{
			APIKey:      cfg.Mentor.APIKey,
			Model:       cfg.Mentor.Model,
			Temperature: cfg.Mentor.Temperature,
			MaxRetries:  cfg.Mentor.MaxRetries,
		})
		if err != nil {
			slog.Error("Failed to initialize mentor client", "error", err)
			os.Exit(1)
		}
		mentorClient = client
		slog.Info("Mentor client initialized", "model", cfg.Mentor.Model)
	} else {
		mentorClient = mentor.Disabled{}
		slog.Warn("Mentor disabled (GEMINI_API_KEY not set), turns will return a configuration error")
	}

	var recorder session.Recorder
	if cfg.ConversationLog.Enabled {
		recorder = convLogger
	}
	sessions := session.NewService(repo, mentorClient, session.Options{
		MentorTimeout: cfg.Mentor.RequestTimeout,
		Recorder:      recorder,
	})

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()
	handler := api.NewHandler(repo, sessions, limiter)

	hub := live.NewHub(cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	handler.RegisterProfileRoutes(r)
	handler.RegisterSessionRoutes(r)

	// WebSocket endpoint for live session updates.
	r.Get("/ws/sessions", hub.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // mentor turns and WebSocket feeds outlive short write deadlines
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx, sessions.Events())

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

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
