package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quizbox/quizbox/internal/auth"
	"github.com/quizbox/quizbox/internal/blob"
	"github.com/quizbox/quizbox/internal/config"
	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/oc"
	"github.com/quizbox/quizbox/internal/ratelimit"
	"github.com/quizbox/quizbox/internal/room"
	"github.com/quizbox/quizbox/internal/server"
	"github.com/quizbox/quizbox/internal/store"
	"github.com/quizbox/quizbox/internal/tracing"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on environment variables")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logging", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	// --- Tracing (Optional) ---
	var tracerShutdown func(context.Context) error
	if cfg.TracingCollectorAddr != "" {
		shutdown, err := tracing.Setup(context.Background(), "quizbox", cfg.TracingCollectorAddr)
		if err != nil {
			slog.Error("Failed to initialize tracing, continuing without it", "error", err)
		} else {
			tracerShutdown = shutdown
			slog.Info("Tracing initialized", "collector", cfg.TracingCollectorAddr)
		}
	}

	// --- Durable stores ---
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to open database", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}

	blobs, err := blob.New(cfg.BlobDir, st)
	if err != nil {
		slog.Error("Failed to open blob store", "error", err, "dir", cfg.BlobDir)
		os.Exit(1)
	}

	// --- Authentication ---
	sessions := auth.NewSessions()

	var twitch *auth.TwitchClient
	var validator *auth.IDTokenValidator
	if cfg.SkipAuth {
		slog.Warn("Authentication DISABLED for development - DO NOT USE IN PRODUCTION")
	} else {
		twitch = auth.NewTwitchClient(cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.ExternalURL("/login"))
		validator, err = auth.NewIDTokenValidator(context.Background(), cfg.OAuthClientID)
		if err != nil {
			// Without the JWKS the id_token cannot be checked, but the code
			// exchange itself still authenticates the login.
			slog.Warn("Failed to initialize id_token validator, continuing without it", "error", err)
			validator = nil
		}
	}

	if cfg.AdminSession != "" {
		seedAdminSession(st, sessions, cfg.AdminSession)
	}

	// --- Game engines and room runtime ---
	onlyConnect := oc.NewEngine(st)

	registry := room.NewRegistry()
	registry.StartReaper()

	limiter, err := ratelimit.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	// --- HTTP server ---
	srv := server.New(cfg, st, blobs, sessions, twitch, validator, registry, limiter, onlyConnect)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	go func() {
		slog.Info("quizbox starting", "port", cfg.Port, "tls", cfg.TLS())
		var err error
		if cfg.TLS() {
			err = httpSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting HTTP first, then stop the rooms. Stopping a room runs
	// its shutdown hooks, which flush any pending edit-session saves.
	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := registry.Shutdown(ctx); err != nil {
		slog.Error("Error during registry shutdown", "error", err)
	}

	if twitch != nil {
		twitch.Close()
	}
	if tracerShutdown != nil {
		if err := tracerShutdown(ctx); err != nil {
			slog.Error("Error shutting down tracer", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}

	slog.Info("Server exiting")
}

// seedAdminSession installs the operator backdoor session, creating the
// local admin account on first run.
func seedAdminSession(st *store.Store, sessions *auth.Sessions, cookie string) {
	u, err := st.GetUser(1)
	if err != nil {
		u, err = st.ForTwitch(1, "admin")
		if err != nil {
			slog.Error("Failed to create admin user", "error", err)
			return
		}
	}
	sessions.SeedAdmin(cookie, u)
}
