// cgpt REST API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/cgpt/internal/agent"
	"github.com/ashureev/cgpt/internal/api"
	"github.com/ashureev/cgpt/internal/chat"
	"github.com/ashureev/cgpt/internal/config"
	"github.com/ashureev/cgpt/internal/health"
	"github.com/ashureev/cgpt/internal/store"
	"github.com/ashureev/cgpt/internal/terminal"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	healthcheck := pflag.Bool("healthcheck", false, "query the local gRPC health service and exit")
	pflag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	level.Set(config.ParseLevel(os.Getenv("LOG_LEVEL")))

	if *healthcheck {
		os.Exit(runHealthcheck())
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.Store.Backend, "provider", cfg.Provider.Name)

	// Initialize dependencies.
	repo, err := store.Open(cfg.Store)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err, "backend", cfg.Store.Backend)
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
	slog.Info("Database connected", "backend", cfg.Store.Backend)

	completer, err := agent.New(cfg.Provider, logger)
	if err != nil {
		slog.Error("Failed to initialize chat provider", "error", err)
		os.Exit(1)
	}

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Warn("failed to close conversation logger", "error", closeErr)
		}
	}()

	svc := chat.NewService(repo, completer,
		chat.WithConversationLogger(conversationLogger),
		chat.WithLogger(logger),
	)

	// Initialize handlers.
	sm := terminal.NewSessionManager()
	handler := newRouter(routerDeps{
		chat:        api.NewChatHandler(api.NewHandler(svc, logger)),
		health:      api.NewHealthHandler(repo, completer.Name()),
		ws:          terminal.NewWebSocketHandler(svc, sm, cfg.CORSOrigins),
		corsOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket sessions are long lived
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional gRPC health service.
	var healthSrv *health.Server
	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "error", err, "port", cfg.GRPCHealthPort)
			os.Exit(1)
		}
		healthSrv = health.NewServer(repo, cfg.HealthProbeInterval, logger)
		healthSrv.StartProber(ctx)
		go func() {
			if err := healthSrv.Serve(lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

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

	if healthSrv != nil {
		healthSrv.Stop()
	}
	sm.CloseAll("server shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// runHealthcheck returns the process exit code for --healthcheck.
func runHealthcheck() int {
	port := os.Getenv("GRPC_HEALTH_PORT")
	if port == "" {
		slog.Error("GRPC_HEALTH_PORT is not set")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := health.Check(ctx, net.JoinHostPort("127.0.0.1", port), "")
	if err != nil {
		slog.Error("Health check failed", "error", err)
		return 1
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		slog.Warn("Server not serving", "status", status.String())
		return 1
	}
	return 0
}
