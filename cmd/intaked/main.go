package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/missing-persons-intake/internal/app"
	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/pipeline"
	"github.com/joseph-ayodele/missing-persons-intake/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Init(ctx, cfg, app.Options{}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Cleanup()

	if err := a.HealthCheck(ctx); err != nil {
		logger.Error("DB health failed", "error", err)
		os.Exit(1)
	}
	logger.Info("DB health OK")

	sessions := server.NewSessions(func(id string) *pipeline.Orchestrator {
		return a.NewOrchestrator(pipeline.WithLogger(logger.With("session_id", id)))
	}, cfg.Session.IdleTimeout, logger)
	go sessions.Run(ctx, time.Minute)
	defer sessions.CloseAll()

	// gRPC server
	grpcServer := grpc.NewServer(server.ServerOptions(logger)...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)
	server.RegisterIntakeServiceServer(grpcServer, server.NewIntakeService(sessions, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("listen", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve", "error", err)
			stop()
		}
	}()

	// Ops HTTP: health, metrics, uploaded photos
	uploadPath := "/uploads/missing"
	if u, err := url.Parse(cfg.Storage.PublicBaseURL); err == nil && u.Path != "" {
		uploadPath = u.Path
	}
	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewOpsRouter(server.OpsConfig{
			HealthCheck: a.HealthCheck,
			UploadDir:   cfg.Storage.UploadDir,
			UploadPath:  uploadPath,
			Sessions:    sessions,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
