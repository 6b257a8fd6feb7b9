package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/cwrk-planet/rendezvous/config"
	"github.com/cwrk-planet/rendezvous/internal/audit"
	"github.com/cwrk-planet/rendezvous/internal/mailbox"
	"github.com/cwrk-planet/rendezvous/internal/matchmaker"
	"github.com/cwrk-planet/rendezvous/internal/moderation"
	"github.com/cwrk-planet/rendezvous/internal/postgres"
	grpcx "github.com/cwrk-planet/rendezvous/internal/transport/grpc"
	httpx "github.com/cwrk-planet/rendezvous/internal/transport/http"
	"github.com/cwrk-planet/rendezvous/internal/transport/ws"
	"github.com/cwrk-planet/rendezvous/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting rendezvous",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- audit ---
	var repo audit.Repository = audit.NewSlogRepository(lg)
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ApplicationName:   cfg.Postgres.ApplicationName,
		}, lg)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()

		pgRepo := postgres.NewAuditRepository(pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		repo = pgRepo
	}
	writer := audit.NewWriter(repo, cfg.Audit.Buffer, lg)
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		_ = writer.Run(writerCtx)
	}()

	// --- engine ---
	boxes := mailbox.New(cfg.Transport.MailboxSize, lg)
	hub := ws.NewHub(lg)

	opts := []matchmaker.Option{
		matchmaker.WithRecorder(writer),
		matchmaker.WithLogger(lg),
	}
	if cfg.Moderation.Enabled {
		filter, err := moderation.New(cfg.Moderation.Words)
		if err != nil {
			log.Fatalf("moderation: %v", err)
		}
		opts = append(opts, matchmaker.WithPolicy(filter))
	}

	engine := matchmaker.New(matchmaker.Config{
		SweepInterval: cfg.Matchmaker.SweepInterval,
		Timeout:       cfg.Matchmaker.Timeout,
		MaxChatLength: cfg.Matchmaker.MaxChatLength,
		MaxNameLength: cfg.Matchmaker.MaxNameLength,
	}, matchmaker.FanOut{hub, boxes}, opts...)
	engine.Start(ctx)

	// --- WS & HTTP ---
	wsServer := ws.NewServer(hub, engine, ws.Config{
		SendBuffer:     cfg.Transport.SendBuffer,
		PingEvery:      cfg.Transport.PingEvery,
		AutoRequeue:    cfg.Transport.AutoRequeue,
		AllowedOrigins: cfg.Transport.AllowedOrigins,
	}, lg)

	handler := httpx.NewHandler(engine, boxes, cfg.Transport.AutoRequeue)
	router := httpx.NewRouter(handler, wsServer, httpx.RouterConfig{
		AllowedOrigins: cfg.Transport.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC admin ---
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = grpcx.NewGRPCServer(grpcx.NewServer(engine, hub), lg)
	}

	// --- run servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if grpcServer != nil {
		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				errCh <- err
				return
			}
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	_ = httpSrv.Shutdown(ctxShutdown)
	engine.Stop()
	stop()

	stopWriter()
	<-writerDone
	if n := writer.Dropped(); n > 0 {
		slog.Warn("audit records dropped", "count", n)
	}
	slog.Info("stopped")
}
