package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/facegate/internal/api"
	"github.com/your-org/facegate/internal/api/handlers"
	"github.com/your-org/facegate/internal/api/ws"
	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/face"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
	"github.com/your-org/facegate/internal/queue"
	"github.com/your-org/facegate/internal/recognition"
	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting face gateway API", "port", cfg.Server.Port, "backend", cfg.Recognition.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub fed from the face event stream
	hub := ws.NewHub()
	go hub.Run(ctx)

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	// Every replica fans the full stream out to its own clients.
	err = consumer.SubscribeFaceEvents(ctx, func(ctx context.Context, event models.FaceEvent) error {
		hub.BroadcastEvent(&dto.WSEvent{
			Type: string(event.Type),
			Data: handlers.EventToResponse(event),
		})
		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	// One backend client for the whole process
	backend := recognition.NewHTTPClient(cfg.Recognition.URL, cfg.Recognition.Timeout)

	reconciler := face.NewReconciler(backend, db, producer, face.ReconcilerConfig{
		TopK:             cfg.Recognition.TopK,
		BackendThreshold: cfg.Recognition.BackendThreshold,
		MinScore:         cfg.Recognition.MinScore,
		MaxMatches:       cfg.Recognition.MaxMatches,
		MinImageLength:   cfg.Recognition.MinImageLength,
	}, logger)
	enroller := face.NewEnroller(backend, db, producer, cfg.Recognition.Timeout, cfg.Recognition.MinImageLength, logger)
	contacts := face.NewContacts(db)

	var cleaners []face.ArtifactCleaner
	if len(cfg.Artifacts.Paths) > 0 {
		cleaners = append(cleaners, face.PathCleaner{Paths: cfg.Artifacts.Paths})
	}
	if cfg.Artifacts.MinIOPrefix != "" {
		cleaners = append(cleaners, minioStore.ArtifactCleaner(cfg.Artifacts.MinIOPrefix))
	}
	manager := face.NewManager(db, cleaners, producer, logger)

	router := api.NewRouter(api.RouterConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		Checks: map[string]handlers.Check{
			"postgres":    db.Ping,
			"minio":       minioStore.Ping,
			"nats":        func(context.Context) error { return producer.Ping() },
			"recognition": backend.Ping,
		},
		Checker:  reconciler,
		Enroller: enroller,
		Contacts: contacts,
		Clearer:  manager,
		Events:   db,
		Hub:      hub,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Recognition.Timeout*2 + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Recognition.Timeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
