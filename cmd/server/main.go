package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/submission-hub/submission-hub/internal/api/http"
	"github.com/submission-hub/submission-hub/internal/application/monitor"
	"github.com/submission-hub/submission-hub/internal/application/persistence"
	"github.com/submission-hub/submission-hub/internal/application/receiver"
	"github.com/submission-hub/submission-hub/internal/config"
	"github.com/submission-hub/submission-hub/internal/domain/snapshot"
	"github.com/submission-hub/submission-hub/internal/infrastructure/bolt"
	"github.com/submission-hub/submission-hub/internal/infrastructure/broker"
	"github.com/submission-hub/submission-hub/internal/infrastructure/dispatch"
	"github.com/submission-hub/submission-hub/internal/infrastructure/ingest"
	"github.com/submission-hub/submission-hub/internal/infrastructure/memory"
	"github.com/submission-hub/submission-hub/internal/infrastructure/postgres"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	// snapshot store
	var store snapshot.Store
	switch cfg.SnapshotBackend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pool.Close()
		repo := postgres.NewSnapshotRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("schema error: %v", err)
		}
		store = repo
	case "bolt":
		bs, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			log.Fatalf("bolt error: %v", err)
		}
		defer bs.Close()
		store = bs
	default:
		logger.Warn().Msg("using in-memory snapshot store, machines will not survive restarts")
		store = memory.NewSnapshotStore()
	}

	// infrastructure
	client := ingest.NewHTTPClient(cfg.CoreBaseURL, 10*time.Second, logger)
	pool := dispatch.NewPool(cfg.WorkerLanes, logger)

	// services
	monitorSvc := monitor.NewService(client, store, logger)
	persistenceSvc := persistence.NewService(store, monitorSvc, client, logger)
	recv := receiver.New(pool, monitorSvc, client, cfg.BufferWindow, logger)

	if cfg.AutoLoad {
		persistenceSvc.Load(ctx)
	}

	// broker consumer
	consumer, err := broker.NewConsumer(cfg.AMQPURL, cfg.Exchange, cfg.QueuePrefix, recv, logger)
	if err != nil {
		log.Fatalf("broker error: %v", err)
	}
	if err := consumer.Start(); err != nil {
		log.Fatalf("broker error: %v", err)
	}

	// API server
	apiServer := httpapi.NewServer(monitorSvc)
	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// background loops
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.BufferFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				recv.Updates().Flush(time.Now())
			}
		}
	}()

	if cfg.AutoPersist {
		go func() {
			ticker := time.NewTicker(cfg.PersistInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					persistenceSvc.PersistAll(context.Background())
				}
			}
		}()
	}

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown: stop intake, drain lanes, flush one last snapshot
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(done)
	if err := consumer.Close(); err != nil {
		logger.Warn().Err(err).Msg("broker close failed")
	}
	recv.Updates().Flush(time.Now().Add(cfg.BufferWindow))
	pool.Stop()
	if cfg.AutoPersist {
		persistenceSvc.PersistAll(context.Background())
	}
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
