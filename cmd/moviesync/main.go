package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/moviesync/internal/adapters/driven/elasticsearch"
	"github.com/custodia-labs/moviesync/internal/adapters/driven/postgres"
	"github.com/custodia-labs/moviesync/internal/adapters/driven/state"
	"github.com/custodia-labs/moviesync/internal/config"
	"github.com/custodia-labs/moviesync/internal/core/ports/driven"
	"github.com/custodia-labs/moviesync/internal/core/services"
	"github.com/custodia-labs/moviesync/internal/worker"
)

var version = "dev"

func main() {
	// Run mode from environment (RUN_MODE) or command line arg:
	//   run     - continuous incremental sync (default)
	//   reindex - one-shot full reindex, then exit
	mode := os.Getenv("RUN_MODE")
	if mode == "" {
		mode = "run"
	}
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Printf("moviesync %s starting in %s mode", version, mode)

	cfg := config.Load()

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("PostgreSQL connected")

	sourceReader := postgres.NewSourceReaderWithTimeout(db, cfg.RequestTimeout)

	// ===== Initialize Elasticsearch =====
	esConfig := elasticsearch.DefaultConfig(cfg.ElasticURL, cfg.IndexName)
	esConfig.Languages = cfg.Languages
	esConfig.Timeout = cfg.RequestTimeout
	indexWriter := elasticsearch.NewIndexWriter(esConfig)
	if err := indexWriter.HealthCheck(ctx); err != nil {
		log.Printf("Warning: Elasticsearch health check failed: %v (sync will back off until it recovers)", err)
	} else {
		log.Println("Elasticsearch connected")
	}

	// ===== Watermark State Store (Redis if configured, otherwise file) =====
	var stateStore driven.StateStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		stateStore = state.NewRedisStore(redisClient)
		log.Println("Using Redis state store")
	} else {
		stateStore = state.NewFileStore(cfg.StateFile)
		log.Printf("Using file state store at %s", cfg.StateFile)
	}

	orchestrator := services.NewSyncOrchestrator(services.SyncOrchestratorConfig{
		Source:       sourceReader,
		Index:        indexWriter,
		State:        stateStore,
		Logger:       slog.Default(),
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
	})

	switch mode {
	case "run":
		runSync(ctx, orchestrator, sourceReader, indexWriter)

	case "reindex":
		// Forced full reindex, regardless of the bootstrap watermark.
		// Safe to repeat: every write is an idempotent upsert.
		stats, err := orchestrator.Bootstrap(ctx)
		if err != nil {
			log.Fatalf("Reindex failed: %v", err)
		}
		log.Printf("Reindex completed: %d documents indexed, %d failed, %d rows rejected",
			stats.DocsIndexed, stats.DocsFailed, stats.RowsRejected)

	default:
		log.Fatalf("Unknown mode: %s (use: run or reindex)", mode)
	}
}

// runSync starts the worker and blocks until shutdown.
func runSync(
	ctx context.Context,
	orchestrator *services.SyncOrchestrator,
	sourceReader driven.SourceReader,
	indexWriter driven.IndexWriter,
) {
	w := worker.NewWorker(worker.WorkerConfig{
		Orchestrator: orchestrator,
		Source:       sourceReader,
		Index:        indexWriter,
		Logger:       slog.Default(),
	})

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}
	log.Println("Worker started, syncing...")

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	log.Println("Stopping worker...")
	w.Stop()
}
