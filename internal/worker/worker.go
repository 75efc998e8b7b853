package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/custodia-labs/moviesync/internal/core/ports/driven"
	"github.com/custodia-labs/moviesync/internal/core/services"
)

// Worker hosts the sync orchestrator's run loop as a managed background
// process with Start/Stop lifecycle and a health probe.
type Worker struct {
	orchestrator *services.SyncOrchestrator
	source       driven.SourceReader
	index        driven.IndexWriter
	logger       *slog.Logger

	// Internal state
	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Orchestrator *services.SyncOrchestrator
	Source       driven.SourceReader
	Index        driven.IndexWriter
	Logger       *slog.Logger
}

// NewWorker creates a new sync worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		orchestrator: cfg.Orchestrator,
		source:       cfg.Source,
		index:        cfg.Index,
		logger:       logger,
	}
}

// Start begins the sync loop.
// It runs until Stop is called or the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting")

	go func() {
		defer close(w.doneCh)
		if err := w.orchestrator.Run(runCtx); err != nil {
			w.logger.Error("sync loop exited", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the worker. The in-flight batch either completes
// (and its watermark advances) or aborts without advancing.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.mu.Unlock()

	// Wait for the loop to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// Health reports the run state plus source and index reachability.
type Health struct {
	Running     bool   `json:"running"`
	SourceOK    bool   `json:"source_ok"`
	IndexOK     bool   `json:"index_ok"`
	SourceError string `json:"source_error,omitempty"`
	IndexError  string `json:"index_error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running:  running,
		SourceOK: true,
		IndexOK:  true,
	}

	if err := w.source.Ping(ctx); err != nil {
		health.SourceOK = false
		health.SourceError = err.Error()
	}
	if err := w.index.HealthCheck(ctx); err != nil {
		health.IndexOK = false
		health.IndexError = err.Error()
	}

	return health
}
