package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/custodia-labs/moviesync/internal/core/domain"
	"github.com/custodia-labs/moviesync/internal/core/ports/driven"
)

// SyncOrchestrator coordinates the sync pipeline. It is the single writer
// of watermark values and owns the run loop:
//  1. Bootstrap once if the bootstrap watermark is absent
//  2. For each stream (film work, genre, person): poll → map → write →
//     advance watermark, draining until an empty poll
//  3. Sleep when a whole round was empty; back off and retry on errors
type SyncOrchestrator struct {
	source driven.SourceReader
	index  driven.IndexWriter
	state  driven.StateStore
	mapper *DocumentMapper
	logger *slog.Logger

	batchSize    int
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
}

// SyncOrchestratorConfig holds dependencies for SyncOrchestrator.
type SyncOrchestratorConfig struct {
	Source       driven.SourceReader
	Index        driven.IndexWriter
	State        driven.StateStore
	Logger       *slog.Logger
	BatchSize    int           // Rows per poll and documents per bulk call (default: 100)
	PollInterval time.Duration // Sleep between rounds when caught up (default: 10s)
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(cfg SyncOrchestratorConfig) *SyncOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}

	return &SyncOrchestrator{
		source:       cfg.Source,
		index:        cfg.Index,
		state:        cfg.State,
		mapper:       NewDocumentMapper(),
		logger:       logger,
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

// Run executes the sync loop until the context is cancelled. Only one Run
// may be active per orchestrator.
func (o *SyncOrchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return domain.ErrSyncInProgress
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	o.logger.Info("sync loop starting",
		"batch_size", o.batchSize,
		"poll_interval", o.pollInterval,
	)

	for {
		if ctx.Err() != nil {
			o.logger.Info("sync loop stopped")
			return nil
		}

		if err := o.ensureBootstrap(ctx); err != nil {
			o.logger.Error("bootstrap failed, backing off", "error", err)
			if !o.sleep(ctx) {
				return nil
			}
			continue
		}

		stats, err := o.RunRound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				o.logger.Info("sync loop stopped")
				return nil
			}
			o.logger.Error("sync round failed, backing off", "error", err)
			if !o.sleep(ctx) {
				return nil
			}
			continue
		}

		if !stats.Empty() {
			o.logger.Info("sync round completed",
				"docs_indexed", stats.DocsIndexed,
				"docs_updated", stats.DocsUpdated,
				"docs_failed", stats.DocsFailed,
				"rows_rejected", stats.RowsRejected,
			)
			continue
		}

		if !o.sleep(ctx) {
			return nil
		}
	}
}

// isRunning reports whether a Run loop currently holds the slot.
func (o *SyncOrchestrator) isRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// sleep waits one poll interval; returns false when the context ended.
func (o *SyncOrchestrator) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		o.logger.Info("sync loop stopped")
		return false
	case <-time.After(o.pollInterval):
		return true
	}
}

// ensureBootstrap runs the full extract exactly once: only when the
// bootstrap watermark has never been committed.
func (o *SyncOrchestrator) ensureBootstrap(ctx context.Context) error {
	_, done, err := o.state.Get(ctx, string(domain.StreamBootstrap))
	if err != nil {
		return fmt.Errorf("read bootstrap watermark: %w", err)
	}
	if done {
		return nil
	}
	_, err = o.Bootstrap(ctx)
	return err
}

// Bootstrap performs the full extract-transform-index pass and seeds the
// incremental stream watermarks to the extract's cutoff, so the first poll
// starts exactly after it with no gap and no overlap. Re-running a
// bootstrap is always safe: every write is an idempotent upsert.
func (o *SyncOrchestrator) Bootstrap(ctx context.Context) (domain.SyncStats, error) {
	var stats domain.SyncStats

	started := time.Now()
	o.logger.Info("bootstrap starting")

	created, err := o.index.EnsureIndex(ctx)
	if err != nil {
		return stats, fmt.Errorf("ensure index: %w", err)
	}
	if created {
		o.logger.Info("search index created")
	}

	movies, err := o.source.ExtractAll(ctx)
	if err != nil {
		return stats, fmt.Errorf("full extract: %w", err)
	}

	ops, rejects := o.mapper.FullIndexOps(movies)
	o.logRejects(domain.StreamBootstrap, rejects, &stats)

	succeeded, failedIDs, err := o.index.ApplyBatch(ctx, ops, o.batchSize)
	if err != nil {
		return stats, fmt.Errorf("bootstrap index write: %w", err)
	}
	stats.DocsIndexed = succeeded
	o.logFailedDocs(domain.StreamBootstrap, failedIDs, &stats)

	// ExtractAll is ordered by modified ascending; the last row is the cutoff.
	var cutoff time.Time
	if len(movies) > 0 {
		cutoff = movies[len(movies)-1].Modified
	}

	// Seed the incremental streams first; the bootstrap key is committed
	// last so a crash in between repeats the (idempotent) bootstrap rather
	// than leaving an unseeded stream.
	watermark := domain.FormatWatermark(cutoff)
	for _, stream := range []domain.Stream{domain.StreamFilmwork, domain.StreamGenre, domain.StreamPerson} {
		if err := o.state.Set(ctx, string(stream), watermark); err != nil {
			return stats, fmt.Errorf("seed %s watermark: %w", stream, err)
		}
	}
	if err := o.state.Set(ctx, string(domain.StreamBootstrap), watermark); err != nil {
		return stats, fmt.Errorf("commit bootstrap watermark: %w", err)
	}

	o.logger.Info("bootstrap completed",
		"documents", succeeded,
		"cutoff", watermark,
		"duration", time.Since(started),
	)
	return stats, nil
}

// RunRound polls every stream once in fixed order, draining each until it
// reports empty. Watermarks advance only behind acknowledged index writes.
func (o *SyncOrchestrator) RunRound(ctx context.Context) (domain.SyncStats, error) {
	var stats domain.SyncStats

	if err := o.drainFilmworks(ctx, &stats); err != nil {
		return stats, err
	}
	if err := o.drainEntities(ctx, domain.EntityGenre, domain.StreamGenre, &stats); err != nil {
		return stats, err
	}
	if err := o.drainEntities(ctx, domain.EntityPerson, domain.StreamPerson, &stats); err != nil {
		return stats, err
	}

	return stats, nil
}

// drainFilmworks processes direct film edits until the stream is caught up.
func (o *SyncOrchestrator) drainFilmworks(ctx context.Context, stats *domain.SyncStats) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		since, err := o.watermark(ctx, domain.StreamFilmwork)
		if err != nil {
			return err
		}

		rows, newWatermark, err := o.source.PollFilmworkChanges(ctx, since, o.batchSize)
		if err != nil {
			return fmt.Errorf("poll film work changes: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		ops, rejects := o.mapper.FilmworkUpdateOps(rows)
		o.logRejects(domain.StreamFilmwork, rejects, stats)

		if err := o.applyAndAdvance(ctx, domain.StreamFilmwork, ops, newWatermark, stats); err != nil {
			return err
		}
	}
}

// drainEntities processes genre or person changes until the stream is
// caught up. Changed ids are enriched into full rollups of the affected
// films before mapping.
func (o *SyncOrchestrator) drainEntities(ctx context.Context, entity domain.EntityType, stream domain.Stream, stats *domain.SyncStats) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		since, err := o.watermark(ctx, stream)
		if err != nil {
			return err
		}

		ids, newWatermark, err := o.source.PollEntityChanges(ctx, entity, since, o.batchSize)
		if err != nil {
			return fmt.Errorf("poll %s changes: %w", entity, err)
		}
		if len(ids) == 0 {
			return nil
		}

		ops, rejects, err := o.resolveEntityOps(ctx, entity, ids)
		if err != nil {
			return err
		}
		o.logRejects(stream, rejects, stats)

		if err := o.applyAndAdvance(ctx, stream, ops, newWatermark, stats); err != nil {
			return err
		}
	}
}

// resolveEntityOps recomputes the affected films' denormalized sub-fields
// from current relational state and maps them to partial updates.
func (o *SyncOrchestrator) resolveEntityOps(ctx context.Context, entity domain.EntityType, ids []uuid.UUID) ([]domain.Operation, []domain.RejectedRow, error) {
	switch entity {
	case domain.EntityGenre:
		rollups, err := o.source.ResolveFilmsForGenres(ctx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve films for genres: %w", err)
		}
		ops, rejects := o.mapper.GenreUpdateOps(rollups)
		return ops, rejects, nil
	case domain.EntityPerson:
		rollups, err := o.source.ResolveFilmsForPersons(ctx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve films for persons: %w", err)
		}
		ops, rejects := o.mapper.PersonUpdateOps(rollups)
		return ops, rejects, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidInput, entity)
	}
}

// applyAndAdvance writes one batch and, only on acknowledged success,
// commits the stream's new watermark. Document-level rejections are
// counted and logged but do not hold the watermark back; those documents
// self-heal on their next change event.
func (o *SyncOrchestrator) applyAndAdvance(ctx context.Context, stream domain.Stream, ops []domain.Operation, newWatermark time.Time, stats *domain.SyncStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	succeeded, failedIDs, err := o.index.ApplyBatch(ctx, ops, o.batchSize)
	if err != nil {
		return fmt.Errorf("apply %s batch: %w", stream, err)
	}
	stats.DocsUpdated += succeeded
	o.logFailedDocs(stream, failedIDs, stats)

	if err := o.state.Set(ctx, string(stream), domain.FormatWatermark(newWatermark)); err != nil {
		return fmt.Errorf("advance %s watermark: %w", stream, err)
	}
	return nil
}

// watermark reads a stream's watermark; absent means the zero time.
func (o *SyncOrchestrator) watermark(ctx context.Context, stream domain.Stream) (time.Time, error) {
	value, ok, err := o.state.Get(ctx, string(stream))
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s watermark: %w", stream, err)
	}
	if !ok {
		return time.Time{}, nil
	}
	parsed, err := domain.ParseWatermark(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s watermark %q: %w", stream, value, err)
	}
	return parsed, nil
}

func (o *SyncOrchestrator) logRejects(stream domain.Stream, rejects []domain.RejectedRow, stats *domain.SyncStats) {
	stats.RowsRejected += len(rejects)
	for _, reject := range rejects {
		o.logger.Warn("row rejected",
			"stream", stream,
			"doc_id", reject.DocID,
			"reason", reject.Reason,
		)
	}
}

func (o *SyncOrchestrator) logFailedDocs(stream domain.Stream, failedIDs []string, stats *domain.SyncStats) {
	stats.DocsFailed += len(failedIDs)
	if len(failedIDs) > 0 {
		o.logger.Warn("documents rejected by index",
			"stream", stream,
			"failed", len(failedIDs),
			"doc_ids", failedIDs,
		)
	}
}
