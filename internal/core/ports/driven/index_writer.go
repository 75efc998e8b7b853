package driven

import (
	"context"

	"github.com/custodia-labs/moviesync/internal/core/domain"
)

// IndexWriter manages the search index's schema lifecycle and performs
// batched bulk writes (Elasticsearch).
type IndexWriter interface {
	// EnsureIndex creates the index with its schema descriptor if absent.
	// Idempotent; returns created=false when the index already exists.
	EnsureIndex(ctx context.Context) (created bool, err error)

	// ApplyBatch splits operations into chunks of batchSize and issues one
	// bulk call per chunk. Transport-level chunk failures are retried with
	// exponential backoff; after exhaustion an error is returned and the
	// caller must not advance its watermark. Document-level rejections
	// inside an otherwise-successful call are reported in failedIDs and do
	// not fail the batch.
	ApplyBatch(ctx context.Context, ops []domain.Operation, batchSize int) (succeeded int, failedIDs []string, err error)

	// HealthCheck verifies the search index is available.
	HealthCheck(ctx context.Context) error
}
