package driven

import "context"

// StateStore handles durable watermark persistence.
// Values survive process restart; the SyncOrchestrator is the only writer.
type StateStore interface {
	// Get retrieves the value for a stream key.
	// A missing key returns ok=false, not an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set durably persists the value for a stream key.
	// The write is atomic with respect to the key: a crash mid-write must
	// not corrupt previously committed state.
	Set(ctx context.Context, key, value string) error
}
