package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/moviesync/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/moviesync/internal/core/services"
)

// Test helper to create a worker wired to mocks
func createTestWorker(t *testing.T) (*Worker, *mocks.MockSourceReader, *mocks.MockIndexWriter, *mocks.MockStateStore) {
	t.Helper()

	source := mocks.NewMockSourceReader()
	index := mocks.NewMockIndexWriter()
	state := mocks.NewMockStateStore()

	orchestrator := services.NewSyncOrchestrator(services.SyncOrchestratorConfig{
		Source:       source,
		Index:        index,
		State:        state,
		PollInterval: 5 * time.Millisecond,
	})

	w := NewWorker(WorkerConfig{
		Orchestrator: orchestrator,
		Source:       source,
		Index:        index,
	})

	return w, source, index, state
}

func TestWorker_StartStop(t *testing.T) {
	w, _, index, state := createTestWorker(t)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The loop bootstraps an empty catalog and then idles; wait for the
	// bootstrap watermark to appear.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := state.Value("bootstrap"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bootstrap never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if index.EnsureCalls() != 1 {
		t.Errorf("expected 1 EnsureIndex call, got %d", index.EnsureCalls())
	}

	w.Stop()

	if w.Health(context.Background()).Running {
		t.Error("worker still reports running after Stop")
	}
}

func TestWorker_StartIsIdempotent(t *testing.T) {
	w, _, _, _ := createTestWorker(t)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	// A second Start while running is a no-op, not an error.
	if err := w.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
}

func TestWorker_StopWithoutStart(t *testing.T) {
	w, _, _, _ := createTestWorker(t)
	w.Stop() // must not panic or block
}

func TestWorker_WaitReturnsOnContextCancel(t *testing.T) {
	w, _, _, _ := createTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}
}

func TestWorker_Health(t *testing.T) {
	w, source, index, _ := createTestWorker(t)
	ctx := context.Background()

	health := w.Health(ctx)
	if health.Running {
		t.Error("expected not running before Start")
	}
	if !health.SourceOK || !health.IndexOK {
		t.Errorf("expected healthy dependencies, got %+v", health)
	}

	source.PingErr = errors.New("connection refused")
	index.HealthErr = errors.New("cluster red")

	health = w.Health(ctx)
	if health.SourceOK {
		t.Error("expected source to be unhealthy")
	}
	if health.SourceError != "connection refused" {
		t.Errorf("source error = %q", health.SourceError)
	}
	if health.IndexOK {
		t.Error("expected index to be unhealthy")
	}
	if health.IndexError != "cluster red" {
		t.Errorf("index error = %q", health.IndexError)
	}
}

func TestWorker_HealthRunning(t *testing.T) {
	w, _, _, _ := createTestWorker(t)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if !w.Health(context.Background()).Running {
		t.Error("expected running after Start")
	}
}
