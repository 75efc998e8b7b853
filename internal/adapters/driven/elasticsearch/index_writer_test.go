package elasticsearch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/moviesync/internal/core/domain"
)

// fastConfig keeps retry backoff out of test runtime.
func fastConfig(baseURL string) Config {
	cfg := DefaultConfig(baseURL, "movies")
	cfg.BackoffBase = time.Millisecond
	return cfg
}

func indexOp(id string) domain.Operation {
	return domain.Operation{
		Kind:    domain.OpIndex,
		DocID:   id,
		Payload: map[string]any{"id": id, "title": "Film " + id},
	}
}

// bulkOK writes a _bulk reply marking every submitted document successful.
func bulkOK(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var items []map[string]any

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		var action map[string]struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &action); err != nil {
			continue
		}
		for kind, meta := range action {
			if kind != "index" && kind != "update" {
				continue
			}
			items = append(items, map[string]any{
				kind: map[string]any{"_id": meta.ID, "status": 200},
			})
			scanner.Scan() // consume the body line
		}
	}

	json.NewEncoder(w).Encode(map[string]any{"errors": false, "items": items})
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	var putBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			putBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	writer := NewIndexWriter(fastConfig(server.URL))
	created, err := writer.EnsureIndex(context.Background())
	if err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	if !created {
		t.Error("expected index to be created")
	}

	// The schema carries the analyzer chain and strict mappings.
	var schema map[string]any
	if err := json.Unmarshal(putBody, &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if _, ok := schema["settings"]; !ok {
		t.Error("schema missing settings")
	}
	if _, ok := schema["mappings"]; !ok {
		t.Error("schema missing mappings")
	}
	if !bytes.Contains(putBody, []byte(`"multilang"`)) {
		t.Error("schema missing the multilang analyzer")
	}
}

func TestEnsureIndex_IdempotentWhenPresent(t *testing.T) {
	var putCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			putCalls++
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	writer := NewIndexWriter(fastConfig(server.URL))
	created, err := writer.EnsureIndex(context.Background())
	if err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	if created {
		t.Error("expected existing index to be left alone")
	}
	if putCalls != 0 {
		t.Errorf("expected no PUT, got %d", putCalls)
	}
}

func TestEnsureIndex_CreationRaceIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"type":"resource_already_exists_exception"}}`)
		}
	}))
	defer server.Close()

	writer := NewIndexWriter(fastConfig(server.URL))
	created, err := writer.EnsureIndex(context.Background())
	if err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	if created {
		t.Error("lost race should report the index as pre-existing")
	}
}

func TestApplyBatch_ChunksByBatchSize(t *testing.T) {
	var bulkCalls int
	var ndjsonOK = true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bulkCalls++
		if ct := r.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			ndjsonOK = false
		}
		bulkOK(w, r)
	}))
	defer server.Close()

	var ops []domain.Operation
	for i := 0; i < 5; i++ {
		ops = append(ops, indexOp(fmt.Sprintf("doc-%d", i)))
	}

	writer := NewIndexWriter(fastConfig(server.URL))
	succeeded, failedIDs, err := writer.ApplyBatch(context.Background(), ops, 2)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if succeeded != 5 {
		t.Errorf("succeeded = %d, want 5", succeeded)
	}
	if len(failedIDs) != 0 {
		t.Errorf("unexpected failures: %v", failedIDs)
	}
	if bulkCalls != 3 { // 2 + 2 + 1
		t.Errorf("bulk calls = %d, want 3", bulkCalls)
	}
	if !ndjsonOK {
		t.Error("bulk calls must use application/x-ndjson")
	}
}

func TestApplyBatch_RetriesThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		bulkOK(w, r)
	}))
	defer server.Close()

	writer := NewIndexWriter(fastConfig(server.URL))
	succeeded, _, err := writer.ApplyBatch(context.Background(), []domain.Operation{indexOp("a")}, 10)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 3 failures + 1 success", calls)
	}
}

func TestApplyBatch_ExhaustedRetriesIsIndexUnavailable(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := fastConfig(server.URL)
	cfg.MaxAttempts = 3
	writer := NewIndexWriter(cfg)

	_, _, err := writer.ApplyBatch(context.Background(), []domain.Operation{indexOp("a")}, 10)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly MaxAttempts", calls)
	}
}

func TestApplyBatch_ClientErrorIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"malformed action"}`)
	}))
	defer server.Close()

	writer := NewIndexWriter(fastConfig(server.URL))
	_, _, err := writer.ApplyBatch(context.Background(), []domain.Operation{indexOp("a")}, 10)
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if errors.Is(err, domain.ErrIndexUnavailable) {
		t.Error("a 400 is a permanent rejection, not unavailability")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want no retries on 4xx", calls)
	}
}

func TestApplyBatch_ReportsPerDocumentFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"errors": true,
			"items": [
				{"index": {"_id": "good", "status": 201}},
				{"index": {"_id": "bad", "status": 400, "error": {"type": "mapper_parsing_exception"}}}
			]
		}`)
	}))
	defer server.Close()

	writer := NewIndexWriter(fastConfig(server.URL))
	succeeded, failedIDs, err := writer.ApplyBatch(context.Background(), []domain.Operation{indexOp("good"), indexOp("bad")}, 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
	if len(failedIDs) != 1 || failedIDs[0] != "bad" {
		t.Errorf("failedIDs = %v, want [bad]", failedIDs)
	}
}

func TestApplyBatch_CancelledContextStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := fastConfig(server.URL)
	cfg.BackoffBase = 50 * time.Millisecond
	writer := NewIndexWriter(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := writer.ApplyBatch(ctx, []domain.Operation{indexOp("a")}, 10)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
}

func TestEncodeBulk_NDJSONShapes(t *testing.T) {
	ops := []domain.Operation{
		{Kind: domain.OpIndex, DocID: "f1", Payload: map[string]any{"title": "Full"}},
		{Kind: domain.OpUpdate, DocID: "f2", Payload: map[string]any{"genres": []string{"Drama"}}},
	}

	body, err := encodeBulk("movies", ops)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 NDJSON lines, got %d", len(lines))
	}

	var action map[string]map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &action); err != nil {
		t.Fatal(err)
	}
	if action["index"]["_index"] != "movies" || action["index"]["_id"] != "f1" {
		t.Errorf("unexpected index action: %s", lines[0])
	}

	// Update bodies are wrapped in a doc envelope; index bodies are bare.
	if strings.Contains(lines[1], `"doc"`) {
		t.Errorf("index payload must not be wrapped: %s", lines[1])
	}
	if !strings.Contains(lines[3], `"doc"`) {
		t.Errorf("update payload must be wrapped in doc: %s", lines[3])
	}
}

func TestEncodeBulk_UnknownKind(t *testing.T) {
	_, err := encodeBulk("movies", []domain.Operation{{Kind: "delete", DocID: "x"}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"cluster_name":"test"}`)
	}))
	defer healthy.Close()

	writer := NewIndexWriter(fastConfig(healthy.URL))
	if err := writer.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	writer = NewIndexWriter(fastConfig(unhealthy.URL))
	if err := writer.HealthCheck(context.Background()); err == nil {
		t.Error("expected error from unhealthy cluster")
	}
}
