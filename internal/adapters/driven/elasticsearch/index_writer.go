package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/moviesync/internal/core/domain"
	"github.com/custodia-labs/moviesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexWriter = (*IndexWriter)(nil)

// IndexWriter implements driven.IndexWriter against the Elasticsearch
// document API.
type IndexWriter struct {
	baseURL    string
	index      string
	languages  []string
	httpClient *http.Client

	maxAttempts int
	backoffBase time.Duration
}

// Config holds Elasticsearch connection configuration
type Config struct {
	// BaseURL is the Elasticsearch endpoint (e.g., http://localhost:9200)
	BaseURL string

	// Index is the target index name
	Index string

	// Languages selects the analyzer stopword/stemmer chain
	Languages []string

	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxAttempts caps transport-level retries per bulk call
	MaxAttempts int

	// BackoffBase is the first retry delay; doubles each attempt
	BackoffBase time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL, index string) Config {
	return Config{
		BaseURL:     baseURL,
		Index:       index,
		Languages:   []string{"english", "russian"},
		Timeout:     30 * time.Second,
		MaxAttempts: 5,
		BackoffBase: 500 * time.Millisecond,
	}
}

// NewIndexWriter creates a new Elasticsearch-backed IndexWriter
func NewIndexWriter(cfg Config) *IndexWriter {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{"english", "russian"}
	}

	return &IndexWriter{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		index:     cfg.Index,
		languages: languages,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// EnsureIndex creates the movies index with its schema if it does not
// already exist. Safe to call on every startup.
func (w *IndexWriter) EnsureIndex(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/%s", w.baseURL, w.index)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", w.index, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return false, nil
	case resp.StatusCode != http.StatusNotFound:
		return false, fmt.Errorf("check index %s: unexpected status %s", w.index, resp.Status)
	}

	body, err := json.Marshal(indexSchema(w.languages))
	if err != nil {
		return false, err
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = w.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("create index %s: %w", w.index, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		// Lost the creation race to another process; the index is there.
		if bytes.Contains(respBody, []byte("resource_already_exists_exception")) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %s - %s", w.index, resp.Status, string(respBody))
	}

	return true, nil
}

// ApplyBatch applies operations in chunks of batchSize, one bulk call per
// chunk. A chunk that still fails at the transport level after all retry
// attempts aborts the batch; the caller keeps its watermark unchanged.
func (w *IndexWriter) ApplyBatch(ctx context.Context, ops []domain.Operation, batchSize int) (int, []string, error) {
	if batchSize <= 0 {
		batchSize = len(ops)
	}

	var (
		succeeded int
		failedIDs []string
	)
	for start := 0; start < len(ops); start += batchSize {
		end := start + batchSize
		if end > len(ops) {
			end = len(ops)
		}

		ok, failed, err := w.bulk(ctx, ops[start:end])
		if err != nil {
			return succeeded, failedIDs, err
		}
		succeeded += ok
		failedIDs = append(failedIDs, failed...)
	}

	return succeeded, failedIDs, nil
}

// bulk issues one _bulk call with transport-level retry.
func (w *IndexWriter) bulk(ctx context.Context, ops []domain.Operation) (int, []string, error) {
	body, err := encodeBulk(w.index, ops)
	if err != nil {
		return 0, nil, err
	}

	url := fmt.Sprintf("%s/_bulk", w.baseURL)

	var lastErr error
	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := w.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/x-ndjson")

		resp, err := w.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// 5xx and 429 are transport-level failures subject to retry.
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("bulk call failed: %s - %s", resp.Status, string(respBody))
			continue
		}

		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return 0, nil, fmt.Errorf("bulk call rejected: %s - %s", resp.Status, string(respBody))
		}

		succeeded, failedIDs, err := decodeBulkResponse(resp.Body)
		resp.Body.Close()
		if err != nil {
			return 0, nil, fmt.Errorf("decode bulk response: %w", err)
		}
		return succeeded, failedIDs, nil
	}

	return 0, nil, fmt.Errorf("%w: %d bulk attempts failed: %v", domain.ErrIndexUnavailable, w.maxAttempts, lastErr)
}

// HealthCheck verifies the cluster answers on its root endpoint.
func (w *IndexWriter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/", nil)
	if err != nil {
		return err
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch health check failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("elasticsearch unhealthy: %s", resp.Status)
	}

	return nil
}

// encodeBulk renders operations as NDJSON action/body line pairs.
func encodeBulk(index string, ops []domain.Operation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, op := range ops {
		action := map[string]any{
			string(op.Kind): map[string]any{
				"_index": index,
				"_id":    op.DocID,
			},
		}
		if err := enc.Encode(action); err != nil {
			return nil, err
		}

		switch op.Kind {
		case domain.OpIndex:
			if err := enc.Encode(op.Payload); err != nil {
				return nil, err
			}
		case domain.OpUpdate:
			if err := enc.Encode(map[string]any{"doc": op.Payload}); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: unknown operation kind %q", domain.ErrInvalidInput, op.Kind)
		}
	}

	return buf.Bytes(), nil
}

// bulkResponse is the subset of the _bulk reply we act on.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string          `json:"_id"`
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error"`
	} `json:"items"`
}

// decodeBulkResponse counts per-document outcomes of a successful call.
func decodeBulkResponse(r io.Reader) (int, []string, error) {
	var parsed bulkResponse
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return 0, nil, err
	}

	var (
		succeeded int
		failedIDs []string
	)
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Status < 300 {
				succeeded++
			} else {
				failedIDs = append(failedIDs, result.ID)
			}
		}
	}

	return succeeded, failedIDs, nil
}
