package domain

import "time"

// Stream identifies a logical source of change events. Each stream owns an
// independent watermark in the state store.
type Stream string

const (
	StreamBootstrap Stream = "bootstrap"
	StreamFilmwork  Stream = "film_work_updates"
	StreamGenre     Stream = "genre_updates"
	StreamPerson    Stream = "person_updates"
)

// WatermarkLayout is the wire format for watermark values in the state store.
const WatermarkLayout = time.RFC3339Nano

// FormatWatermark renders a modification timestamp as a state store value.
func FormatWatermark(t time.Time) string {
	return t.UTC().Format(WatermarkLayout)
}

// ParseWatermark parses a stored watermark value.
func ParseWatermark(s string) (time.Time, error) {
	return time.Parse(WatermarkLayout, s)
}

// OpKind is the kind of bulk operation applied to the index.
type OpKind string

const (
	// OpIndex writes the complete document, replacing any existing one.
	OpIndex OpKind = "index"
	// OpUpdate merges a partial payload into the existing document.
	OpUpdate OpKind = "update"
)

// Operation is one index/update action destined for the search index.
// Payload is a minimal typed body; update operations never carry fields
// outside the stream that produced them, so concurrent updates to disjoint
// fields cannot clobber each other.
type Operation struct {
	Kind    OpKind
	DocID   string
	Payload any
}

// RejectedRow records a source row that failed document validation and was
// skipped. Rejections are logged as defects; they never abort a batch.
type RejectedRow struct {
	DocID  string
	Reason string
}

// SyncStats accumulates counters for one sync round.
type SyncStats struct {
	DocsIndexed  int `json:"docs_indexed"`
	DocsUpdated  int `json:"docs_updated"`
	DocsFailed   int `json:"docs_failed"`
	RowsRejected int `json:"rows_rejected"`
}

// Empty reports whether the round saw no changes on any stream.
func (s SyncStats) Empty() bool {
	return s.DocsIndexed == 0 && s.DocsUpdated == 0 && s.DocsFailed == 0 && s.RowsRejected == 0
}

// Add merges another stats value into this one.
func (s *SyncStats) Add(other SyncStats) {
	s.DocsIndexed += other.DocsIndexed
	s.DocsUpdated += other.DocsUpdated
	s.DocsFailed += other.DocsFailed
	s.RowsRejected += other.RowsRejected
}
