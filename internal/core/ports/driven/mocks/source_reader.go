package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/custodia-labs/moviesync/internal/core/domain"
)

// EntityRow is a person or genre row in the mock catalog
type EntityRow struct {
	ID       uuid.UUID
	Modified time.Time
}

// MockSourceReader is a mock implementation of SourceReader for testing.
// It behaves like a small in-memory catalog: poll methods filter by the
// since watermark and respect the limit, the way the real queries do.
type MockSourceReader struct {
	mu sync.RWMutex

	Movies    []domain.Movie
	Filmworks []domain.FilmworkRow
	Entities  map[domain.EntityType][]EntityRow

	// PeopleRollups/GenreRollups are returned by the resolve methods when
	// any requested id matches a key
	PeopleRollups map[uuid.UUID][]domain.FilmPeople
	GenreRollups  map[uuid.UUID][]domain.FilmGenres

	// Error injection
	ExtractErr error
	PollErr    error
	ResolveErr error
	PingErr    error

	extractCalls int
}

// NewMockSourceReader creates a new MockSourceReader
func NewMockSourceReader() *MockSourceReader {
	return &MockSourceReader{
		Entities:      make(map[domain.EntityType][]EntityRow),
		PeopleRollups: make(map[uuid.UUID][]domain.FilmPeople),
		GenreRollups:  make(map[uuid.UUID][]domain.FilmGenres),
	}
}

func (m *MockSourceReader) ExtractAll(ctx context.Context) ([]domain.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractCalls++
	if m.ExtractErr != nil {
		return nil, m.ExtractErr
	}
	movies := append([]domain.Movie(nil), m.Movies...)
	sort.Slice(movies, func(i, j int) bool {
		return movies[i].Modified.Before(movies[j].Modified)
	})
	return movies, nil
}

func (m *MockSourceReader) PollEntityChanges(ctx context.Context, entity domain.EntityType, since time.Time, limit int) ([]uuid.UUID, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.PollErr != nil {
		return nil, time.Time{}, m.PollErr
	}

	rows := append([]EntityRow(nil), m.Entities[entity]...)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Modified.Before(rows[j].Modified)
	})

	var (
		ids       []uuid.UUID
		watermark time.Time
	)
	for _, row := range rows {
		if !row.Modified.After(since) {
			continue
		}
		ids = append(ids, row.ID)
		watermark = row.Modified
		if len(ids) == limit {
			break
		}
	}
	return ids, watermark, nil
}

func (m *MockSourceReader) PollFilmworkChanges(ctx context.Context, since time.Time, limit int) ([]domain.FilmworkRow, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.PollErr != nil {
		return nil, time.Time{}, m.PollErr
	}

	rows := append([]domain.FilmworkRow(nil), m.Filmworks...)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Modified.Before(rows[j].Modified)
	})

	var (
		result    []domain.FilmworkRow
		watermark time.Time
	)
	for _, row := range rows {
		if !row.Modified.After(since) {
			continue
		}
		result = append(result, row)
		watermark = row.Modified
		if len(result) == limit {
			break
		}
	}
	return result, watermark, nil
}

func (m *MockSourceReader) ResolveFilmsForPersons(ctx context.Context, ids []uuid.UUID) ([]domain.FilmPeople, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}
	var result []domain.FilmPeople
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		for _, rollup := range m.PeopleRollups[id] {
			if !seen[rollup.FilmID] {
				seen[rollup.FilmID] = true
				result = append(result, rollup)
			}
		}
	}
	return result, nil
}

func (m *MockSourceReader) ResolveFilmsForGenres(ctx context.Context, ids []uuid.UUID) ([]domain.FilmGenres, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}
	var result []domain.FilmGenres
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		for _, rollup := range m.GenreRollups[id] {
			if !seen[rollup.FilmID] {
				seen[rollup.FilmID] = true
				result = append(result, rollup)
			}
		}
	}
	return result, nil
}

func (m *MockSourceReader) Ping(ctx context.Context) error {
	return m.PingErr
}

// Helper methods for testing

// ExtractCalls returns how many times ExtractAll was invoked
func (m *MockSourceReader) ExtractCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.extractCalls
}
