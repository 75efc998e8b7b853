package driven

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/custodia-labs/moviesync/internal/core/domain"
)

// SourceReader issues read-only aggregate queries against the relational
// movie catalog (PostgreSQL).
type SourceReader interface {
	// ExtractAll returns the full denormalized dataset, sorted by modified
	// ascending. Used only at bootstrap.
	ExtractAll(ctx context.Context) ([]domain.Movie, error)

	// PollEntityChanges returns up to limit person or genre ids whose
	// modified timestamp is strictly greater than since, ordered by
	// modification time ascending. newWatermark is the modified value of
	// the last returned row; an empty result signals the stream is caught up.
	PollEntityChanges(ctx context.Context, entity domain.EntityType, since time.Time, limit int) (ids []uuid.UUID, newWatermark time.Time, err error)

	// PollFilmworkChanges is the same contract scoped to the film table's
	// own modified column.
	PollFilmworkChanges(ctx context.Context, since time.Time, limit int) (rows []domain.FilmworkRow, newWatermark time.Time, err error)

	// ResolveFilmsForPersons re-aggregates the people sub-fields of every
	// film referencing one of the given persons, fresh from current
	// relational state.
	ResolveFilmsForPersons(ctx context.Context, ids []uuid.UUID) ([]domain.FilmPeople, error)

	// ResolveFilmsForGenres re-aggregates the genre names of every film
	// referencing one of the given genres.
	ResolveFilmsForGenres(ctx context.Context, ids []uuid.UUID) ([]domain.FilmGenres, error)

	// Ping checks if the relational source is reachable.
	Ping(ctx context.Context) error
}
