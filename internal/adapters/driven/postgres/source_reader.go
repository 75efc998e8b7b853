package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/custodia-labs/moviesync/internal/core/domain"
	"github.com/custodia-labs/moviesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SourceReader = (*SourceReader)(nil)

// defaultQueryTimeout bounds every outbound query; a timeout is treated as
// a transport failure by the caller.
const defaultQueryTimeout = 30 * time.Second

// SourceReader implements driven.SourceReader over the content schema
// tables written by the admin application.
type SourceReader struct {
	db           *DB
	queryTimeout time.Duration
}

// NewSourceReader creates a new SourceReader
func NewSourceReader(db *DB) *SourceReader {
	return &SourceReader{db: db, queryTimeout: defaultQueryTimeout}
}

// NewSourceReaderWithTimeout creates a SourceReader with an explicit
// per-query timeout.
func NewSourceReaderWithTimeout(db *DB, timeout time.Duration) *SourceReader {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &SourceReader{db: db, queryTimeout: timeout}
}

// peopleAggregates is the shared SELECT list for role-filtered person
// aggregation: flattened name arrays plus nested {id,name} objects per role.
const peopleAggregates = `
	COALESCE(array_agg(DISTINCT p.full_name) FILTER (WHERE pfw.role = 'director'), '{}') AS directors_names,
	COALESCE(array_agg(DISTINCT p.full_name) FILTER (WHERE pfw.role = 'actor'), '{}') AS actors_names,
	COALESCE(array_agg(DISTINCT p.full_name) FILTER (WHERE pfw.role = 'writer'), '{}') AS writers_names,
	COALESCE(json_agg(DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name))
		FILTER (WHERE pfw.role = 'director'), '[]') AS directors,
	COALESCE(json_agg(DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name))
		FILTER (WHERE pfw.role = 'actor'), '[]') AS actors,
	COALESCE(json_agg(DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name))
		FILTER (WHERE pfw.role = 'writer'), '[]') AS writers`

// ExtractAll returns every film with its genres and people aggregated,
// ordered by modified ascending. Bootstrap only.
func (r *SourceReader) ExtractAll(ctx context.Context) ([]domain.Movie, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT
			fw.id,
			fw.title,
			fw.description,
			fw.rating,
			fw.modified,
			COALESCE(array_agg(DISTINCT g.name) FILTER (WHERE g.name IS NOT NULL), '{}') AS genres,` +
		peopleAggregates + `
		FROM content.film_work fw
		LEFT JOIN content.person_film_work pfw ON pfw.film_work_id = fw.id
		LEFT JOIN content.person p ON p.id = pfw.person_id
		LEFT JOIN content.genre_film_work gfw ON gfw.film_work_id = fw.id
		LEFT JOIN content.genre g ON g.id = gfw.genre_id
		GROUP BY fw.id
		ORDER BY fw.modified
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("extract film works: %w", err)
	}
	defer rows.Close()

	var movies []domain.Movie
	for rows.Next() {
		var (
			movie       domain.Movie
			id          string
			description sql.NullString
			rating      sql.NullFloat64
			genres      []string
			dn, an, wn  []string
			dj, aj, wj  []byte
		)

		err := rows.Scan(
			&id,
			&movie.Title,
			&description,
			&rating,
			&movie.Modified,
			pq.Array(&genres),
			pq.Array(&dn),
			pq.Array(&an),
			pq.Array(&wn),
			&dj,
			&aj,
			&wj,
		)
		if err != nil {
			return nil, fmt.Errorf("scan film work: %w", err)
		}

		movie.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse film work id %q: %w", id, err)
		}
		if description.Valid {
			movie.Description = description.String
		}
		if rating.Valid {
			movie.Rating = &rating.Float64
		}
		movie.Genres = genres
		movie.DirectorsNames = dn
		movie.ActorsNames = an
		movie.WritersNames = wn

		if movie.Directors, err = decodePeople(dj); err != nil {
			return nil, fmt.Errorf("decode directors for %s: %w", id, err)
		}
		if movie.Actors, err = decodePeople(aj); err != nil {
			return nil, fmt.Errorf("decode actors for %s: %w", id, err)
		}
		if movie.Writers, err = decodePeople(wj); err != nil {
			return nil, fmt.Errorf("decode writers for %s: %w", id, err)
		}

		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate film works: %w", err)
	}

	return movies, nil
}

// PollEntityChanges returns changed person or genre ids strictly after the
// watermark, oldest first.
func (r *SourceReader) PollEntityChanges(ctx context.Context, entity domain.EntityType, since time.Time, limit int) ([]uuid.UUID, time.Time, error) {
	var table string
	switch entity {
	case domain.EntityPerson:
		table = "content.person"
	case domain.EntityGenre:
		table = "content.genre"
	default:
		return nil, time.Time{}, fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidInput, entity)
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, modified
		FROM %s
		WHERE modified > $1
		ORDER BY modified
		LIMIT $2
	`, table)

	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("poll %s changes: %w", entity, err)
	}
	defer rows.Close()

	var (
		ids       []uuid.UUID
		watermark time.Time
	)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id, &watermark); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan %s change: %w", entity, err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("parse %s id %q: %w", entity, id, err)
		}
		ids = append(ids, parsed)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate %s changes: %w", entity, err)
	}

	return ids, watermark, nil
}

// PollFilmworkChanges returns films whose own row changed strictly after
// the watermark, oldest first. Covers title/description/rating edits only.
func (r *SourceReader) PollFilmworkChanges(ctx context.Context, since time.Time, limit int) ([]domain.FilmworkRow, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT id, title, description, rating, modified
		FROM content.film_work
		WHERE modified > $1
		ORDER BY modified
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("poll film work changes: %w", err)
	}
	defer rows.Close()

	var (
		result    []domain.FilmworkRow
		watermark time.Time
	)
	for rows.Next() {
		var (
			row         domain.FilmworkRow
			id          string
			description sql.NullString
			rating      sql.NullFloat64
		)
		if err := rows.Scan(&id, &row.Title, &description, &rating, &row.Modified); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan film work change: %w", err)
		}
		row.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("parse film work id %q: %w", id, err)
		}
		if description.Valid {
			row.Description = description.String
		}
		if rating.Valid {
			row.Rating = &rating.Float64
		}
		watermark = row.Modified
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate film work changes: %w", err)
	}

	return result, watermark, nil
}

// ResolveFilmsForPersons re-aggregates the full people sub-fields of every
// film linked to one of the given persons. The aggregation runs over all of
// a film's people, not just the changed ones, so the document always
// reflects current joins.
func (r *SourceReader) ResolveFilmsForPersons(ctx context.Context, ids []uuid.UUID) ([]domain.FilmPeople, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT
			fw.id,` + peopleAggregates + `
		FROM content.film_work fw
		LEFT JOIN content.person_film_work pfw ON pfw.film_work_id = fw.id
		LEFT JOIN content.person p ON p.id = pfw.person_id
		WHERE fw.id IN (
			SELECT film_work_id FROM content.person_film_work WHERE person_id = ANY($1)
		)
		GROUP BY fw.id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("resolve films for persons: %w", err)
	}
	defer rows.Close()

	var result []domain.FilmPeople
	for rows.Next() {
		var (
			rollup     domain.FilmPeople
			id         string
			dn, an, wn []string
			dj, aj, wj []byte
		)
		err := rows.Scan(
			&id,
			pq.Array(&dn),
			pq.Array(&an),
			pq.Array(&wn),
			&dj,
			&aj,
			&wj,
		)
		if err != nil {
			return nil, fmt.Errorf("scan person rollup: %w", err)
		}
		rollup.FilmID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse film id %q: %w", id, err)
		}
		rollup.DirectorsNames = dn
		rollup.ActorsNames = an
		rollup.WritersNames = wn
		if rollup.Directors, err = decodePeople(dj); err != nil {
			return nil, fmt.Errorf("decode directors for %s: %w", id, err)
		}
		if rollup.Actors, err = decodePeople(aj); err != nil {
			return nil, fmt.Errorf("decode actors for %s: %w", id, err)
		}
		if rollup.Writers, err = decodePeople(wj); err != nil {
			return nil, fmt.Errorf("decode writers for %s: %w", id, err)
		}
		result = append(result, rollup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate person rollups: %w", err)
	}

	return result, nil
}

// ResolveFilmsForGenres re-aggregates the full genre list of every film
// linked to one of the given genres.
func (r *SourceReader) ResolveFilmsForGenres(ctx context.Context, ids []uuid.UUID) ([]domain.FilmGenres, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT
			fw.id,
			COALESCE(array_agg(DISTINCT g.name) FILTER (WHERE g.name IS NOT NULL), '{}') AS genres
		FROM content.film_work fw
		LEFT JOIN content.genre_film_work gfw ON gfw.film_work_id = fw.id
		LEFT JOIN content.genre g ON g.id = gfw.genre_id
		WHERE fw.id IN (
			SELECT film_work_id FROM content.genre_film_work WHERE genre_id = ANY($1)
		)
		GROUP BY fw.id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("resolve films for genres: %w", err)
	}
	defer rows.Close()

	var result []domain.FilmGenres
	for rows.Next() {
		var (
			rollup domain.FilmGenres
			id     string
			genres []string
		)
		if err := rows.Scan(&id, pq.Array(&genres)); err != nil {
			return nil, fmt.Errorf("scan genre rollup: %w", err)
		}
		var err error
		rollup.FilmID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse film id %q: %w", id, err)
		}
		rollup.Genres = genres
		result = append(result, rollup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genre rollups: %w", err)
	}

	return result, nil
}

// Ping checks if the relational source is reachable.
func (r *SourceReader) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	return r.db.Ping(ctx)
}

// decodePeople unmarshals a json_agg result column into person refs.
func decodePeople(raw []byte) ([]domain.PersonRef, error) {
	var refs []domain.PersonRef
	if len(raw) == 0 {
		return refs, nil
	}
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
