package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/custodia-labs/moviesync/internal/core/domain"
)

// DocumentMapper transforms relational rows into index write operations.
// All transforms are pure; validation failures are returned as rejects for
// the caller to log, never as errors that would block the batch.
type DocumentMapper struct{}

// NewDocumentMapper creates a new DocumentMapper.
func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

// movieDoc is the complete document body written at bootstrap.
type movieDoc struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	IMDBRating  *float64 `json:"imdb_rating"`
	Genres      []string `json:"genres"`

	Directors []domain.PersonRef `json:"directors"`
	Actors    []domain.PersonRef `json:"actors"`
	Writers   []domain.PersonRef `json:"writers"`

	DirectorsNames []string `json:"directors_names"`
	ActorsNames    []string `json:"actors_names"`
	WritersNames   []string `json:"writers_names"`
}

// filmworkFields is the partial payload for direct film edits.
type filmworkFields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	IMDBRating  *float64 `json:"imdb_rating"`
}

// genreFields is the partial payload for a genre-triggered update.
type genreFields struct {
	Genres []string `json:"genres"`
}

// peopleFields is the partial payload for a person-triggered update.
type peopleFields struct {
	Directors []domain.PersonRef `json:"directors"`
	Actors    []domain.PersonRef `json:"actors"`
	Writers   []domain.PersonRef `json:"writers"`

	DirectorsNames []string `json:"directors_names"`
	ActorsNames    []string `json:"actors_names"`
	WritersNames   []string `json:"writers_names"`
}

// FullIndexOps builds complete index operations for the bootstrap load.
func (m *DocumentMapper) FullIndexOps(movies []domain.Movie) ([]domain.Operation, []domain.RejectedRow) {
	ops := make([]domain.Operation, 0, len(movies))
	var rejects []domain.RejectedRow

	for _, movie := range movies {
		if reject, bad := validateIdentity(movie.ID, movie.Title); bad {
			rejects = append(rejects, reject)
			continue
		}

		ops = append(ops, domain.Operation{
			Kind:  domain.OpIndex,
			DocID: movie.ID.String(),
			Payload: movieDoc{
				ID:             movie.ID.String(),
				Title:          movie.Title,
				Description:    movie.Description,
				IMDBRating:     movie.Rating,
				Genres:         names(movie.Genres),
				Directors:      people(movie.Directors),
				Actors:         people(movie.Actors),
				Writers:        people(movie.Writers),
				DirectorsNames: names(movie.DirectorsNames),
				ActorsNames:    names(movie.ActorsNames),
				WritersNames:   names(movie.WritersNames),
			},
		})
	}

	return ops, rejects
}

// FilmworkUpdateOps builds partial updates touching only the film table's
// own fields.
func (m *DocumentMapper) FilmworkUpdateOps(rows []domain.FilmworkRow) ([]domain.Operation, []domain.RejectedRow) {
	ops := make([]domain.Operation, 0, len(rows))
	var rejects []domain.RejectedRow

	for _, row := range rows {
		if reject, bad := validateIdentity(row.ID, row.Title); bad {
			rejects = append(rejects, reject)
			continue
		}

		ops = append(ops, domain.Operation{
			Kind:  domain.OpUpdate,
			DocID: row.ID.String(),
			Payload: filmworkFields{
				Title:       row.Title,
				Description: row.Description,
				IMDBRating:  row.Rating,
			},
		})
	}

	return ops, rejects
}

// GenreUpdateOps builds partial updates touching only the genres field.
func (m *DocumentMapper) GenreUpdateOps(rollups []domain.FilmGenres) ([]domain.Operation, []domain.RejectedRow) {
	ops := make([]domain.Operation, 0, len(rollups))
	var rejects []domain.RejectedRow

	for _, rollup := range rollups {
		if rollup.FilmID == uuid.Nil {
			rejects = append(rejects, domain.RejectedRow{Reason: "missing film id"})
			continue
		}

		ops = append(ops, domain.Operation{
			Kind:    domain.OpUpdate,
			DocID:   rollup.FilmID.String(),
			Payload: genreFields{Genres: names(rollup.Genres)},
		})
	}

	return ops, rejects
}

// PersonUpdateOps builds partial updates touching only the people arrays
// and their flattened name copies.
func (m *DocumentMapper) PersonUpdateOps(rollups []domain.FilmPeople) ([]domain.Operation, []domain.RejectedRow) {
	ops := make([]domain.Operation, 0, len(rollups))
	var rejects []domain.RejectedRow

	for _, rollup := range rollups {
		if rollup.FilmID == uuid.Nil {
			rejects = append(rejects, domain.RejectedRow{Reason: "missing film id"})
			continue
		}

		ops = append(ops, domain.Operation{
			Kind:  domain.OpUpdate,
			DocID: rollup.FilmID.String(),
			Payload: peopleFields{
				Directors:      people(rollup.Directors),
				Actors:         people(rollup.Actors),
				Writers:        people(rollup.Writers),
				DirectorsNames: names(rollup.DirectorsNames),
				ActorsNames:    names(rollup.ActorsNames),
				WritersNames:   names(rollup.WritersNames),
			},
		})
	}

	return ops, rejects
}

// validateIdentity checks the required id and title fields of a film row.
func validateIdentity(id uuid.UUID, title string) (domain.RejectedRow, bool) {
	if id == uuid.Nil {
		return domain.RejectedRow{Reason: "missing film id"}, true
	}
	if title == "" {
		return domain.RejectedRow{DocID: id.String(), Reason: fmt.Sprintf("film %s has no title", id)}, true
	}
	return domain.RejectedRow{}, false
}

// names normalizes a nil slice to an empty one so documents carry [] rather
// than null, matching the aggregation queries' COALESCE behaviour.
func names(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func people(refs []domain.PersonRef) []domain.PersonRef {
	if refs == nil {
		return []domain.PersonRef{}
	}
	return refs
}
