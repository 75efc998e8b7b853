package domain

import (
	"time"

	"github.com/google/uuid"
)

// PersonRef is a person as embedded in a movie document.
type PersonRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Movie is the denormalized search document for a film work.
// Related genres and people are embedded directly; the *_names arrays are
// flattened copies of the nested people lists used for full-text search.
type Movie struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Rating      *float64    `json:"imdb_rating"` // 0-10, nullable in the source
	Genres      []string    `json:"genres"`
	Directors   []PersonRef `json:"directors"`
	Actors      []PersonRef `json:"actors"`
	Writers     []PersonRef `json:"writers"`

	DirectorsNames []string `json:"directors_names"`
	ActorsNames    []string `json:"actors_names"`
	WritersNames   []string `json:"writers_names"`

	// Modified is the source-of-truth change timestamp. It is monotonically
	// non-decreasing per entity and drives watermark advancement.
	Modified time.Time `json:"-"`
}

// FilmworkRow holds the film table's own columns. It covers direct
// title/description/rating edits, not relation changes.
type FilmworkRow struct {
	ID          uuid.UUID
	Title       string
	Description string
	Rating      *float64
	Modified    time.Time
}

// FilmGenres is the re-aggregated genre rollup for one film, produced when
// a genre the film references changes. It deliberately carries nothing but
// the fields a genre change may touch.
type FilmGenres struct {
	FilmID uuid.UUID
	Genres []string
}

// FilmPeople is the re-aggregated people rollup for one film, produced when
// a person linked to the film changes. Always a full recomputation of the
// role arrays from current relational state, never a diff.
type FilmPeople struct {
	FilmID    uuid.UUID
	Directors []PersonRef
	Actors    []PersonRef
	Writers   []PersonRef

	DirectorsNames []string
	ActorsNames    []string
	WritersNames   []string
}

// EntityType identifies a change-producing source table other than film_work.
type EntityType string

const (
	EntityPerson EntityType = "person"
	EntityGenre  EntityType = "genre"
)
