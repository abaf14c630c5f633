// Package dataset defines the flat movie table persisted as Parquet and the
// NDJSON document format used for the raw TMDB archive.
package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Movie is one row of the movies table. Nested TMDB lists are flattened to
// comma separated names, the same way keywords are.
type Movie struct {
	ID                  int64   `parquet:"id" json:"id"`
	IMDbID              string  `parquet:"imdb_id" json:"imdb_id"`
	Title               string  `parquet:"title" json:"title"`
	OriginalTitle       string  `parquet:"original_title" json:"original_title"`
	OriginalLanguage    string  `parquet:"original_language" json:"original_language"`
	Overview            string  `parquet:"overview" json:"overview"`
	Tagline             string  `parquet:"tagline" json:"tagline"`
	Status              string  `parquet:"status" json:"status"`
	ReleaseDate         string  `parquet:"release_date" json:"release_date"`
	Homepage            string  `parquet:"homepage" json:"homepage"`
	PosterPath          string  `parquet:"poster_path" json:"poster_path"`
	BackdropPath        string  `parquet:"backdrop_path" json:"backdrop_path"`
	Adult               bool    `parquet:"adult" json:"adult"`
	Video               bool    `parquet:"video" json:"video"`
	Budget              int64   `parquet:"budget" json:"budget"`
	Revenue             int64   `parquet:"revenue" json:"revenue"`
	Runtime             int64   `parquet:"runtime" json:"runtime"`
	Popularity          float64 `parquet:"popularity" json:"popularity"`
	VoteAverage         float64 `parquet:"vote_average" json:"vote_average"`
	VoteCount           int64   `parquet:"vote_count" json:"vote_count"`
	Collection          string  `parquet:"belongs_to_collection" json:"belongs_to_collection"`
	Genres              string  `parquet:"genres" json:"genres"`
	ProductionCompanies string  `parquet:"production_companies" json:"production_companies"`
	ProductionCountries string  `parquet:"production_countries" json:"production_countries"`
	SpokenLanguages     string  `parquet:"spoken_languages" json:"spoken_languages"`
	Keywords            string  `parquet:"keywords" json:"keywords"`
}

// named is the shape shared by genres, companies, countries and languages.
type named struct {
	Name        string `json:"name"`
	EnglishName string `json:"english_name"`
}

// document mirrors the TMDB movie details payload plus the keywords string
// added during the sync.
type document struct {
	ID                  int64   `json:"id"`
	IMDbID              *string `json:"imdb_id"`
	Title               string  `json:"title"`
	OriginalTitle       string  `json:"original_title"`
	OriginalLanguage    string  `json:"original_language"`
	Overview            string  `json:"overview"`
	Tagline             string  `json:"tagline"`
	Status              string  `json:"status"`
	ReleaseDate         string  `json:"release_date"`
	Homepage            string  `json:"homepage"`
	PosterPath          *string `json:"poster_path"`
	BackdropPath        *string `json:"backdrop_path"`
	Adult               bool    `json:"adult"`
	Video               bool    `json:"video"`
	Budget              int64   `json:"budget"`
	Revenue             int64   `json:"revenue"`
	Runtime             int64   `json:"runtime"`
	Popularity          float64 `json:"popularity"`
	VoteAverage         float64 `json:"vote_average"`
	VoteCount           int64   `json:"vote_count"`
	Collection          *named  `json:"belongs_to_collection"`
	Genres              []named `json:"genres"`
	ProductionCompanies []named `json:"production_companies"`
	ProductionCountries []named `json:"production_countries"`
	SpokenLanguages     []named `json:"spoken_languages"`
	Keywords            string  `json:"keywords"`
}

// FromDocument flattens a raw TMDB movie document into a row.
func FromDocument(raw json.RawMessage) (Movie, error) {
	var d document
	if err := json.Unmarshal(raw, &d); err != nil {
		return Movie{}, fmt.Errorf("invalid movie document: %w", err)
	}
	if d.ID == 0 {
		return Movie{}, fmt.Errorf("movie document has no id")
	}

	m := Movie{
		ID:                  d.ID,
		IMDbID:              deref(d.IMDbID),
		Title:               d.Title,
		OriginalTitle:       d.OriginalTitle,
		OriginalLanguage:    d.OriginalLanguage,
		Overview:            d.Overview,
		Tagline:             d.Tagline,
		Status:              d.Status,
		ReleaseDate:         d.ReleaseDate,
		Homepage:            d.Homepage,
		PosterPath:          deref(d.PosterPath),
		BackdropPath:        deref(d.BackdropPath),
		Adult:               d.Adult,
		Video:               d.Video,
		Budget:              d.Budget,
		Revenue:             d.Revenue,
		Runtime:             d.Runtime,
		Popularity:          d.Popularity,
		VoteAverage:         d.VoteAverage,
		VoteCount:           d.VoteCount,
		Genres:              joinNames(d.Genres),
		ProductionCompanies: joinNames(d.ProductionCompanies),
		ProductionCountries: joinNames(d.ProductionCountries),
		SpokenLanguages:     joinNames(d.SpokenLanguages),
		Keywords:            d.Keywords,
	}
	if d.Collection != nil {
		m.Collection = d.Collection.Name
	}
	return m, nil
}

// JoinKeywords renders keyword names the way the dataset stores them.
func JoinKeywords(names []string) string {
	return strings.Join(names, ", ")
}

func joinNames(items []named) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		n := it.Name
		if n == "" {
			n = it.EnglishName
		}
		names = append(names, n)
	}
	return JoinKeywords(names)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
