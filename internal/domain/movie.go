package domain

import (
	"strings"
	"time"
)

// RuntimeUnknown marks a runtime that could not be parsed.
const RuntimeUnknown = "N/A"

// Movie represents a single entry of the collection.
type Movie struct {
	ID              string
	Title           string
	Year            string
	Genres          []string
	OriginCountry   []string
	CommunityRating *float64
	Runtime         string
	Director        string
	Cast            []string
	Synopsis        string
	PosterURL       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Key returns the reconciliation key of the movie.
func (m Movie) Key() string {
	return Key(m.Title, m.Year)
}

// MovieKey is the light projection used to match imported rows against stored movies.
type MovieKey struct {
	ID    string
	Title string
	Year  string
}

// Key returns the reconciliation key of the projection.
func (k MovieKey) Key() string {
	return Key(k.Title, k.Year)
}

// Key derives the identity two records share when they describe the same movie:
// the lowercased trimmed title and the trimmed year joined by a dash.
func Key(title, year string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "-" + strings.TrimSpace(year)
}

// Field selects optional movie columns for a partial update.
type Field uint16

const (
	FieldGenres Field = 1 << iota
	FieldOriginCountry
	FieldCommunityRating
	FieldRuntime
	FieldDirector
	FieldCast
	FieldSynopsis
	FieldPoster
)

// Has reports whether every field in want is set.
func (f Field) Has(want Field) bool {
	return f&want == want
}

// Merge returns m with title, year and the selected fields taken from src.
// Identity and timestamps stay those of m.
func (m Movie) Merge(src Movie, fields Field) Movie {
	m.Title = src.Title
	m.Year = src.Year
	if fields.Has(FieldGenres) {
		m.Genres = src.Genres
	}
	if fields.Has(FieldOriginCountry) {
		m.OriginCountry = src.OriginCountry
	}
	if fields.Has(FieldCommunityRating) {
		m.CommunityRating = src.CommunityRating
	}
	if fields.Has(FieldRuntime) {
		m.Runtime = src.Runtime
	}
	if fields.Has(FieldDirector) {
		m.Director = src.Director
	}
	if fields.Has(FieldCast) {
		m.Cast = src.Cast
	}
	if fields.Has(FieldSynopsis) {
		m.Synopsis = src.Synopsis
	}
	if fields.Has(FieldPoster) {
		m.PosterURL = src.PosterURL
	}
	return m
}
