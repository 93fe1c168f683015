package importer

import (
	"strconv"

	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

// Ratings import columns.
const (
	ColRatingTitle = "Title"
	ColRatingYear  = "Year"
	ColYourRating  = "Your Rating"
)

// LookupFunc resolves a title and year to a stored movie id.
type LookupFunc func(title, year string) (string, bool)

// RatingEntry is a single validated rating ready for upsert.
type RatingEntry struct {
	MovieID string
	Rating  float64
}

// RatingsPlan is the outcome of reconciling a ratings CSV.
type RatingsPlan struct {
	Applied []RatingEntry
	// Skipped counts rows with an invalid rating or an unknown movie.
	Skipped int
	// Duplicates counts rows overridden by a later row for the same movie.
	Duplicates int
}

// ReconcileRatings validates every row of a ratings CSV. Only fully valid rows
// reach Applied; a later row for the same movie replaces an earlier one.
func ReconcileRatings(csvText string, lookup LookupFunc) (RatingsPlan, error) {
	t, err := readTable(csvText)
	if err != nil {
		return RatingsPlan{}, err
	}
	titleIdx, err := t.require(ColRatingTitle)
	if err != nil {
		return RatingsPlan{}, err
	}
	yearIdx, err := t.require(ColRatingYear)
	if err != nil {
		return RatingsPlan{}, err
	}
	ratingIdx, err := t.require(ColYourRating)
	if err != nil {
		return RatingsPlan{}, err
	}

	var plan RatingsPlan
	seen := make(map[string]int, len(t.rows))
	for _, row := range t.rows {
		title := field(row, titleIdx)
		year := field(row, yearIdx)
		value, err := strconv.ParseFloat(field(row, ratingIdx), 64)
		if title == "" || year == "" || err != nil || !domain.ValidRating(value) {
			plan.Skipped++
			continue
		}
		movieID, ok := lookup(title, year)
		if !ok {
			plan.Skipped++
			continue
		}

		entry := RatingEntry{MovieID: movieID, Rating: value}
		if idx, dup := seen[movieID]; dup {
			plan.Applied[idx] = entry
			plan.Duplicates++
			continue
		}
		seen[movieID] = len(plan.Applied)
		plan.Applied = append(plan.Applied, entry)
	}
	return plan, nil
}

// KeyLookup builds a LookupFunc over stored movie keys.
func KeyLookup(existing []domain.MovieKey) LookupFunc {
	index := make(map[string]string, len(existing))
	for _, e := range existing {
		index[e.Key()] = e.ID
	}
	return func(title, year string) (string, bool) {
		id, ok := index[domain.Key(title, year)]
		return id, ok
	}
}
