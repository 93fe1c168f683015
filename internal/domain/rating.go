package domain

import "time"

// Rating bounds, inclusive.
const (
	MinRating = 0.0
	MaxRating = 10.0
)

// Rating represents a single user's rating for a movie.
type Rating struct {
	MovieID   string
	RaterID   string
	Value     float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingAggregate provides average and count for a movie's ratings.
type RatingAggregate struct {
	Average float64
	Count   int64
}

// ValidRating reports whether v lies within the accepted rating range.
func ValidRating(v float64) bool {
	return v >= MinRating && v <= MaxRating
}
