package catalog

import (
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

// Category is a non-exclusive classification of the collection.
type Category struct {
	Key    string
	Label  string
	Movies []domain.Movie
}

// Bucket describes a genre-based category. A movie belongs to the bucket when
// any of its genres equals one of Genres, ignoring case.
type Bucket struct {
	Key    string
	Label  string
	Genres []string
}

// NewReleasesKey identifies the bucket of movies from the current calendar year.
const NewReleasesKey = "new"

// GenreBuckets are the fixed genres of interest shown on the landing view.
var GenreBuckets = []Bucket{
	{Key: "drama", Label: "Drama", Genres: []string{"Drama"}},
	{Key: "thriller", Label: "Thriller", Genres: []string{"Thriller"}},
	{Key: "scifi", Label: "Sci-Fi", Genres: []string{"Sci-Fi", "Science Fiction", "Science-Fiction"}},
	{Key: "horror", Label: "Horror", Genres: []string{"Horror"}},
}

// Categorize classifies the entire record set. It ignores any search or filter
// state, and a movie may land in several buckets at once.
func Categorize(records []domain.Movie, now time.Time) []Category {
	year := strconv.Itoa(now.Year())

	out := make([]Category, 0, len(GenreBuckets)+1)
	fresh := Category{Key: NewReleasesKey, Label: "New Releases", Movies: []domain.Movie{}}
	for _, m := range records {
		if strings.TrimSpace(m.Year) == year {
			fresh.Movies = append(fresh.Movies, m)
		}
	}
	out = append(out, fresh)

	for _, b := range GenreBuckets {
		cat := Category{Key: b.Key, Label: b.Label, Movies: []domain.Movie{}}
		for _, m := range records {
			if b.matches(m) {
				cat.Movies = append(cat.Movies, m)
			}
		}
		out = append(out, cat)
	}
	return out
}

func (b Bucket) matches(m domain.Movie) bool {
	for _, g := range m.Genres {
		for _, want := range b.Genres {
			if strings.EqualFold(strings.TrimSpace(g), want) {
				return true
			}
		}
	}
	return false
}
