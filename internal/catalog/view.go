// Package catalog derives the displayed movie list from the raw record set.
//
// Everything here is pure: the same records and parameters always produce the
// same view, and input slices are never modified.
package catalog

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

// Params carries the per-request view state owned by the caller.
type Params struct {
	Search       string
	Selector     Selector
	VisibleCount int
}

// View is the derived result handed to the presentation layer.
type View struct {
	Visible    []domain.Movie
	Total      int
	Categories []Category
}

// HasMore reports whether a "load more" action would reveal further items.
func (v View) HasMore() bool {
	return len(v.Visible) < v.Total
}

// Derive filters, orders, paginates and categorizes records.
func Derive(records []domain.Movie, params Params, now time.Time) View {
	matched := search(records, params.Search)

	var ordered []domain.Movie
	switch params.Selector.Kind {
	case SelectGenre:
		ordered = keep(matched, func(m domain.Movie) bool {
			return slices.Contains(m.Genres, params.Selector.Value)
		})
		sortMovies(ordered, SortTitleAsc)
	case SelectCountry:
		ordered = keep(matched, func(m domain.Movie) bool {
			return slices.Contains(m.OriginCountry, params.Selector.Value)
		})
		sortMovies(ordered, SortTitleAsc)
	default:
		ordered = matched
		mode := params.Selector.Sort
		if _, ok := parseSortMode(string(mode)); !ok {
			mode = DefaultSort
		}
		sortMovies(ordered, mode)
	}

	return View{
		Visible:    paginate(ordered, params.VisibleCount),
		Total:      len(ordered),
		Categories: Categorize(records, now),
	}
}

// DeriveToken resolves a raw sort/filter token against records and derives the view.
func DeriveToken(records []domain.Movie, searchQuery, token string, visible int, now time.Time) View {
	sel := ResolveSelector(token, BuildVocabulary(records))
	return Derive(records, Params{Search: searchQuery, Selector: sel, VisibleCount: visible}, now)
}

// NextVisibleCount grows the visible window by step without passing total.
func NextVisibleCount(current, step, total int) int {
	if step <= 0 {
		return current
	}
	next := current + step
	if next > total {
		next = total
	}
	if next < current {
		return current
	}
	return next
}

// search always returns a fresh slice so later sorting cannot reorder records.
func search(records []domain.Movie, query string) []domain.Movie {
	if query == "" {
		return slices.Clone(records)
	}
	q := strings.ToLower(query)
	return keep(records, func(m domain.Movie) bool {
		return matches(m, q)
	})
}

func matches(m domain.Movie, q string) bool {
	if strings.Contains(strings.ToLower(m.Title), q) ||
		strings.Contains(strings.ToLower(m.Director), q) ||
		strings.Contains(m.Year, q) {
		return true
	}
	for _, g := range m.Genres {
		if strings.Contains(strings.ToLower(g), q) {
			return true
		}
	}
	for _, c := range m.Cast {
		if strings.Contains(strings.ToLower(c), q) {
			return true
		}
	}
	return false
}

func keep(records []domain.Movie, pred func(domain.Movie) bool) []domain.Movie {
	out := make([]domain.Movie, 0, len(records))
	for _, m := range records {
		if pred(m) {
			out = append(out, m)
		}
	}
	return out
}

// sortMovies sorts in place with a stable sort. Years compare as strings.
func sortMovies(movies []domain.Movie, mode SortMode) {
	col := collate.New(language.Und)
	switch mode {
	case SortTitleDesc:
		slices.SortStableFunc(movies, func(a, b domain.Movie) int {
			return col.CompareString(b.Title, a.Title)
		})
	case SortYearAsc:
		slices.SortStableFunc(movies, func(a, b domain.Movie) int {
			return strings.Compare(a.Year, b.Year)
		})
	case SortYearDesc:
		slices.SortStableFunc(movies, func(a, b domain.Movie) int {
			return strings.Compare(b.Year, a.Year)
		})
	default:
		slices.SortStableFunc(movies, func(a, b domain.Movie) int {
			return col.CompareString(a.Title, b.Title)
		})
	}
}

func paginate(movies []domain.Movie, count int) []domain.Movie {
	if count < 0 {
		count = 0
	}
	if count > len(movies) {
		count = len(movies)
	}
	return movies[:count:count]
}
