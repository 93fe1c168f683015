package catalog

import (
	"sort"

	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

// SortMode is one of the reserved ordering tokens.
type SortMode string

const (
	SortTitleAsc  SortMode = "title-asc"
	SortTitleDesc SortMode = "title-desc"
	SortYearAsc   SortMode = "year-asc"
	SortYearDesc  SortMode = "year-desc"
)

// DefaultSort applies when a token resolves to nothing else.
const DefaultSort = SortTitleAsc

// SortModes lists the reserved tokens in display order.
var SortModes = []SortMode{SortTitleAsc, SortTitleDesc, SortYearAsc, SortYearDesc}

func parseSortMode(token string) (SortMode, bool) {
	for _, m := range SortModes {
		if string(m) == token {
			return m, true
		}
	}
	return "", false
}

// SelectorKind tags the variant held by a Selector.
type SelectorKind int

const (
	SelectSort SelectorKind = iota
	SelectGenre
	SelectCountry
)

func (k SelectorKind) String() string {
	switch k {
	case SelectGenre:
		return "genre"
	case SelectCountry:
		return "country"
	default:
		return "sort"
	}
}

// Selector is the resolved form of the combined sort/filter input.
type Selector struct {
	Kind  SelectorKind
	Sort  SortMode
	Value string
}

// SortBy returns a selector that orders the result.
func SortBy(mode SortMode) Selector {
	return Selector{Kind: SelectSort, Sort: mode}
}

// Genre returns a selector that keeps records tagged with genre.
func Genre(genre string) Selector {
	return Selector{Kind: SelectGenre, Value: genre}
}

// Country returns a selector that keeps records produced in country.
func Country(country string) Selector {
	return Selector{Kind: SelectCountry, Value: country}
}

// Token renders the selector back into its wire form.
func (s Selector) Token() string {
	if s.Kind == SelectSort {
		if s.Sort == "" {
			return string(DefaultSort)
		}
		return string(s.Sort)
	}
	return s.Value
}

// Vocabulary holds every genre and origin country present in a record set.
type Vocabulary struct {
	genres    map[string]struct{}
	countries map[string]struct{}
}

// BuildVocabulary scans the full record set. It must be given the unfiltered
// records: filter values are global, not narrowed by the current search.
func BuildVocabulary(records []domain.Movie) Vocabulary {
	v := Vocabulary{
		genres:    make(map[string]struct{}),
		countries: make(map[string]struct{}),
	}
	for _, rec := range records {
		for _, g := range rec.Genres {
			v.genres[g] = struct{}{}
		}
		for _, c := range rec.OriginCountry {
			v.countries[c] = struct{}{}
		}
	}
	return v
}

// HasGenre reports whether genre occurs in the record set.
func (v Vocabulary) HasGenre(genre string) bool {
	_, ok := v.genres[genre]
	return ok
}

// HasCountry reports whether country occurs in the record set.
func (v Vocabulary) HasCountry(country string) bool {
	_, ok := v.countries[country]
	return ok
}

// Genres returns the genres sorted lexicographically.
func (v Vocabulary) Genres() []string {
	return sortedKeys(v.genres)
}

// Countries returns the countries sorted lexicographically.
func (v Vocabulary) Countries() []string {
	return sortedKeys(v.countries)
}

// Conflicts returns the genre or country values that shadow a reserved sort token.
func (v Vocabulary) Conflicts() []string {
	var out []string
	for _, m := range SortModes {
		if v.HasGenre(string(m)) || v.HasCountry(string(m)) {
			out = append(out, string(m))
		}
	}
	return out
}

// ResolveSelector interprets a raw sort/filter token. Genre values win over
// countries, and both win over the reserved sort tokens.
func ResolveSelector(token string, vocab Vocabulary) Selector {
	if token != "" {
		if vocab.HasGenre(token) {
			return Genre(token)
		}
		if vocab.HasCountry(token) {
			return Country(token)
		}
		if mode, ok := parseSortMode(token); ok {
			return SortBy(mode)
		}
	}
	return SortBy(DefaultSort)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
