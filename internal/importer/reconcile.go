// Package importer turns uploaded CSV text into batches of collection writes.
//
// The importer never talks to persistence. It returns plans that the caller
// applies, so a run can be inspected or retried without side effects.
package importer

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

// Collection import columns.
const (
	ColName            = "Name"
	ColTitle           = "Title"
	ColYear            = "Year"
	ColGenres          = "Genres"
	ColCommunityRating = "CommunityRating"
	ColRuntime         = "Runtime"
	ColImagePrimary    = "ImagePrimary"
	ColDirector        = "Director"
	ColCast            = "Cast"
	ColOverview        = "Overview"
	ColSynopsis        = "Synopsis"
)

// posterSentinel is the spreadsheet value meaning "no image".
const posterSentinel = "x"

// DefaultConcurrency bounds parallel enrichment lookups when Options leaves it unset.
const DefaultConcurrency = 4

// Enricher looks up the production countries of a movie.
type Enricher interface {
	Countries(ctx context.Context, title, year string) ([]string, error)
}

// Options tune a reconciliation run.
type Options struct {
	// PosterPlaceholder replaces missing poster paths.
	PosterPlaceholder string
	// Concurrency bounds parallel enrichment lookups.
	Concurrency int
	Logger      zerolog.Logger
}

// Update is a matched row. Fields lists the optional values the row carried;
// everything else keeps its stored value.
type Update struct {
	domain.Movie
	Fields domain.Field
}

// Plan is the outcome of reconciling a collection CSV.
type Plan struct {
	ToInsert []domain.Movie
	ToUpdate []Update
	// Rows counts rows carrying both a title and a year.
	Rows int
	// Skipped counts incomplete rows.
	Skipped int
	// Duplicates counts rows overridden by a later row with the same key.
	Duplicates int
	// EnrichFailures counts rows whose metadata lookup failed.
	EnrichFailures int
}

// Reconcile parses csvText and partitions its rows into inserts and updates
// against existing. Rows sharing a key collapse to the last one, kept at the
// position of the first.
func Reconcile(ctx context.Context, csvText string, existing []domain.MovieKey, enricher Enricher, opts Options) (Plan, error) {
	t, err := readTable(csvText)
	if err != nil {
		return Plan{}, err
	}
	titleIdx, err := t.require(ColName, ColTitle)
	if err != nil {
		return Plan{}, err
	}
	yearIdx, err := t.require(ColYear)
	if err != nil {
		return Plan{}, err
	}

	var plan Plan
	candidates := make([]Update, 0, len(t.rows))
	seen := make(map[string]int, len(t.rows))
	for _, row := range t.rows {
		title := field(row, titleIdx)
		year := field(row, yearIdx)
		if title == "" || year == "" {
			plan.Skipped++
			continue
		}
		plan.Rows++

		movie := buildCandidate(t, row, title, year, opts.PosterPlaceholder)
		key := movie.Key()
		if idx, ok := seen[key]; ok {
			candidates[idx] = movie
			plan.Duplicates++
			continue
		}
		seen[key] = len(candidates)
		candidates = append(candidates, movie)
	}

	if enricher != nil && len(candidates) > 0 {
		plan.EnrichFailures = enrich(ctx, candidates, enricher, opts)
		if err := ctx.Err(); err != nil {
			return Plan{}, err
		}
	}

	index := make(map[string]string, len(existing))
	for _, e := range existing {
		index[e.Key()] = e.ID
	}
	for _, c := range candidates {
		if len(c.OriginCountry) > 0 {
			c.Fields |= domain.FieldOriginCountry
		}
		if id, ok := index[c.Key()]; ok {
			c.ID = id
			plan.ToUpdate = append(plan.ToUpdate, c)
			continue
		}
		c.ID = uuid.NewString()
		plan.ToInsert = append(plan.ToInsert, c.Movie)
	}

	opts.Logger.Debug().
		Int("rows", plan.Rows).
		Int("insert", len(plan.ToInsert)).
		Int("update", len(plan.ToUpdate)).
		Int("skipped", plan.Skipped).
		Int("duplicates", plan.Duplicates).
		Msg("collection csv reconciled")

	return plan, nil
}

// buildCandidate converts a row. A non-blank cell marks its field as
// supplied; blank cells fall back to defaults for inserts and leave stored
// values alone for updates.
func buildCandidate(t *table, row []string, title, year, placeholder string) Update {
	var fields domain.Field
	cell := func(f domain.Field, aliases ...string) string {
		v := t.optional(row, aliases...)
		if v != "" {
			fields |= f
		}
		return v
	}

	genres := cell(domain.FieldGenres, ColGenres)
	rating := cell(domain.FieldCommunityRating, ColCommunityRating)
	runtime := cell(domain.FieldRuntime, ColRuntime)
	director := cell(domain.FieldDirector, ColDirector)
	cast := cell(domain.FieldCast, ColCast)
	synopsis := cell(domain.FieldSynopsis, ColOverview)
	if synopsis == "" {
		synopsis = cell(domain.FieldSynopsis, ColSynopsis)
	}
	poster := cell(domain.FieldPoster, ColImagePrimary)
	if poster == "" || poster == posterSentinel {
		poster = placeholder
	}

	return Update{
		Movie: domain.Movie{
			Title:           title,
			Year:            year,
			Genres:          SplitList(genres),
			OriginCountry:   []string{},
			CommunityRating: ParseCommunityRating(rating),
			Runtime:         ParseRuntime(runtime),
			Director:        director,
			Cast:            SplitList(cast),
			Synopsis:        synopsis,
			PosterURL:       poster,
		},
		Fields: fields,
	}
}

// enrich fills OriginCountry in place. Lookups run in parallel up to the
// configured limit; a failed lookup leaves the row with no countries.
func enrich(ctx context.Context, candidates []Update, enricher Enricher, opts Options) int {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	failed := make([]bool, len(candidates))
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range candidates {
		g.Go(func() error {
			m := &candidates[i]
			countries, err := enricher.Countries(ctx, m.Title, m.Year)
			if err != nil {
				failed[i] = true
				opts.Logger.Warn().Err(err).
					Str("title", m.Title).
					Str("year", m.Year).
					Msg("metadata lookup failed, continuing without countries")
				return nil
			}
			if len(countries) > 0 {
				m.OriginCountry = countries
			}
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return n
}

// ParseCommunityRating returns nil for blank, unparsable or out-of-range values.
func ParseCommunityRating(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || !domain.ValidRating(v) {
		return nil
	}
	return &v
}

// maxRuntimeMinutes caps plausible runtimes at one week.
const maxRuntimeMinutes = 7 * 24 * 60

// ParseRuntime renders a minute count as text, or domain.RuntimeUnknown.
func ParseRuntime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.RuntimeUnknown
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > maxRuntimeMinutes {
		return domain.RuntimeUnknown
	}
	return strconv.Itoa(int(math.Round(v)))
}
