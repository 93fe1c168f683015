package tmdb

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movieshelf_tmdb_cache_hits_total",
		Help: "Country lookups answered from the enrichment cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movieshelf_tmdb_cache_misses_total",
		Help: "Country lookups that went to the metadata API.",
	})
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movieshelf_tmdb_lookups_total",
		Help: "Country lookups against the metadata API by outcome.",
	}, []string{"outcome"})
)

// CountryEnricher resolves production countries for a title and year.
type CountryEnricher struct {
	client Client
	cache  *expirable.LRU[string, []string]
	logger zerolog.Logger
}

// NewCountryEnricher wraps client with an LRU cache of size entries kept for ttl.
func NewCountryEnricher(client Client, size int, ttl time.Duration, logger zerolog.Logger) *CountryEnricher {
	if size <= 0 {
		size = 1024
	}
	return &CountryEnricher{
		client: client,
		cache:  expirable.NewLRU[string, []string](size, nil, ttl),
		logger: logger,
	}
}

// Countries searches by title and year, retrying by title alone when the
// year-qualified search is empty, then reads the countries of the first hit.
// No match yields an empty list and no error.
func (e *CountryEnricher) Countries(ctx context.Context, title, year string) ([]string, error) {
	key := domain.Key(title, year)
	if cached, ok := e.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return slices.Clone(cached), nil
	}
	cacheMissesTotal.Inc()

	results, err := e.client.SearchMovies(ctx, title, year)
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(results) == 0 && year != "" {
		e.logger.Debug().Str("title", title).Str("year", year).Msg("no year match, retrying by title")
		results, err = e.client.SearchMovies(ctx, title, "")
		if err != nil {
			lookupsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}
	if len(results) == 0 {
		lookupsTotal.WithLabelValues("no_match").Inc()
		e.cache.Add(key, []string{})
		return []string{}, nil
	}

	details, err := e.client.MovieDetails(ctx, results[0].ID)
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	countries := details.ProductionCountries
	if countries == nil {
		countries = []string{}
	}
	lookupsTotal.WithLabelValues("found").Inc()
	e.cache.Add(key, countries)
	return slices.Clone(countries), nil
}

// Purge drops every cached lookup.
func (e *CountryEnricher) Purge() {
	e.cache.Purge()
}
