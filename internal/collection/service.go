// Package collection applies catalog queries, import plans and admin writes
// against the movie and rating stores.
package collection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/movie-shelf/internal/catalog"
	"github.com/Clark-Hu/movie-shelf/internal/domain"
	"github.com/Clark-Hu/movie-shelf/internal/importer"
	"github.com/Clark-Hu/movie-shelf/internal/repository"
)

// DefaultBatchSize is the number of rows written per independent batch.
const DefaultBatchSize = 50

var (
	// ErrNotFound is returned when a movie does not exist.
	ErrNotFound = repository.ErrNotFound
	// ErrValidation wraps rejected input.
	ErrValidation = errors.New("collection: validation failed")
	// ErrDuplicate indicates another movie already has the same title and year.
	ErrDuplicate = errors.New("collection: duplicate movie")
)

// MovieStore is the movie persistence the service needs.
type MovieStore interface {
	ListAll(ctx context.Context) ([]domain.Movie, error)
	GetByID(ctx context.Context, id string) (domain.Movie, error)
	Keys(ctx context.Context) ([]domain.MovieKey, error)
	FindIDByKey(ctx context.Context, title, year string) (string, error)
	Create(ctx context.Context, movie domain.Movie) (domain.Movie, error)
	InsertMany(ctx context.Context, movies []domain.Movie) (int64, error)
	Update(ctx context.Context, movie domain.Movie) (domain.Movie, error)
	Patch(ctx context.Context, movie domain.Movie, fields domain.Field) (domain.Movie, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

// RatingStore is the rating persistence the service needs.
type RatingStore interface {
	Upsert(ctx context.Context, params repository.RatingUpsertParams) (domain.Rating, bool, error)
	UpsertMany(ctx context.Context, params []repository.RatingUpsertParams) error
	Aggregate(ctx context.Context, movieID string) (domain.RatingAggregate, error)
	Get(ctx context.Context, movieID, raterID string) (domain.Rating, error)
	ListByRater(ctx context.Context, raterID string) ([]domain.Rating, error)
}

// Options configure a Service. Zero values fall back to defaults.
type Options struct {
	// Enricher fills origin countries; nil disables enrichment.
	Enricher          importer.Enricher
	EnrichTimeout     time.Duration
	PosterPlaceholder string
	Concurrency       int
	BatchSize         int
	Logger            zerolog.Logger
	Now               func() time.Time
}

// Service orchestrates reads and writes of the collection.
type Service struct {
	movies  MovieStore
	ratings RatingStore
	opts    Options
	logger  zerolog.Logger
}

// New constructs a Service.
func New(movies MovieStore, ratings RatingStore, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = importer.DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		movies:  movies,
		ratings: ratings,
		opts:    opts,
		logger:  opts.Logger,
	}
}

// ViewRequest carries the raw browse parameters.
type ViewRequest struct {
	Search string
	// Token is the combined sort-or-filter value.
	Token   string
	Visible int
}

// View loads the whole collection and derives the requested view.
func (s *Service) View(ctx context.Context, req ViewRequest) (catalog.View, error) {
	records, err := s.movies.ListAll(ctx)
	if err != nil {
		return catalog.View{}, fmt.Errorf("list movies: %w", err)
	}
	return catalog.DeriveToken(records, req.Search, req.Token, req.Visible, s.opts.Now()), nil
}

// Vocabulary returns every genre and country across the collection.
func (s *Service) Vocabulary(ctx context.Context) (catalog.Vocabulary, error) {
	records, err := s.movies.ListAll(ctx)
	if err != nil {
		return catalog.Vocabulary{}, fmt.Errorf("list movies: %w", err)
	}
	return catalog.BuildVocabulary(records), nil
}

// Get returns a single movie.
func (s *Service) Get(ctx context.Context, id string) (domain.Movie, error) {
	return s.movies.GetByID(ctx, id)
}

// Create validates and stores a new movie. Origin countries are looked up
// when none are given and an enricher is configured.
func (s *Service) Create(ctx context.Context, movie domain.Movie) (domain.Movie, error) {
	movie.ID = ""
	movie, err := s.normalize(movie)
	if err != nil {
		return domain.Movie{}, err
	}
	if err := s.ensureUniqueKey(ctx, movie); err != nil {
		return domain.Movie{}, err
	}
	if len(movie.OriginCountry) == 0 {
		movie.OriginCountry = s.lookupCountries(ctx, movie)
	}

	created, err := s.movies.Create(ctx, movie)
	if err != nil {
		return domain.Movie{}, s.wrapWriteErr(err)
	}
	s.logger.Info().Str("movie_id", created.ID).Str("title", created.Title).Msg("movie created")
	return created, nil
}

// Update replaces the editable fields of an existing movie.
func (s *Service) Update(ctx context.Context, movie domain.Movie) (domain.Movie, error) {
	movie, err := s.normalize(movie)
	if err != nil {
		return domain.Movie{}, err
	}
	if err := s.ensureUniqueKey(ctx, movie); err != nil {
		return domain.Movie{}, err
	}
	updated, err := s.movies.Update(ctx, movie)
	if err != nil {
		return domain.Movie{}, s.wrapWriteErr(err)
	}
	return updated, nil
}

// Delete removes a single movie and its ratings.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.movies.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("movie_id", id).Msg("movie deleted")
	return nil
}

// Rate records raterID's rating of a movie and reports whether it is new.
func (s *Service) Rate(ctx context.Context, movieID, raterID string, value float64) (domain.Rating, bool, error) {
	raterID = strings.TrimSpace(raterID)
	if raterID == "" {
		return domain.Rating{}, false, fmt.Errorf("%w: rater id is required", ErrValidation)
	}
	if !domain.ValidRating(value) {
		return domain.Rating{}, false, fmt.Errorf("%w: rating must be between %.0f and %.0f", ErrValidation, domain.MinRating, domain.MaxRating)
	}
	rating, inserted, err := s.ratings.Upsert(ctx, repository.RatingUpsertParams{
		MovieID: movieID,
		RaterID: raterID,
		Value:   value,
	})
	if err != nil {
		return domain.Rating{}, false, s.wrapWriteErr(err)
	}
	return rating, inserted, nil
}

// RatingSummary returns the average and count of a movie's ratings.
func (s *Service) RatingSummary(ctx context.Context, movieID string) (domain.RatingAggregate, error) {
	if _, err := s.movies.GetByID(ctx, movieID); err != nil {
		return domain.RatingAggregate{}, err
	}
	return s.ratings.Aggregate(ctx, movieID)
}

// RaterRatings lists every rating a rater has given.
func (s *Service) RaterRatings(ctx context.Context, raterID string) ([]domain.Rating, error) {
	raterID = strings.TrimSpace(raterID)
	if raterID == "" {
		return nil, fmt.Errorf("%w: rater id is required", ErrValidation)
	}
	return s.ratings.ListByRater(ctx, raterID)
}

// ImportMovies reconciles a collection CSV against the stored movies and
// applies the plan in independent batches. A failed batch is counted and
// reported, not retried or rolled back.
func (s *Service) ImportMovies(ctx context.Context, csvText string) (Summary, error) {
	keys, err := s.movies.Keys(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load movie keys: %w", err)
	}

	plan, err := importer.Reconcile(ctx, csvText, keys, s.opts.Enricher, importer.Options{
		PosterPlaceholder: s.opts.PosterPlaceholder,
		Concurrency:       s.opts.Concurrency,
		Logger:            s.logger,
	})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Operation:  OpImportMovies,
		Skipped:    plan.Skipped,
		Duplicates: plan.Duplicates,
	}

	for batch := range slices.Chunk(plan.ToInsert, s.opts.BatchSize) {
		n, err := s.movies.InsertMany(ctx, batch)
		if err != nil {
			s.logger.Warn().Err(err).Int("rows", len(batch)).Msg("insert batch failed")
			sum.fail(len(batch), fmt.Errorf("insert %d movies: %w", len(batch), err))
			continue
		}
		sum.Inserted += int(n)
	}

	for batch := range slices.Chunk(plan.ToUpdate, s.opts.BatchSize) {
		s.updateBatch(ctx, batch, &sum)
	}

	s.finish(sum, plan.EnrichFailures)
	return sum, nil
}

// updateBatch runs one batch of row updates with bounded parallelism. Only
// the fields a row supplied are written.
func (s *Service) updateBatch(ctx context.Context, batch []importer.Update, sum *Summary) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)
	for _, row := range batch {
		movie := row.Movie
		g.Go(func() error {
			_, err := s.movies.Patch(ctx, movie, row.Fields)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn().Err(err).Str("movie_id", movie.ID).Msg("update failed")
				sum.fail(1, fmt.Errorf("update %q (%s): %w", movie.Title, movie.Year, err))
				return nil
			}
			sum.Updated++
			return nil
		})
	}
	_ = g.Wait()
}

// ImportRatings reconciles a ratings CSV for one rater and upserts the valid
// rows in independent batches.
func (s *Service) ImportRatings(ctx context.Context, raterID, csvText string) (Summary, error) {
	raterID = strings.TrimSpace(raterID)
	if raterID == "" {
		return Summary{}, fmt.Errorf("%w: rater id is required", ErrValidation)
	}
	keys, err := s.movies.Keys(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load movie keys: %w", err)
	}

	plan, err := importer.ReconcileRatings(csvText, importer.KeyLookup(keys))
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Operation:  OpImportRatings,
		Skipped:    plan.Skipped,
		Duplicates: plan.Duplicates,
	}
	for batch := range slices.Chunk(plan.Applied, s.opts.BatchSize) {
		params := make([]repository.RatingUpsertParams, 0, len(batch))
		for _, entry := range batch {
			params = append(params, repository.RatingUpsertParams{
				MovieID: entry.MovieID,
				RaterID: raterID,
				Value:   entry.Rating,
			})
		}
		if err := s.ratings.UpsertMany(ctx, params); err != nil {
			s.logger.Warn().Err(err).Int("rows", len(batch)).Msg("rating batch failed")
			sum.fail(len(batch), fmt.Errorf("apply %d ratings: %w", len(batch), err))
			continue
		}
		sum.Applied += len(batch)
	}

	s.finish(sum, 0)
	return sum, nil
}

// DeleteMany removes the listed movies in independent batches. Blank and
// repeated ids are skipped, as are ids that matched nothing.
func (s *Service) DeleteMany(ctx context.Context, ids []string) (Summary, error) {
	sum := Summary{Operation: OpDeleteMany}

	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			sum.Skipped++
			continue
		}
		if _, ok := seen[id]; ok {
			sum.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	for batch := range slices.Chunk(unique, s.opts.BatchSize) {
		n, err := s.movies.DeleteMany(ctx, batch)
		if err != nil {
			s.logger.Warn().Err(err).Int("rows", len(batch)).Msg("delete batch failed")
			sum.fail(len(batch), fmt.Errorf("delete %d movies: %w", len(batch), err))
			continue
		}
		sum.Deleted += int(n)
		sum.Skipped += len(batch) - int(n)
	}

	s.finish(sum, 0)
	return sum, nil
}

func (s *Service) finish(sum Summary, enrichFailures int) {
	recordSummary(sum)
	s.logger.Info().
		Str("operation", string(sum.Operation)).
		Int("inserted", sum.Inserted).
		Int("updated", sum.Updated).
		Int("deleted", sum.Deleted).
		Int("applied", sum.Applied).
		Int("skipped", sum.Skipped).
		Int("duplicates", sum.Duplicates).
		Int("failed", sum.Failed).
		Int("enrich_failures", enrichFailures).
		Msg(sum.Message())
}

func (s *Service) normalize(movie domain.Movie) (domain.Movie, error) {
	movie.Title = strings.TrimSpace(movie.Title)
	movie.Year = strings.TrimSpace(movie.Year)
	if movie.Title == "" || movie.Year == "" {
		return domain.Movie{}, fmt.Errorf("%w: title and year are required", ErrValidation)
	}
	if r := movie.CommunityRating; r != nil && !domain.ValidRating(*r) {
		return domain.Movie{}, fmt.Errorf("%w: communityRating must be between %.0f and %.0f", ErrValidation, domain.MinRating, domain.MaxRating)
	}
	movie.Genres = cleanList(movie.Genres)
	movie.OriginCountry = cleanList(movie.OriginCountry)
	movie.Cast = cleanList(movie.Cast)
	movie.Runtime = strings.TrimSpace(movie.Runtime)
	if movie.Runtime == "" {
		movie.Runtime = domain.RuntimeUnknown
	}
	if strings.TrimSpace(movie.PosterURL) == "" {
		movie.PosterURL = s.opts.PosterPlaceholder
	}
	return movie, nil
}

func (s *Service) ensureUniqueKey(ctx context.Context, movie domain.Movie) error {
	id, err := s.movies.FindIDByKey(ctx, movie.Title, movie.Year)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check duplicate: %w", err)
	case id != movie.ID:
		return fmt.Errorf("%w: %q (%s)", ErrDuplicate, movie.Title, movie.Year)
	}
	return nil
}

func (s *Service) lookupCountries(ctx context.Context, movie domain.Movie) []string {
	if s.opts.Enricher == nil {
		return nil
	}
	if s.opts.EnrichTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.EnrichTimeout)
		defer cancel()
	}
	countries, err := s.opts.Enricher.Countries(ctx, movie.Title, movie.Year)
	if err != nil {
		s.logger.Warn().Err(err).Str("title", movie.Title).Msg("country lookup failed")
		return nil
	}
	return countries
}

func (s *Service) wrapWriteErr(err error) error {
	if errors.Is(err, repository.ErrInvalid) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return err
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
