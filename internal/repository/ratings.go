package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

// RatingsRepository provides helpers for movie ratings.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// RatingUpsertParams captures the payload required to upsert a rating.
type RatingUpsertParams struct {
	MovieID string
	RaterID string
	Value   float64
}

const upsertRatingQuery = `
    INSERT INTO ratings (movie_id, rater_id, rating)
    VALUES ($1,$2,$3)
    ON CONFLICT (movie_id, rater_id)
    DO UPDATE SET rating = EXCLUDED.rating, updated_at = now()
    RETURNING movie_id, rater_id, rating, created_at, updated_at, (xmax = 0) AS inserted
`

// Upsert inserts or updates a rating and indicates whether it was newly created.
func (r *RatingsRepository) Upsert(ctx context.Context, params RatingUpsertParams) (domain.Rating, bool, error) {
	movieID, err := parseID(params.MovieID)
	if err != nil {
		return domain.Rating{}, false, err
	}

	var rating domain.Rating
	var inserted bool
	err = r.pool.QueryRow(ctx, upsertRatingQuery, movieID, params.RaterID, params.Value).Scan(
		&rating.MovieID,
		&rating.RaterID,
		&rating.Value,
		&rating.CreatedAt,
		&rating.UpdatedAt,
		&inserted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, false, ErrNotFound
		}
		return domain.Rating{}, false, translate(err)
	}

	return rating, inserted, nil
}

// UpsertMany writes a set of ratings in one batch. The batch runs as a single
// implicit transaction, so a failing entry rolls back the others.
func (r *RatingsRepository) UpsertMany(ctx context.Context, params []RatingUpsertParams) error {
	if len(params) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range params {
		movieID, err := parseID(p.MovieID)
		if err != nil {
			return fmt.Errorf("movie %q: %w", p.MovieID, err)
		}
		batch.Queue(upsertRatingQuery, movieID, p.RaterID, p.Value)
	}

	results := r.pool.SendBatch(ctx, batch)
	for i := range params {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upsert rating %d: %w", i, translate(err))
		}
	}
	return results.Close()
}

// Aggregate returns the rating average and count for a movie.
func (r *RatingsRepository) Aggregate(ctx context.Context, movieID string) (domain.RatingAggregate, error) {
	id, err := parseID(movieID)
	if err != nil {
		return domain.RatingAggregate{}, err
	}

	const query = `
        SELECT COALESCE(ROUND(AVG(rating)::numeric, 1), 0)::float8 AS average,
               COUNT(*)::int8 AS count
        FROM ratings
        WHERE movie_id = $1
    `

	var agg domain.RatingAggregate
	if err := r.pool.QueryRow(ctx, query, id).Scan(&agg.Average, &agg.Count); err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}

// Get retrieves a rating for a specific rater/movie combination.
func (r *RatingsRepository) Get(ctx context.Context, movieID, raterID string) (domain.Rating, error) {
	id, err := parseID(movieID)
	if err != nil {
		return domain.Rating{}, err
	}

	const query = `
        SELECT movie_id, rater_id, rating, created_at, updated_at
        FROM ratings
        WHERE movie_id = $1 AND rater_id = $2
    `
	var rating domain.Rating
	err = r.pool.QueryRow(ctx, query, id, raterID).Scan(
		&rating.MovieID,
		&rating.RaterID,
		&rating.Value,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// ListByRater returns every rating a rater has given, newest first.
func (r *RatingsRepository) ListByRater(ctx context.Context, raterID string) ([]domain.Rating, error) {
	const query = `
        SELECT movie_id, rater_id, rating, created_at, updated_at
        FROM ratings
        WHERE rater_id = $1
        ORDER BY updated_at DESC, movie_id
    `
	rows, err := r.pool.Query(ctx, query, raterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Rating, 0)
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(&rating.MovieID, &rating.RaterID, &rating.Value, &rating.CreatedAt, &rating.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rating)
	}
	return out, rows.Err()
}
