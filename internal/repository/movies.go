package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    id,
    title,
    year,
    genres,
    origin_country,
    community_rating,
    runtime,
    director,
    movie_cast,
    synopsis,
    poster_url,
    created_at,
    updated_at
`

// keyExpr must stay in sync with domain.Key.
const keyExpr = `lower(btrim(title)) || '-' || btrim(year)`

// ListAll returns every movie ordered by title.
func (r *MoviesRepository) ListAll(ctx context.Context) ([]domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies ORDER BY title, id`, movieColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Keys returns the id, title and year of every movie.
func (r *MoviesRepository) Keys(ctx context.Context) ([]domain.MovieKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, year FROM movies ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]domain.MovieKey, 0)
	for rows.Next() {
		var k domain.MovieKey
		if err := rows.Scan(&k.ID, &k.Title, &k.Year); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	movieID, err := parseID(id)
	if err != nil {
		return domain.Movie{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, movieID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// FindIDByKey returns the id of the oldest movie sharing the reconciliation key.
func (r *MoviesRepository) FindIDByKey(ctx context.Context, title, year string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM movies WHERE %s = $1 ORDER BY created_at, id LIMIT 1`, keyExpr)
	var id string
	if err := r.pool.QueryRow(ctx, query, domain.Key(title, year)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return id, nil
}

// Create inserts a new movie row and returns the stored entity. An empty ID is generated.
func (r *MoviesRepository) Create(ctx context.Context, movie domain.Movie) (domain.Movie, error) {
	id := uuid.New()
	if movie.ID != "" {
		parsed, err := uuid.Parse(movie.ID)
		if err != nil {
			return domain.Movie{}, fmt.Errorf("%w: id %q", ErrInvalid, movie.ID)
		}
		id = parsed
	}

	query := fmt.Sprintf(`
        INSERT INTO movies (id, title, year, genres, origin_country, community_rating, runtime, director, movie_cast, synopsis, poster_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING %s
    `, movieColumns)

	row := r.pool.QueryRow(ctx, query, append([]interface{}{id}, movieArgs(movie)...)...)
	created, err := scanMovie(row)
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	return created, nil
}

// InsertMany bulk-inserts movies with COPY. Movies without an ID get a fresh one.
// Either every row is written or none is.
func (r *MoviesRepository) InsertMany(ctx context.Context, movies []domain.Movie) (int64, error) {
	if len(movies) == 0 {
		return 0, nil
	}
	rows := make([][]interface{}, 0, len(movies))
	for _, m := range movies {
		id := uuid.New()
		if m.ID != "" {
			parsed, err := uuid.Parse(m.ID)
			if err != nil {
				return 0, fmt.Errorf("%w: id %q", ErrInvalid, m.ID)
			}
			id = parsed
		}
		rows = append(rows, append([]interface{}{id}, movieArgs(m)...))
	}

	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"movies"},
		[]string{"id", "title", "year", "genres", "origin_country", "community_rating", "runtime", "director", "movie_cast", "synopsis", "poster_url"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

var updateMovieQuery = fmt.Sprintf(`
        UPDATE movies
        SET title = $2,
            year = $3,
            genres = $4,
            origin_country = $5,
            community_rating = $6,
            runtime = $7,
            director = $8,
            movie_cast = $9,
            synopsis = $10,
            poster_url = $11,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, movieColumns)

// Update overwrites every editable field of the movie identified by movie.ID.
func (r *MoviesRepository) Update(ctx context.Context, movie domain.Movie) (domain.Movie, error) {
	movieID, err := parseID(movie.ID)
	if err != nil {
		return domain.Movie{}, err
	}
	return writeMovie(ctx, r.pool, movieID, movie)
}

// Patch updates title, year and the selected fields of the movie identified
// by movie.ID, keeping every other stored value. The row is locked between
// read and write.
func (r *MoviesRepository) Patch(ctx context.Context, movie domain.Movie, fields domain.Field) (domain.Movie, error) {
	movieID, err := parseID(movie.ID)
	if err != nil {
		return domain.Movie{}, err
	}

	var patched domain.Movie
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1 FOR UPDATE`, movieColumns)
		stored, err := scanMovie(tx.QueryRow(ctx, query, movieID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		patched, err = writeMovie(ctx, tx, movieID, stored.Merge(movie, fields))
		return err
	})
	if err != nil {
		return domain.Movie{}, err
	}
	return patched, nil
}

func writeMovie(ctx context.Context, q querier, id uuid.UUID, movie domain.Movie) (domain.Movie, error) {
	updated, err := scanMovie(q.QueryRow(ctx, updateMovieQuery, append([]interface{}{id}, movieArgs(movie)...)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, translate(err)
	}
	return updated, nil
}

// Delete removes a single movie.
func (r *MoviesRepository) Delete(ctx context.Context, id string) error {
	movieID, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM movies WHERE id = $1`, movieID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every listed movie and reports how many rows went away.
// Malformed ids are ignored.
func (r *MoviesRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	parsed := parseIDs(ids)
	if len(parsed) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM movies WHERE id = ANY($1)`, parsed)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func movieArgs(m domain.Movie) []interface{} {
	return []interface{}{
		m.Title,
		m.Year,
		nonNil(m.Genres),
		nonNil(m.OriginCountry),
		m.CommunityRating,
		runtimeOrUnknown(m.Runtime),
		m.Director,
		nonNil(m.Cast),
		m.Synopsis,
		m.PosterURL,
	}
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Year,
		&movie.Genres,
		&movie.OriginCountry,
		&movie.CommunityRating,
		&movie.Runtime,
		&movie.Director,
		&movie.Cast,
		&movie.Synopsis,
		&movie.PosterURL,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	movie.Genres = nonNil(movie.Genres)
	movie.OriginCountry = nonNil(movie.OriginCountry)
	movie.Cast = nonNil(movie.Cast)
	return movie, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func runtimeOrUnknown(runtime string) string {
	if runtime == "" {
		return domain.RuntimeUnknown
	}
	return runtime
}
