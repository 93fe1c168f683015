package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Clark-Hu/movie-shelf/internal/collection"
	"github.com/Clark-Hu/movie-shelf/internal/config"
	httpserver "github.com/Clark-Hu/movie-shelf/internal/http"
	"github.com/Clark-Hu/movie-shelf/internal/importer"
	"github.com/Clark-Hu/movie-shelf/internal/logger"
	"github.com/Clark-Hu/movie-shelf/internal/repository"
	"github.com/Clark-Hu/movie-shelf/internal/store"
	"github.com/Clark-Hu/movie-shelf/internal/tmdb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "movie-shelf: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logs := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Path: cfg.LogPath})
	defer logs.Close()
	log := logs.Logger

	if cfg.DBMigrateOnStart {
		if err := store.Migrate(cfg.DBURL, logs.Component("migrate")); err != nil {
			return err
		}
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logs.Component("store"),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	enricher, err := newEnricher(cfg, logs)
	if err != nil {
		return err
	}

	repo := repository.New(st)
	svc := collection.New(repo.Movies, repo.Ratings, collection.Options{
		Enricher:          enricher,
		EnrichTimeout:     time.Duration(cfg.TMDBTimeoutSecs) * time.Second,
		PosterPlaceholder: cfg.PosterPlaceholder,
		Concurrency:       cfg.ImportConcurrency,
		BatchSize:         cfg.ImportBatchSize,
		Logger:            logs.Component("collection"),
	})
	server := httpserver.New(cfg, st, svc, logs.Component("http"))

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	var serveErr error
	select {
	case serveErr = <-serverErrCh:
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return serveErr
}

// newEnricher returns nil when no TMDB key is configured, which disables
// country lookups during imports and creates.
func newEnricher(cfg config.Config, logs *logger.Logger) (importer.Enricher, error) {
	if !cfg.EnrichmentEnabled() {
		logs.Info().Msg("TMDB_API_KEY not set, country enrichment disabled")
		return nil, nil
	}
	client, err := tmdb.NewHTTPClient(cfg.TMDBBaseURL, cfg.TMDBAPIKey, time.Duration(cfg.TMDBTimeoutSecs)*time.Second, logs.Component("tmdb"))
	if err != nil {
		return nil, fmt.Errorf("init tmdb client: %w", err)
	}
	return tmdb.NewCountryEnricher(client, cfg.TMDBCacheSize, time.Duration(cfg.TMDBCacheTTLSecs)*time.Second, logs.Component("enricher")), nil
}
