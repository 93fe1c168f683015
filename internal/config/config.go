package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultTMDBBaseURL is the public TMDB v3 API root.
const DefaultTMDBBaseURL = "https://api.themoviedb.org/3"

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port             string
	AuthToken        string
	ReadTimeoutSecs  int
	WriteTimeoutSecs int
	IdleTimeoutSecs  int

	DBURL             string
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int
	DBMigrateOnStart  bool

	TMDBBaseURL      string
	TMDBAPIKey       string
	TMDBTimeoutSecs  int
	TMDBCacheSize    int
	TMDBCacheTTLSecs int

	ImportConcurrency int
	ImportBatchSize   int
	ImportMaxBytes    int64
	ImportTimeoutSecs int
	PageSize          int
	PosterPlaceholder string

	LogLevel  string
	LogFormat string
	LogPath   string
}

// EnrichmentEnabled reports whether a TMDB API key was configured.
func (c Config) EnrichmentEnabled() bool {
	return c.TMDBAPIKey != ""
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		AuthToken:        os.Getenv("AUTH_TOKEN"),
		ReadTimeoutSecs:  getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
		IdleTimeoutSecs:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),

		DBURL:             os.Getenv("DB_URL"),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:     getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
		DBMigrateOnStart:  getEnvBool("DB_MIGRATE_ON_START", true),

		TMDBBaseURL:      getEnv("TMDB_BASE_URL", DefaultTMDBBaseURL),
		TMDBAPIKey:       os.Getenv("TMDB_API_KEY"),
		TMDBTimeoutSecs:  getEnvInt("TMDB_TIMEOUT_SECS", 5),
		TMDBCacheSize:    getEnvInt("TMDB_CACHE_SIZE", 1024),
		TMDBCacheTTLSecs: getEnvInt("TMDB_CACHE_TTL_SECS", 86400),

		ImportConcurrency: getEnvInt("IMPORT_CONCURRENCY", 4),
		ImportBatchSize:   getEnvInt("IMPORT_BATCH_SIZE", 50),
		ImportMaxBytes:    int64(getEnvInt("IMPORT_MAX_BYTES", 10<<20)),
		ImportTimeoutSecs: getEnvInt("IMPORT_TIMEOUT_SECS", 900),
		PageSize:          getEnvInt("PAGE_SIZE", 24),
		PosterPlaceholder: getEnv("POSTER_PLACEHOLDER", "/static/poster-placeholder.png"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogPath:   os.Getenv("LOG_PATH"),
	}

	if cfg.AuthToken == "" {
		return Config{}, fmt.Errorf("AUTH_TOKEN is required")
	}
	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.TMDBTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("TMDB_TIMEOUT_SECS must be positive")
	}
	if cfg.TMDBCacheSize <= 0 {
		return Config{}, fmt.Errorf("TMDB_CACHE_SIZE must be positive")
	}
	if cfg.TMDBCacheTTLSecs < 0 {
		return Config{}, fmt.Errorf("TMDB_CACHE_TTL_SECS must be non-negative")
	}
	if cfg.ImportConcurrency <= 0 {
		return Config{}, fmt.Errorf("IMPORT_CONCURRENCY must be positive")
	}
	if cfg.ImportBatchSize <= 0 {
		return Config{}, fmt.Errorf("IMPORT_BATCH_SIZE must be positive")
	}
	if cfg.ImportMaxBytes <= 0 {
		return Config{}, fmt.Errorf("IMPORT_MAX_BYTES must be positive")
	}
	if cfg.ImportTimeoutSecs < 0 {
		return Config{}, fmt.Errorf("IMPORT_TIMEOUT_SECS must be non-negative")
	}
	if cfg.PageSize <= 0 {
		return Config{}, fmt.Errorf("PAGE_SIZE must be positive")
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT must be console or json")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
