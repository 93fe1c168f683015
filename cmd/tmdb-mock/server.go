package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type namedEntry struct {
	ID   int    `json:"id,omitempty"`
	ISO  string `json:"iso_3166_1,omitempty"`
	Name string `json:"name"`
}

// mockMovie mirrors the subset of the TMDB detail payload movie-shelf reads.
type mockMovie struct {
	ID                  int          `json:"id"`
	Title               string       `json:"title"`
	ReleaseDate         string       `json:"release_date"`
	Overview            string       `json:"overview"`
	PosterPath          string       `json:"poster_path"`
	Runtime             *int         `json:"runtime"`
	ProductionCountries []namedEntry `json:"production_countries"`
	Genres              []namedEntry `json:"genres"`
}

type searchResult struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"poster_path"`
}

type searchResponse struct {
	Page         int            `json:"page"`
	Results      []searchResult `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

type statusResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

func loadMovies(payload []byte) ([]mockMovie, error) {
	var movies []mockMovie
	if err := json.Unmarshal(payload, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

func newRouter(movies []mockMovie, apiKey string, logger zerolog.Logger) http.Handler {
	byID := make(map[int]mockMovie, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Info().Str("method", req.Method).Str("path", req.URL.Path).Str("query", req.URL.Query().Get("query")).Msg("request")
			if apiKey != "" && req.URL.Query().Get("api_key") != apiKey {
				writeJSON(w, http.StatusUnauthorized, statusResponse{StatusCode: 7, StatusMessage: "Invalid API key: You must be granted a valid key."})
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/search/movie", func(w http.ResponseWriter, req *http.Request) {
		query := strings.ToLower(strings.TrimSpace(req.URL.Query().Get("query")))
		year := strings.TrimSpace(req.URL.Query().Get("year"))

		results := make([]searchResult, 0)
		if query != "" {
			for _, m := range movies {
				if !strings.Contains(strings.ToLower(m.Title), query) {
					continue
				}
				if year != "" && !strings.HasPrefix(m.ReleaseDate, year) {
					continue
				}
				results = append(results, searchResult{
					ID:          m.ID,
					Title:       m.Title,
					ReleaseDate: m.ReleaseDate,
					Overview:    m.Overview,
					PosterPath:  m.PosterPath,
				})
			}
		}
		writeJSON(w, http.StatusOK, searchResponse{
			Page:         1,
			Results:      results,
			TotalPages:   1,
			TotalResults: len(results),
		})
	})

	r.Get("/movie/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(req, "id"))
		movie, ok := byID[id]
		if err != nil || !ok {
			writeJSON(w, http.StatusNotFound, statusResponse{StatusCode: 34, StatusMessage: "The resource you requested could not be found."})
			return
		}
		writeJSON(w, http.StatusOK, movie)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
