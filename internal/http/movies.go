package httpserver

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-shelf/internal/catalog"
	"github.com/Clark-Hu/movie-shelf/internal/collection"
	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

type movieRequest struct {
	Title           string   `json:"title"`
	Year            string   `json:"year"`
	Genres          []string `json:"genres"`
	OriginCountry   []string `json:"originCountry"`
	CommunityRating *float64 `json:"communityRating"`
	Runtime         string   `json:"runtime"`
	Director        string   `json:"director"`
	Cast            []string `json:"cast"`
	Synopsis        string   `json:"synopsis"`
	PosterURL       string   `json:"posterUrl"`
}

type movieResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Year            string    `json:"year"`
	Genres          []string  `json:"genres"`
	OriginCountry   []string  `json:"originCountry"`
	CommunityRating *float64  `json:"communityRating"`
	Runtime         string    `json:"runtime"`
	Director        string    `json:"director,omitempty"`
	Cast            []string  `json:"cast"`
	Synopsis        string    `json:"synopsis,omitempty"`
	PosterURL       string    `json:"posterUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type categoryResponse struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Items []movieResponse `json:"items"`
}

type viewResponse struct {
	Items       []movieResponse    `json:"items"`
	Total       int                `json:"total"`
	Visible     int                `json:"visible"`
	HasMore     bool               `json:"hasMore"`
	NextVisible int                `json:"nextVisible"`
	Categories  []categoryResponse `json:"categories"`
}

type filtersResponse struct {
	Genres    []string `json:"genres"`
	Countries []string `json:"countries"`
	Sorts     []string `json:"sorts"`
	// Conflicts lists values that are both a filter and a sort token; the filter wins.
	Conflicts []string `json:"conflicts,omitempty"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type ratingRequest struct {
	Rating *float64 `json:"rating"`
}

type ratingResponse struct {
	MovieID string  `json:"movieId"`
	RaterID string  `json:"raterId"`
	Rating  float64 `json:"rating"`
}

type ratingAggregateResponse struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type summaryResponse struct {
	collection.Summary
	Message string `json:"message"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	req, err := parseViewQuery(r.URL.Query(), s.cfg.PageSize)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	view, err := s.svc.View(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err, "list movies")
		return
	}

	categories := make([]categoryResponse, 0, len(view.Categories))
	for _, c := range view.Categories {
		categories = append(categories, categoryResponse{Key: c.Key, Label: c.Label, Items: toMovieResponses(c.Movies)})
	}
	s.respondJSON(w, http.StatusOK, viewResponse{
		Items:       toMovieResponses(view.Visible),
		Total:       view.Total,
		Visible:     len(view.Visible),
		HasMore:     view.HasMore(),
		NextVisible: catalog.NextVisibleCount(len(view.Visible), s.cfg.PageSize, view.Total),
		Categories:  categories,
	})
}

// parseViewQuery reads q, sort and visible. The search text is kept verbatim
// unless it is only whitespace. A missing visible count defaults to one page;
// a negative one is treated as zero.
func parseViewQuery(query url.Values, pageSize int) (collection.ViewRequest, error) {
	req := collection.ViewRequest{
		Search:  query.Get("q"),
		Token:   strings.TrimSpace(query.Get("sort")),
		Visible: pageSize,
	}
	if strings.TrimSpace(req.Search) == "" {
		req.Search = ""
	}
	if val := strings.TrimSpace(query.Get("visible")); val != "" {
		visible, err := strconv.Atoi(val)
		if err != nil {
			return req, fmt.Errorf("invalid visible value")
		}
		req.Visible = max(visible, 0)
	}
	return req, nil
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	vocab, err := s.svc.Vocabulary(r.Context())
	if err != nil {
		s.respondServiceError(w, err, "load filters")
		return
	}
	sorts := make([]string, 0, len(catalog.SortModes))
	for _, m := range catalog.SortModes {
		sorts = append(sorts, string(m))
	}
	s.respondJSON(w, http.StatusOK, filtersResponse{
		Genres:    vocab.Genres(),
		Countries: vocab.Countries(),
		Sorts:     sorts,
		Conflicts: vocab.Conflicts(),
	})
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err, "fetch movie")
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var req movieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	movie, err := s.svc.Create(r.Context(), req.toDomain(""))
	if err != nil {
		s.respondServiceError(w, err, "create movie")
		return
	}

	w.Header().Set("Location", "/movies/"+url.PathEscape(movie.ID))
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	var req movieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	movie, err := s.svc.Update(r.Context(), req.toDomain(chi.URLParam(r, "id")))
	if err != nil {
		s.respondServiceError(w, err, "update movie")
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, err, "delete movie")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if len(req.IDs) == 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ids must not be empty")
		return
	}

	sum, err := s.svc.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		s.respondServiceError(w, err, "delete movies")
		return
	}
	s.respondJSON(w, http.StatusOK, summaryResponse{Summary: sum, Message: sum.Message()})
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	raterID := strings.TrimSpace(r.Header.Get("X-Rater-Id"))
	if raterID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Rating == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating is required")
		return
	}

	rating, inserted, err := s.svc.Rate(r.Context(), chi.URLParam(r, "id"), raterID, *req.Rating)
	if err != nil {
		s.respondServiceError(w, err, "process rating")
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, toRatingResponse(rating))
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	agg, err := s.svc.RatingSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err, "fetch rating")
		return
	}
	s.respondJSON(w, http.StatusOK, ratingAggregateResponse{
		Average: roundToOneDecimal(agg.Average),
		Count:   agg.Count,
	})
}

func (s *Server) handleListRaterRatings(w http.ResponseWriter, r *http.Request) {
	raterID := strings.TrimSpace(r.Header.Get("X-Rater-Id"))
	if raterID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	ratings, err := s.svc.RaterRatings(r.Context(), raterID)
	if err != nil {
		s.respondServiceError(w, err, "list ratings")
		return
	}
	items := make([]ratingResponse, 0, len(ratings))
	for _, rating := range ratings {
		items = append(items, toRatingResponse(rating))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (req movieRequest) toDomain(id string) domain.Movie {
	return domain.Movie{
		ID:              id,
		Title:           req.Title,
		Year:            req.Year,
		Genres:          req.Genres,
		OriginCountry:   req.OriginCountry,
		CommunityRating: req.CommunityRating,
		Runtime:         req.Runtime,
		Director:        strings.TrimSpace(req.Director),
		Cast:            req.Cast,
		Synopsis:        strings.TrimSpace(req.Synopsis),
		PosterURL:       strings.TrimSpace(req.PosterURL),
	}
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:              movie.ID,
		Title:           movie.Title,
		Year:            movie.Year,
		Genres:          nonNil(movie.Genres),
		OriginCountry:   nonNil(movie.OriginCountry),
		CommunityRating: movie.CommunityRating,
		Runtime:         movie.Runtime,
		Director:        movie.Director,
		Cast:            nonNil(movie.Cast),
		Synopsis:        movie.Synopsis,
		PosterURL:       movie.PosterURL,
		CreatedAt:       movie.CreatedAt,
		UpdatedAt:       movie.UpdatedAt,
	}
}

func toMovieResponses(movies []domain.Movie) []movieResponse {
	out := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		out = append(out, toMovieResponse(m))
	}
	return out
}

func toRatingResponse(rating domain.Rating) ratingResponse {
	return ratingResponse{
		MovieID: rating.MovieID,
		RaterID: rating.RaterID,
		Rating:  rating.Value,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func roundToOneDecimal(value float64) float64 {
	return math.Round(value*10) / 10.0
}
