package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when upstream cannot find the requested movie.
	ErrNotFound = errors.New("tmdb: not found")
	// ErrUnauthorized is returned when the API key is rejected.
	ErrUnauthorized = errors.New("tmdb: invalid api key")
	// ErrRateLimited is returned on HTTP 429.
	ErrRateLimited = errors.New("tmdb: rate limited")
	// ErrUpstream wraps any other non-success status.
	ErrUpstream = errors.New("tmdb: upstream error")
)

// Client defines the contract for querying the movie metadata API.
type Client interface {
	SearchMovies(ctx context.Context, title, year string) ([]SearchResult, error)
	MovieDetails(ctx context.Context, id int) (*Details, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPClient constructs a new HTTP-backed metadata client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse tmdb url: %q is not absolute", baseURL)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost:   8,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// SearchMovies searches movies by title. An empty year searches across all years.
func (c *HTTPClient) SearchMovies(ctx context.Context, title, year string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("query", title)
	params.Set("include_adult", "false")
	if year = strings.TrimSpace(year); year != "" {
		params.Set("year", year)
	}

	var payload searchResponse
	if err := c.get(ctx, "/search/movie", params, &payload); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, r.toResult())
	}

	c.logger.Debug().
		Str("query", title).
		Str("year", year).
		Int("results", len(results)).
		Msg("movie search completed")
	return results, nil
}

// MovieDetails fetches the detail record of a movie by its TMDB id.
func (c *HTTPClient) MovieDetails(ctx context.Context, id int) (*Details, error) {
	var payload detailsResponse
	if err := c.get(ctx, "/movie/"+strconv.Itoa(id), nil, &payload); err != nil {
		return nil, err
	}
	details := payload.toDetails()
	return &details, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, dst interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + path
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("decode tmdb response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		var body errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("message", body.StatusMessage).
			Msg("unexpected tmdb status")
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
}
