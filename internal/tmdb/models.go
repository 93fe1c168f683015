package tmdb

// SearchResult is a single candidate returned by a movie search.
type SearchResult struct {
	ID          int
	Title       string
	ReleaseDate string
	Overview    string
	PosterPath  string
}

// Details carries the fields consumed from the movie detail endpoint.
type Details struct {
	ID                  int
	Title               string
	Runtime             int
	Overview            string
	PosterPath          string
	ProductionCountries []string
	Genres              []string
}

type searchResponse struct {
	Page         int           `json:"page"`
	Results      []movieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

type movieResult struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"poster_path"`
}

func (r movieResult) toResult() SearchResult {
	return SearchResult{
		ID:          r.ID,
		Title:       r.Title,
		ReleaseDate: r.ReleaseDate,
		Overview:    r.Overview,
		PosterPath:  r.PosterPath,
	}
}

type namedEntry struct {
	ID   int    `json:"id,omitempty"`
	ISO  string `json:"iso_3166_1,omitempty"`
	Name string `json:"name"`
}

type detailsResponse struct {
	ID                  int          `json:"id"`
	Title               string       `json:"title"`
	Runtime             *int         `json:"runtime"`
	Overview            string       `json:"overview"`
	PosterPath          string       `json:"poster_path"`
	ProductionCountries []namedEntry `json:"production_countries"`
	Genres              []namedEntry `json:"genres"`
}

func (d detailsResponse) toDetails() Details {
	out := Details{
		ID:                  d.ID,
		Title:               d.Title,
		Overview:            d.Overview,
		PosterPath:          d.PosterPath,
		ProductionCountries: names(d.ProductionCountries),
		Genres:              names(d.Genres),
	}
	if d.Runtime != nil {
		out.Runtime = *d.Runtime
	}
	return out
}

func names(entries []namedEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name != "" {
			out = append(out, e.Name)
		}
	}
	return out
}

type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
