package media

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"wads/internal/infra/config"
)

// TMDBClient talks to TMDB's v3 API for discovery queries the *arr lookups
// cannot answer (genre, actor, year, language filters).
type TMDBClient struct {
	rest *restClient

	mu          sync.RWMutex
	movieGenres map[string]int64 // lowercase name -> id
	tvGenres    map[string]int64
}

// NewTMDBClient creates a TMDB client. cfg.APIKey is a v4 read access token.
func NewTMDBClient(cfg config.ServiceConfig) *TMDBClient {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	return &TMDBClient{
		rest:        newRESTClient("tmdb", baseURL, "Authorization", "Bearer "+cfg.APIKey),
		movieGenres: map[string]int64{},
		tvGenres:    map[string]int64{},
	}
}

// DiscoverResult is one movie or TV entry from a discover query.
type DiscoverResult struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title,omitempty"` // movies
	Name         string  `json:"name,omitempty"`  // tv
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	VoteAverage  float64 `json:"vote_average"`
}

// DisplayTitle returns whichever of the movie/TV title fields is set.
func (r DiscoverResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

type discoverResponse struct {
	Page         int              `json:"page"`
	Results      []DiscoverResult `json:"results"`
	TotalResults int              `json:"total_results"`
}

type genreListResponse struct {
	Genres []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// Person is a TMDB person search hit.
type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type personSearchResponse struct {
	Results []Person `json:"results"`
}

// DiscoverParams are the structured filters for a discover query.
type DiscoverParams struct {
	GenreID      int64
	PersonID     int64
	YearFrom     int
	YearTo       int
	Language     string // ISO 639-1 original language
	MinVoteCount int
}

// LoadGenres fetches the genre id maps once at startup.
func (c *TMDBClient) LoadGenres(ctx context.Context) error {
	var movies, tv genreListResponse
	if err := c.rest.do(ctx, requestOptions{path: "/genre/movie/list"}, &movies); err != nil {
		return err
	}
	if err := c.rest.do(ctx, requestOptions{path: "/genre/tv/list"}, &tv); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.movieGenres = make(map[string]int64, len(movies.Genres))
	for _, g := range movies.Genres {
		c.movieGenres[strings.ToLower(g.Name)] = g.ID
	}
	c.tvGenres = make(map[string]int64, len(tv.Genres))
	for _, g := range tv.Genres {
		c.tvGenres[strings.ToLower(g.Name)] = g.ID
	}
	return nil
}

// ResolveGenreID maps a genre name to a TMDB id: exact match first, then
// substring (the model says "sci-fi", TMDB says "Science Fiction").
func (c *TMDBClient) ResolveGenreID(name, mediaType string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	genres := c.movieGenres
	if mediaType == "tv" {
		genres = c.tvGenres
	}
	lower := strings.ToLower(name)
	if id, ok := genres[lower]; ok {
		return id, true
	}
	for k, id := range genres {
		if strings.Contains(k, lower) || strings.Contains(lower, k) {
			return id, true
		}
	}
	return 0, false
}

// SearchPerson returns the top person match for a name, or nil.
func (c *TMDBClient) SearchPerson(ctx context.Context, query string) (*Person, error) {
	var out personSearchResponse
	err := c.rest.do(ctx, requestOptions{
		path:  "/search/person",
		query: url.Values{"query": {query}},
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	return &out.Results[0], nil
}

// DiscoverMovies runs a filtered movie discover query.
func (c *TMDBClient) DiscoverMovies(ctx context.Context, params DiscoverParams) ([]DiscoverResult, error) {
	query := url.Values{"sort_by": {"popularity.desc"}}
	if params.GenreID != 0 {
		query.Set("with_genres", strconv.FormatInt(params.GenreID, 10))
	}
	if params.PersonID != 0 {
		query.Set("with_cast", strconv.FormatInt(params.PersonID, 10))
	}
	if params.YearFrom != 0 {
		query.Set("primary_release_date.gte", strconv.Itoa(params.YearFrom)+"-01-01")
	}
	if params.YearTo != 0 {
		query.Set("primary_release_date.lte", strconv.Itoa(params.YearTo)+"-12-31")
	}
	if params.Language != "" {
		query.Set("with_original_language", params.Language)
	}
	if params.MinVoteCount > 0 {
		query.Set("vote_count.gte", strconv.Itoa(params.MinVoteCount))
	}

	var out discoverResponse
	err := c.rest.do(ctx, requestOptions{path: "/discover/movie", query: query}, &out)
	return out.Results, err
}

// DiscoverTV runs a filtered TV discover query.
func (c *TMDBClient) DiscoverTV(ctx context.Context, params DiscoverParams) ([]DiscoverResult, error) {
	query := url.Values{"sort_by": {"popularity.desc"}}
	if params.GenreID != 0 {
		query.Set("with_genres", strconv.FormatInt(params.GenreID, 10))
	}
	if params.YearFrom != 0 {
		query.Set("first_air_date.gte", strconv.Itoa(params.YearFrom)+"-01-01")
	}
	if params.YearTo != 0 {
		query.Set("first_air_date.lte", strconv.Itoa(params.YearTo)+"-12-31")
	}
	if params.Language != "" {
		query.Set("with_original_language", params.Language)
	}
	if params.MinVoteCount > 0 {
		query.Set("vote_count.gte", strconv.Itoa(params.MinVoteCount))
	}

	var out discoverResponse
	err := c.rest.do(ctx, requestOptions{path: "/discover/tv", query: query}, &out)
	return out.Results, err
}
