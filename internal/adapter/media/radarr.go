package media

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"wads/internal/infra/config"
)

// RadarrClient talks to a Radarr v3 API instance for movie management.
type RadarrClient struct {
	rest *restClient

	// Cached at startup so add operations don't need extra round trips.
	QualityProfiles []QualityProfile
	RootFolders     []RootFolder
}

// NewRadarrClient creates a Radarr client from service config.
func NewRadarrClient(cfg config.ServiceConfig) *RadarrClient {
	return &RadarrClient{rest: newRESTClient("radarr", cfg.URL, "X-Api-Key", cfg.APIKey)}
}

// Movie is a Radarr library entry or lookup result. ID is zero for lookup
// results not yet in the library.
type Movie struct {
	ID        int64  `json:"id,omitempty"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	TMDBID    int64  `json:"tmdbId"`
	TitleSlug string `json:"titleSlug,omitempty"`
	Overview  string `json:"overview,omitempty"`
	Status    string `json:"status,omitempty"`
	HasFile   bool   `json:"hasFile,omitempty"`
	Monitored bool   `json:"monitored,omitempty"`
	Images    []struct {
		CoverType string `json:"coverType"`
		RemoteURL string `json:"remoteUrl,omitempty"`
	} `json:"images,omitempty"`
	DigitalRelease   string `json:"digitalRelease,omitempty"`
	OriginalLanguage *struct {
		Name string `json:"name"`
	} `json:"originalLanguage,omitempty"`
}

// QualityProfile is a configured Radarr/Sonarr quality profile.
type QualityProfile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RootFolder is a configured library path.
type RootFolder struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// QueueRecord is one item in the download queue.
type QueueRecord struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	Size     float64 `json:"size"`
	SizeLeft float64 `json:"sizeleft"`
	TimeLeft string  `json:"timeleft,omitempty"`
}

// QueuePage is a paginated download queue response.
type QueuePage struct {
	Page         int           `json:"page"`
	PageSize     int           `json:"pageSize"`
	TotalRecords int           `json:"totalRecords"`
	Records      []QueueRecord `json:"records"`
}

// AddMovieInput is the request body for adding a movie.
type AddMovieInput struct {
	Title               string          `json:"title"`
	TMDBID              int64           `json:"tmdbId"`
	QualityProfileID    int64           `json:"qualityProfileId"`
	RootFolderPath      string          `json:"rootFolderPath"`
	Monitored           bool            `json:"monitored"`
	MinimumAvailability string          `json:"minimumAvailability"`
	TitleSlug           string          `json:"titleSlug,omitempty"`
	AddOptions          MovieAddOptions `json:"addOptions"`
}

// MovieAddOptions control post-add behavior.
type MovieAddOptions struct {
	SearchForMovie bool `json:"searchForMovie"`
}

// LookupByTMDBID fetches full lookup metadata for one movie. The result
// carries a nonzero ID when the movie is already in the library.
func (c *RadarrClient) LookupByTMDBID(ctx context.Context, tmdbID int64) (*Movie, error) {
	var out Movie
	err := c.rest.do(ctx, requestOptions{
		path:    "/api/v3/movie/lookup/tmdb",
		query:   url.Values{"tmdbId": {strconv.FormatInt(tmdbID, 10)}},
		timeout: searchTimeout,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping verifies the instance is reachable and the API key is accepted.
func (c *RadarrClient) Ping(ctx context.Context) error {
	return c.rest.do(ctx, requestOptions{path: "/api/v3/system/status"}, nil)
}

// LoadCachedData fetches quality profiles and root folders once at startup.
func (c *RadarrClient) LoadCachedData(ctx context.Context) error {
	profiles, err := c.GetQualityProfiles(ctx)
	if err != nil {
		return err
	}
	folders, err := c.GetRootFolders(ctx)
	if err != nil {
		return err
	}
	c.QualityProfiles = profiles
	c.RootFolders = folders
	return nil
}

// SearchMovies looks movies up by term. Longer timeout: the lookup proxies
// to TMDB server-side.
func (c *RadarrClient) SearchMovies(ctx context.Context, term string) ([]Movie, error) {
	var out []Movie
	err := c.rest.do(ctx, requestOptions{
		path:    "/api/v3/movie/lookup",
		query:   url.Values{"term": {term}},
		timeout: searchTimeout,
	}, &out)
	return out, err
}

// GetMovies returns every movie in the Radarr library.
func (c *RadarrClient) GetMovies(ctx context.Context) ([]Movie, error) {
	var out []Movie
	err := c.rest.do(ctx, requestOptions{path: "/api/v3/movie"}, &out)
	return out, err
}

// AddMovie adds a movie to the library.
func (c *RadarrClient) AddMovie(ctx context.Context, input AddMovieInput) (*Movie, error) {
	var out Movie
	err := c.rest.do(ctx, requestOptions{
		method: "POST",
		path:   "/api/v3/movie",
		body:   input,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveMovie deletes a library movie, optionally removing files from disk.
func (c *RadarrClient) RemoveMovie(ctx context.Context, id int64, deleteFiles bool) error {
	query := url.Values{}
	if deleteFiles {
		query.Set("deleteFiles", "true")
	}
	return c.rest.do(ctx, requestOptions{
		method: "DELETE",
		path:   fmt.Sprintf("/api/v3/movie/%d", id),
		query:  query,
	}, nil)
}

// GetUpcoming returns calendar entries between two dates (ISO yyyy-mm-dd).
func (c *RadarrClient) GetUpcoming(ctx context.Context, start, end string) ([]Movie, error) {
	var out []Movie
	err := c.rest.do(ctx, requestOptions{
		path:  "/api/v3/calendar",
		query: url.Values{"start": {start}, "end": {end}, "unmonitored": {"false"}},
	}, &out)
	return out, err
}

// GetQueue returns a page of the download queue sorted by time left.
func (c *RadarrClient) GetQueue(ctx context.Context, page, pageSize int) (*QueuePage, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	var out QueuePage
	err := c.rest.do(ctx, requestOptions{
		path: "/api/v3/queue",
		query: url.Values{
			"page":          {strconv.Itoa(page)},
			"pageSize":      {strconv.Itoa(pageSize)},
			"sortKey":       {"timeleft"},
			"sortDirection": {"ascending"},
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQualityProfiles lists configured quality profiles.
func (c *RadarrClient) GetQualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	var out []QualityProfile
	err := c.rest.do(ctx, requestOptions{path: "/api/v3/qualityprofile"}, &out)
	return out, err
}

// GetRootFolders lists configured root folders.
func (c *RadarrClient) GetRootFolders(ctx context.Context) ([]RootFolder, error) {
	var out []RootFolder
	err := c.rest.do(ctx, requestOptions{path: "/api/v3/rootfolder"}, &out)
	return out, err
}
