package media

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"wads/internal/infra/config"
)

// SonarrClient talks to a Sonarr v3 API instance for series management.
type SonarrClient struct {
	rest *restClient

	QualityProfiles []QualityProfile
	RootFolders     []RootFolder
}

// NewSonarrClient creates a Sonarr client from service config.
func NewSonarrClient(cfg config.ServiceConfig) *SonarrClient {
	return &SonarrClient{rest: newRESTClient("sonarr", cfg.URL, "X-Api-Key", cfg.APIKey)}
}

// Series is a Sonarr library entry or lookup result.
type Series struct {
	ID         int64    `json:"id,omitempty"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	TVDBID     int64    `json:"tvdbId"`
	TitleSlug  string   `json:"titleSlug,omitempty"`
	Overview   string   `json:"overview,omitempty"`
	Network    string   `json:"network,omitempty"`
	Status     string   `json:"status,omitempty"`
	Monitored  bool     `json:"monitored,omitempty"`
	SeriesType string   `json:"seriesType,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Seasons    []Season `json:"seasons,omitempty"`
	Images     []struct {
		CoverType string `json:"coverType"`
		RemoteURL string `json:"remoteUrl,omitempty"`
	} `json:"images,omitempty"`
	OriginalLanguage *struct {
		Name string `json:"name"`
	} `json:"originalLanguage,omitempty"`
}

// Season is a season descriptor inside a series.
type Season struct {
	SeasonNumber int  `json:"seasonNumber"`
	Monitored    bool `json:"monitored"`
}

// Episode is a calendar entry.
type Episode struct {
	ID            int64  `json:"id"`
	SeriesID      int64  `json:"seriesId"`
	Title         string `json:"title"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	AirDate       string `json:"airDate,omitempty"`
	Series        *struct {
		Title string `json:"title"`
	} `json:"series,omitempty"`
}

// AddSeriesInput is the request body for adding a series.
type AddSeriesInput struct {
	Title            string           `json:"title"`
	TVDBID           int64            `json:"tvdbId"`
	QualityProfileID int64            `json:"qualityProfileId"`
	RootFolderPath   string           `json:"rootFolderPath"`
	TitleSlug        string           `json:"titleSlug"`
	Seasons          []Season         `json:"seasons"`
	Monitored        bool             `json:"monitored"`
	SeasonFolder     bool             `json:"seasonFolder"`
	SeriesType       string           `json:"seriesType,omitempty"`
	AddOptions       SeriesAddOptions `json:"addOptions"`
}

// SeriesAddOptions control post-add behavior.
type SeriesAddOptions struct {
	SearchForMissingEpisodes bool `json:"searchForMissingEpisodes"`
}

// Ping verifies the instance is reachable and the API key is accepted.
func (c *SonarrClient) Ping(ctx context.Context) error {
	return c.rest.do(ctx, requestOptions{path: "/api/v3/system/status"}, nil)
}

// LoadCachedData fetches quality profiles and root folders once at startup.
func (c *SonarrClient) LoadCachedData(ctx context.Context) error {
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

// SearchSeries looks series up by term. Longer timeout: the lookup proxies
// to TheTVDB server-side.
func (c *SonarrClient) SearchSeries(ctx context.Context, term string) ([]Series, error) {
	var out []Series
	err := c.rest.do(ctx, requestOptions{
		path:    "/api/v3/series/lookup",
		query:   url.Values{"term": {term}},
		timeout: searchTimeout,
	}, &out)
	return out, err
}

// GetSeries returns every series in the Sonarr library.
func (c *SonarrClient) GetSeries(ctx context.Context) ([]Series, error) {
	var out []Series
	err := c.rest.do(ctx, requestOptions{path: "/api/v3/series"}, &out)
	return out, err
}

// AddSeries adds a series to the library.
func (c *SonarrClient) AddSeries(ctx context.Context, input AddSeriesInput) (*Series, error) {
	var out Series
	err := c.rest.do(ctx, requestOptions{
		method: "POST",
		path:   "/api/v3/series",
		body:   input,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveSeries deletes a library series, optionally removing files from disk.
func (c *SonarrClient) RemoveSeries(ctx context.Context, id int64, deleteFiles bool) error {
	query := url.Values{}
	if deleteFiles {
		query.Set("deleteFiles", "true")
	}
	return c.rest.do(ctx, requestOptions{
		method: "DELETE",
		path:   fmt.Sprintf("/api/v3/series/%d", id),
		query:  query,
	}, nil)
}

// GetCalendar returns episodes airing between two dates (ISO yyyy-mm-dd).
func (c *SonarrClient) GetCalendar(ctx context.Context, start, end string) ([]Episode, error) {
	var out []Episode
	err := c.rest.do(ctx, requestOptions{
		path:  "/api/v3/calendar",
		query: url.Values{"start": {start}, "end": {end}, "includeSeries": {"true"}},
	}, &out)
	return out, err
}

// GetQueue returns a page of the download queue sorted by time left.
func (c *SonarrClient) GetQueue(ctx context.Context, page, pageSize int) (*QueuePage, error) {
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
func (c *SonarrClient) GetQualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	var out []QualityProfile
	err := c.rest.do(ctx, requestOptions{path: "/api/v3/qualityprofile"}, &out)
	return out, err
}

// GetRootFolders lists configured root folders.
func (c *SonarrClient) GetRootFolders(ctx context.Context) ([]RootFolder, error) {
	var out []RootFolder
	err := c.rest.do(ctx, requestOptions{path: "/api/v3/rootfolder"}, &out)
	return out, err
}
