package media

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"wads/internal/infra/config"
)

// guidPattern matches Plex agent GUIDs like "tmdb://12345".
var guidPattern = regexp.MustCompile(`^(\w+)://(\d+)`)

// PlexClient answers "is this already on the server" questions against a
// Plex Media Server. The full library is cached at startup and refreshed
// on demand; lookups are by external GUID or title.
type PlexClient struct {
	rest *restClient

	mu      sync.RWMutex
	byGUID  map[string]PlexItem // "tmdb:123", "tvdb:456"
	byTitle map[string][]PlexItem
}

// NewPlexClient creates a Plex client. cfg.APIKey is the X-Plex-Token.
func NewPlexClient(cfg config.ServiceConfig) *PlexClient {
	return &PlexClient{
		rest:    newRESTClient("plex", cfg.URL, "X-Plex-Token", cfg.APIKey),
		byGUID:  map[string]PlexItem{},
		byTitle: map[string][]PlexItem{},
	}
}

// PlexItem is a movie or show in the Plex library.
type PlexItem struct {
	RatingKey string `json:"ratingKey"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	Type      string `json:"type"` // "movie" or "show"
}

type plexContainer[T any] struct {
	MediaContainer struct {
		Metadata []T `json:"Metadata"`
	} `json:"MediaContainer"`
}

type plexSection struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

type plexSectionsResponse struct {
	MediaContainer struct {
		Directory []plexSection `json:"Directory"`
	} `json:"MediaContainer"`
}

type plexLibraryItem struct {
	RatingKey string `json:"ratingKey"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	Type      string `json:"type"`
	GUID      []struct {
		ID string `json:"id"`
	} `json:"Guid"`
}

// SeasonAvailability describes one season of a show on the server.
type SeasonAvailability struct {
	SeasonNumber int    `json:"index"`
	Title        string `json:"title"`
	EpisodeCount int    `json:"leafCount"`
}

// Ping verifies the server is reachable and the token is accepted.
func (c *PlexClient) Ping(ctx context.Context) error {
	return c.rest.do(ctx, requestOptions{path: "/identity"}, nil)
}

// CacheReady reports whether the library cache has been loaded.
func (c *PlexClient) CacheReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byGUID) > 0 || len(c.byTitle) > 0
}

// LoadLibraryCache walks every movie/show section and indexes items by
// external GUID and lowercase title. Safe to call again to refresh.
func (c *PlexClient) LoadLibraryCache(ctx context.Context) error {
	var sections plexSectionsResponse
	if err := c.rest.do(ctx, requestOptions{path: "/library/sections"}, &sections); err != nil {
		return err
	}

	byGUID := map[string]PlexItem{}
	byTitle := map[string][]PlexItem{}
	for _, section := range sections.MediaContainer.Directory {
		if section.Type != "movie" && section.Type != "show" {
			continue
		}
		var page plexContainer[plexLibraryItem]
		err := c.rest.do(ctx, requestOptions{
			path:    "/library/sections/" + section.Key + "/all",
			query:   url.Values{"includeGuids": {"1"}},
			timeout: searchTimeout,
		}, &page)
		if err != nil {
			return err
		}
		for _, raw := range page.MediaContainer.Metadata {
			item := PlexItem{RatingKey: raw.RatingKey, Title: raw.Title, Year: raw.Year, Type: raw.Type}
			for _, guid := range raw.GUID {
				if m := guidPattern.FindStringSubmatch(guid.ID); m != nil {
					byGUID[m[1]+":"+m[2]] = item
				}
			}
			key := strings.ToLower(raw.Title)
			byTitle[key] = append(byTitle[key], item)
		}
	}

	c.mu.Lock()
	c.byGUID = byGUID
	c.byTitle = byTitle
	c.mu.Unlock()
	return nil
}

// FindByTMDBID looks a movie or show up by its TMDB id.
func (c *PlexClient) FindByTMDBID(id int64) (PlexItem, bool) {
	return c.lookupGUID("tmdb:" + strconv.FormatInt(id, 10))
}

// FindByTVDBID looks a show up by its TVDB id.
func (c *PlexClient) FindByTVDBID(id int64) (PlexItem, bool) {
	return c.lookupGUID("tvdb:" + strconv.FormatInt(id, 10))
}

func (c *PlexClient) lookupGUID(key string) (PlexItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.byGUID[key]
	return item, ok
}

// FindByTitle matches by exact lowercase title, preferring the requested
// media type but falling back to any type on a miss.
func (c *PlexClient) FindByTitle(title, mediaType string) (PlexItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := c.byTitle[strings.ToLower(title)]
	for _, item := range matches {
		if item.Type == mediaType {
			return item, true
		}
	}
	if len(matches) > 0 {
		return matches[0], true
	}
	return PlexItem{}, false
}

// GetShowAvailability lists which seasons of a show exist on the server.
func (c *PlexClient) GetShowAvailability(ctx context.Context, ratingKey string) ([]SeasonAvailability, error) {
	var out plexContainer[SeasonAvailability]
	err := c.rest.do(ctx, requestOptions{path: "/library/metadata/" + ratingKey + "/children"}, &out)
	if err != nil {
		return nil, err
	}
	seasons := out.MediaContainer.Metadata
	filtered := seasons[:0]
	for _, s := range seasons {
		if s.SeasonNumber > 0 || s.EpisodeCount > 0 {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}
