package media

import (
	"context"
	"net/url"
	"strconv"

	"wads/internal/infra/config"
)

// TautulliClient reads watch statistics from Tautulli. Tautulli exposes a
// single endpoint dispatched by a cmd parameter rather than REST paths.
type TautulliClient struct {
	rest *restClient
}

// NewTautulliClient creates a Tautulli client.
func NewTautulliClient(cfg config.ServiceConfig) *TautulliClient {
	return &TautulliClient{
		rest: newRESTClient("tautulli", cfg.URL, "", cfg.APIKey),
	}
}

// WatchRecord is one play from the watch history.
type WatchRecord struct {
	User            string  `json:"user"`
	Title           string  `json:"title"`
	FullTitle       string  `json:"full_title"`
	MediaType       string  `json:"media_type"`
	Date            int64   `json:"date"` // unix seconds
	WatchedStatus   float64 `json:"watched_status"`
	PercentComplete int     `json:"percent_complete"`
}

// TautulliUser is a Plex user known to Tautulli.
type TautulliUser struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	FriendlyName string `json:"friendly_name"`
}

type tautulliEnvelope[T any] struct {
	Response struct {
		Result  string `json:"result"`
		Message string `json:"message"`
		Data    T      `json:"data"`
	} `json:"response"`
}

type historyData struct {
	Data []WatchRecord `json:"data"`
}

// HistoryParams filter a watch-history query.
type HistoryParams struct {
	UserID    int64
	MediaType string // "movie" or "episode"
	Length    int    // max rows, default 25
}

func (c *TautulliClient) command(ctx context.Context, cmd string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("cmd", cmd)
	params.Set("apikey", c.rest.apiKey)
	return c.rest.do(ctx, requestOptions{path: "/api/v2", query: params}, out)
}

// GetHistory returns recent plays, newest first.
func (c *TautulliClient) GetHistory(ctx context.Context, params HistoryParams) ([]WatchRecord, error) {
	query := url.Values{}
	if params.UserID != 0 {
		query.Set("user_id", strconv.FormatInt(params.UserID, 10))
	}
	if params.MediaType != "" {
		query.Set("media_type", params.MediaType)
	}
	length := params.Length
	if length <= 0 {
		length = 25
	}
	query.Set("length", strconv.Itoa(length))

	var out tautulliEnvelope[historyData]
	if err := c.command(ctx, "get_history", query, &out); err != nil {
		return nil, err
	}
	return out.Response.Data.Data, nil
}

// GetUsers lists Plex users for resolving names to Tautulli user ids.
func (c *TautulliClient) GetUsers(ctx context.Context) ([]TautulliUser, error) {
	var out tautulliEnvelope[[]TautulliUser]
	if err := c.command(ctx, "get_users", nil, &out); err != nil {
		return nil, err
	}
	return out.Response.Data, nil
}
