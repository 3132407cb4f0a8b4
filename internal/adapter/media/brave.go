package media

import (
	"context"
	"net/url"
	"strconv"

	"wads/internal/infra/config"
)

const braveBaseURL = "https://api.search.brave.com/res/v1"

// BraveClient runs web searches for questions outside the media stack
// (reviews, release rumors, "is it any good").
type BraveClient struct {
	rest *restClient
}

// NewBraveClient creates a Brave Search client.
func NewBraveClient(cfg config.ServiceConfig) *BraveClient {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = braveBaseURL
	}
	return &BraveClient{
		rest: newRESTClient("brave", baseURL, "X-Subscription-Token", cfg.APIKey),
	}
}

// WebResult is one web search hit.
type WebResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type braveSearchResponse struct {
	Web struct {
		Results []WebResult `json:"results"`
	} `json:"web"`
}

// Search returns up to count web results for the query.
func (c *BraveClient) Search(ctx context.Context, query string, count int) ([]WebResult, error) {
	if count <= 0 {
		count = 5
	}
	var out braveSearchResponse
	err := c.rest.do(ctx, requestOptions{
		path: "/web/search",
		query: url.Values{
			"q":     {query},
			"count": {strconv.Itoa(count)},
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Web.Results, nil
}
