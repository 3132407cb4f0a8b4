package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/adapter/media"
	"wads/internal/domain"
	"wads/internal/infra/tracer"
)

const webSearchCount = 5

// WebSearchTool falls back to Brave web search for queries the structured
// media APIs can't answer ("that movie where the guy relives the same day").
type WebSearchTool struct {
	brave  *media.BraveClient
	logger *slog.Logger
}

func NewWebSearchTool(brave *media.BraveClient, logger *slog.Logger) *WebSearchTool {
	return &WebSearchTool{brave: brave, logger: logger}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Search the web for media information when structured search cannot find what the user is looking for. Best for vague descriptions like 'that movie where the guy relives the same day'. Returns web page titles and descriptions."
}
func (t *WebSearchTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *WebSearchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Web search query. Include 'movie' or 'TV show' in the query for better results."}
			},
			"required": ["query"]
		}`),
	}
}

type webSearchParams struct {
	Query string `json:"query"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.web_search", t.logger, params,
		func(ctx context.Context, span trace.Span, p webSearchParams) (any, error) {
			if t.brave == nil {
				return errorResult("Web search is not configured (set the Brave Search API key)"), nil
			}
			span.SetAttributes(tracer.StringAttr("tool.query", p.Query))

			results, err := t.brave.Search(ctx, p.Query, webSearchCount)
			if err != nil {
				return nil, err
			}
			return map[string]any{"results": results, "query": p.Query}, nil
		},
	)
}
