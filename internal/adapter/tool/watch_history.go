package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/adapter/media"
	"wads/internal/domain"
)

const defaultHistoryLimit = 10

// WatchHistoryTool reads recent plays from Tautulli. When the requester's
// display name matches a Plex account, history is filtered to that account.
type WatchHistoryTool struct {
	tautulli *media.TautulliClient
	logger   *slog.Logger
}

func NewWatchHistoryTool(tautulli *media.TautulliClient, logger *slog.Logger) *WatchHistoryTool {
	return &WatchHistoryTool{tautulli: tautulli, logger: logger}
}

func (t *WatchHistoryTool) Name() string { return "get_watch_history" }
func (t *WatchHistoryTool) Description() string {
	return "Get recent watch history from Plex. Shows what has been watched recently, including title and date. Use when the user asks 'what have I been watching', 'what did I watch recently', or 'my watch history'."
}
func (t *WatchHistoryTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *WatchHistoryTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"mediaType": {"type": "string", "enum": ["movie", "episode"], "description": "Filter by media type: movie or episode (TV). Omit for all types."},
				"limit": {"type": "integer", "minimum": 1, "maximum": 25, "description": "Number of recent items to return (default 10, max 25)"}
			}
		}`),
	}
}

type watchHistoryParams struct {
	MediaType string `json:"mediaType"`
	Limit     int    `json:"limit"`
}

func (t *WatchHistoryTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_watch_history", t.logger, params,
		func(ctx context.Context, span trace.Span, p watchHistoryParams) (any, error) {
			if t.tautulli == nil {
				return errorResult("Watch history (Tautulli) is not configured"), nil
			}

			limit := p.Limit
			if limit <= 0 {
				limit = defaultHistoryLimit
			}

			query := media.HistoryParams{MediaType: p.MediaType, Length: limit}
			if id, ok := t.plexUserID(ctx); ok {
				query.UserID = id
			}

			records, err := t.tautulli.GetHistory(ctx, query)
			if err != nil {
				return nil, err
			}
			if len(records) == 0 {
				return map[string]any{"results": []any{}, "message": "No recent watch history found"}, nil
			}

			type historyEntry struct {
				Title           string `json:"title"`
				MediaType       string `json:"mediaType"`
				WatchedDate     string `json:"watchedDate"`
				User            string `json:"user,omitempty"`
				PercentComplete int    `json:"percentComplete"`
			}
			results := make([]historyEntry, 0, len(records))
			for _, r := range records {
				results = append(results, historyEntry{
					Title:           r.FullTitle,
					MediaType:       r.MediaType,
					WatchedDate:     time.Unix(r.Date, 0).Format("2006-01-02"),
					User:            r.User,
					PercentComplete: r.PercentComplete,
				})
			}
			return map[string]any{"results": results}, nil
		},
	)
}

// plexUserID matches the requester's display name against the Plex accounts
// Tautulli knows about. A miss means unfiltered history.
func (t *WatchHistoryTool) plexUserID(ctx context.Context) (int64, bool) {
	requester := domain.RequesterFromContext(ctx)
	if requester.DisplayName == "" {
		return 0, false
	}
	users, err := t.tautulli.GetUsers(ctx)
	if err != nil {
		return 0, false
	}
	name := strings.ToLower(requester.DisplayName)
	for _, u := range users {
		if strings.ToLower(u.FriendlyName) == name || strings.ToLower(u.Username) == name {
			return u.UserID, true
		}
	}
	return 0, false
}
