package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/adapter/media"
	"wads/internal/domain"
	"wads/internal/infra/tracer"
)

// PlexLibraryTool answers "do I already have this" against the cached Plex
// library, with per-season detail for shows.
type PlexLibraryTool struct {
	plex   *media.PlexClient
	logger *slog.Logger
}

func NewPlexLibraryTool(plex *media.PlexClient, logger *slog.Logger) *PlexLibraryTool {
	return &PlexLibraryTool{plex: plex, logger: logger}
}

func (t *PlexLibraryTool) Name() string { return "check_plex_library" }
func (t *PlexLibraryTool) Description() string {
	return "Check if a movie or TV show exists in the user's Plex library. For TV shows, shows which seasons and episodes are available. Use when the user asks 'do I have...', 'is ... in my library', 'what seasons of ... do I have', or before suggesting the user add something they might already have."
}
func (t *PlexLibraryTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *PlexLibraryTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "The title to check for"},
				"type": {"type": "string", "enum": ["movie", "show"], "description": "Whether to check for a movie or TV show"},
				"tmdbId": {"type": "integer", "description": "TMDB ID for precise matching (for movies)"},
				"tvdbId": {"type": "integer", "description": "TVDB ID for precise matching (for TV shows)"}
			},
			"required": ["title", "type"]
		}`),
	}
}

type plexLibraryParams struct {
	Title  string `json:"title"`
	Type   string `json:"type"`
	TMDBID int64  `json:"tmdbId"`
	TVDBID int64  `json:"tvdbId"`
}

func (t *PlexLibraryTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.check_plex_library", t.logger, params,
		func(ctx context.Context, span trace.Span, p plexLibraryParams) (any, error) {
			if t.plex == nil {
				return errorResult("Plex is not configured"), nil
			}
			if !t.plex.CacheReady() {
				return errorResult("Plex library cache is still loading. Try again in a moment."), nil
			}
			span.SetAttributes(tracer.StringAttr("tool.title", p.Title))

			item, found := t.lookup(p)
			if !found {
				return map[string]any{
					"found":   false,
					"title":   p.Title,
					"type":    p.Type,
					"message": fmt.Sprintf("%s was not found in your Plex library", p.Title),
				}, nil
			}

			if p.Type == "movie" {
				return map[string]any{
					"found":   true,
					"title":   item.Title,
					"year":    item.Year,
					"type":    "movie",
					"message": fmt.Sprintf("%s (%d) is in your Plex library", item.Title, item.Year),
				}, nil
			}

			seasons, err := t.plex.GetShowAvailability(ctx, item.RatingKey)
			if err != nil {
				// Season fetch failure still confirms presence.
				return map[string]any{
					"found":   true,
					"title":   item.Title,
					"year":    item.Year,
					"type":    "show",
					"message": fmt.Sprintf("%s is in your Plex library (season details unavailable)", item.Title),
				}, nil
			}

			totalEpisodes := 0
			for _, s := range seasons {
				totalEpisodes += s.EpisodeCount
			}
			return map[string]any{
				"found":         true,
				"title":         item.Title,
				"year":          item.Year,
				"type":          "show",
				"seasons":       seasons,
				"totalSeasons":  len(seasons),
				"totalEpisodes": totalEpisodes,
			}, nil
		},
	)
}

// lookup tries ID matches first, then falls back to title.
func (t *PlexLibraryTool) lookup(p plexLibraryParams) (media.PlexItem, bool) {
	if p.Type == "movie" && p.TMDBID != 0 {
		if item, ok := t.plex.FindByTMDBID(p.TMDBID); ok {
			return item, true
		}
	}
	if p.Type == "show" {
		if p.TVDBID != 0 {
			if item, ok := t.plex.FindByTVDBID(p.TVDBID); ok {
				return item, true
			}
		}
		// Some shows carry TMDB GUIDs instead of TVDB.
		if p.TMDBID != 0 {
			if item, ok := t.plex.FindByTMDBID(p.TMDBID); ok {
				return item, true
			}
		}
	}
	return t.plex.FindByTitle(p.Title, p.Type)
}
