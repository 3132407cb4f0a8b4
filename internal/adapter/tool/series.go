package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/adapter/media"
	"wads/internal/domain"
	"wads/internal/infra/config"
	"wads/internal/infra/tracer"
)

// SearchSeriesTool searches Sonarr's TheTVDB-backed lookup and annotates
// each hit with library membership.
type SearchSeriesTool struct {
	sonarr *media.SonarrClient
	logger *slog.Logger
}

func NewSearchSeriesTool(sonarr *media.SonarrClient, logger *slog.Logger) *SearchSeriesTool {
	return &SearchSeriesTool{sonarr: sonarr, logger: logger}
}

func (t *SearchSeriesTool) Name() string { return "search_series" }
func (t *SearchSeriesTool) Description() string {
	return "Search for TV shows by title. Returns matching shows with title, year, network, seasons, overview, and whether they are already monitored (inLibrary). Use when the user wants to find, look up, or search for a TV show, series, or program."
}
func (t *SearchSeriesTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *SearchSeriesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The TV show title to search for"}
			},
			"required": ["query"]
		}`),
	}
}

type searchSeriesParams struct {
	Query string `json:"query"`
}

type seriesResult struct {
	Title       string `json:"title"`
	Year        int    `json:"year"`
	TVDBID      int64  `json:"tvdbId"`
	Network     string `json:"network,omitempty"`
	SeasonCount int    `json:"seasonCount"`
	Overview    string `json:"overview,omitempty"`
	InLibrary   bool   `json:"inLibrary"`
	LibraryID   int64  `json:"libraryId,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (t *SearchSeriesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.search_series", t.logger, params,
		func(ctx context.Context, span trace.Span, p searchSeriesParams) (any, error) {
			if t.sonarr == nil {
				return errorResult("TV server (Sonarr) is not configured"), nil
			}
			span.SetAttributes(tracer.StringAttr("tool.query", p.Query))

			hits, err := t.sonarr.SearchSeries(ctx, p.Query)
			if err != nil {
				return nil, err
			}
			if len(hits) == 0 {
				return map[string]any{"results": []seriesResult{}, "message": "No TV shows found"}, nil
			}

			library, err := t.sonarr.GetSeries(ctx)
			if err != nil {
				return nil, err
			}
			inLibrary := make(map[int64]media.Series, len(library))
			for _, s := range library {
				inLibrary[s.TVDBID] = s
			}

			if len(hits) > maxSearchResults {
				hits = hits[:maxSearchResults]
			}
			results := make([]seriesResult, 0, len(hits))
			for _, s := range hits {
				r := seriesResult{
					Title:       s.Title,
					Year:        s.Year,
					TVDBID:      s.TVDBID,
					Network:     s.Network,
					SeasonCount: len(s.Seasons),
					Overview:    truncate(s.Overview, overviewLimit),
					Status:      s.Status,
				}
				if lib, ok := inLibrary[s.TVDBID]; ok {
					r.InLibrary = true
					r.LibraryID = lib.ID
				}
				results = append(results, r)
			}
			return map[string]any{"results": results}, nil
		},
	)
}

// AddSeriesTool adds a series to Sonarr with anime-aware routing and kicks
// off a search for missing episodes.
type AddSeriesTool struct {
	sonarr  *media.SonarrClient
	routing config.RoutingConfig
	logger  *slog.Logger
}

func NewAddSeriesTool(sonarr *media.SonarrClient, routing config.RoutingConfig, logger *slog.Logger) *AddSeriesTool {
	return &AddSeriesTool{sonarr: sonarr, routing: routing, logger: logger}
}

func (t *AddSeriesTool) Name() string { return "add_series" }
func (t *AddSeriesTool) Description() string {
	return "Add a TV show to the wanted/download list by its TVDB ID. Automatically applies sensible quality, path, and monitoring defaults. Searches for missing episodes immediately. Use when the user wants to add, download, get, or request a TV show or series."
}
func (t *AddSeriesTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *AddSeriesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"tvdbId": {"type": "integer", "description": "The TVDB ID of the series to add (from search_series results)"}
			},
			"required": ["tvdbId"]
		}`),
	}
}

type addSeriesParams struct {
	TVDBID int64 `json:"tvdbId"`
}

func (t *AddSeriesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.add_series", t.logger, params,
		func(ctx context.Context, span trace.Span, p addSeriesParams) (any, error) {
			if t.sonarr == nil {
				return errorResult("TV server (Sonarr) is not configured"), nil
			}
			span.SetAttributes(tracer.IntAttr("tool.tvdb_id", int(p.TVDBID)))

			hits, err := t.sonarr.SearchSeries(ctx, "tvdb:"+strconv.FormatInt(p.TVDBID, 10))
			if err != nil {
				return nil, err
			}
			var series *media.Series
			for i := range hits {
				if hits[i].TVDBID == p.TVDBID {
					series = &hits[i]
					break
				}
			}
			if series == nil {
				return errorResult("Could not find series with that TVDB ID"), nil
			}
			if series.ID > 0 {
				return map[string]any{
					"alreadyInLibrary": true,
					"title":            series.Title,
					"year":             series.Year,
					"message":          fmt.Sprintf("%s (%d) is already in your library", series.Title, series.Year),
				}, nil
			}

			language := ""
			if series.OriginalLanguage != nil {
				language = series.OriginalLanguage.Name
			}
			route, err := media.RouteSeries(language, series.Genres, t.sonarr.RootFolders, t.sonarr.QualityProfiles, t.routing)
			if err != nil {
				return errorResult("Sonarr configuration incomplete: %v", err), nil
			}

			added, err := t.sonarr.AddSeries(ctx, media.AddSeriesInput{
				Title:            series.Title,
				TVDBID:           series.TVDBID,
				TitleSlug:        series.TitleSlug,
				Seasons:          series.Seasons,
				QualityProfileID: route.QualityProfileID,
				RootFolderPath:   route.RootFolderPath,
				Monitored:        true,
				SeasonFolder:     true,
				SeriesType:       route.SeriesType,
				AddOptions:       media.SeriesAddOptions{SearchForMissingEpisodes: true},
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"success":     true,
				"title":       added.Title,
				"year":        added.Year,
				"seasonCount": len(added.Seasons),
				"routing":     route.Reason,
				"message":     fmt.Sprintf("Added %s (%d) and searching for episodes", added.Title, added.Year),
			}, nil
		},
	)
}

// RemoveSeriesTool removes a series from Sonarr. Destructive.
type RemoveSeriesTool struct {
	sonarr *media.SonarrClient
	logger *slog.Logger
}

func NewRemoveSeriesTool(sonarr *media.SonarrClient, logger *slog.Logger) *RemoveSeriesTool {
	return &RemoveSeriesTool{sonarr: sonarr, logger: logger}
}

func (t *RemoveSeriesTool) Name() string { return "remove_series" }
func (t *RemoveSeriesTool) Description() string {
	return "Remove a TV show from the library. Uses the Sonarr library ID (the libraryId from search results, NOT the tvdbId). This is a destructive action requiring user confirmation. Use when the user wants to remove, delete, or get rid of a TV show or series from their library."
}
func (t *RemoveSeriesTool) Tier() domain.ConfirmationTier { return domain.TierDestructive }

func (t *RemoveSeriesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {"type": "integer", "description": "The Sonarr library ID of the series (the 'libraryId' from search results, NOT the tvdbId)"},
				"deleteFiles": {"type": "boolean", "description": "Also delete downloaded files (default: false)"}
			},
			"required": ["id"]
		}`),
	}
}

type removeSeriesParams struct {
	ID          int64 `json:"id"`
	DeleteFiles bool  `json:"deleteFiles"`
}

func (t *RemoveSeriesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.remove_series", t.logger, params,
		func(ctx context.Context, span trace.Span, p removeSeriesParams) (any, error) {
			if t.sonarr == nil {
				return errorResult("TV server (Sonarr) is not configured"), nil
			}
			span.SetAttributes(tracer.IntAttr("tool.series_id", int(p.ID)))

			if err := t.sonarr.RemoveSeries(ctx, p.ID, p.DeleteFiles); err != nil {
				return nil, err
			}
			msg := "Series removed from library (files kept on disk)"
			if p.DeleteFiles {
				msg = "Series removed and files deleted"
			}
			return map[string]any{"success": true, "message": msg}, nil
		},
	)
}
