package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/adapter/media"
	"wads/internal/domain"
	"wads/internal/infra/config"
	"wads/internal/infra/tracer"
)

const (
	maxSearchResults = 10
	overviewLimit    = 150
)

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// SearchMoviesTool searches Radarr's TMDB-backed lookup and annotates each
// hit with whether it is already in the library.
type SearchMoviesTool struct {
	radarr *media.RadarrClient
	logger *slog.Logger
}

func NewSearchMoviesTool(radarr *media.RadarrClient, logger *slog.Logger) *SearchMoviesTool {
	return &SearchMoviesTool{radarr: radarr, logger: logger}
}

func (t *SearchMoviesTool) Name() string { return "search_movies" }
func (t *SearchMoviesTool) Description() string {
	return "Search for movies by title. Returns matching movies with title, year, overview, and whether they are already in the user's library. Use when the user wants to find, look up, or search for a movie."
}
func (t *SearchMoviesTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *SearchMoviesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The movie title to search for"}
			},
			"required": ["query"]
		}`),
	}
}

type searchMoviesParams struct {
	Query string `json:"query"`
}

type movieResult struct {
	Title     string `json:"title"`
	Year      int    `json:"year"`
	TMDBID    int64  `json:"tmdbId"`
	Overview  string `json:"overview,omitempty"`
	InLibrary bool   `json:"inLibrary"`
	LibraryID int64  `json:"libraryId,omitempty"`
	Status    string `json:"status,omitempty"`
}

func (t *SearchMoviesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.search_movies", t.logger, params,
		func(ctx context.Context, span trace.Span, p searchMoviesParams) (any, error) {
			if t.radarr == nil {
				return errorResult("Movie server (Radarr) is not configured"), nil
			}
			span.SetAttributes(tracer.StringAttr("tool.query", p.Query))

			hits, err := t.radarr.SearchMovies(ctx, p.Query)
			if err != nil {
				return nil, err
			}
			if len(hits) == 0 {
				return map[string]any{"results": []movieResult{}, "message": "No movies found"}, nil
			}

			library, err := t.radarr.GetMovies(ctx)
			if err != nil {
				return nil, err
			}
			inLibrary := make(map[int64]media.Movie, len(library))
			for _, m := range library {
				inLibrary[m.TMDBID] = m
			}

			if len(hits) > maxSearchResults {
				hits = hits[:maxSearchResults]
			}
			results := make([]movieResult, 0, len(hits))
			for _, m := range hits {
				r := movieResult{
					Title:    m.Title,
					Year:     m.Year,
					TMDBID:   m.TMDBID,
					Overview: truncate(m.Overview, overviewLimit),
					Status:   m.Status,
				}
				if lib, ok := inLibrary[m.TMDBID]; ok {
					r.InLibrary = true
					r.LibraryID = lib.ID
				}
				results = append(results, r)
			}
			return map[string]any{"results": results}, nil
		},
	)
}

// AddMovieTool adds a movie to Radarr with routed folder/profile defaults
// and triggers an immediate download search.
type AddMovieTool struct {
	radarr  *media.RadarrClient
	routing config.RoutingConfig
	logger  *slog.Logger
}

func NewAddMovieTool(radarr *media.RadarrClient, routing config.RoutingConfig, logger *slog.Logger) *AddMovieTool {
	return &AddMovieTool{radarr: radarr, routing: routing, logger: logger}
}

func (t *AddMovieTool) Name() string { return "add_movie" }
func (t *AddMovieTool) Description() string {
	return "Add a movie to the wanted/download list by its TMDB ID. Automatically applies sensible quality and path defaults. Searches for the movie immediately after adding. Use when the user wants to add, download, get, or request a movie."
}
func (t *AddMovieTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *AddMovieTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"tmdbId": {"type": "integer", "description": "The TMDB ID of the movie to add (from search_movies results)"}
			},
			"required": ["tmdbId"]
		}`),
	}
}

type addMovieParams struct {
	TMDBID int64 `json:"tmdbId"`
}

func (t *AddMovieTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.add_movie", t.logger, params,
		func(ctx context.Context, span trace.Span, p addMovieParams) (any, error) {
			if t.radarr == nil {
				return errorResult("Movie server (Radarr) is not configured"), nil
			}
			span.SetAttributes(tracer.IntAttr("tool.tmdb_id", int(p.TMDBID)))

			movie, err := t.radarr.LookupByTMDBID(ctx, p.TMDBID)
			if err != nil {
				return nil, err
			}
			if movie.ID > 0 {
				return map[string]any{
					"alreadyInLibrary": true,
					"title":            movie.Title,
					"year":             movie.Year,
					"message":          fmt.Sprintf("%s (%d) is already in your library", movie.Title, movie.Year),
				}, nil
			}

			language := ""
			if movie.OriginalLanguage != nil {
				language = movie.OriginalLanguage.Name
			}
			route, err := media.RouteMovie(language, t.radarr.RootFolders, t.radarr.QualityProfiles, t.routing)
			if err != nil {
				return errorResult("Radarr configuration incomplete: %v", err), nil
			}

			added, err := t.radarr.AddMovie(ctx, media.AddMovieInput{
				Title:               movie.Title,
				TMDBID:              movie.TMDBID,
				TitleSlug:           movie.TitleSlug,
				QualityProfileID:    route.QualityProfileID,
				RootFolderPath:      route.RootFolderPath,
				Monitored:           true,
				MinimumAvailability: "announced",
				AddOptions:          media.MovieAddOptions{SearchForMovie: true},
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"success": true,
				"title":   added.Title,
				"year":    added.Year,
				"routing": route.Reason,
				"message": fmt.Sprintf("Added %s (%d) and searching for downloads", added.Title, added.Year),
			}, nil
		},
	)
}

// RemoveMovieTool removes a movie from Radarr. Destructive: the loop gates
// it behind user confirmation.
type RemoveMovieTool struct {
	radarr *media.RadarrClient
	logger *slog.Logger
}

func NewRemoveMovieTool(radarr *media.RadarrClient, logger *slog.Logger) *RemoveMovieTool {
	return &RemoveMovieTool{radarr: radarr, logger: logger}
}

func (t *RemoveMovieTool) Name() string { return "remove_movie" }
func (t *RemoveMovieTool) Description() string {
	return "Remove a movie from the library. Uses the Radarr library ID (the libraryId from search results, NOT the tmdbId). This is a destructive action requiring user confirmation. Use when the user wants to remove, delete, or get rid of a movie from their library."
}
func (t *RemoveMovieTool) Tier() domain.ConfirmationTier { return domain.TierDestructive }

func (t *RemoveMovieTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {"type": "integer", "description": "The Radarr library ID of the movie (the 'libraryId' from search results, NOT the tmdbId)"},
				"deleteFiles": {"type": "boolean", "description": "Also delete downloaded files (default: false)"}
			},
			"required": ["id"]
		}`),
	}
}

type removeMovieParams struct {
	ID          int64 `json:"id"`
	DeleteFiles bool  `json:"deleteFiles"`
}

func (t *RemoveMovieTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.remove_movie", t.logger, params,
		func(ctx context.Context, span trace.Span, p removeMovieParams) (any, error) {
			if t.radarr == nil {
				return errorResult("Movie server (Radarr) is not configured"), nil
			}
			span.SetAttributes(tracer.IntAttr("tool.movie_id", int(p.ID)))

			if err := t.radarr.RemoveMovie(ctx, p.ID, p.DeleteFiles); err != nil {
				return nil, err
			}
			msg := "Movie removed from library (files kept on disk)"
			if p.DeleteFiles {
				msg = "Movie removed and files deleted"
			}
			return map[string]any{"success": true, "message": msg}, nil
		},
	)
}
