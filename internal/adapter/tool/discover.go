package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/adapter/media"
	"wads/internal/domain"
	"wads/internal/infra/tracer"
)

const maxDiscoverResults = 8

// DiscoverMediaTool answers "find me something like..." queries through
// TMDB's structured discover API: genre, actor, year range, language.
type DiscoverMediaTool struct {
	tmdb   *media.TMDBClient
	logger *slog.Logger
}

func NewDiscoverMediaTool(tmdb *media.TMDBClient, logger *slog.Logger) *DiscoverMediaTool {
	return &DiscoverMediaTool{tmdb: tmdb, logger: logger}
}

func (t *DiscoverMediaTool) Name() string { return "discover_media" }
func (t *DiscoverMediaTool) Description() string {
	return "Discover movies or TV shows by genre, actor, year, or language. Use for requests like 'sci-fi movies from the 90s', 'what has Oscar Isaac been in', or 'Korean dramas'. NOT for title search -- use search_movies/search_series for title lookups."
}
func (t *DiscoverMediaTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *DiscoverMediaTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"type": {"type": "string", "enum": ["movie", "tv"], "description": "Whether to discover movies or TV shows"},
				"genre": {"type": "string", "description": "Genre name (e.g. 'sci-fi', 'comedy', 'horror', 'drama', 'animation')"},
				"actor": {"type": "string", "description": "Actor name (e.g. 'Oscar Isaac', 'Florence Pugh')"},
				"yearFrom": {"type": "integer", "description": "Earliest year (e.g. 1990)"},
				"yearTo": {"type": "integer", "description": "Latest year (e.g. 1999)"},
				"language": {"type": "string", "description": "Original language ISO 639-1 code (e.g. 'ko' for Korean, 'ja' for Japanese)"}
			},
			"required": ["type"]
		}`),
	}
}

type discoverParams struct {
	Type     string `json:"type"`
	Genre    string `json:"genre"`
	Actor    string `json:"actor"`
	YearFrom int    `json:"yearFrom"`
	YearTo   int    `json:"yearTo"`
	Language string `json:"language"`
}

type discoverHit struct {
	Title    string  `json:"title"`
	Year     string  `json:"year,omitempty"`
	TMDBID   int64   `json:"tmdbId"`
	Overview string  `json:"overview,omitempty"`
	Rating   float64 `json:"rating"`
}

func releaseYear(date string) string {
	if i := strings.IndexByte(date, '-'); i > 0 {
		return date[:i]
	}
	return date
}

func (t *DiscoverMediaTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.discover_media", t.logger, params,
		func(ctx context.Context, span trace.Span, p discoverParams) (any, error) {
			if t.tmdb == nil {
				return errorResult("TMDB is not configured (set the TMDB access token)"), nil
			}
			span.SetAttributes(tracer.StringAttr("tool.media_type", p.Type))

			query := media.DiscoverParams{
				YearFrom:     p.YearFrom,
				YearTo:       p.YearTo,
				Language:     p.Language,
				MinVoteCount: 50,
			}
			if p.Genre != "" {
				// A close-enough genre that fails to resolve is silently
				// dropped rather than failing the whole query.
				if id, ok := t.tmdb.ResolveGenreID(p.Genre, p.Type); ok {
					query.GenreID = id
				}
			}
			if p.Actor != "" {
				person, err := t.tmdb.SearchPerson(ctx, p.Actor)
				if err != nil {
					return nil, err
				}
				if person == nil {
					return errorResult("Could not find actor %q on TMDB", p.Actor), nil
				}
				query.PersonID = person.ID
			}

			var results []media.DiscoverResult
			var err error
			if p.Type == "movie" {
				results, err = t.tmdb.DiscoverMovies(ctx, query)
			} else {
				results, err = t.tmdb.DiscoverTV(ctx, query)
			}
			if err != nil {
				return nil, err
			}

			if len(results) > maxDiscoverResults {
				results = results[:maxDiscoverResults]
			}
			hits := make([]discoverHit, 0, len(results))
			for _, r := range results {
				date := r.ReleaseDate
				if date == "" {
					date = r.FirstAirDate
				}
				hits = append(hits, discoverHit{
					Title:    r.DisplayTitle(),
					Year:     releaseYear(date),
					TMDBID:   r.ID,
					Overview: truncate(r.Overview, overviewLimit),
					Rating:   r.VoteAverage,
				})
			}
			return map[string]any{"results": hits}, nil
		},
	)
}
