package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/adapter/media"
	"wads/internal/domain"
)

const queuePageSize = 20

// DownloadQueueTool reports active downloads from both Sonarr and Radarr.
// One unreachable server degrades to a partial answer rather than failing
// the whole call.
type DownloadQueueTool struct {
	sonarr *media.SonarrClient
	radarr *media.RadarrClient
	logger *slog.Logger
}

func NewDownloadQueueTool(sonarr *media.SonarrClient, radarr *media.RadarrClient, logger *slog.Logger) *DownloadQueueTool {
	return &DownloadQueueTool{sonarr: sonarr, radarr: radarr, logger: logger}
}

func (t *DownloadQueueTool) Name() string { return "get_download_queue" }
func (t *DownloadQueueTool) Description() string {
	return "Check the current download queue for active and pending downloads. Shows what media is being downloaded, progress, and estimated time remaining. Use when the user asks about download status, queue, what's downloading, or progress."
}
func (t *DownloadQueueTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *DownloadQueueTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

type queueItem struct {
	Title    string `json:"title"`
	Status   string `json:"status,omitempty"`
	Progress int    `json:"progress"` // percent
	TimeLeft string `json:"timeleft,omitempty"`
}

func queueItems(page *media.QueuePage) []queueItem {
	items := make([]queueItem, 0, len(page.Records))
	for _, r := range page.Records {
		progress := 0
		if r.Size > 0 {
			progress = int(math.Round((r.Size - r.SizeLeft) / r.Size * 100))
		}
		items = append(items, queueItem{
			Title:    r.Title,
			Status:   r.Status,
			Progress: progress,
			TimeLeft: r.TimeLeft,
		})
	}
	return items
}

func (t *DownloadQueueTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_download_queue", t.logger, params,
		func(ctx context.Context, span trace.Span, _ struct{}) (any, error) {
			if t.sonarr == nil && t.radarr == nil {
				return errorResult("No media servers configured"), nil
			}

			var episodes, movies []queueItem
			var errs []string

			if t.sonarr != nil {
				page, err := t.sonarr.GetQueue(ctx, 1, queuePageSize)
				if err != nil {
					errs = append(errs, "Could not reach TV server (Sonarr)")
				} else {
					episodes = queueItems(page)
				}
			}
			if t.radarr != nil {
				page, err := t.radarr.GetQueue(ctx, 1, queuePageSize)
				if err != nil {
					errs = append(errs, "Could not reach movie server (Radarr)")
				} else {
					movies = queueItems(page)
				}
			}

			if len(episodes) == 0 && len(movies) == 0 && len(errs) == 0 {
				return map[string]any{"message": "No active downloads"}, nil
			}

			out := map[string]any{}
			if len(episodes) > 0 {
				out["episodes"] = episodes
			}
			if len(movies) > 0 {
				out["movies"] = movies
			}
			if len(errs) > 0 {
				out["errors"] = errs
			}
			return out, nil
		},
	)
}

// UpcomingEpisodesTool reads Sonarr's calendar for already-tracked shows.
type UpcomingEpisodesTool struct {
	sonarr *media.SonarrClient
	logger *slog.Logger
	now    func() time.Time
}

func NewUpcomingEpisodesTool(sonarr *media.SonarrClient, logger *slog.Logger) *UpcomingEpisodesTool {
	return &UpcomingEpisodesTool{sonarr: sonarr, logger: logger, now: time.Now}
}

func (t *UpcomingEpisodesTool) Name() string { return "get_upcoming_episodes" }
func (t *UpcomingEpisodesTool) Description() string {
	return "Get upcoming TV episodes airing soon from shows ALREADY in the library (already scheduled for automatic download). Use when the user asks about upcoming episodes, what's airing, or the TV schedule. These are NOT suggestions to add."
}
func (t *UpcomingEpisodesTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *UpcomingEpisodesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"days": {"type": "integer", "minimum": 1, "maximum": 30, "description": "Number of days to look ahead (default 7)"}
			}
		}`),
	}
}

type upcomingParams struct {
	Days int `json:"days"`
}

func (t *UpcomingEpisodesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_upcoming_episodes", t.logger, params,
		func(ctx context.Context, span trace.Span, p upcomingParams) (any, error) {
			if t.sonarr == nil {
				return errorResult("TV server (Sonarr) is not configured"), nil
			}
			days := p.Days
			if days <= 0 {
				days = 7
			}
			start := t.now().Format("2006-01-02")
			end := t.now().AddDate(0, 0, days).Format("2006-01-02")

			episodes, err := t.sonarr.GetCalendar(ctx, start, end)
			if err != nil {
				return nil, err
			}
			if len(episodes) == 0 {
				return map[string]any{"episodes": []any{}, "message": "No upcoming episodes"}, nil
			}

			type upcomingEpisode struct {
				SeriesTitle   string `json:"seriesTitle"`
				Title         string `json:"title,omitempty"`
				SeasonNumber  int    `json:"seasonNumber"`
				EpisodeNumber int    `json:"episodeNumber"`
				AirDate       string `json:"airDate,omitempty"`
			}
			results := make([]upcomingEpisode, 0, len(episodes))
			for _, ep := range episodes {
				seriesTitle := "Unknown Series"
				if ep.Series != nil {
					seriesTitle = ep.Series.Title
				}
				results = append(results, upcomingEpisode{
					SeriesTitle:   seriesTitle,
					Title:         ep.Title,
					SeasonNumber:  ep.SeasonNumber,
					EpisodeNumber: ep.EpisodeNumber,
					AirDate:       ep.AirDate,
				})
			}
			return map[string]any{"episodes": results}, nil
		},
	)
}

// UpcomingMoviesTool reads Radarr's calendar for digital releases of
// already-monitored movies.
type UpcomingMoviesTool struct {
	radarr *media.RadarrClient
	logger *slog.Logger
	now    func() time.Time
}

func NewUpcomingMoviesTool(radarr *media.RadarrClient, logger *slog.Logger) *UpcomingMoviesTool {
	return &UpcomingMoviesTool{radarr: radarr, logger: logger, now: time.Now}
}

func (t *UpcomingMoviesTool) Name() string { return "get_upcoming_movies" }
func (t *UpcomingMoviesTool) Description() string {
	return "Get upcoming digital movie releases for movies ALREADY being monitored for automatic download. Use when the user asks about upcoming movies, new releases, or movie schedules. These are NOT suggestions to add."
}
func (t *UpcomingMoviesTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *UpcomingMoviesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"days": {"type": "integer", "minimum": 1, "maximum": 90, "description": "Number of days to look ahead (default 30)"}
			}
		}`),
	}
}

func (t *UpcomingMoviesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_upcoming_movies", t.logger, params,
		func(ctx context.Context, span trace.Span, p upcomingParams) (any, error) {
			if t.radarr == nil {
				return errorResult("Movie server (Radarr) is not configured"), nil
			}
			days := p.Days
			if days <= 0 {
				days = 30
			}
			today := t.now().Format("2006-01-02")
			end := t.now().AddDate(0, 0, days).Format("2006-01-02")

			movies, err := t.radarr.GetUpcoming(ctx, today, end)
			if err != nil {
				return nil, err
			}

			type upcomingMovie struct {
				Title          string `json:"title"`
				Year           int    `json:"year"`
				DigitalRelease string `json:"digitalRelease"`
				Status         string `json:"status,omitempty"`
				Overview       string `json:"overview,omitempty"`
			}
			results := make([]upcomingMovie, 0, len(movies))
			for _, m := range movies {
				// Only future digital releases are worth reporting.
				if m.DigitalRelease == "" || m.DigitalRelease[:min(10, len(m.DigitalRelease))] < today {
					continue
				}
				results = append(results, upcomingMovie{
					Title:          m.Title,
					Year:           m.Year,
					DigitalRelease: m.DigitalRelease,
					Status:         m.Status,
					Overview:       truncate(m.Overview, 100),
				})
			}
			if len(results) == 0 {
				return map[string]any{"movies": []any{}, "message": "No upcoming digital releases"}, nil
			}
			return map[string]any{"movies": results}, nil
		},
	)
}
