package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/adapter/media"
	"wads/internal/domain"
)

// CheckStatusTool pings the configured backend services and reports which
// are reachable. Use it to answer "is everything up".
type CheckStatusTool struct {
	radarr *media.RadarrClient
	sonarr *media.SonarrClient
	plex   *media.PlexClient
	logger *slog.Logger
}

func NewCheckStatusTool(radarr *media.RadarrClient, sonarr *media.SonarrClient, plex *media.PlexClient, logger *slog.Logger) *CheckStatusTool {
	return &CheckStatusTool{radarr: radarr, sonarr: sonarr, plex: plex, logger: logger}
}

func (t *CheckStatusTool) Name() string { return "check_status" }
func (t *CheckStatusTool) Description() string {
	return "Check whether the media servers (Radarr, Sonarr, Plex) are up and responding. Use when the user asks if the server is working, why something failed, or for a system status check."
}
func (t *CheckStatusTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *CheckStatusTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

func (t *CheckStatusTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.check_status", t.logger, params,
		func(ctx context.Context, span trace.Span, _ struct{}) (any, error) {
			status := map[string]string{}

			check := func(name string, ping func(context.Context) error) {
				if ping == nil {
					status[name] = "not configured"
					return
				}
				if err := ping(ctx); err != nil {
					status[name] = "unreachable"
					t.logger.Warn("status check failed", "service", name, "error", err)
					return
				}
				status[name] = "ok"
			}

			var radarrPing, sonarrPing, plexPing func(context.Context) error
			if t.radarr != nil {
				radarrPing = t.radarr.Ping
			}
			if t.sonarr != nil {
				sonarrPing = t.sonarr.Ping
			}
			if t.plex != nil {
				plexPing = t.plex.Ping
			}
			check("radarr", radarrPing)
			check("sonarr", sonarrPing)
			check("plex", plexPing)

			return map[string]any{"services": status}, nil
		},
	)
}
