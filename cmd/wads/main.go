// Command wads runs the conversational media assistant: it listens for
// messages over Telegram and SMS, answers through an OpenAI-compatible
// model, and manages the household media stack with tool calls.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wads/internal/adapter/channel"
	"wads/internal/adapter/llm"
	"wads/internal/adapter/media"
	"wads/internal/adapter/store"
	"wads/internal/adapter/tool"
	"wads/internal/domain"
	"wads/internal/infra/config"
	"wads/internal/infra/logger"
	"wads/internal/infra/tracer"
	"wads/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// Persistence
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer db.Close()

	history := store.NewHistoryStore(db)
	pending := store.NewPendingActionStore(db)
	users := store.NewUserStore(db)

	if err := ensureAdmin(ctx, cfg.Admin, users, log); err != nil {
		return fmt.Errorf("admin user: %w", err)
	}

	// Channels
	var (
		channels []domain.Channel
		telegram domain.MessagingProvider
		sms      domain.MessagingProvider
	)
	if cfg.Channels.Telegram.Token != "" {
		tg := channel.NewTelegramChannel(cfg.Channels.Telegram, log)
		channels = append(channels, tg)
		telegram = tg
	}
	if cfg.Channels.Twilio.AccountSID != "" {
		tw := channel.NewTwilioChannel(cfg.Channels.Twilio, log)
		channels = append(channels, tw)
		sms = tw
	}
	if len(channels) == 0 {
		return errors.New("no channels configured: set channels.telegram.token or channels.twilio.account_sid")
	}

	// Media backends. Unconfigured services stay nil and their tools report
	// unavailability instead of failing.
	clients := buildMediaClients(cfg.Media)
	go warmMediaCaches(ctx, clients, log)

	// Tools
	registry := tool.NewRegistry(log)
	registry.MustRegister(
		tool.NewSearchMoviesTool(clients.radarr, log),
		tool.NewAddMovieTool(clients.radarr, cfg.Media.Routing, log),
		tool.NewRemoveMovieTool(clients.radarr, log),
		tool.NewSearchSeriesTool(clients.sonarr, log),
		tool.NewAddSeriesTool(clients.sonarr, cfg.Media.Routing, log),
		tool.NewRemoveSeriesTool(clients.sonarr, log),
		tool.NewDownloadQueueTool(clients.sonarr, clients.radarr, log),
		tool.NewUpcomingEpisodesTool(clients.sonarr, log),
		tool.NewUpcomingMoviesTool(clients.radarr, log),
		tool.NewDiscoverMediaTool(clients.tmdb, log),
		tool.NewPlexLibraryTool(clients.plex, log),
		tool.NewWatchHistoryTool(clients.tautulli, log),
		tool.NewWebSearchTool(clients.brave, log),
		tool.NewCheckStatusTool(clients.radarr, clients.sonarr, clients.plex, log),
		tool.NewListPendingUsersTool(users, log),
		tool.NewManageUserTool(users, telegram, sms, log),
	)

	// LLM
	provider := llm.NewCircuitBreakerProvider(llm.NewOpenAIProvider(cfg.LLM, log), cfg.LLM.CircuitBreaker, log)

	var guard *usecase.ContextGuard
	if cfg.Agent.ContextGuard.Enabled {
		guard, err = usecase.NewContextGuard(cfg.Agent.ContextGuard.MaxTokens, cfg.Agent.ContextGuard.Encoding, log)
		if err != nil {
			return fmt.Errorf("context guard: %w", err)
		}
	}

	loop := usecase.NewToolLoop(provider, registry, cfg.LLM.Model, cfg.Agent.MaxIterations, log)
	engine := usecase.NewEngine(
		usecase.NewConversationLocker(),
		history,
		pending,
		loop,
		usecase.NewContextBuilder(cfg.Agent.WindowTurns),
		guard,
		cfg.Agent.HistoryLimit,
		log,
	)

	notifier := usecase.NewAdminNotifier(cfg.Admin.TelegramChatID, cfg.Admin.Phone, telegram, sms, log)
	onboarding := usecase.NewOnboarding(users, notifier, log)
	router := usecase.NewRouter(users, engine, onboarding, notifier, log)
	for _, ch := range channels {
		router.RegisterChannel(ch)
	}

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, ch := range channels {
		if err := ch.Start(ctx, router.Handle); err != nil {
			return fmt.Errorf("channel %s: %w", ch.Name(), err)
		}
	}

	log.Info("wads started",
		"model", cfg.LLM.Model,
		"tools", len(registry.Schemas()),
		"channels", len(channels),
	)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, ch := range channels {
		if err := ch.Stop(shutdownCtx); err != nil {
			log.Warn("channel stop failed", "channel", ch.Name(), "error", err)
		}
	}
	return nil
}

// mediaClients holds the optional media backends; a nil field means the
// service was not configured.
type mediaClients struct {
	radarr   *media.RadarrClient
	sonarr   *media.SonarrClient
	tmdb     *media.TMDBClient
	plex     *media.PlexClient
	tautulli *media.TautulliClient
	brave    *media.BraveClient
}

func buildMediaClients(cfg config.MediaConfig) mediaClients {
	var c mediaClients
	if cfg.Radarr.Configured() {
		c.radarr = media.NewRadarrClient(cfg.Radarr)
	}
	if cfg.Sonarr.Configured() {
		c.sonarr = media.NewSonarrClient(cfg.Sonarr)
	}
	if cfg.TMDB.Configured() {
		c.tmdb = media.NewTMDBClient(cfg.TMDB)
	}
	if cfg.Plex.Configured() {
		c.plex = media.NewPlexClient(cfg.Plex)
	}
	if cfg.Tautulli.Configured() {
		c.tautulli = media.NewTautulliClient(cfg.Tautulli)
	}
	if cfg.Brave.Configured() {
		c.brave = media.NewBraveClient(cfg.Brave)
	}
	return c
}

// warmMediaCaches pre-loads the lookups tools lean on: quality profiles and
// root folders for routing, TMDB genre ids, and the Plex library index.
// Failures are logged and retried lazily by the tools themselves.
func warmMediaCaches(ctx context.Context, clients mediaClients, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if clients.radarr != nil {
		if err := clients.radarr.LoadCachedData(ctx); err != nil {
			log.Warn("radarr cache warm-up failed", "error", err)
		}
	}
	if clients.sonarr != nil {
		if err := clients.sonarr.LoadCachedData(ctx); err != nil {
			log.Warn("sonarr cache warm-up failed", "error", err)
		}
	}
	if clients.tmdb != nil {
		if err := clients.tmdb.LoadGenres(ctx); err != nil {
			log.Warn("tmdb genre load failed", "error", err)
		}
	}
	if clients.plex != nil {
		if err := clients.plex.LoadLibraryCache(ctx); err != nil {
			log.Warn("plex library cache load failed", "error", err)
		}
	}
}

// ensureAdmin creates the operator's user record on first boot so that
// manage_user approvals work out of the box. An existing record is left
// untouched.
func ensureAdmin(ctx context.Context, cfg config.AdminConfig, users domain.UserStore, log *slog.Logger) error {
	if cfg.Phone == "" && cfg.TelegramChatID == "" {
		log.Warn("no admin contact configured; new user requests cannot be approved over chat")
		return nil
	}

	var (
		existing *domain.User
		err      error
	)
	if cfg.TelegramChatID != "" {
		existing, err = users.GetByTelegram(ctx, cfg.TelegramChatID)
	} else {
		existing, err = users.GetByPhone(ctx, cfg.Phone)
	}
	if err == nil {
		if !existing.IsAdmin {
			log.Warn("configured admin contact belongs to a non-admin user", "user_id", existing.ID)
		}
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	created, err := users.Create(ctx, domain.User{
		DisplayName:    cfg.DisplayName,
		PhoneNumber:    cfg.Phone,
		TelegramChatID: cfg.TelegramChatID,
		Status:         domain.UserActive,
		IsAdmin:        true,
	})
	if err != nil {
		return err
	}
	log.Info("admin user created", "user_id", created.ID, "name", created.DisplayName)
	return nil
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("WADS_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}
