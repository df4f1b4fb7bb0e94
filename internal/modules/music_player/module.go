package music_player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/bot"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/session"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
	"github.com/sglre6355/norvireon/internal/modules/music_player/infrastructure"
	"github.com/sglre6355/norvireon/internal/modules/music_player/presentation/discord"
)

// recoveryTimeout bounds restoring stored sessions at startup.
const recoveryTimeout = 2 * time.Minute

func init() {
	bot.Register(&MusicPlayerModule{})
}

// Compile-time interface checks.
var (
	_ bot.ConfigurableModule = (*MusicPlayerModule)(nil)
	_ bot.AuthorizingModule  = (*MusicPlayerModule)(nil)
	_ bot.StartableModule    = (*MusicPlayerModule)(nil)
	_ bot.ComponentModule    = (*MusicPlayerModule)(nil)
)

// sessionStore is a SessionStore that holds resources.
type sessionStore interface {
	ports.SessionStore
	Close() error
}

// MusicPlayerModule provides music playback commands.
type MusicPlayerModule struct {
	config          *Config
	commandHandlers *discord.CommandHandlers
	eventHandlers   *discord.EventHandlers
	djPolicy        *infrastructure.DJPolicy
	lavalinkAdapter *infrastructure.LavalinkAdapter
	store           sessionStore
	registry        *session.Registry

	// Event-driven components
	eventBus            *infrastructure.ChannelEventBus
	notificationHandler *application.NotificationEventHandler

	// Context for background work
	ctx    context.Context
	cancel context.CancelFunc
}

// Name returns the module name.
func (m *MusicPlayerModule) Name() string {
	return "music_player"
}

// Commands returns the slash commands for this module.
func (m *MusicPlayerModule) Commands() []*discordgo.ApplicationCommand {
	return discord.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *MusicPlayerModule) CommandHandlers() map[string]bot.InteractionHandler {
	return m.commandHandlers.Handlers()
}

// ComponentHandlers returns the handlers for the "Now Playing" buttons.
func (m *MusicPlayerModule) ComponentHandlers() map[string]bot.InteractionHandler {
	return m.commandHandlers.ComponentHandlers()
}

// CommandAuthorizers restricts control commands and buttons to administrators and DJs.
func (m *MusicPlayerModule) CommandAuthorizers() map[string]bot.Authorizer {
	return discord.Authorizers(m.djPolicy.Authorize)
}

// EventHandlers returns the event handlers for this module.
func (m *MusicPlayerModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		m.eventHandlers.HandleVoiceServerUpdate,
		m.eventHandlers.HandleVoiceStateUpdate,
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicPlayerModule) LoadConfig() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *MusicPlayerModule) Init(deps bot.ModuleDependencies) (err error) {
	if deps.Session == nil || deps.Session.State == nil || deps.Session.State.User == nil {
		return errors.New("music_player requires a connected Discord session")
	}
	if m.config == nil {
		if err := m.LoadConfig(); err != nil {
			return err
		}
	}

	// Create cancellable context for background work
	m.ctx, m.cancel = context.WithCancel(context.Background())
	defer func() {
		if err != nil {
			_ = m.Shutdown()
		}
	}()

	// Create session store
	m.store, err = openStore(m.ctx, m.config)
	if err != nil {
		return err
	}

	// Create event bus
	m.eventBus = infrastructure.NewChannelEventBus(infrastructure.DefaultEventBufferSize)

	// Create Lavalink adapter
	var related ports.RelatedSource
	if m.config.RelatedTracks {
		related = infrastructure.NewYtdlpRelatedSource(m.config.RelatedRate)
	}

	m.lavalinkAdapter, err = infrastructure.NewLavalinkAdapter(
		m.ctx,
		deps.Session,
		infrastructure.LavalinkConfig{
			Address:      m.config.LavalinkAddress,
			Password:     m.config.LavalinkPassword,
			Secure:       m.config.LavalinkSecure,
			SearchSource: domain.SearchSource(m.config.SearchSource),
		},
		related,
	)
	if err != nil {
		return err
	}

	// Create infrastructure
	voiceState := infrastructure.NewVoiceStateProvider(deps.Session)
	userInfoProv := infrastructure.NewDiscordUserInfoProvider(deps.Session)
	notifier := infrastructure.NewNotifier(deps.Session)
	m.djPolicy = infrastructure.NewDJPolicy(m.config.DJRoleID)

	// Create session registry
	m.registry = session.NewRegistry(session.Dependencies{
		Sink:       m.lavalinkAdapter,
		Resolver:   m.lavalinkAdapter,
		Store:      m.store,
		Membership: voiceState,
		Publisher:  m.eventBus,
	}, m.config.SessionConfig())

	// Create services
	playback := usecases.NewPlaybackService(m.registry, voiceState, m.config.MaxPlaylistTracks)
	queue := usecases.NewQueueService(m.registry, playback)
	voiceChannel := usecases.NewVoiceChannelService(m.registry)

	// Create application event handlers
	m.notificationHandler = application.NewNotificationEventHandler(
		m.eventBus,
		notifier,
		userInfoProv,
		m.config.ProgressEditInterval,
	)
	if err := m.notificationHandler.Start(); err != nil {
		return err
	}

	// Create presentation handlers
	botID, err := snowflake.Parse(deps.Session.State.User.ID)
	if err != nil {
		return err
	}
	m.commandHandlers = discord.NewCommandHandlers(playback, queue)
	m.eventHandlers = discord.NewEventHandlers(botID, m.lavalinkAdapter, voiceChannel)

	slog.Info("music_player module initialized",
		"store", m.config.Store,
		"auto_advance", m.config.AutoAdvance,
		"related_tracks", m.config.RelatedTracks,
	)

	return nil
}

// Start recovers sessions that were active before the last shutdown.
func (m *MusicPlayerModule) Start() error {
	go func() {
		ctx, cancel := context.WithTimeout(m.ctx, recoveryTimeout)
		defer cancel()

		if _, err := m.registry.Recover(ctx); err != nil {
			slog.Warn("failed to recover sessions", "error", err)
		}
	}()
	return nil
}

// Shutdown cleans up module resources. Sessions are detached rather than
// stopped so they can be recovered on the next start.
func (m *MusicPlayerModule) Shutdown() error {
	// Cancel context first to signal background work to stop
	if m.cancel != nil {
		m.cancel()
	}

	if m.registry != nil {
		m.registry.Shutdown()
	}

	// Close event bus
	if m.eventBus != nil {
		m.eventBus.Close()
	}

	// Close Lavalink connection
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.Close()
		m.lavalinkAdapter = nil
	}

	if m.store != nil {
		store := m.store
		m.store = nil
		if err := store.Close(); err != nil {
			return fmt.Errorf("failed to close session store: %w", err)
		}
	}

	return nil
}

// openStore creates the configured session store.
func openStore(ctx context.Context, cfg *Config) (sessionStore, error) {
	switch cfg.Store {
	case StoreRedis:
		store, err := infrastructure.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreSQLite:
		store, err := infrastructure.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreMemory:
		return infrastructure.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}
