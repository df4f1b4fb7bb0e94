package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Bot manages the Discord bot lifecycle and module coordination.
type Bot struct {
	config      *Config
	session     *discordgo.Session
	modules     []Module
	handlers    map[string]InteractionHandler
	components  map[string]InteractionHandler
	authorizers map[string]Authorizer
}

// NewBot creates a new Bot instance with the given configuration.
func NewBot(cfg *Config) *Bot {
	return &Bot{
		config:      cfg,
		modules:     make([]Module, 0),
		handlers:    make(map[string]InteractionHandler),
		components:  make(map[string]InteractionHandler),
		authorizers: make(map[string]Authorizer),
	}
}

// LoadModules loads modules from the global registry.
func (b *Bot) LoadModules() {
	b.modules = Modules()

	names := make([]string, 0, len(b.modules))
	for _, mod := range b.modules {
		names = append(names, mod.Name())
	}
	slog.Info("loaded modules", "modules", names)
}

// Start initializes the bot, connects to Discord, and registers commands.
func (b *Bot) Start() error {
	// Load module configuration before touching Discord
	if err := b.loadModuleConfigs(); err != nil {
		return fmt.Errorf("failed to load module config: %w", err)
	}

	// Create Discord session
	session, err := discordgo.New("Bot " + b.config.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	b.session = session

	// Open connection; the state cache knows the bot user afterwards
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	// Initialize modules
	if err := b.initModules(); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	// Build handler map
	b.buildHandlerMap()

	// Register interaction handler
	b.session.AddHandler(b.handleInteraction)

	// Register module event handlers
	b.registerEventHandlers()

	// Register commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// Start background work
	if err := b.startModules(); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	slog.Info("started bot",
		"user_id", b.session.State.User.ID,
		"username", b.session.State.User.Username,
	)

	return nil
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() error {
	// Shutdown modules
	for _, mod := range b.modules {
		if err := mod.Shutdown(); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// loadModuleConfigs calls LoadConfig on every module that needs configuration.
func (b *Bot) loadModuleConfigs() error {
	for _, mod := range b.modules {
		configurable, ok := mod.(ConfigurableModule)
		if !ok {
			continue
		}
		if err := configurable.LoadConfig(); err != nil {
			return fmt.Errorf("failed to load %s module config: %w", mod.Name(), err)
		}
	}
	return nil
}

// initModules initializes all loaded modules.
func (b *Bot) initModules() error {
	deps := ModuleDependencies{
		Session: b.session,
	}

	for _, mod := range b.modules {
		if err := mod.Init(deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	moduleNames := make([]string, len(b.modules))
	for i, mod := range b.modules {
		moduleNames[i] = mod.Name()
	}
	slog.Info("initialized modules", "modules", moduleNames)

	return nil
}

// startModules calls Start on every module with background work.
func (b *Bot) startModules() error {
	for _, mod := range b.modules {
		startable, ok := mod.(StartableModule)
		if !ok {
			continue
		}
		if err := startable.Start(); err != nil {
			return fmt.Errorf("failed to start %s module: %w", mod.Name(), err)
		}
	}
	return nil
}

// buildHandlerMap builds the command name and component prefix to handler mappings.
func (b *Bot) buildHandlerMap() {
	for _, mod := range b.modules {
		maps.Copy(b.handlers, mod.CommandHandlers())

		if components, ok := mod.(ComponentModule); ok {
			maps.Copy(b.components, components.ComponentHandlers())
		}

		if authorizing, ok := mod.(AuthorizingModule); ok {
			maps.Copy(b.authorizers, authorizing.CommandAuthorizers())
		}
	}
}

// registerEventHandlers registers all module event handlers with the session.
func (b *Bot) registerEventHandlers() {
	for _, mod := range b.modules {
		for _, handler := range mod.EventHandlers() {
			b.session.AddHandler(handler)
		}
	}
}

// collectCommands gathers all commands from loaded modules.
func (b *Bot) collectCommands() []*discordgo.ApplicationCommand {
	var commands []*discordgo.ApplicationCommand
	for _, mod := range b.modules {
		commands = append(commands, mod.Commands()...)
	}
	return commands
}

// registerCommands registers all module commands with Discord.
func (b *Bot) registerCommands() error {
	commands := b.collectCommands()

	for _, cmd := range commands {
		_, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string registers commands globally
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		slog.Debug("registered command", "command", cmd.Name)
	}

	return nil
}

// Embed colors for responses.
const (
	colorYellow = 0xFFFF00
	colorRed    = 0xFF0000
)

// handleInteraction routes incoming interactions to the appropriate handler.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionMessageComponent:
		b.dispatch(s, i, NewDiscordResponder(s, i.Interaction))
	}
}

// route returns the key an interaction is dispatched by and the handlers to
// look it up in. Components are keyed by the custom ID up to the first colon.
func (b *Bot) route(i *discordgo.InteractionCreate) (string, map[string]InteractionHandler) {
	if i.Type == discordgo.InteractionMessageComponent {
		prefix, _, _ := strings.Cut(i.MessageComponentData().CustomID, ":")
		return prefix, b.components
	}
	return i.ApplicationCommandData().Name, b.handlers
}

// dispatch authorizes the interaction and runs its handler.
func (b *Bot) dispatch(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) {
	key, handlers := b.route(i)

	// Replies to button presses are only shown to the member who pressed.
	var flags discordgo.MessageFlags
	if i.Type == discordgo.InteractionMessageComponent {
		flags = discordgo.MessageFlagsEphemeral
	}

	handler, ok := handlers[key]
	if !ok {
		slog.Warn("found no handler for interaction", "key", key, "type", i.Type.String())
		respondWithEmbed(r, "Unknown Command", "This command is not recognized.", colorYellow, flags)
		return
	}

	if authorize, ok := b.authorizers[key]; ok {
		if err := authorize(s, i); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				slog.Info("rejected unauthorized command", "command", key, "error", err)
				respondWithEmbed(r, "Not Allowed", err.Error(), colorYellow, flags)
				return
			}
			slog.Error("failed to authorize command", "command", key, "error", err)
			respondWithEmbed(r, "Error", "An error occurred while processing your command.", colorRed, flags)
			return
		}
	}

	if err := handler(s, i, r); err != nil {
		slog.Error("failed to handle command", "command", key, "error", err)
		respondWithEmbed(r, "Error", "An error occurred while processing your command.", colorRed, flags)
	}
}

// respondWithEmbed sends an embed response to an interaction.
func respondWithEmbed(r Responder, title, description string, color int, flags discordgo.MessageFlags) {
	err := r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: flags,
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       title,
					Description: description,
					Color:       color,
				},
			},
		},
	})
	if err != nil {
		slog.Error("failed to send embed response", "error", err)
	}
}
