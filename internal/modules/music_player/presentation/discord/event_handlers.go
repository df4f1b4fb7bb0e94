package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/usecases"
)

// voiceStateTimeout bounds the session command issued for a bot voice change.
const voiceStateTimeout = 10 * time.Second

// VoiceForwarder receives raw voice events needed to establish audio connections.
type VoiceForwarder interface {
	OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate)
	OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate)
	ConnectionID(guildID snowflake.ID) uint64
}

// EventHandlers handles Discord gateway events for the music player.
type EventHandlers struct {
	botID        snowflake.ID
	forwarder    VoiceForwarder
	voiceChannel *usecases.VoiceChannelService
}

// NewEventHandlers creates a new EventHandlers.
func NewEventHandlers(
	botID snowflake.ID,
	forwarder VoiceForwarder,
	voiceChannel *usecases.VoiceChannelService,
) *EventHandlers {
	return &EventHandlers{
		botID:        botID,
		forwarder:    forwarder,
		voiceChannel: voiceChannel,
	}
}

// HandleVoiceServerUpdate forwards VoiceServerUpdate events to the audio backend.
func (h *EventHandlers) HandleVoiceServerUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceServerUpdate,
) {
	h.forwarder.OnVoiceServerUpdate(event)
}

// HandleVoiceStateUpdate forwards VoiceStateUpdate events and reacts to the bot
// being moved or disconnected.
func (h *EventHandlers) HandleVoiceStateUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	// Only updates for the bot itself drive the session
	if event.UserID != h.botID.String() {
		h.forwarder.OnVoiceStateUpdate(event)
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		h.forwarder.OnVoiceStateUpdate(event)
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	// Read before forwarding, which may drop the connection this event ends.
	connectionID := h.forwarder.ConnectionID(guildID)
	h.forwarder.OnVoiceStateUpdate(event)

	// Parse the channel ID - nil means disconnected
	var newChannelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		newChannelID = &id
	}

	// The session may be waiting on this very event inside Connect, so the
	// command must not block the gateway goroutine.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), voiceStateTimeout)
		defer cancel()

		err := h.voiceChannel.HandleBotVoiceStateChange(ctx, usecases.BotVoiceStateChangeInput{
			GuildID:      guildID,
			NewChannelID: newChannelID,
			ConnectionID: connectionID,
		})
		if err != nil {
			slog.Warn("failed to handle bot voice state change", "guild", guildID, "error", err)
		}
	}()
}
