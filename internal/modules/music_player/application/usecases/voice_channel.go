package usecases

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/session"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// BotVoiceStateChangeInput contains the input for handling bot voice state changes.
type BotVoiceStateChangeInput struct {
	GuildID      snowflake.ID
	NewChannelID *snowflake.ID // nil means disconnected
	// ConnectionID is the sink's connection id read when the event arrived.
	ConnectionID uint64
}

// VoiceChannelService reacts to changes of the bot's own voice state.
type VoiceChannelService struct {
	sessions SessionRegistry
}

// NewVoiceChannelService creates a new VoiceChannelService.
func NewVoiceChannelService(sessions SessionRegistry) *VoiceChannelService {
	return &VoiceChannelService{sessions: sessions}
}

// HandleBotVoiceStateChange stops the session when the bot was disconnected
// from its current voice connection and follows it when it was moved.
func (v *VoiceChannelService) HandleBotVoiceStateChange(
	ctx context.Context,
	input BotVoiceStateChangeInput,
) error {
	err := v.sessions.SubmitExisting(ctx, input.GuildID, func(ctx context.Context, s *session.Session) error {
		if input.NewChannelID == nil {
			s.HandleVoiceLost(ctx, input.ConnectionID)
			return nil
		}
		s.Relocate(ctx, *input.NewChannelID)
		return nil
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}
