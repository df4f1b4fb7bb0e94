package ports

import (
	"github.com/disgoorg/snowflake/v2"
)

// VoiceStateProvider defines the interface for getting Discord voice state information.
type VoiceStateProvider interface {
	// GetUserVoiceChannel returns the voice channel ID the user is currently in.
	// Returns 0 if the user is not in a voice channel.
	GetUserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, error)
}

// MembershipProvider reports who is listening in a voice channel.
type MembershipProvider interface {
	// ListenerCount returns the number of non-bot members in the channel.
	ListenerCount(guildID, channelID snowflake.ID) (int, error)
}
