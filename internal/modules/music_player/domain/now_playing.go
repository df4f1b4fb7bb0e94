package domain

import "github.com/disgoorg/snowflake/v2"

// NowPlayingMessage identifies the "Now Playing" message shown for a guild.
// Displays keep this key, never a reference to the session itself.
type NowPlayingMessage struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
	Track     Track
}

// NewNowPlayingMessage creates a NowPlayingMessage.
func NewNowPlayingMessage(channelID, messageID snowflake.ID, track Track) NowPlayingMessage {
	return NowPlayingMessage{
		ChannelID: channelID,
		MessageID: messageID,
		Track:     track,
	}
}
