package ports

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// NowPlayingInfo contains information for the "Now Playing" message.
type NowPlayingInfo struct {
	GuildID            snowflake.ID
	Identifier         string
	Title              string
	Author             string
	URI                string
	ArtworkURL         string
	SourceName         string
	IsStream           bool
	RequesterName      string
	RequesterAvatarURL string
	EnqueuedAt         time.Time
	Elapsed            time.Duration
	Duration           time.Duration
	Paused             bool
	Recommended        bool
}

// QueueAddedInfo contains information for the "Added to Queue" message.
type QueueAddedInfo struct {
	Title    string
	URI      string
	Position int
}

// NotificationSender defines the interface for sending notifications to Discord channels.
type NotificationSender interface {
	// SendNowPlaying sends a "Now Playing" embed to the channel and returns the message ID.
	SendNowPlaying(channelID snowflake.ID, info *NowPlayingInfo) (messageID snowflake.ID, err error)

	// UpdateNowPlaying edits a previously sent "Now Playing" embed.
	UpdateNowPlaying(channelID, messageID snowflake.ID, info *NowPlayingInfo) error

	// DeleteMessage deletes a message from the channel.
	DeleteMessage(channelID snowflake.ID, messageID snowflake.ID) error

	// SendQueueAdded sends an "Added to Queue" embed to the channel.
	SendQueueAdded(channelID snowflake.ID, info *QueueAddedInfo) error

	// SendInfo sends a neutral informational embed to the channel.
	SendInfo(channelID snowflake.ID, message string) error

	// SendError sends an error message embed to the channel.
	SendError(channelID snowflake.ID, message string) error
}
