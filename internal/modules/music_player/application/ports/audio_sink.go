package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// FinishFunc is called once when a playback attempt ends.
type FinishFunc func(reason domain.TrackEndReason)

// AudioSink streams audio into a guild's voice channel. The guild ID is the
// connection handle.
type AudioSink interface {
	// Connect joins the voice channel and waits until the connection is usable.
	Connect(ctx context.Context, guildID, channelID snowflake.ID) error

	// Start plays track, replacing anything already playing. onFinished is
	// called exactly once when this attempt ends, from any goroutine.
	Start(ctx context.Context, guildID snowflake.ID, track domain.Track, onFinished FinishFunc) error

	// Pause pauses the current playback.
	Pause(ctx context.Context, guildID snowflake.ID) error

	// Resume resumes paused playback.
	Resume(ctx context.Context, guildID snowflake.ID) error

	// Stop stops playback without leaving the channel.
	Stop(ctx context.Context, guildID snowflake.ID) error

	// Disconnect leaves the voice channel.
	Disconnect(ctx context.Context, guildID snowflake.ID) error

	// IsConnected reports whether the sink holds a voice connection for the guild.
	IsConnected(guildID snowflake.ID) bool

	// ConnectionID identifies the guild's most recent voice connection. It
	// changes every time Connect succeeds and stays the same after the
	// connection is lost. Zero means the guild was never connected.
	ConnectionID(guildID snowflake.ID) uint64
}
