package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// Event is a state-change notification published by a session.
type Event interface {
	EventGuildID() snowflake.ID
}

// TrackEndReason represents why a track ended.
type TrackEndReason string

const (
	// TrackEndFinished means the track finished normally.
	TrackEndFinished TrackEndReason = "finished"
	// TrackEndLoadFailed means the sink could not load the track.
	TrackEndLoadFailed TrackEndReason = "load_failed"
	// TrackEndStopped means playback was stopped.
	TrackEndStopped TrackEndReason = "stopped"
	// TrackEndReplaced means another track replaced this one.
	TrackEndReplaced TrackEndReason = "replaced"
	// TrackEndCleanup means the sink cleaned up the player.
	TrackEndCleanup TrackEndReason = "cleanup"
	// TrackEndSkipped means a user skipped the track.
	TrackEndSkipped TrackEndReason = "skipped"
	// TrackEndStuck means no finish signal arrived in time.
	TrackEndStuck TrackEndReason = "stuck"
	// TrackEndDisconnected means the sink lost its voice connection.
	TrackEndDisconnected TrackEndReason = "disconnected"
)

// IsFatal reports whether the sink can no longer play for this session.
func (r TrackEndReason) IsFatal() bool {
	return r == TrackEndDisconnected
}

// IsFailure reports whether the track never played properly.
func (r TrackEndReason) IsFailure() bool {
	return r == TrackEndLoadFailed
}

// StopReason represents why a session was stopped.
type StopReason string

const (
	StopReasonRequested    StopReason = "requested"
	StopReasonEmptyChannel StopReason = "empty_channel"
	StopReasonIdle         StopReason = "idle"
	StopReasonDisconnected StopReason = "disconnected"
	StopReasonRecovery     StopReason = "recovery_failed"
)

// TrackEnqueuedEvent is published when a track joins the queue without starting.
type TrackEnqueuedEvent struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID
	Track                 Track
	Position              int // 1-based position among upcoming tracks
}

// PlaybackStartedEvent is published when the sink starts a track.
type PlaybackStartedEvent struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID
	Track                 Track
	Attempt               uint64
	Recommended           bool
}

// PlaybackStateChangedEvent is published on pause and resume.
type PlaybackStateChangedEvent struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID
	Status                PlaybackStatus
	Progress              ProgressSnapshot
}

// ProgressUpdatedEvent is published by the monitor when the displayed progress changes.
type ProgressUpdatedEvent struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID
	Track                 Track
	Progress              ProgressSnapshot
}

// TrackFinishedEvent is published when the current track ends for any reason.
type TrackFinishedEvent struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID
	Track                 Track
	Reason                TrackEndReason
}

// TrackFailedEvent is published when a track could not be played.
type TrackFailedEvent struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID
	Track                 Track
	Err                   error
}

// SessionStoppedEvent is published once when a session reaches Stopped.
type SessionStoppedEvent struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID
	Reason                StopReason
}

func (e TrackEnqueuedEvent) EventGuildID() snowflake.ID        { return e.GuildID }
func (e PlaybackStartedEvent) EventGuildID() snowflake.ID      { return e.GuildID }
func (e PlaybackStateChangedEvent) EventGuildID() snowflake.ID { return e.GuildID }
func (e ProgressUpdatedEvent) EventGuildID() snowflake.ID      { return e.GuildID }
func (e TrackFinishedEvent) EventGuildID() snowflake.ID        { return e.GuildID }
func (e TrackFailedEvent) EventGuildID() snowflake.ID          { return e.GuildID }
func (e SessionStoppedEvent) EventGuildID() snowflake.ID       { return e.GuildID }
