package domain

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// QueueSnapshot is a read-only view of a session's queue.
type QueueSnapshot struct {
	Status      PlaybackStatus
	Current     *Track
	Upcoming    []Track
	Total       int // number of upcoming tracks, including those past the limit
	AutoAdvance bool
}

// SessionSnapshot is the persisted form of a PlayerState.
type SessionSnapshot struct {
	GuildID               snowflake.ID  `json:"guild_id"`
	VoiceChannelID        snowflake.ID  `json:"voice_channel_id"`
	NotificationChannelID snowflake.ID  `json:"notification_channel_id"`
	Status                string        `json:"status"`
	Current               *Track        `json:"current,omitempty"`
	Queue                 []Track       `json:"queue"`
	History               []Track       `json:"history"`
	AutoAdvance           bool          `json:"auto_advance"`
	StartedAt             time.Time     `json:"started_at,omitzero"`
	PausedAt              *time.Time    `json:"paused_at,omitempty"`
	TotalPaused           time.Duration `json:"total_paused"`
	SavedAt               time.Time     `json:"saved_at"`
}

// Snapshot captures the state for persistence.
func (p *PlayerState) Snapshot(now time.Time) SessionSnapshot {
	snap := SessionSnapshot{
		GuildID:               p.guildID,
		VoiceChannelID:        p.voiceChannelID,
		NotificationChannelID: p.notificationChannelID,
		Status:                p.status.String(),
		Queue:                 p.queue.Snapshot(0),
		History:               p.history.List(),
		AutoAdvance:           p.autoAdvance,
		StartedAt:             p.progress.StartTime(),
		TotalPaused:           p.progress.TotalPaused(),
		SavedAt:               now.UTC(),
	}

	if p.current != nil {
		current := *p.current
		snap.Current = &current
	}
	if pausedAt, paused := p.progress.PauseTime(); paused {
		snap.PausedAt = &pausedAt
	}

	return snap
}

// RestorePlayerState rebuilds an idle PlayerState from a snapshot. A track
// that was loaded when the snapshot was taken is put back at the head of
// the queue so that it plays again first.
func RestorePlayerState(snap SessionSnapshot, historyCapacity int) *PlayerState {
	state := NewPlayerState(snap.GuildID, historyCapacity)
	state.voiceChannelID = snap.VoiceChannelID
	state.notificationChannelID = snap.NotificationChannelID
	state.autoAdvance = snap.AutoAdvance

	for _, track := range snap.History {
		state.history.Push(track)
	}
	state.queue.Enqueue(snap.Queue...)
	if snap.Current != nil {
		state.queue.PushFront(*snap.Current)
	}

	return state
}
