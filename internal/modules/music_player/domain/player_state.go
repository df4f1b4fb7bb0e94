package domain

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// PlayerState is the playback state of one guild: the state machine, the
// queue, the current track, progress and history.
//
// PlayerState is not safe for concurrent use. It is owned by a single
// session actor which serializes all access.
type PlayerState struct {
	guildID               snowflake.ID
	voiceChannelID        snowflake.ID // listener channel the sink plays into
	notificationChannelID snowflake.ID // text channel for notifications

	status      PlaybackStatus
	queue       Queue
	current     *Track
	history     *History
	progress    ProgressTracker
	autoAdvance bool

	// attempt identifies the current playback attempt. Finish signals
	// carrying an older attempt are stale.
	attempt uint64
}

// NewPlayerState creates an idle PlayerState for the given guild.
func NewPlayerState(guildID snowflake.ID, historyCapacity int) *PlayerState {
	return &PlayerState{
		guildID: guildID,
		status:  StatusIdle,
		queue:   NewQueue(),
		history: NewHistory(historyCapacity),
	}
}

// GuildID returns the guild this state belongs to.
func (p *PlayerState) GuildID() snowflake.ID {
	return p.guildID
}

// VoiceChannelID returns the listener channel, or 0 if none is bound.
func (p *PlayerState) VoiceChannelID() snowflake.ID {
	return p.voiceChannelID
}

// SetVoiceChannelID binds the listener channel.
func (p *PlayerState) SetVoiceChannelID(channelID snowflake.ID) {
	p.voiceChannelID = channelID
}

// NotificationChannelID returns the text channel for notifications.
func (p *PlayerState) NotificationChannelID() snowflake.ID {
	return p.notificationChannelID
}

// SetNotificationChannelID sets the text channel for notifications.
func (p *PlayerState) SetNotificationChannelID(channelID snowflake.ID) {
	p.notificationChannelID = channelID
}

// Status returns the current playback status.
func (p *PlayerState) Status() PlaybackStatus {
	return p.status
}

// IsActive reports whether a track is playing or paused.
func (p *PlayerState) IsActive() bool {
	return p.status.IsActive()
}

// Queue returns the pending tracks.
func (p *PlayerState) Queue() *Queue {
	return &p.queue
}

// History returns the finished tracks.
func (p *PlayerState) History() *History {
	return p.history
}

// Current returns the loaded track, if any.
func (p *PlayerState) Current() (Track, bool) {
	if p.current == nil {
		return Track{}, false
	}
	return *p.current, true
}

// AutoAdvance reports whether recommendations are played when the queue runs out.
func (p *PlayerState) AutoAdvance() bool {
	return p.autoAdvance
}

// SetAutoAdvance toggles recommendations when the queue runs out.
func (p *PlayerState) SetAutoAdvance(enabled bool) {
	p.autoAdvance = enabled
}

// Attempt returns the current playback attempt number.
func (p *PlayerState) Attempt() uint64 {
	return p.attempt
}

// BeginLoading makes track current and starts a new playback attempt.
func (p *PlayerState) BeginLoading(track Track) (uint64, error) {
	if p.status == StatusStopped {
		return 0, p.transitionError("load a track")
	}

	p.attempt++
	p.current = &track
	p.progress.Reset()
	p.status = StatusLoading
	return p.attempt, nil
}

// MarkPlaying records that the sink started the loading track at now.
func (p *PlayerState) MarkPlaying(now time.Time) error {
	if p.status != StatusLoading {
		return p.transitionError("start playing")
	}

	p.progress.OnPlay(now)
	p.status = StatusPlaying
	return nil
}

// FailLoading drops the loading track and returns to idle.
func (p *PlayerState) FailLoading() error {
	if p.status != StatusLoading {
		return p.transitionError("abandon loading")
	}

	p.current = nil
	p.status = StatusIdle
	return nil
}

// Pause freezes playback at now.
func (p *PlayerState) Pause(now time.Time) error {
	if p.status != StatusPlaying {
		return p.transitionError("pause")
	}

	p.progress.OnPause(now)
	p.status = StatusPaused
	return nil
}

// Resume continues paused playback at now.
func (p *PlayerState) Resume(now time.Time) error {
	if p.status != StatusPaused {
		return p.transitionError("resume")
	}

	p.progress.OnResume(now)
	p.status = StatusPlaying
	return nil
}

// FinishCurrent ends the current attempt, moves the current track into
// history and returns to idle. Any finish signal for the ended attempt
// becomes stale.
func (p *PlayerState) FinishCurrent() (Track, error) {
	if !p.status.IsActive() {
		return Track{}, p.transitionError("finish the current track")
	}

	finished := *p.current
	p.history.Push(finished)
	p.current = nil
	p.progress.Reset()
	p.status = StatusIdle
	p.attempt++
	return finished, nil
}

// Stop moves to the terminal state, dropping the queue and current track.
func (p *PlayerState) Stop() {
	p.queue.Clear()
	p.current = nil
	p.progress.Reset()
	p.status = StatusStopped
	p.attempt++
}

// Elapsed returns the played time of the current track at now, clamped to its duration.
func (p *PlayerState) Elapsed(now time.Time) time.Duration {
	if p.current == nil {
		return 0
	}
	return p.progress.Elapsed(now, p.current.Duration)
}

// Overrun reports how far playback has run past the current track's known
// length. It is zero for unknown lengths and for tracks still in range.
func (p *PlayerState) Overrun(now time.Time) time.Duration {
	if p.current == nil || !p.current.HasKnownDuration() || p.status != StatusPlaying {
		return 0
	}
	if over := p.progress.RawElapsed(now) - p.current.Duration; over > 0 {
		return over
	}
	return 0
}

// Progress returns the display data for the current track at now.
func (p *PlayerState) Progress(now time.Time) ProgressSnapshot {
	if p.current == nil {
		return ProgressSnapshot{}
	}
	return ProgressSnapshot{
		Title:    p.current.Title,
		Elapsed:  p.progress.Elapsed(now, p.current.Duration),
		Duration: p.current.Duration,
		IsPaused: p.progress.IsPaused(),
	}
}

func (p *PlayerState) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidStateTransition, action, p.status)
}
