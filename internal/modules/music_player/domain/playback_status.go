package domain

// PlaybackStatus is the state of a session's playback state machine.
type PlaybackStatus int

const (
	// StatusIdle means nothing is queued or playing.
	StatusIdle PlaybackStatus = iota
	// StatusLoading means a track was taken from the queue and is being handed to the sink.
	StatusLoading
	// StatusPlaying means the sink is streaming and progress accrues.
	StatusPlaying
	// StatusPaused means the sink is paused and progress is frozen.
	StatusPaused
	// StatusStopped is terminal.
	StatusStopped
)

// String returns the lowercase status name.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ParsePlaybackStatus converts a status name back to a PlaybackStatus.
func ParsePlaybackStatus(s string) (PlaybackStatus, bool) {
	switch s {
	case "idle":
		return StatusIdle, true
	case "loading":
		return StatusLoading, true
	case "playing":
		return StatusPlaying, true
	case "paused":
		return StatusPaused, true
	case "stopped":
		return StatusStopped, true
	default:
		return StatusIdle, false
	}
}

// IsActive reports whether a track is loaded in the sink.
func (s PlaybackStatus) IsActive() bool {
	return s == StatusPlaying || s == StatusPaused
}
