package domain

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Track represents a resolved, playable audio track.
// Tracks are values; once resolved they are never mutated.
type Track struct {
	Identifier   string // source-specific identifier, e.g. a YouTube video ID
	Encoded      string // Lavalink encoded track data, empty until loaded by the sink's node
	Title        string
	Author       string
	Duration     time.Duration // zero when the length is unknown
	StreamURL    string
	ThumbnailURL string
	SourceName   string // e.g., "youtube", "soundcloud"
	IsStream     bool
	RequesterID  snowflake.ID // Discord user who added the track
	EnqueuedAt   time.Time
}

// Source returns the parsed TrackSource for this track.
func (t Track) Source() TrackSource {
	return ParseTrackSource(t.SourceName)
}

// IsValid returns true if the track has the minimum required fields.
func (t Track) IsValid() bool {
	return t.Title != "" && (t.Encoded != "" || t.StreamURL != "")
}

// HasKnownDuration reports whether the track has a finite, known length.
func (t Track) HasKnownDuration() bool {
	return !t.IsStream && t.Duration > 0
}

// WithRequester returns a copy of the track attributed to the given user.
func (t Track) WithRequester(requesterID snowflake.ID, at time.Time) Track {
	t.RequesterID = requesterID
	t.EnqueuedAt = at.UTC()
	return t
}

// FormattedDuration returns the duration as m:ss or h:mm:ss, or LIVE for streams.
func (t Track) FormattedDuration() string {
	if t.IsStream {
		return "LIVE"
	}
	return FormatDuration(t.Duration)
}

// FormatDuration renders d as m:ss below one hour and h:mm:ss otherwise.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	totalSeconds := int(d / time.Second)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
