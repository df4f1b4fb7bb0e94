package domain

import "time"

// ProgressTracker computes elapsed playback time, excluding time spent paused.
//
// The zero value is a tracker that has not started.
type ProgressTracker struct {
	startTime   time.Time
	pauseTime   time.Time
	paused      bool
	totalPaused time.Duration
}

// OnPlay starts tracking a new track at now.
func (p *ProgressTracker) OnPlay(now time.Time) {
	p.startTime = now
	p.pauseTime = time.Time{}
	p.paused = false
	p.totalPaused = 0
}

// OnPause freezes progress at now. It returns false if already paused.
func (p *ProgressTracker) OnPause(now time.Time) bool {
	if p.paused {
		return false
	}
	if now.Before(p.startTime) {
		now = p.startTime
	}
	p.pauseTime = now
	p.paused = true
	return true
}

// OnResume accounts for the paused interval ending at now. It returns false
// if not paused.
func (p *ProgressTracker) OnResume(now time.Time) bool {
	if !p.paused {
		return false
	}
	if interval := now.Sub(p.pauseTime); interval > 0 {
		p.totalPaused += interval
	}
	p.pauseTime = time.Time{}
	p.paused = false
	return true
}

// Reset clears all progress state.
func (p *ProgressTracker) Reset() {
	*p = ProgressTracker{}
}

// RawElapsed is the played time at now without clamping to a track length.
func (p *ProgressTracker) RawElapsed(now time.Time) time.Duration {
	if p.startTime.IsZero() {
		return 0
	}

	end := now
	if p.paused {
		end = p.pauseTime
	}

	elapsed := end.Sub(p.startTime) - p.totalPaused
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Elapsed is RawElapsed clamped to [0, duration]. A zero duration means the
// length is unknown and only the lower bound applies.
func (p *ProgressTracker) Elapsed(now time.Time, duration time.Duration) time.Duration {
	elapsed := p.RawElapsed(now)
	if duration > 0 && elapsed > duration {
		return duration
	}
	return elapsed
}

// Ratio returns elapsed/duration in [0, 1], or 0 when the duration is unknown.
func (p *ProgressTracker) Ratio(now time.Time, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(p.Elapsed(now, duration)) / float64(duration)
}

// IsPaused returns true while progress is frozen.
func (p *ProgressTracker) IsPaused() bool {
	return p.paused
}

// StartTime returns when the current track started.
func (p *ProgressTracker) StartTime() time.Time {
	return p.startTime
}

// PauseTime returns when progress was frozen, and whether it currently is.
func (p *ProgressTracker) PauseTime() (time.Time, bool) {
	return p.pauseTime, p.paused
}

// TotalPaused returns the accumulated paused duration of finished pauses.
func (p *ProgressTracker) TotalPaused() time.Duration {
	return p.totalPaused
}

// ProgressSnapshot is the display data for the current track.
type ProgressSnapshot struct {
	Title    string
	Elapsed  time.Duration
	Duration time.Duration
	IsPaused bool
}

// Ratio returns Elapsed/Duration in [0, 1], or 0 when the duration is unknown.
func (s ProgressSnapshot) Ratio() float64 {
	if s.Duration <= 0 {
		return 0
	}
	r := float64(s.Elapsed) / float64(s.Duration)
	return min(max(r, 0), 1)
}

// SameDisplay reports whether two snapshots render identically at one-second resolution.
func (s ProgressSnapshot) SameDisplay(other ProgressSnapshot) bool {
	return s.Title == other.Title &&
		s.IsPaused == other.IsPaused &&
		s.Duration.Truncate(time.Second) == other.Duration.Truncate(time.Second) &&
		s.Elapsed.Truncate(time.Second) == other.Elapsed.Truncate(time.Second)
}
