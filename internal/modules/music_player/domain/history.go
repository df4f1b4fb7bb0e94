package domain

import "github.com/samber/lo"

// DefaultHistoryCapacity is how many finished tracks a session remembers.
const DefaultHistoryCapacity = 50

// History is a bounded list of finished tracks. When full, pushing evicts
// the oldest entry.
type History struct {
	tracks   []Track
	capacity int
}

// NewHistory creates an empty History holding at most capacity tracks.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		tracks:   make([]Track, 0, capacity),
		capacity: capacity,
	}
}

// Push records a finished track.
func (h *History) Push(track Track) {
	if len(h.tracks) == h.capacity {
		copy(h.tracks, h.tracks[1:])
		h.tracks = h.tracks[:len(h.tracks)-1]
	}
	h.tracks = append(h.tracks, track)
}

// Len returns the number of remembered tracks.
func (h *History) Len() int {
	return len(h.tracks)
}

// Cap returns the maximum number of remembered tracks.
func (h *History) Cap() int {
	return h.capacity
}

// Last returns the most recently finished track.
func (h *History) Last() (Track, bool) {
	if len(h.tracks) == 0 {
		return Track{}, false
	}
	return h.tracks[len(h.tracks)-1], true
}

// List returns the remembered tracks, oldest first.
func (h *History) List() []Track {
	result := make([]Track, len(h.tracks))
	copy(result, h.tracks)
	return result
}

// URLs returns the distinct stream URLs of remembered tracks.
func (h *History) URLs() []string {
	urls := lo.FilterMap(h.tracks, func(t Track, _ int) (string, bool) {
		return t.StreamURL, t.StreamURL != ""
	})
	return lo.Uniq(urls)
}
