package domain

// Queue is the ordered list of tracks waiting to be played.
// Insertion order is play order. Duplicates are allowed.
//
// Queue is not safe for concurrent use; it is owned by a single session.
type Queue struct {
	tracks []Track
}

// NewQueue creates a new empty Queue.
func NewQueue() Queue {
	return Queue{tracks: make([]Track, 0)}
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// IsEmpty returns true if nothing is queued.
func (q *Queue) IsEmpty() bool {
	return len(q.tracks) == 0
}

// Enqueue appends tracks to the back of the queue.
func (q *Queue) Enqueue(tracks ...Track) {
	q.tracks = append(q.tracks, tracks...)
}

// PushFront puts a track at the head of the queue so it plays next.
func (q *Queue) PushFront(track Track) {
	q.tracks = append([]Track{track}, q.tracks...)
}

// DequeueFront removes and returns the first track.
func (q *Queue) DequeueFront() (Track, error) {
	if q.IsEmpty() {
		return Track{}, ErrEmptyQueue
	}

	track := q.tracks[0]
	q.tracks[0] = Track{}
	q.tracks = q.tracks[1:]
	return track, nil
}

// Peek returns the first track without removing it.
func (q *Queue) Peek() (Track, bool) {
	if q.IsEmpty() {
		return Track{}, false
	}
	return q.tracks[0], true
}

// RemoveAt removes the track at the given zero-based index.
func (q *Queue) RemoveAt(index int) (Track, error) {
	if index < 0 || index >= len(q.tracks) {
		return Track{}, ErrInvalidPosition
	}

	track := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
	return track, nil
}

// Snapshot returns up to limit tracks from the front. A limit of zero or
// less returns every track.
func (q *Queue) Snapshot(limit int) []Track {
	n := len(q.tracks)
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]Track, n)
	copy(result, q.tracks[:n])
	return result
}

// Clear removes all tracks and returns how many were dropped.
func (q *Queue) Clear() int {
	n := len(q.tracks)
	q.tracks = make([]Track, 0)
	return n
}
