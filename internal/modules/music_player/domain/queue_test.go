package domain

import (
	"errors"
	"strconv"
	"testing"
)

func newTestTrack(n int) Track {
	return Track{
		Title:     "Song " + strconv.Itoa(n),
		Encoded:   "encoded-" + strconv.Itoa(n),
		StreamURL: "https://example.com/" + strconv.Itoa(n),
	}
}

func TestQueue_EnqueueAndDequeueFront(t *testing.T) {
	q := NewQueue()
	q.Enqueue(newTestTrack(1), newTestTrack(2))
	q.Enqueue(newTestTrack(3))

	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}

	for i := 1; i <= 3; i++ {
		got, err := q.DequeueFront()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Title != newTestTrack(i).Title {
			t.Errorf("dequeue %d: got %q, want %q", i, got.Title, newTestTrack(i).Title)
		}
	}

	if _, err := q.DequeueFront(); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("expected ErrEmptyQueue, got %v", err)
	}
}

func TestQueue_AllowsDuplicates(t *testing.T) {
	q := NewQueue()
	q.Enqueue(newTestTrack(1))
	q.Enqueue(newTestTrack(1))

	if q.Len() != 2 {
		t.Errorf("expected duplicates to be kept, got length %d", q.Len())
	}
}

func TestQueue_Peek(t *testing.T) {
	q := NewQueue()

	if _, ok := q.Peek(); ok {
		t.Error("expected Peek on empty queue to report false")
	}

	q.Enqueue(newTestTrack(1), newTestTrack(2))
	got, ok := q.Peek()
	if !ok || got.Title != "Song 1" {
		t.Errorf("Peek() = %q, %v; want Song 1, true", got.Title, ok)
	}
	if q.Len() != 2 {
		t.Error("Peek must not remove the track")
	}
}

func TestQueue_PushFront(t *testing.T) {
	q := NewQueue()
	q.Enqueue(newTestTrack(2))
	q.PushFront(newTestTrack(1))

	got, _ := q.DequeueFront()
	if got.Title != "Song 1" {
		t.Errorf("expected Song 1 first, got %q", got.Title)
	}
}

func TestQueue_RemoveAt(t *testing.T) {
	tests := []struct {
		name      string
		index     int
		wantTitle string
		wantErr   error
		wantLen   int
	}{
		{name: "first", index: 0, wantTitle: "Song 1", wantLen: 2},
		{name: "middle", index: 1, wantTitle: "Song 2", wantLen: 2},
		{name: "last", index: 2, wantTitle: "Song 3", wantLen: 2},
		{name: "negative", index: -1, wantErr: ErrInvalidPosition, wantLen: 3},
		{name: "out of range", index: 3, wantErr: ErrInvalidPosition, wantLen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			q.Enqueue(newTestTrack(1), newTestTrack(2), newTestTrack(3))

			got, err := q.RemoveAt(tt.index)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && got.Title != tt.wantTitle {
				t.Errorf("removed %q, want %q", got.Title, tt.wantTitle)
			}
			if q.Len() != tt.wantLen {
				t.Errorf("expected length %d, got %d", tt.wantLen, q.Len())
			}
		})
	}
}

func TestQueue_Snapshot(t *testing.T) {
	q := NewQueue()
	for i := 1; i <= 5; i++ {
		q.Enqueue(newTestTrack(i))
	}

	tests := []struct {
		name    string
		limit   int
		wantLen int
	}{
		{name: "limited", limit: 2, wantLen: 2},
		{name: "limit larger than queue", limit: 10, wantLen: 5},
		{name: "no limit", limit: 0, wantLen: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := q.Snapshot(tt.limit)
			if len(snap) != tt.wantLen {
				t.Fatalf("expected %d tracks, got %d", tt.wantLen, len(snap))
			}
			if snap[0].Title != "Song 1" {
				t.Errorf("expected snapshot to start at the front, got %q", snap[0].Title)
			}
		})
	}

	snap := q.Snapshot(1)
	snap[0].Title = "changed"
	if got, _ := q.Peek(); got.Title != "Song 1" {
		t.Error("Snapshot must not alias queue storage")
	}
	if q.Len() != 5 {
		t.Error("Snapshot must not remove tracks")
	}
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue()
	q.Enqueue(newTestTrack(1), newTestTrack(2))

	if n := q.Clear(); n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
	if !q.IsEmpty() {
		t.Error("expected empty queue after Clear")
	}
}
