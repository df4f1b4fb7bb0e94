package infrastructure

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lavalinkTrack(id, title, author string) lavalink.Track {
	uri := "https://www.youtube.com/watch?v=" + id
	return lavalink.Track{
		Encoded: "enc-" + id,
		Info: lavalink.TrackInfo{
			Identifier: id,
			Title:      title,
			Author:     author,
			Length:     lavalink.Duration(180000),
			URI:        &uri,
			SourceName: "youtube",
		},
	}
}

// stubLoader serves canned load results keyed by identifier.
type stubLoader struct {
	mu      sync.Mutex
	results map[string]lavalink.LoadResultData
	calls   []string
}

func (s *stubLoader) load(_ context.Context, identifier string) (*lavalink.LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, identifier)

	data, ok := s.results[identifier]
	if !ok {
		return &lavalink.LoadResult{Data: lavalink.Empty{}}, nil
	}
	return &lavalink.LoadResult{Data: data}, nil
}

type stubRelated struct {
	urls []string
	err  error
}

func (s *stubRelated) RelatedURLs(context.Context, domain.Track, int) ([]string, error) {
	return s.urls, s.err
}

func newTestAdapter(loader *stubLoader, related *stubRelated) *LavalinkAdapter {
	var adapter *LavalinkAdapter
	if related != nil {
		adapter = newLavalinkAdapter(LavalinkConfig{}, related)
	} else {
		adapter = newLavalinkAdapter(LavalinkConfig{}, nil)
	}
	adapter.load = loader.load
	return adapter
}

func TestLavalinkAdapter_Resolve(t *testing.T) {
	loader := &stubLoader{results: map[string]lavalink.LoadResultData{
		"ytsearch:lofi": lavalink.Search{
			lavalinkTrack("a", "Lofi A", "artist"),
			lavalinkTrack("b", "Lofi B", "artist"),
		},
		"https://www.youtube.com/watch?v=x": lavalinkTrack("x", "Direct", "artist"),
		"ytsearch:broken":                  lavalink.Exception{Message: "video unavailable"},
	}}
	adapter := newTestAdapter(loader, nil)
	ctx := context.Background()

	track, err := adapter.Resolve(ctx, "lofi")
	require.NoError(t, err)
	assert.Equal(t, "Lofi A", track.Title)
	assert.Equal(t, "enc-a", track.Encoded)
	assert.Equal(t, "https://www.youtube.com/watch?v=a", track.StreamURL)
	assert.Equal(t, domain.TrackSourceYouTube, track.Source())
	assert.Equal(t, 180, int(track.Duration.Seconds()))

	track, err = adapter.Resolve(ctx, "https://www.youtube.com/watch?v=x")
	require.NoError(t, err)
	assert.Equal(t, "Direct", track.Title)

	_, err = adapter.Resolve(ctx, "nothing")
	assert.ErrorIs(t, err, domain.ErrTrackNotFound)

	_, err = adapter.Resolve(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrResolutionFailed)

	_, err = adapter.Resolve(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrTrackNotFound)
}

func TestLavalinkAdapter_Resolve_PlaylistSelectedTrack(t *testing.T) {
	url := "https://www.youtube.com/watch?v=b&list=PL1"
	loader := &stubLoader{results: map[string]lavalink.LoadResultData{
		url: lavalink.Playlist{
			Info: lavalink.PlaylistInfo{Name: "mix", SelectedTrack: 1},
			Tracks: []lavalink.Track{
				lavalinkTrack("a", "A", "artist"),
				lavalinkTrack("b", "B", "artist"),
			},
		},
	}}
	adapter := newTestAdapter(loader, nil)

	track, err := adapter.Resolve(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "B", track.Title)
}

func TestLavalinkAdapter_ResolvePlaylist(t *testing.T) {
	playlistURL := "https://www.youtube.com/playlist?list=PL1"
	tracks := make([]lavalink.Track, 10)
	for i := range tracks {
		id := string(rune('a' + i))
		tracks[i] = lavalinkTrack(id, strings.ToUpper(id), "artist")
	}
	loader := &stubLoader{results: map[string]lavalink.LoadResultData{
		playlistURL:   lavalink.Playlist{Info: lavalink.PlaylistInfo{Name: "pl"}, Tracks: tracks},
		"ytsearch:q":  lavalink.Search(tracks[:4]),
		"ytsearch:one": lavalinkTrack("z", "Z", "artist"),
	}}
	adapter := newTestAdapter(loader, nil)
	ctx := context.Background()

	t.Run("playlist is sampled without repeats", func(t *testing.T) {
		got, err := adapter.ResolvePlaylist(ctx, playlistURL, 5)
		require.NoError(t, err)
		require.Len(t, got, 5)

		seen := make(map[string]bool)
		for _, track := range got {
			assert.False(t, seen[track.Identifier], "duplicate %s", track.Identifier)
			seen[track.Identifier] = true
		}
	})

	t.Run("sample larger than playlist", func(t *testing.T) {
		got, err := adapter.ResolvePlaylist(ctx, playlistURL, 25)
		require.NoError(t, err)
		assert.Len(t, got, 10)
	})

	t.Run("search keeps ranking", func(t *testing.T) {
		got, err := adapter.ResolvePlaylist(ctx, "q", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].Title)
		assert.Equal(t, "B", got[1].Title)
	})

	t.Run("single track", func(t *testing.T) {
		got, err := adapter.ResolvePlaylist(ctx, "one", 5)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("nothing found", func(t *testing.T) {
		_, err := adapter.ResolvePlaylist(ctx, "missing", 5)
		assert.ErrorIs(t, err, domain.ErrTrackNotFound)
	})
}

func TestLavalinkAdapter_Recommend(t *testing.T) {
	seed := convertTrack(lavalinkTrack("seed", "Seed", "artist"), 0)

	t.Run("related source skips excluded urls", func(t *testing.T) {
		loader := &stubLoader{results: map[string]lavalink.LoadResultData{
			"https://www.youtube.com/watch?v=r2": lavalinkTrack("r2", "Related 2", "other"),
		}}
		related := &stubRelated{urls: []string{
			"https://www.youtube.com/watch?v=r1",
			"https://www.youtube.com/watch?v=r2",
		}}
		adapter := newTestAdapter(loader, related)

		got, err := adapter.Recommend(context.Background(), seed, []string{"https://www.youtube.com/watch?v=r1"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Related 2", got.Title)
		assert.NotContains(t, loader.calls, "https://www.youtube.com/watch?v=r1")
	})

	t.Run("falls back to author search", func(t *testing.T) {
		loader := &stubLoader{results: map[string]lavalink.LoadResultData{
			"ytsearch:artist": lavalink.Search{
				lavalinkTrack("seed", "Seed", "artist"),
				lavalinkTrack("played", "Played", "artist"),
				lavalinkTrack("fresh", "Fresh", "artist"),
			},
		}}
		related := &stubRelated{err: errors.New("yt-dlp missing")}
		adapter := newTestAdapter(loader, related)

		got, err := adapter.Recommend(context.Background(), seed, []string{"https://www.youtube.com/watch?v=played"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Fresh", got.Title)
	})

	t.Run("nothing new", func(t *testing.T) {
		loader := &stubLoader{results: map[string]lavalink.LoadResultData{
			"ytsearch:artist": lavalink.Search{lavalinkTrack("seed", "Seed", "artist")},
		}}
		adapter := newTestAdapter(loader, nil)

		got, err := adapter.Recommend(context.Background(), seed, nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestLavalinkAdapter_Attempts(t *testing.T) {
	adapter := newLavalinkAdapter(LavalinkConfig{}, nil)
	guildID := snowflake.ID(1)

	var mu sync.Mutex
	var reasons []string
	record := func(name string) func(domain.TrackEndReason) {
		return func(reason domain.TrackEndReason) {
			mu.Lock()
			defer mu.Unlock()
			reasons = append(reasons, name+":"+string(reason))
		}
	}

	adapter.beginAttempt(guildID, playAttempt{encoded: "enc-a", onFinished: record("a")})
	adapter.beginAttempt(guildID, playAttempt{encoded: "enc-b", onFinished: record("b")})

	// A late end event of the replaced track does not finish the new attempt.
	assert.False(t, adapter.finishAttempt(guildID, "enc-a", domain.TrackEndStopped))
	assert.True(t, adapter.finishAttempt(guildID, "enc-b", domain.TrackEndFinished))
	// Each attempt finishes once.
	assert.False(t, adapter.finishAttempt(guildID, "enc-b", domain.TrackEndFinished))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a:replaced", "b:finished"}, reasons)
}

func TestLavalinkAdapter_DropAttempt(t *testing.T) {
	adapter := newLavalinkAdapter(LavalinkConfig{}, nil)
	guildID := snowflake.ID(1)
	called := false

	adapter.beginAttempt(guildID, playAttempt{encoded: "enc-a", onFinished: func(domain.TrackEndReason) { called = true }})
	adapter.dropAttempt(guildID, "enc-a")

	assert.False(t, adapter.finishAttempt(guildID, "", domain.TrackEndCleanup))
	assert.False(t, called)
}

func TestConvertEndReason(t *testing.T) {
	tests := []struct {
		in   lavalink.TrackEndReason
		want domain.TrackEndReason
	}{
		{lavalink.TrackEndReasonFinished, domain.TrackEndFinished},
		{lavalink.TrackEndReasonLoadFailed, domain.TrackEndLoadFailed},
		{lavalink.TrackEndReasonStopped, domain.TrackEndStopped},
		{lavalink.TrackEndReasonReplaced, domain.TrackEndReplaced},
		{lavalink.TrackEndReasonCleanup, domain.TrackEndCleanup},
	}

	for _, tt := range tests {
		if got := convertEndReason(tt.in); got != tt.want {
			t.Errorf("convertEndReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLavalinkAdapter_ConnectionID(t *testing.T) {
	adapter := newLavalinkAdapter(LavalinkConfig{}, nil)
	guildID := snowflake.ID(1)

	if got := adapter.ConnectionID(guildID); got != 0 {
		t.Fatalf("expected 0 before any connection, got %d", got)
	}

	adapter.markConnected(guildID, 10)
	first := adapter.ConnectionID(guildID)
	if first == 0 || !adapter.IsConnected(guildID) {
		t.Fatalf("expected a connection, got id %d", first)
	}

	adapter.mu.Lock()
	delete(adapter.connected, guildID)
	adapter.mu.Unlock()
	if got := adapter.ConnectionID(guildID); got != first {
		t.Errorf("expected id %d to survive the disconnect, got %d", first, got)
	}

	adapter.markConnected(guildID, 10)
	if got := adapter.ConnectionID(guildID); got == first {
		t.Errorf("expected a new id after reconnecting, got %d again", got)
	}
}
