package usecases

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/session"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

const (
	testGuild        = snowflake.ID(1)
	testVoiceChannel = snowflake.ID(10)
	otherVoice       = snowflake.ID(11)
	testTextChannel  = snowflake.ID(20)
	testUser         = snowflake.ID(100)
	otherUser        = snowflake.ID(101)
)

// mockVoiceStateProvider maps users to the voice channel they sit in.
type mockVoiceStateProvider struct {
	mu       sync.Mutex
	channels map[snowflake.ID]snowflake.ID
}

func newMockVoiceStateProvider() *mockVoiceStateProvider {
	return &mockVoiceStateProvider{channels: make(map[snowflake.ID]snowflake.ID)}
}

func (m *mockVoiceStateProvider) GetUserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[userID], nil
}

func (m *mockVoiceStateProvider) join(userID, channelID snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[userID] = channelID
}

// mockAudioSink accepts everything and remembers what it played.
type mockAudioSink struct {
	mu          sync.Mutex
	connected   map[snowflake.ID]snowflake.ID
	connections map[snowflake.ID]uint64
	started     []string
	paused      bool
}

func newMockAudioSink() *mockAudioSink {
	return &mockAudioSink{
		connected:   make(map[snowflake.ID]snowflake.ID),
		connections: make(map[snowflake.ID]uint64),
	}
}

func (m *mockAudioSink) Connect(_ context.Context, guildID, channelID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected[guildID] = channelID
	m.connections[guildID]++
	return nil
}

func (m *mockAudioSink) ConnectionID(guildID snowflake.ID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections[guildID]
}

func (m *mockAudioSink) Start(_ context.Context, _ snowflake.ID, track domain.Track, _ ports.FinishFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, track.Title)
	return nil
}

func (m *mockAudioSink) Pause(context.Context, snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	return nil
}

func (m *mockAudioSink) Resume(context.Context, snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	return nil
}

func (m *mockAudioSink) Stop(context.Context, snowflake.ID) error { return nil }

func (m *mockAudioSink) Disconnect(_ context.Context, guildID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connected, guildID)
	return nil
}

func (m *mockAudioSink) IsConnected(guildID snowflake.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.connected[guildID]
	return ok
}

func (m *mockAudioSink) startedTitles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.started...)
}

// mockResolver resolves a query to a track titled after it. A playlist
// query is a comma separated list of titles.
type mockResolver struct {
	mu           sync.Mutex
	lastMaxCount int
}

func mockTrack(title string) domain.Track {
	return domain.Track{
		Title:     title,
		Encoded:   "enc-" + title,
		StreamURL: "https://example.com/" + title,
		Duration:  3 * time.Minute,
	}
}

func (m *mockResolver) Resolve(_ context.Context, query string) (domain.Track, error) {
	if strings.HasPrefix(query, "missing") {
		return domain.Track{}, domain.ErrTrackNotFound
	}
	return mockTrack(query), nil
}

func (m *mockResolver) ResolvePlaylist(_ context.Context, query string, maxCount int) ([]domain.Track, error) {
	m.mu.Lock()
	m.lastMaxCount = maxCount
	m.mu.Unlock()

	titles := strings.Split(query, ",")
	if len(titles) > maxCount {
		titles = titles[:maxCount]
	}
	tracks := make([]domain.Track, len(titles))
	for i, title := range titles {
		tracks[i] = mockTrack(title)
	}
	return tracks, nil
}

func (m *mockResolver) Recommend(context.Context, domain.Track, []string) (*domain.Track, error) {
	return nil, nil
}

type fixture struct {
	registry   *session.Registry
	sink       *mockAudioSink
	resolver   *mockResolver
	voiceState *mockVoiceStateProvider
	playback   *PlaybackService
	queue      *QueueService
	voice      *VoiceChannelService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.MonitorInterval = 0

	f := &fixture{
		sink:       newMockAudioSink(),
		resolver:   &mockResolver{},
		voiceState: newMockVoiceStateProvider(),
	}
	f.registry = session.NewRegistry(session.Dependencies{
		Sink:     f.sink,
		Resolver: f.resolver,
	}, cfg)
	t.Cleanup(f.registry.Shutdown)

	f.playback = NewPlaybackService(f.registry, f.voiceState, 0)
	f.queue = NewQueueService(f.registry, f.playback)
	f.voice = NewVoiceChannelService(f.registry)

	f.voiceState.join(testUser, testVoiceChannel)
	return f
}

func (f *fixture) play(t *testing.T, query string) *PlayOutput {
	t.Helper()

	out, err := f.playback.Play(context.Background(), PlayInput{
		GuildID:               testGuild,
		UserID:                testUser,
		NotificationChannelID: testTextChannel,
		Query:                 query,
	})
	if err != nil {
		t.Fatalf("Play(%q) failed: %v", query, err)
	}
	return out
}

func controlInput() ControlInput {
	return ControlInput{
		GuildID:               testGuild,
		UserID:                testUser,
		NotificationChannelID: testTextChannel,
	}
}
