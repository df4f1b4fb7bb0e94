package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/require"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

const (
	testGuild        = snowflake.ID(100)
	testVoiceChannel = snowflake.ID(200)
	testTextChannel  = snowflake.ID(300)
	testUser         = snowflake.ID(400)
)

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSink records calls and hands finish callbacks back to tests.
type fakeSink struct {
	mu          sync.Mutex
	connected   map[snowflake.ID]snowflake.ID
	connections map[snowflake.ID]uint64
	started     []domain.Track
	finishers   []ports.FinishFunc
	pauses      int
	resumes     int
	stops       int
	disconnects int
	connectErr  error
	startErr    func(domain.Track) error
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		connected:   make(map[snowflake.ID]snowflake.ID),
		connections: make(map[snowflake.ID]uint64),
	}
}

func (f *fakeSink) Connect(_ context.Context, guildID, channelID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected[guildID] = channelID
	f.connections[guildID]++
	return nil
}

func (f *fakeSink) ConnectionID(guildID snowflake.ID) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connections[guildID]
}

func (f *fakeSink) Start(_ context.Context, _ snowflake.ID, track domain.Track, onFinished ports.FinishFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		if err := f.startErr(track); err != nil {
			return err
		}
	}
	f.started = append(f.started, track)
	f.finishers = append(f.finishers, onFinished)
	return nil
}

func (f *fakeSink) Pause(context.Context, snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeSink) Resume(context.Context, snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return nil
}

func (f *fakeSink) Stop(context.Context, snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSink) Disconnect(_ context.Context, guildID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	delete(f.connected, guildID)
	return nil
}

func (f *fakeSink) IsConnected(guildID snowflake.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.connected[guildID]
	return ok
}

func (f *fakeSink) startedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	titles := make([]string, len(f.started))
	for i, track := range f.started {
		titles[i] = track.Title
	}
	return titles
}

// finish fires the finish callback of the n-th started track (0-based).
func (f *fakeSink) finish(n int, reason domain.TrackEndReason) {
	f.mu.Lock()
	fn := f.finishers[n]
	f.mu.Unlock()
	fn(reason)
}

func (f *fakeSink) counts() (pauses, resumes, stops, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses, f.resumes, f.stops, f.disconnects
}

// fakeResolver resolves any query to a track titled after it. Queries
// starting with "missing" are not found.
type fakeResolver struct {
	mu          sync.Mutex
	recommend   func(seed domain.Track, exclude []string) *domain.Track
	excludeSeen []string
}

func testTrack(title string) domain.Track {
	return domain.Track{
		Title:     title,
		Author:    "artist",
		Encoded:   "enc-" + title,
		StreamURL: "https://example.com/" + title,
		Duration:  180 * time.Second,
	}
}

func (f *fakeResolver) Resolve(_ context.Context, query string) (domain.Track, error) {
	if strings.HasPrefix(query, "missing") {
		return domain.Track{}, domain.ErrTrackNotFound
	}
	return testTrack(query), nil
}

func (f *fakeResolver) ResolvePlaylist(_ context.Context, query string, maxCount int) ([]domain.Track, error) {
	if strings.HasPrefix(query, "missing") {
		return nil, domain.ErrTrackNotFound
	}
	titles := strings.Split(query, ",")
	if len(titles) > maxCount {
		titles = titles[:maxCount]
	}
	tracks := make([]domain.Track, len(titles))
	for i, title := range titles {
		tracks[i] = testTrack(title)
	}
	return tracks, nil
}

func (f *fakeResolver) Recommend(_ context.Context, seed domain.Track, exclude []string) (*domain.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.excludeSeen = append([]string(nil), exclude...)
	if f.recommend == nil {
		return nil, nil
	}
	return f.recommend(seed, exclude), nil
}

// fakeStore keeps snapshots in memory and can be told to fail.
type fakeStore struct {
	mu        sync.Mutex
	snapshots map[snowflake.ID]domain.SessionSnapshot
	saves     int
	failSave  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[snowflake.ID]domain.SessionSnapshot)}
}

func (f *fakeStore) Save(_ context.Context, snap domain.SessionSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("store unavailable")
	}
	f.saves++
	f.snapshots[snap.GuildID] = snap
	return nil
}

func (f *fakeStore) Load(_ context.Context, guildID snowflake.ID) (*domain.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snapshots[guildID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (f *fakeStore) Delete(_ context.Context, guildID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snapshots, guildID)
	return nil
}

func (f *fakeStore) List(context.Context) ([]snowflake.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]snowflake.ID, 0, len(f.snapshots))
	for id := range f.snapshots {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) has(guildID snowflake.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.snapshots[guildID]
	return ok
}

// fakeMembership reports a fixed listener count.
type fakeMembership struct {
	mu    sync.Mutex
	count int
}

func (f *fakeMembership) ListenerCount(snowflake.ID, snowflake.ID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeMembership) set(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count = count
}

// recordingPublisher stores every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func eventsOf[T domain.Event](p *recordingPublisher) []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []T
	for _, e := range p.events {
		if typed, ok := e.(T); ok {
			result = append(result, typed)
		}
	}
	return result
}

type testEnv struct {
	registry   *Registry
	sink       *fakeSink
	resolver   *fakeResolver
	store      *fakeStore
	membership *fakeMembership
	publisher  *recordingPublisher
	clock      *fakeClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MonitorInterval = 0
	return cfg
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	env := &testEnv{
		sink:       newFakeSink(),
		resolver:   &fakeResolver{},
		store:      newFakeStore(),
		membership: &fakeMembership{count: 1},
		publisher:  &recordingPublisher{},
		clock:      newFakeClock(),
	}
	env.registry = NewRegistry(Dependencies{
		Sink:       env.sink,
		Resolver:   env.resolver,
		Store:      env.store,
		Membership: env.membership,
		Publisher:  env.publisher,
		Clock:      env.clock,
	}, cfg)
	t.Cleanup(env.registry.Shutdown)

	return env
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func (e *testEnv) play(t *testing.T, query string) EnqueueResult {
	t.Helper()

	var result EnqueueResult
	err := e.registry.Submit(testContext(t), testGuild, func(ctx context.Context, s *Session) error {
		if err := s.Bind(testVoiceChannel, testTextChannel); err != nil {
			return err
		}
		var err error
		result, err = s.Play(ctx, query, testUser)
		return err
	})
	require.NoError(t, err)
	return result
}

func (e *testEnv) do(t *testing.T, cmd Command) error {
	t.Helper()
	return e.registry.SubmitExisting(testContext(t), testGuild, cmd)
}

func (e *testEnv) queue(t *testing.T) domain.QueueSnapshot {
	t.Helper()

	var snap domain.QueueSnapshot
	require.NoError(t, e.do(t, func(_ context.Context, s *Session) error {
		snap = s.QueueSnapshot(0)
		return nil
	}))
	return snap
}

func (e *testEnv) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, e.do(t, func(ctx context.Context, s *Session) error {
		s.Tick(ctx)
		return nil
	}))
}

func currentTitle(snap domain.QueueSnapshot) string {
	if snap.Current == nil {
		return ""
	}
	return snap.Current.Title
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
