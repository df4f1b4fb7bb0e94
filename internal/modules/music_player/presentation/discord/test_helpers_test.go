package discord

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/bot"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/session"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

const (
	testGuild        = snowflake.ID(1)
	testVoiceChannel = snowflake.ID(10)
	testTextChannel  = snowflake.ID(20)
	testUser         = snowflake.ID(100)
	testBot          = snowflake.ID(900)
)

// fakeVoiceState maps users to the voice channel they sit in.
type fakeVoiceState struct {
	mu       sync.Mutex
	channels map[snowflake.ID]snowflake.ID
}

func (f *fakeVoiceState) GetUserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[userID], nil
}

func (f *fakeVoiceState) join(userID, channelID snowflake.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[userID] = channelID
}

// fakeSink accepts every call and tracks connections.
type fakeSink struct {
	mu          sync.Mutex
	connected   map[snowflake.ID]bool
	connections map[snowflake.ID]uint64

	// onConnect runs inside Connect before the connection is established,
	// where gateway events for the guild may still arrive.
	onConnect func(guildID snowflake.ID)
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		connected:   make(map[snowflake.ID]bool),
		connections: make(map[snowflake.ID]uint64),
	}
}

func (f *fakeSink) Connect(_ context.Context, guildID, _ snowflake.ID) error {
	if f.onConnect != nil {
		f.onConnect(guildID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected[guildID] = true
	f.connections[guildID]++
	return nil
}

func (f *fakeSink) ConnectionID(guildID snowflake.ID) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connections[guildID]
}

func (f *fakeSink) Start(context.Context, snowflake.ID, domain.Track, ports.FinishFunc) error {
	return nil
}

func (f *fakeSink) Pause(context.Context, snowflake.ID) error  { return nil }
func (f *fakeSink) Resume(context.Context, snowflake.ID) error { return nil }
func (f *fakeSink) Stop(context.Context, snowflake.ID) error   { return nil }

func (f *fakeSink) Disconnect(_ context.Context, guildID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.connected, guildID)
	return nil
}

func (f *fakeSink) IsConnected(guildID snowflake.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[guildID]
}

// fakeResolver resolves every query to a three minute track named after it.
// The query "missing" resolves to nothing.
type fakeResolver struct{}

func fakeTrack(title string) domain.Track {
	return domain.Track{
		Title:      title,
		Author:     "Artist",
		Encoded:    "enc-" + title,
		StreamURL:  "https://example.com/" + title,
		Duration:   3 * time.Minute,
		SourceName: "youtube",
	}
}

func (fakeResolver) Resolve(_ context.Context, query string) (domain.Track, error) {
	if query == "missing" {
		return domain.Track{}, domain.ErrTrackNotFound
	}
	return fakeTrack(query), nil
}

func (fakeResolver) ResolvePlaylist(_ context.Context, query string, maxCount int) ([]domain.Track, error) {
	tracks := make([]domain.Track, 0, maxCount)
	for i := range maxCount {
		tracks = append(tracks, fakeTrack(query+"-"+string(rune('a'+i))))
	}
	return tracks, nil
}

func (fakeResolver) Recommend(context.Context, domain.Track, []string) (*domain.Track, error) {
	return nil, nil
}

// fixture wires real services over a session registry with fake adapters.
type fixture struct {
	voice    *fakeVoiceState
	sink     *fakeSink
	registry *session.Registry
	handlers *CommandHandlers
	events   *EventHandlers
	fwd      *fakeForwarder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		voice: &fakeVoiceState{channels: make(map[snowflake.ID]snowflake.ID)},
		sink:  newFakeSink(),
	}
	f.fwd = &fakeForwarder{sink: f.sink}

	config := session.DefaultConfig()
	config.MonitorInterval = 0
	f.registry = session.NewRegistry(session.Dependencies{
		Sink:     f.sink,
		Resolver: fakeResolver{},
	}, config)
	t.Cleanup(f.registry.Shutdown)

	playback := usecases.NewPlaybackService(f.registry, f.voice, usecases.MaxPlaylistCount)
	queue := usecases.NewQueueService(f.registry, playback)
	f.handlers = NewCommandHandlers(playback, queue)
	f.events = NewEventHandlers(testBot, f.fwd, usecases.NewVoiceChannelService(f.registry))

	return f
}

// fakeForwarder records forwarded voice events. Like the real adapter it
// reports the sink's connection ids and drops the connection when the bot
// leaves voice.
type fakeForwarder struct {
	sink *fakeSink

	mu      sync.Mutex
	servers int
	states  int
}

func (f *fakeForwarder) ConnectionID(guildID snowflake.ID) uint64 {
	return f.sink.ConnectionID(guildID)
}

func (f *fakeForwarder) OnVoiceServerUpdate(*discordgo.VoiceServerUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers++
}

func (f *fakeForwarder) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	f.mu.Lock()
	f.states++
	f.mu.Unlock()

	if event.UserID == testBot.String() && event.ChannelID == "" {
		if guildID, err := snowflake.Parse(event.GuildID); err == nil {
			f.sink.mu.Lock()
			delete(f.sink.connected, guildID)
			f.sink.mu.Unlock()
		}
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

func boolOption(name string, value bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionBoolean,
		Value: value,
	}
}

func subcommand(
	name string,
	options ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: options,
	}
}

func interaction(
	name string,
	options ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   testGuild.String(),
			ChannelID: testTextChannel.String(),
			Member: &discordgo.Member{
				User: &discordgo.User{ID: testUser.String()},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

// run invokes handler and returns the single embed it answered with.
func run(t *testing.T, handler bot.InteractionHandler, i *discordgo.InteractionCreate) *discordgo.MessageEmbed {
	t.Helper()

	r := &bot.MockResponder{}
	if err := handler(nil, i, r); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	embeds := r.Embeds()
	if len(embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(embeds))
	}
	return embeds[0]
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
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
