package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/samber/lo"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

const (
	// voiceConnectionTimeout is the maximum time to wait for voice connection to be established.
	voiceConnectionTimeout = 10 * time.Second

	// relatedCandidates is how many related URLs are considered per recommendation.
	relatedCandidates = 10

	// Discord voice close codes that mean the bot is no longer in the channel.
	voiceCloseDisconnected = 4014
	voiceCloseSessionGone  = 4006
)

// Ensure LavalinkAdapter implements port interfaces.
var (
	_ ports.AudioSink = (*LavalinkAdapter)(nil)
	_ ports.Resolver  = (*LavalinkAdapter)(nil)
)

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
	Secure   bool

	// SearchSource is the search prefix for free-text queries.
	SearchSource domain.SearchSource
}

// playAttempt is the track most recently started in a guild.
type playAttempt struct {
	encoded    string
	onFinished ports.FinishFunc
}

type loadFunc func(ctx context.Context, identifier string) (*lavalink.LoadResult, error)

// LavalinkAdapter wraps DisGoLink as both the audio sink and the track
// resolver of the music player.
type LavalinkAdapter struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID
	config  LavalinkConfig
	related ports.RelatedSource
	load    loadFunc

	pendingMu sync.Mutex
	pending   map[snowflake.ID]*pendingVoiceConnection

	// voiceBuffers holds buffered voice events per guild to handle out-of-order events
	voiceBufferMu sync.Mutex
	voiceBuffers  map[snowflake.ID]*voiceEventBuffer

	mu            sync.Mutex
	connected     map[snowflake.ID]snowflake.ID
	connectionIDs map[snowflake.ID]uint64
	attempts      map[snowflake.ID]playAttempt
}

// NewLavalinkAdapter creates a new LavalinkAdapter and connects to the node.
// related may be nil, in which case recommendations fall back to searching
// for the seed's author.
func NewLavalinkAdapter(
	ctx context.Context,
	session *discordgo.Session,
	config LavalinkConfig,
	related ports.RelatedSource,
) (*LavalinkAdapter, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := newLavalinkAdapter(config, related)
	adapter.session = session
	adapter.botID = botID

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
		disgolink.WithListenerFunc(adapter.onWebSocketClosed),
	)
	adapter.link = link
	adapter.load = adapter.loadFromBestNode

	node, err := link.AddNode(ctx, disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

func newLavalinkAdapter(config LavalinkConfig, related ports.RelatedSource) *LavalinkAdapter {
	if config.SearchSource == "" {
		config.SearchSource = domain.SourceYouTube
	}
	return &LavalinkAdapter{
		config:       config,
		related:      related,
		pending:      make(map[snowflake.ID]*pendingVoiceConnection),
		voiceBuffers: make(map[snowflake.ID]*voiceEventBuffer),
		connected:     make(map[snowflake.ID]snowflake.ID),
		connectionIDs: make(map[snowflake.ID]uint64),
		attempts:      make(map[snowflake.ID]playAttempt),
	}
}

// Close closes the Lavalink client.
func (c *LavalinkAdapter) Close() {
	if c.link != nil {
		c.link.Close()
	}
}

// --- AudioSink ---

// Connect joins a voice channel.
// It waits for both VoiceStateUpdate and VoiceServerUpdate events before returning.
func (c *LavalinkAdapter) Connect(ctx context.Context, guildID, channelID snowflake.ID) error {
	pending := newPendingVoiceConnection()

	c.pendingMu.Lock()
	c.pending[guildID] = pending
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, guildID)
		c.pendingMu.Unlock()
	}()

	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, true)
	if err != nil {
		return fmt.Errorf("%w: failed to join voice channel: %w", domain.ErrNotConnected, err)
	}

	timer := time.NewTimer(voiceConnectionTimeout)
	defer timer.Stop()

	select {
	case <-pending.ready:
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: timeout waiting for voice connection", domain.ErrNotConnected)
	}

	c.markConnected(guildID, channelID)
	return nil
}

func (c *LavalinkAdapter) markConnected(guildID, channelID snowflake.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected[guildID] = channelID
	c.connectionIDs[guildID]++
}

// Disconnect destroys the player and leaves the voice channel.
func (c *LavalinkAdapter) Disconnect(ctx context.Context, guildID snowflake.ID) error {
	c.mu.Lock()
	delete(c.connected, guildID)
	c.mu.Unlock()
	c.finishAttempt(guildID, "", domain.TrackEndCleanup)

	if player := c.link.ExistingPlayer(guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}

	err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// IsConnected reports whether a voice connection is held for the guild.
func (c *LavalinkAdapter) IsConnected(guildID snowflake.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.connected[guildID]
	return ok
}

// ConnectionID returns the guild's connection counter. Gateway handlers read
// it before forwarding a voice state so that a disconnect can be matched to
// the connection it ended.
func (c *LavalinkAdapter) ConnectionID(guildID snowflake.ID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionIDs[guildID]
}

// Start plays a track, replacing the current one. Tracks without an
// encoded form are loaded from their stream URL first.
func (c *LavalinkAdapter) Start(
	ctx context.Context,
	guildID snowflake.ID,
	track domain.Track,
	onFinished ports.FinishFunc,
) error {
	if !c.IsConnected(guildID) {
		return domain.ErrNotConnected
	}

	encoded := track.Encoded
	if encoded == "" {
		loaded, err := c.Resolve(ctx, track.StreamURL)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrSinkStartFailed, err)
		}
		encoded = loaded.Encoded
	}

	c.beginAttempt(guildID, playAttempt{encoded: encoded, onFinished: onFinished})

	player := c.link.Player(guildID)
	if err := player.Update(ctx, lavalink.WithEncodedTrack(encoded), lavalink.WithPaused(false)); err != nil {
		c.dropAttempt(guildID, encoded)
		return fmt.Errorf("%w: %w", domain.ErrSinkStartFailed, err)
	}

	return nil
}

// Stop stops the current playback. The attempt finishes when Lavalink
// reports the track end.
func (c *LavalinkAdapter) Stop(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.ExistingPlayer(guildID)
	if player == nil {
		c.finishAttempt(guildID, "", domain.TrackEndStopped)
		return nil
	}

	if err := player.Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}

	return nil
}

// Pause pauses the current playback.
func (c *LavalinkAdapter) Pause(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithPaused(true)); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}

	return nil
}

// Resume resumes the current playback.
func (c *LavalinkAdapter) Resume(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithPaused(false)); err != nil {
		return fmt.Errorf("failed to resume playback: %w", err)
	}

	return nil
}

// beginAttempt records a new attempt. A replaced attempt finishes right away.
func (c *LavalinkAdapter) beginAttempt(guildID snowflake.ID, attempt playAttempt) {
	c.mu.Lock()
	previous, had := c.attempts[guildID]
	c.attempts[guildID] = attempt
	c.mu.Unlock()

	if had && previous.onFinished != nil {
		previous.onFinished(domain.TrackEndReplaced)
	}
}

// dropAttempt forgets an attempt that never started.
func (c *LavalinkAdapter) dropAttempt(guildID snowflake.ID, encoded string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if attempt, ok := c.attempts[guildID]; ok && attempt.encoded == encoded {
		delete(c.attempts, guildID)
	}
}

// finishAttempt ends the guild's attempt with reason. A non-empty encoded
// must match the attempt's track, so end events of replaced tracks are ignored.
func (c *LavalinkAdapter) finishAttempt(guildID snowflake.ID, encoded string, reason domain.TrackEndReason) bool {
	c.mu.Lock()
	attempt, ok := c.attempts[guildID]
	if !ok || (encoded != "" && attempt.encoded != encoded) {
		c.mu.Unlock()
		return false
	}
	delete(c.attempts, guildID)
	c.mu.Unlock()

	if attempt.onFinished != nil {
		attempt.onFinished(reason)
	}
	return true
}

// --- Resolver ---

// Resolve returns the best match for a query.
func (c *LavalinkAdapter) Resolve(ctx context.Context, query string) (domain.Track, error) {
	q := domain.ParseSearchQueryWithSource(query, c.config.SearchSource)
	if !q.IsValid() {
		return domain.Track{}, domain.ErrTrackNotFound
	}

	tracks, err := c.loadTracks(ctx, q.LavalinkQuery())
	if err != nil {
		return domain.Track{}, err
	}
	return tracks[0], nil
}

// ResolvePlaylist returns up to maxCount tracks. Playlists are sampled at
// random; search results keep their ranking.
func (c *LavalinkAdapter) ResolvePlaylist(ctx context.Context, query string, maxCount int) ([]domain.Track, error) {
	q := domain.ParseSearchQueryWithSource(query, c.config.SearchSource)
	if !q.IsValid() {
		return nil, domain.ErrTrackNotFound
	}
	if maxCount <= 0 {
		maxCount = 1
	}

	result, err := c.load(ctx, q.LavalinkQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	switch data := result.Data.(type) {
	case lavalink.Playlist:
		if len(data.Tracks) == 0 {
			return nil, domain.ErrTrackNotFound
		}
		return lo.Map(lo.Samples(data.Tracks, maxCount), convertTrack), nil
	default:
		tracks, err := convertLoadResult(result)
		if err != nil {
			return nil, err
		}
		if len(tracks) > maxCount {
			tracks = tracks[:maxCount]
		}
		return tracks, nil
	}
}

// Recommend returns a track related to seed that is not in excludeURLs.
func (c *LavalinkAdapter) Recommend(
	ctx context.Context,
	seed domain.Track,
	excludeURLs []string,
) (*domain.Track, error) {
	excluded := lo.SliceToMap(excludeURLs, func(u string) (string, struct{}) {
		return u, struct{}{}
	})
	excluded[seed.StreamURL] = struct{}{}
	isNew := func(t domain.Track) bool {
		_, seen := excluded[t.StreamURL]
		return !seen && t.Identifier != seed.Identifier
	}

	if c.related != nil && seed.Source().SupportsRelated() {
		urls, err := c.related.RelatedURLs(ctx, seed, relatedCandidates)
		if err != nil {
			slog.Warn("failed to list related tracks", "track", seed.Title, "error", err)
		}
		for _, u := range urls {
			if _, seen := excluded[u]; seen {
				continue
			}
			track, err := c.Resolve(ctx, u)
			if err != nil {
				slog.Debug("skipping unresolvable related track", "url", u, "error", err)
				continue
			}
			if isNew(track) {
				return &track, nil
			}
		}
	}

	if seed.Author == "" {
		return nil, nil
	}

	query := domain.SearchQuery{Query: seed.Author, Source: c.config.SearchSource}
	tracks, err := c.loadTracks(ctx, query.LavalinkQuery())
	if errors.Is(err, domain.ErrTrackNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if track, ok := lo.Find(tracks, isNew); ok {
		return &track, nil
	}
	return nil, nil
}

func (c *LavalinkAdapter) loadTracks(ctx context.Context, identifier string) ([]domain.Track, error) {
	result, err := c.load(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	return convertLoadResult(result)
}

func (c *LavalinkAdapter) loadFromBestNode(ctx context.Context, identifier string) (*lavalink.LoadResult, error) {
	node := c.link.BestNode()
	if node == nil {
		return nil, fmt.Errorf("no available Lavalink node")
	}
	return node.LoadTracks(ctx, identifier)
}

// convertLoadResult flattens a Lavalink result into tracks, best match first.
func convertLoadResult(result *lavalink.LoadResult) ([]domain.Track, error) {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return []domain.Track{convertTrack(data, 0)}, nil

	case lavalink.Playlist:
		if len(data.Tracks) == 0 {
			return nil, domain.ErrTrackNotFound
		}
		tracks := lo.Map(data.Tracks, convertTrack)
		if selected := data.Info.SelectedTrack; selected > 0 && selected < len(tracks) {
			tracks[0], tracks[selected] = tracks[selected], tracks[0]
		}
		return tracks, nil

	case lavalink.Search:
		if len(data) == 0 {
			return nil, domain.ErrTrackNotFound
		}
		return lo.Map(data, convertTrack), nil

	case lavalink.Exception:
		return nil, fmt.Errorf("%w: %s", domain.ErrResolutionFailed, data.Message)

	default:
		return nil, domain.ErrTrackNotFound
	}
}

// convertTrack converts a Lavalink track to a domain track.
func convertTrack(track lavalink.Track, _ int) domain.Track {
	info := track.Info

	return domain.Track{
		Identifier:   info.Identifier,
		Encoded:      track.Encoded,
		Title:        info.Title,
		Author:       info.Author,
		Duration:     time.Duration(info.Length) * time.Millisecond,
		StreamURL:    lo.FromPtr(info.URI),
		ThumbnailURL: lo.FromPtr(info.ArtworkURL),
		SourceName:   info.SourceName,
		IsStream:     info.IsStream,
	}
}

// --- Discord voice events ---

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	if update, ok := c.voiceBuffer(guildID).setVoiceServer(event.Token, event.Endpoint); ok {
		c.forwardVoiceUpdate(guildID, update)
	}

	c.signalPending(guildID, false)
}

// OnVoiceStateUpdate handles Discord voice state updates of the bot itself.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != c.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	// An empty channel means the bot is disconnecting; forward immediately.
	if event.ChannelID == "" {
		c.link.OnVoiceStateUpdate(context.Background(), guildID, nil, event.SessionID)
		c.clearVoiceBuffer(guildID)
		c.mu.Lock()
		delete(c.connected, guildID)
		c.mu.Unlock()
		return
	}

	channelID, err := snowflake.Parse(event.ChannelID)
	if err != nil {
		slog.Error("failed to parse channel ID in voice state update", "error", err)
		return
	}

	c.mu.Lock()
	if _, ok := c.connected[guildID]; ok {
		c.connected[guildID] = channelID
	}
	c.mu.Unlock()

	if update, ok := c.voiceBuffer(guildID).setVoiceState(&channelID, event.SessionID); ok {
		c.forwardVoiceUpdate(guildID, update)
	}

	c.signalPending(guildID, true)
}

func (c *LavalinkAdapter) signalPending(guildID snowflake.ID, isVoiceState bool) {
	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(isVoiceState)
	}
}

func (c *LavalinkAdapter) voiceBuffer(guildID snowflake.ID) *voiceEventBuffer {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()

	buffer, exists := c.voiceBuffers[guildID]
	if !exists {
		buffer = &voiceEventBuffer{}
		c.voiceBuffers[guildID] = buffer
	}
	return buffer
}

func (c *LavalinkAdapter) clearVoiceBuffer(guildID snowflake.ID) {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()
	delete(c.voiceBuffers, guildID)
}

func (c *LavalinkAdapter) forwardVoiceUpdate(guildID snowflake.ID, update voiceUpdate) {
	slog.Debug("forwarding buffered voice events to Lavalink",
		"guild", guildID,
		"channel", update.channelID,
		"hasSessionID", update.sessionID != "",
	)

	c.link.OnVoiceStateUpdate(context.Background(), guildID, update.channelID, update.sessionID)
	c.link.OnVoiceServerUpdate(context.Background(), guildID, update.token, update.endpoint)
}

// --- Lavalink events ---

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	// Replacements were already reported when the new track started.
	if event.Reason == lavalink.TrackEndReasonReplaced {
		return
	}
	c.finishAttempt(player.GuildID(), event.Track.Encoded, convertEndReason(event.Reason))
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)
	c.finishAttempt(player.GuildID(), event.Track.Encoded, domain.TrackEndStuck)
}

func (c *LavalinkAdapter) onWebSocketClosed(player disgolink.Player, event lavalink.WebSocketClosedEvent) {
	slog.Warn("voice websocket closed",
		"guild", player.GuildID(),
		"code", event.Code,
		"reason", event.Reason,
		"by_remote", event.ByRemote,
	)

	if event.Code != voiceCloseDisconnected && event.Code != voiceCloseSessionGone {
		return
	}

	c.mu.Lock()
	delete(c.connected, player.GuildID())
	c.mu.Unlock()
	c.finishAttempt(player.GuildID(), "", domain.TrackEndDisconnected)
}

func convertEndReason(reason lavalink.TrackEndReason) domain.TrackEndReason {
	switch reason {
	case lavalink.TrackEndReasonFinished:
		return domain.TrackEndFinished
	case lavalink.TrackEndReasonLoadFailed:
		return domain.TrackEndLoadFailed
	case lavalink.TrackEndReasonStopped:
		return domain.TrackEndStopped
	case lavalink.TrackEndReasonReplaced:
		return domain.TrackEndReplaced
	case lavalink.TrackEndReasonCleanup:
		return domain.TrackEndCleanup
	default:
		return domain.TrackEndStopped
	}
}
