package application

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
	"golang.org/x/time/rate"
)

// NotificationEventHandler keeps one "Now Playing" message per guild in
// step with session events.
type NotificationEventHandler struct {
	subscriber       ports.EventSubscriber
	notifier         ports.NotificationSender
	userInfoProvider ports.UserInfoProvider
	editInterval     time.Duration

	mu         sync.Mutex
	nowPlaying map[snowflake.ID]*nowPlayingEntry
}

type nowPlayingEntry struct {
	message domain.NowPlayingMessage
	info    ports.NowPlayingInfo
	limiter *rate.Limiter
}

// NewNotificationEventHandler creates a new NotificationEventHandler.
// Progress edits of one message are spaced at least editInterval apart.
func NewNotificationEventHandler(
	subscriber ports.EventSubscriber,
	notifier ports.NotificationSender,
	userInfoProvider ports.UserInfoProvider,
	editInterval time.Duration,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		subscriber:       subscriber,
		notifier:         notifier,
		userInfoProvider: userInfoProvider,
		editInterval:     editInterval,
		nowPlaying:       make(map[snowflake.ID]*nowPlayingEntry),
	}
}

// Start registers event handlers with the subscriber.
func (h *NotificationEventHandler) Start() error {
	handlers := map[reflect.Type]func(context.Context, domain.Event){
		reflect.TypeFor[domain.TrackEnqueuedEvent](): func(ctx context.Context, e domain.Event) {
			h.handleTrackEnqueued(ctx, e.(domain.TrackEnqueuedEvent))
		},
		reflect.TypeFor[domain.PlaybackStartedEvent](): func(ctx context.Context, e domain.Event) {
			h.handlePlaybackStarted(ctx, e.(domain.PlaybackStartedEvent))
		},
		reflect.TypeFor[domain.PlaybackStateChangedEvent](): func(ctx context.Context, e domain.Event) {
			h.handleStateChanged(ctx, e.(domain.PlaybackStateChangedEvent))
		},
		reflect.TypeFor[domain.ProgressUpdatedEvent](): func(ctx context.Context, e domain.Event) {
			h.handleProgressUpdated(ctx, e.(domain.ProgressUpdatedEvent))
		},
		reflect.TypeFor[domain.TrackFinishedEvent](): func(ctx context.Context, e domain.Event) {
			h.handleTrackFinished(ctx, e.(domain.TrackFinishedEvent))
		},
		reflect.TypeFor[domain.TrackFailedEvent](): func(ctx context.Context, e domain.Event) {
			h.handleTrackFailed(ctx, e.(domain.TrackFailedEvent))
		},
		reflect.TypeFor[domain.SessionStoppedEvent](): func(ctx context.Context, e domain.Event) {
			h.handleSessionStopped(ctx, e.(domain.SessionStoppedEvent))
		},
	}

	for eventType, handler := range handlers {
		if err := h.subscriber.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}
	}

	slog.Debug("notification event handlers properly registered")

	return nil
}

// NowPlaying returns the tracked "Now Playing" message of a guild.
func (h *NotificationEventHandler) NowPlaying(guildID snowflake.ID) (domain.NowPlayingMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.nowPlaying[guildID]
	if !ok {
		return domain.NowPlayingMessage{}, false
	}
	return entry.message, true
}

func (h *NotificationEventHandler) handleTrackEnqueued(_ context.Context, event domain.TrackEnqueuedEvent) {
	if event.NotificationChannelID == 0 {
		return
	}

	err := h.notifier.SendQueueAdded(event.NotificationChannelID, &ports.QueueAddedInfo{
		Title:    event.Track.Title,
		URI:      event.Track.StreamURL,
		Position: event.Position,
	})
	if err != nil {
		slog.Warn(
			"failed to send queue added notification",
			"guild", event.GuildID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) handlePlaybackStarted(_ context.Context, event domain.PlaybackStartedEvent) {
	h.deleteNowPlaying(event.GuildID)

	if event.NotificationChannelID == 0 {
		return
	}

	slog.Debug(
		"sending now playing notification",
		"guild", event.GuildID,
		"track", event.Track.Title,
	)

	info := h.buildInfo(event.GuildID, event.Track)
	info.Recommended = event.Recommended

	messageID, err := h.notifier.SendNowPlaying(event.NotificationChannelID, &info)
	if err != nil {
		slog.Error(
			"failed to send now playing notification",
			"guild", event.GuildID,
			"error", err,
		)
		return
	}

	h.mu.Lock()
	h.nowPlaying[event.GuildID] = &nowPlayingEntry{
		message: domain.NewNowPlayingMessage(event.NotificationChannelID, messageID, event.Track),
		info:    info,
		limiter: h.newLimiter(),
	}
	h.mu.Unlock()
}

func (h *NotificationEventHandler) handleStateChanged(_ context.Context, event domain.PlaybackStateChangedEvent) {
	h.update(event.GuildID, event.Progress, true)
}

func (h *NotificationEventHandler) handleProgressUpdated(_ context.Context, event domain.ProgressUpdatedEvent) {
	h.update(event.GuildID, event.Progress, false)
}

func (h *NotificationEventHandler) handleTrackFinished(_ context.Context, event domain.TrackFinishedEvent) {
	slog.Debug(
		"track finished, removing now playing message",
		"guild", event.GuildID,
		"reason", event.Reason,
	)
	h.deleteNowPlaying(event.GuildID)
}

func (h *NotificationEventHandler) handleTrackFailed(_ context.Context, event domain.TrackFailedEvent) {
	if event.NotificationChannelID == 0 {
		return
	}

	message := fmt.Sprintf("Could not play **%s**, skipping.", event.Track.Title)
	if err := h.notifier.SendError(event.NotificationChannelID, message); err != nil {
		slog.Warn(
			"failed to send track failure notification",
			"guild", event.GuildID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) handleSessionStopped(_ context.Context, event domain.SessionStoppedEvent) {
	h.deleteNowPlaying(event.GuildID)

	message := stopMessage(event.Reason)
	if message == "" || event.NotificationChannelID == 0 {
		return
	}
	if err := h.notifier.SendInfo(event.NotificationChannelID, message); err != nil {
		slog.Warn(
			"failed to send session stopped notification",
			"guild", event.GuildID,
			"error", err,
		)
	}
}

// update edits the tracked message with new progress. Forced edits bypass
// the per-message rate limit.
func (h *NotificationEventHandler) update(guildID snowflake.ID, progress domain.ProgressSnapshot, force bool) {
	h.mu.Lock()
	entry, ok := h.nowPlaying[guildID]
	if !ok || (!force && !entry.limiter.Allow()) {
		h.mu.Unlock()
		return
	}
	entry.info.Elapsed = progress.Elapsed
	entry.info.Paused = progress.IsPaused
	if progress.Duration > 0 {
		entry.info.Duration = progress.Duration
	}
	info := entry.info
	message := entry.message
	h.mu.Unlock()

	if err := h.notifier.UpdateNowPlaying(message.ChannelID, message.MessageID, &info); err != nil {
		slog.Warn(
			"failed to update now playing message",
			"guild", guildID,
			"message_id", message.MessageID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) deleteNowPlaying(guildID snowflake.ID) {
	h.mu.Lock()
	entry, ok := h.nowPlaying[guildID]
	delete(h.nowPlaying, guildID)
	h.mu.Unlock()

	if !ok {
		return
	}

	if err := h.notifier.DeleteMessage(entry.message.ChannelID, entry.message.MessageID); err != nil {
		slog.Warn(
			"failed to delete now playing message",
			"guild", guildID,
			"now_playing", entry.message.MessageID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) buildInfo(guildID snowflake.ID, track domain.Track) ports.NowPlayingInfo {
	info := ports.NowPlayingInfo{
		GuildID:    guildID,
		Identifier: track.Identifier,
		Title:      track.Title,
		Author:     track.Author,
		URI:        track.StreamURL,
		ArtworkURL: track.ThumbnailURL,
		SourceName: track.SourceName,
		IsStream:   track.IsStream,
		EnqueuedAt: track.EnqueuedAt,
		Duration:   track.Duration,
	}

	if h.userInfoProvider == nil || track.RequesterID == 0 {
		return info
	}

	userInfo, err := h.userInfoProvider.GetUserInfo(guildID, track.RequesterID)
	if err != nil {
		slog.Warn(
			"failed to fetch requester info for now playing",
			"guild", guildID,
			"requester", track.RequesterID,
			"error", err,
		)
		info.RequesterName = "Unknown"
		return info
	}
	info.RequesterName = userInfo.DisplayName
	info.RequesterAvatarURL = userInfo.AvatarURL
	return info
}

func (h *NotificationEventHandler) newLimiter() *rate.Limiter {
	if h.editInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(h.editInterval), 1)
}

func stopMessage(reason domain.StopReason) string {
	switch reason {
	case domain.StopReasonEmptyChannel:
		return "Everyone left the voice channel, so I stopped playing."
	case domain.StopReasonIdle:
		return "The queue has been empty for a while, so I left the voice channel."
	case domain.StopReasonDisconnected:
		return "I was disconnected from the voice channel."
	case domain.StopReasonRecovery:
		return "I could not resume playback after restarting."
	default:
		return ""
	}
}
