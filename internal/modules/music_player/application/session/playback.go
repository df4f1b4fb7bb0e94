package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// EnqueueResult describes the effect of adding tracks to a session.
type EnqueueResult struct {
	// Started is the track that began playing because the session was idle.
	Started *domain.Track
	// Queued are the tracks left waiting in the queue.
	Queued []domain.Track
	// FirstPosition is the 1-based queue position of Queued[0].
	FirstPosition int
}

// SkipResult describes the effect of a skip.
type SkipResult struct {
	Skipped domain.Track
	Next    *domain.Track
}

// Status returns the playback status.
func (s *Session) Status() domain.PlaybackStatus {
	return s.state.Status()
}

// Bind records the channels a command came from. Joining a session that is
// already playing into another voice channel is rejected.
func (s *Session) Bind(voiceChannelID, notificationChannelID snowflake.ID) error {
	current := s.state.VoiceChannelID()
	if voiceChannelID != 0 && current != 0 && current != voiceChannelID &&
		s.deps.Sink.IsConnected(s.guildID) {
		return domain.ErrDifferentVoiceChannel
	}

	if voiceChannelID != 0 && (current == 0 || !s.deps.Sink.IsConnected(s.guildID)) {
		s.state.SetVoiceChannelID(voiceChannelID)
	}
	if notificationChannelID != 0 {
		s.state.SetNotificationChannelID(notificationChannelID)
	}
	return nil
}

// Relocate follows the bot after it was moved to another voice channel.
func (s *Session) Relocate(ctx context.Context, channelID snowflake.ID) {
	if channelID == 0 || channelID == s.state.VoiceChannelID() {
		return
	}
	s.state.SetVoiceChannelID(channelID)
	s.emptySince = time.Time{}
	s.persist(ctx)
}

// HandleVoiceLost stops the session after the bot left voice, provided
// connectionID names the sink's current connection. A disconnect that
// belongs to an earlier connection, such as the echo of this guild's previous
// Stop, is ignored. It reports whether the session was stopped.
func (s *Session) HandleVoiceLost(ctx context.Context, connectionID uint64) bool {
	current := s.deps.Sink.ConnectionID(s.guildID)
	if connectionID == 0 || connectionID != current {
		slog.Debug("discarding stale voice disconnect",
			"guild", s.guildID,
			"connection", connectionID,
			"current_connection", current,
		)
		return false
	}

	slog.Info("bot left voice channel, stopping session", "guild", s.guildID)
	s.Stop(ctx, domain.StopReasonDisconnected)
	return true
}

// VoiceChannelID returns the bound listener channel.
func (s *Session) VoiceChannelID() snowflake.ID {
	return s.state.VoiceChannelID()
}

// Play resolves query and enqueues the result.
func (s *Session) Play(ctx context.Context, query string, requesterID snowflake.ID) (EnqueueResult, error) {
	track, err := s.deps.Resolver.Resolve(ctx, query)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("%w: %w", domain.ErrResolutionFailed, err)
	}

	return s.Enqueue(ctx, track.WithRequester(requesterID, s.now()))
}

// PlayPlaylist resolves up to maxCount tracks for query and enqueues them.
func (s *Session) PlayPlaylist(
	ctx context.Context,
	query string,
	maxCount int,
	requesterID snowflake.ID,
) (EnqueueResult, error) {
	tracks, err := s.deps.Resolver.ResolvePlaylist(ctx, query, maxCount)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("%w: %w", domain.ErrResolutionFailed, err)
	}
	if len(tracks) == 0 {
		return EnqueueResult{}, fmt.Errorf("%w: %w", domain.ErrResolutionFailed, domain.ErrTrackNotFound)
	}

	now := s.now()
	for i := range tracks {
		tracks[i] = tracks[i].WithRequester(requesterID, now)
	}
	return s.Enqueue(ctx, tracks...)
}

// Enqueue appends tracks. If the session is idle the first queued track
// starts immediately; otherwise the tracks only wait in the queue.
func (s *Session) Enqueue(ctx context.Context, tracks ...domain.Track) (EnqueueResult, error) {
	var result EnqueueResult
	if len(tracks) == 0 {
		return result, nil
	}

	wasIdle := s.state.Status() == domain.StatusIdle
	base := s.state.Queue().Len()
	s.state.Queue().Enqueue(tracks...)

	queued := tracks
	if wasIdle {
		started, err := s.startNext(ctx)
		if err != nil {
			s.Stop(ctx, domain.StopReasonDisconnected)
			return result, err
		}
		if started {
			current, _ := s.state.Current()
			result.Started = &current
		}
		// Only the tracks passed in are announced. Tracks that were already
		// waiting, such as a recovered queue, keep their earlier announcement.
		remaining := s.state.Queue().Snapshot(0)
		n := min(len(tracks), len(remaining))
		queued = remaining[len(remaining)-n:]
		base = len(remaining) - n
	}

	result.Queued = queued
	result.FirstPosition = base + 1
	for i, track := range queued {
		s.publish(domain.TrackEnqueuedEvent{
			GuildID:               s.guildID,
			NotificationChannelID: s.state.NotificationChannelID(),
			Track:                 track,
			Position:              base + i + 1,
		})
	}

	if wasIdle && result.Started == nil {
		s.afterQueueExhausted(ctx, nil)
	}

	s.persist(ctx)
	return result, nil
}

// Pause pauses playback. It is only valid while playing.
func (s *Session) Pause(ctx context.Context) error {
	if s.state.Status() != domain.StatusPlaying {
		return fmt.Errorf("%w: cannot pause while %s", domain.ErrInvalidStateTransition, s.state.Status())
	}
	if err := s.deps.Sink.Pause(ctx, s.guildID); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}
	if err := s.state.Pause(s.now()); err != nil {
		return err
	}

	s.publishStateChange()
	s.persist(ctx)
	return nil
}

// Resume resumes paused playback.
func (s *Session) Resume(ctx context.Context) error {
	if s.state.Status() != domain.StatusPaused {
		return fmt.Errorf("%w: cannot resume while %s", domain.ErrInvalidStateTransition, s.state.Status())
	}
	if err := s.deps.Sink.Resume(ctx, s.guildID); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	if err := s.state.Resume(s.now()); err != nil {
		return err
	}

	s.publishStateChange()
	s.persist(ctx)
	return nil
}

// Skip ends the current track early and continues exactly as if it had
// finished on its own.
func (s *Session) Skip(ctx context.Context) (SkipResult, error) {
	if !s.state.IsActive() {
		return SkipResult{}, fmt.Errorf("%w: nothing to skip while %s",
			domain.ErrInvalidStateTransition, s.state.Status())
	}

	skipped, err := s.endCurrent(ctx, domain.TrackEndSkipped)
	if err != nil {
		return SkipResult{}, err
	}

	result := SkipResult{Skipped: skipped}
	if next, ok := s.state.Current(); ok {
		result.Next = &next
	}
	return result, nil
}

// Stop tears the session down: the monitor is cancelled, the sink is
// stopped and disconnected, the queue is cleared, the stored snapshot is
// deleted and the session leaves the registry. Stopping twice is a no-op.
func (s *Session) Stop(ctx context.Context, reason domain.StopReason) {
	if s.state.Status() == domain.StatusStopped {
		return
	}

	s.cancel()
	s.monitorWG.Wait()

	s.state.Stop()

	cleanupCtx, cancel := s.cleanupContext(ctx)
	defer cancel()

	if s.deps.Sink.IsConnected(s.guildID) {
		if err := s.deps.Sink.Stop(cleanupCtx, s.guildID); err != nil {
			slog.Warn("failed to stop sink", "guild", s.guildID, "error", err)
		}
		if err := s.deps.Sink.Disconnect(cleanupCtx, s.guildID); err != nil {
			slog.Warn("failed to disconnect sink", "guild", s.guildID, "error", err)
		}
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Delete(cleanupCtx, s.guildID); err != nil {
			slog.Warn("failed to delete stored session", "guild", s.guildID, "error", err)
		}
	}

	s.publish(domain.SessionStoppedEvent{
		GuildID:               s.guildID,
		NotificationChannelID: s.state.NotificationChannelID(),
		Reason:                reason,
	})

	s.registry.remove(s)
	slog.Info("session stopped", "guild", s.guildID, "reason", reason)
}

// OnTrackFinished handles the sink's finish signal for attempt. Signals for
// any attempt other than the current one are stale and ignored.
func (s *Session) OnTrackFinished(ctx context.Context, attempt uint64, reason domain.TrackEndReason) {
	if attempt != s.state.Attempt() || !s.state.IsActive() {
		slog.Debug("discarding stale track end",
			"guild", s.guildID,
			"attempt", attempt,
			"current_attempt", s.state.Attempt(),
			"reason", reason,
		)
		return
	}

	if reason.IsFatal() {
		slog.Warn("audio sink lost connection", "guild", s.guildID, "attempt_id", s.attemptID)
		s.Stop(ctx, domain.StopReasonDisconnected)
		return
	}

	if reason.IsFailure() {
		current, _ := s.state.Current()
		s.reportFailure(current, domain.ErrSinkStartFailed)
	}

	if _, err := s.endCurrent(ctx, reason); err != nil {
		slog.Warn("failed to finish track", "guild", s.guildID, "error", err)
	}
}

// SetAutoAdvance toggles recommendations when the queue runs out.
func (s *Session) SetAutoAdvance(ctx context.Context, enabled bool) {
	s.state.SetAutoAdvance(enabled)
	s.persist(ctx)
}

// AutoAdvance reports whether recommendations are enabled.
func (s *Session) AutoAdvance() bool {
	return s.state.AutoAdvance()
}

// RemoveAt removes the upcoming track at the 1-based position.
func (s *Session) RemoveAt(ctx context.Context, position int) (domain.Track, error) {
	track, err := s.state.Queue().RemoveAt(position - 1)
	if err != nil {
		return domain.Track{}, err
	}
	s.persist(ctx)
	return track, nil
}

// QueueSnapshot returns the current track and up to limit upcoming tracks.
func (s *Session) QueueSnapshot(limit int) domain.QueueSnapshot {
	snap := domain.QueueSnapshot{
		Status:      s.state.Status(),
		Upcoming:    s.state.Queue().Snapshot(limit),
		Total:       s.state.Queue().Len(),
		AutoAdvance: s.state.AutoAdvance(),
	}
	if current, ok := s.state.Current(); ok {
		snap.Current = &current
	}
	return snap
}

// Progress returns the progress of the current track.
func (s *Session) Progress() domain.ProgressSnapshot {
	return s.state.Progress(s.now())
}

// endCurrent finishes the current track with reason and continues playback.
func (s *Session) endCurrent(ctx context.Context, reason domain.TrackEndReason) (domain.Track, error) {
	finished, err := s.state.FinishCurrent()
	if err != nil {
		return domain.Track{}, err
	}

	if reason != domain.TrackEndFinished && reason != domain.TrackEndLoadFailed {
		if err := s.deps.Sink.Stop(ctx, s.guildID); err != nil {
			slog.Warn("failed to stop sink", "guild", s.guildID, "error", err)
		}
	}

	s.publish(domain.TrackFinishedEvent{
		GuildID:               s.guildID,
		NotificationChannelID: s.state.NotificationChannelID(),
		Track:                 finished,
		Reason:                reason,
	})

	s.advance(ctx, finished)
	s.persist(ctx)
	return finished, nil
}

// advance plays the next queued track, or a recommendation, or goes idle.
func (s *Session) advance(ctx context.Context, last domain.Track) {
	started, err := s.startNext(ctx)
	if err != nil {
		s.Stop(ctx, domain.StopReasonDisconnected)
		return
	}
	if started {
		return
	}

	s.afterQueueExhausted(ctx, &last)
}

func (s *Session) afterQueueExhausted(ctx context.Context, last *domain.Track) {
	if last == nil {
		if prev, ok := s.state.History().Last(); ok {
			last = &prev
		}
	}

	if s.state.AutoAdvance() && last != nil {
		started, err := s.playRecommendation(ctx, *last)
		if err != nil {
			s.Stop(ctx, domain.StopReasonDisconnected)
			return
		}
		if started {
			return
		}
	}

	if s.config.IdleTimeout <= 0 {
		s.Stop(ctx, domain.StopReasonIdle)
		return
	}
	s.idleSince = s.now()
}

func (s *Session) playRecommendation(ctx context.Context, seed domain.Track) (bool, error) {
	exclude := s.state.History().URLs()
	for _, queued := range s.state.Queue().Snapshot(0) {
		if queued.StreamURL != "" {
			exclude = append(exclude, queued.StreamURL)
		}
	}

	rec, err := s.deps.Resolver.Recommend(ctx, seed, exclude)
	if err != nil {
		slog.Warn("failed to get recommendation", "guild", s.guildID, "seed", seed.Title, "error", err)
		return false, nil
	}
	if rec == nil {
		slog.Debug("no recommendation available", "guild", s.guildID, "seed", seed.Title)
		return false, nil
	}

	track := rec.WithRequester(seed.RequesterID, s.now())
	err = s.playTrack(ctx, track, true)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotConnected):
		return false, err
	default:
		return false, nil
	}
}

// startNext pops queued tracks until one starts. A bad track is reported
// and skipped. The returned error is only set when the sink cannot connect.
func (s *Session) startNext(ctx context.Context) (bool, error) {
	for {
		track, err := s.state.Queue().DequeueFront()
		if err != nil {
			return false, nil
		}

		err = s.playTrack(ctx, track, false)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, domain.ErrNotConnected):
			return false, err
		}
	}
}

func (s *Session) playTrack(ctx context.Context, track domain.Track, recommended bool) error {
	attempt, err := s.state.BeginLoading(track)
	if err != nil {
		return err
	}
	s.attemptID = uuid.NewString()
	s.idleSince = s.now()

	if err := s.ensureConnected(ctx); err != nil {
		_ = s.state.FailLoading()
		err = fmt.Errorf("%w: %w", domain.ErrNotConnected, err)
		s.reportFailure(track, err)
		return err
	}

	if err := s.deps.Sink.Start(ctx, s.guildID, track, s.finishCallback(attempt)); err != nil {
		_ = s.state.FailLoading()
		err = fmt.Errorf("%w: %w", domain.ErrSinkStartFailed, err)
		s.reportFailure(track, err)
		return err
	}

	if err := s.state.MarkPlaying(s.now()); err != nil {
		return err
	}
	s.lastProgress = domain.ProgressSnapshot{}

	slog.Info("track started",
		"guild", s.guildID,
		"title", track.Title,
		"attempt", attempt,
		"attempt_id", s.attemptID,
	)

	s.publish(domain.PlaybackStartedEvent{
		GuildID:               s.guildID,
		NotificationChannelID: s.state.NotificationChannelID(),
		Track:                 track,
		Attempt:               attempt,
		Recommended:           recommended,
	})
	return nil
}

func (s *Session) ensureConnected(ctx context.Context) error {
	if s.deps.Sink.IsConnected(s.guildID) {
		return nil
	}

	channelID := s.state.VoiceChannelID()
	if channelID == 0 {
		return errors.New("no voice channel bound")
	}
	return s.deps.Sink.Connect(ctx, s.guildID, channelID)
}

// finishCallback delivers the sink's finish signal back through the
// session loop, tagged with the attempt it belongs to.
func (s *Session) finishCallback(attempt uint64) func(domain.TrackEndReason) {
	return func(reason domain.TrackEndReason) {
		s.post(func(ctx context.Context, s *Session) error {
			s.OnTrackFinished(ctx, attempt, reason)
			return nil
		})
	}
}

func (s *Session) reportFailure(track domain.Track, err error) {
	slog.Warn("failed to play track",
		"guild", s.guildID,
		"title", track.Title,
		"attempt_id", s.attemptID,
		"error", err,
	)
	s.publish(domain.TrackFailedEvent{
		GuildID:               s.guildID,
		NotificationChannelID: s.state.NotificationChannelID(),
		Track:                 track,
		Err:                   err,
	})
}

func (s *Session) publishStateChange() {
	s.publish(domain.PlaybackStateChangedEvent{
		GuildID:               s.guildID,
		NotificationChannelID: s.state.NotificationChannelID(),
		Status:                s.state.Status(),
		Progress:              s.state.Progress(s.now()),
	})
}
